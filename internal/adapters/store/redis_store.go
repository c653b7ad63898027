package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Coldness00/Fumes-Detector/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore keeps verdicts in a Redis hash keyed by image identifier, with
// record timestamps in a sibling hash
type RedisStore struct {
	client       *redis.Client
	logger       *zap.Logger
	key          string
	timestampKey string
}

// NewRedisStore connects to Redis. key names the hash holding the verdicts.
func NewRedisStore(addr, password string, db int, key string, logger *zap.Logger) (*RedisStore, error) {
	if key == "" {
		key = "fumes:processed"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis verdict store", zap.String("addr", addr), zap.String("key", key))

	return &RedisStore{
		client:       client,
		logger:       logger,
		key:          key,
		timestampKey: key + ":recorded_at",
	}, nil
}

// Put upserts the raw verdict text and refreshes the record timestamp
func (s *RedisStore) Put(ctx context.Context, imageID, rawText string) error {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, imageID, rawText)
		pipe.HSet(ctx, s.timestampKey, imageID, now)
		return nil
	})
	if err != nil {
		return &core.StoreError{Op: "put", Err: fmt.Errorf("failed to upsert verdict for %s: %w", imageID, err)}
	}
	return nil
}

// Has reports whether a verdict exists for the image
func (s *RedisStore) Has(ctx context.Context, imageID string) (bool, error) {
	ok, err := s.client.HExists(ctx, s.key, imageID).Result()
	if err != nil {
		return false, &core.StoreError{Op: "has", Err: err}
	}
	return ok, nil
}

// GetAll returns every stored verdict keyed by image identifier
func (s *RedisStore) GetAll(ctx context.Context) (map[string]string, error) {
	verdicts, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, &core.StoreError{Op: "get_all", Err: err}
	}
	return verdicts, nil
}

// Remove deletes the verdict for one image
func (s *RedisStore) Remove(ctx context.Context, imageID string) error {
	return s.RemoveMany(ctx, []string{imageID})
}

// RemoveMany deletes the verdicts for several images in one transaction
func (s *RedisStore) RemoveMany(ctx context.Context, imageIDs []string) error {
	if len(imageIDs) == 0 {
		return nil
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.key, imageIDs...)
		pipe.HDel(ctx, s.timestampKey, imageIDs...)
		return nil
	})
	if err != nil {
		return &core.StoreError{Op: "remove_many", Err: fmt.Errorf("failed to delete verdicts: %w", err)}
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}
	return nil
}
