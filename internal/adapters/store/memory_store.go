package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type memoryEntry struct {
	rawText    string
	recordedAt time.Time
}

// MemoryStore is an in-memory implementation of the VerdictStore interface.
// Verdicts do not survive a restart.
type MemoryStore struct {
	entries map[string]memoryEntry
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		logger:  logger,
	}
}

// Put upserts the raw verdict text and refreshes the record timestamp
func (s *MemoryStore) Put(ctx context.Context, imageID, rawText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[imageID] = memoryEntry{rawText: rawText, recordedAt: time.Now()}
	return nil
}

// Has reports whether a verdict exists for the image
func (s *MemoryStore) Has(ctx context.Context, imageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.entries[imageID]
	return ok, nil
}

// GetAll returns every stored verdict keyed by image identifier
func (s *MemoryStore) GetAll(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	verdicts := make(map[string]string, len(s.entries))
	for id, entry := range s.entries {
		verdicts[id] = entry.rawText
	}
	return verdicts, nil
}

// RecordedAt returns when the verdict for an image was last written
func (s *MemoryStore) RecordedAt(imageID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[imageID]
	return entry.recordedAt, ok
}

// Remove deletes the verdict for one image
func (s *MemoryStore) Remove(ctx context.Context, imageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, imageID)
	return nil
}

// RemoveMany deletes the verdicts for several images
func (s *MemoryStore) RemoveMany(ctx context.Context, imageIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range imageIDs {
		delete(s.entries, id)
	}
	s.logger.Debug("Removed verdicts", zap.String("backend", "memory"), zap.Int("count", len(imageIDs)))
	return nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}
