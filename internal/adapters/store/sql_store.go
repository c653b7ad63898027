package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/Coldness00/Fumes-Detector/internal/core"
	"go.uber.org/zap"
)

// deleteChunkSize keeps IN lists below the bound-parameter limits of every backend
const deleteChunkSize = 500

// sqlStore holds the database/sql logic shared by the SQLite and MySQL stores.
// Writes are serialized by mu; reads go straight to the database.
type sqlStore struct {
	db          *sql.DB
	logger      *zap.Logger
	backend     string
	upsertQuery string
	mu          sync.Mutex
}

// Put upserts the raw verdict text and refreshes the record timestamp
func (s *sqlStore) Put(ctx context.Context, imageID, rawText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, s.upsertQuery, imageID, rawText); err != nil {
		return &core.StoreError{Op: "put", Err: fmt.Errorf("failed to upsert verdict for %s: %w", imageID, err)}
	}
	return nil
}

// Has reports whether a verdict exists for the image
func (s *sqlStore) Has(ctx context.Context, imageID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM processed WHERE filename = ?`, imageID).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, &core.StoreError{Op: "has", Err: fmt.Errorf("failed to query verdict: %w", err)}
	}
	return true, nil
}

// GetAll returns every stored verdict keyed by image identifier
func (s *sqlStore) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT filename, result FROM processed`)
	if err != nil {
		return nil, &core.StoreError{Op: "get_all", Err: fmt.Errorf("failed to query verdicts: %w", err)}
	}
	defer rows.Close()

	verdicts := make(map[string]string)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, &core.StoreError{Op: "get_all", Err: fmt.Errorf("failed to scan verdict: %w", err)}
		}
		verdicts[id] = raw
	}
	if err := rows.Err(); err != nil {
		return nil, &core.StoreError{Op: "get_all", Err: err}
	}
	return verdicts, nil
}

// Remove deletes the verdict for one image
func (s *sqlStore) Remove(ctx context.Context, imageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM processed WHERE filename = ?`, imageID); err != nil {
		return &core.StoreError{Op: "remove", Err: fmt.Errorf("failed to delete verdict for %s: %w", imageID, err)}
	}
	return nil
}

// RemoveMany deletes the verdicts for several images in a single transaction
func (s *sqlStore) RemoveMany(ctx context.Context, imageIDs []string) error {
	if len(imageIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.StoreError{Op: "remove_many", Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}

	for start := 0; start < len(imageIDs); start += deleteChunkSize {
		end := start + deleteChunkSize
		if end > len(imageIDs) {
			end = len(imageIDs)
		}
		chunk := imageIDs[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		query := fmt.Sprintf(`DELETE FROM processed WHERE filename IN (%s)`, placeholders)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return &core.StoreError{Op: "remove_many", Err: fmt.Errorf("failed to delete verdicts: %w", err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &core.StoreError{Op: "remove_many", Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}

	s.logger.Debug("Removed verdicts", zap.String("backend", s.backend), zap.Int("count", len(imageIDs)))
	return nil
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close %s database: %w", s.backend, err)
	}
	return nil
}
