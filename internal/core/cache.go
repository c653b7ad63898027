package core

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// VerdictCache is the in-memory view of verdict texts keyed by image identifier.
// It is lazily hydrated from the store on first read and updated by every writer
// after the store write succeeds. The store stays authoritative.
type VerdictCache struct {
	store   VerdictStore
	logger  *zap.Logger
	mu      sync.RWMutex
	entries map[string]string
	loaded  bool
}

// NewVerdictCache creates an empty cache backed by store
func NewVerdictCache(store VerdictStore, logger *zap.Logger) *VerdictCache {
	return &VerdictCache{
		store:   store,
		logger:  logger,
		entries: make(map[string]string),
	}
}

// hydrate loads the store contents once. Entries written before hydration win
// over the stored values since they are newer.
func (c *VerdictCache) hydrate(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}

	stored, err := c.store.GetAll(ctx)
	if err != nil {
		return err
	}
	for id, raw := range stored {
		if _, ok := c.entries[id]; !ok {
			c.entries[id] = raw
		}
	}
	c.loaded = true

	c.logger.Debug("Hydrated verdict cache from store", zap.Int("entries", len(stored)))
	return nil
}

// Get returns the cached verdict text for an image
func (c *VerdictCache) Get(ctx context.Context, imageID string) (string, bool, error) {
	if err := c.hydrate(ctx); err != nil {
		return "", false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	raw, ok := c.entries[imageID]
	return raw, ok, nil
}

// Set stores the verdict text for an image
func (c *VerdictCache) Set(imageID, rawText string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[imageID] = rawText
}

// Delete drops the given images from the cache
func (c *VerdictCache) Delete(imageIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range imageIDs {
		delete(c.entries, id)
	}
}

// Snapshot returns a copy of every cached entry
func (c *VerdictCache) Snapshot(ctx context.Context) (map[string]string, error) {
	if err := c.hydrate(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	snapshot := make(map[string]string, len(c.entries))
	for id, raw := range c.entries {
		snapshot[id] = raw
	}
	return snapshot, nil
}
