package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// RetentionOptions configures the retention reconciler
type RetentionOptions struct {
	// MaxAge is the age after which image files are deleted. Zero disables the expiry sweep.
	MaxAge time.Duration
	// RunOnStart runs one sweep as soon as the scheduler starts
	RunOnStart bool
}

// RetentionService deletes expired images and prunes verdicts whose image is gone
type RetentionService struct {
	images     ImageSource
	store      VerdictStore
	cache      *VerdictCache
	logger     *zap.Logger
	maxAge     time.Duration
	runOnStart bool
	now        func() time.Time

	// sweepMu keeps scheduled and on-demand sweeps from overlapping
	sweepMu sync.Mutex

	lifecycleMu sync.Mutex
	scheduler   *cron.Cron
	startup     sync.WaitGroup
}

// NewRetentionService creates a new retention service
func NewRetentionService(images ImageSource, store VerdictStore, cache *VerdictCache, logger *zap.Logger, opts RetentionOptions) *RetentionService {
	return &RetentionService{
		images:     images,
		store:      store,
		cache:      cache,
		logger:     logger,
		maxAge:     opts.MaxAge,
		runOnStart: opts.RunOnStart,
		now:        time.Now,
	}
}

// RunRetentionSweep runs the expiry sweep followed by the orphan sweep.
// Per-item failures are logged and returned together once both sweeps finish.
func (r *RetentionService) RunRetentionSweep(ctx context.Context) (*SweepSummary, error) {
	r.sweepMu.Lock()
	defer r.sweepMu.Unlock()

	summary := &SweepSummary{}
	var errs error

	removedFiles, err := r.expirySweep(ctx)
	summary.RemovedFiles = removedFiles
	errs = multierr.Append(errs, err)

	removedOrphans, err := r.orphanSweep(ctx)
	summary.RemovedOrphans = removedOrphans
	errs = multierr.Append(errs, err)

	r.logger.Info("Retention sweep finished",
		zap.Int("removed_files", summary.RemovedFiles),
		zap.Int("removed_orphans", summary.RemovedOrphans),
		zap.Int("errors", len(multierr.Errors(errs))))
	return summary, errs
}

// ExpirySweep deletes image files older than the retention age and drops
// them from the cache. Their stored verdicts are left to the orphan sweep.
func (r *RetentionService) ExpirySweep(ctx context.Context) (int, error) {
	r.sweepMu.Lock()
	defer r.sweepMu.Unlock()
	return r.expirySweep(ctx)
}

// OrphanSweep removes stored verdicts whose image file no longer exists
func (r *RetentionService) OrphanSweep(ctx context.Context) (int, error) {
	r.sweepMu.Lock()
	defer r.sweepMu.Unlock()
	return r.orphanSweep(ctx)
}

func (r *RetentionService) expirySweep(ctx context.Context) (int, error) {
	if r.maxAge <= 0 {
		return 0, nil
	}

	images, err := r.images.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list images: %w", err)
	}

	cutoff := r.now().Add(-r.maxAge)
	removed := 0
	var errs error
	for _, img := range images {
		if !img.ModTime.Before(cutoff) {
			continue
		}

		if err := r.images.Remove(ctx, img.ID); err != nil && !errors.Is(err, ErrImageNotFound) {
			r.logger.Warn("Failed to delete expired image", zap.String("image", img.ID), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		r.cache.Delete(img.ID)
		removed++

		r.logger.Debug("Deleted expired image",
			zap.String("image", img.ID),
			zap.Time("modified", img.ModTime))
	}
	return removed, errs
}

func (r *RetentionService) orphanSweep(ctx context.Context) (int, error) {
	// Snapshots come before the listing: files only disappear, so anything
	// recorded after this point is never mistaken for an orphan
	stored, err := r.store.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	cached, err := r.cache.Snapshot(ctx)
	if err != nil {
		return 0, err
	}

	// Without a trustworthy listing every verdict would look orphaned
	images, err := r.images.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list images: %w", err)
	}
	present := make(map[string]struct{}, len(images))
	for _, img := range images {
		present[img.ID] = struct{}{}
	}

	orphans := make([]string, 0)
	for _, id := range sortedIDs(stored) {
		if _, ok := present[id]; !ok {
			orphans = append(orphans, id)
		}
	}

	removed, errs := r.removeVerdicts(ctx, orphans)

	// Failed verdicts only live in the cache
	var stale []string
	for id := range cached {
		if _, ok := present[id]; ok {
			continue
		}
		if _, ok := stored[id]; !ok {
			stale = append(stale, id)
		}
	}
	r.cache.Delete(stale...)

	return removed, errs
}

// removeVerdicts deletes ids from the store in one batch, falling back to
// individual deletes when the batch fails
func (r *RetentionService) removeVerdicts(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	err := r.store.RemoveMany(ctx, ids)
	if err == nil {
		r.cache.Delete(ids...)
		r.logger.Info("Removed orphaned verdicts", zap.Strings("images", ids))
		return len(ids), nil
	}
	r.logger.Warn("Batch removal failed, removing orphans one by one", zap.Error(err))

	removed := 0
	var errs error
	for _, id := range ids {
		if err := r.store.Remove(ctx, id); err != nil {
			r.logger.Warn("Failed to remove orphaned verdict", zap.String("image", id), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		r.cache.Delete(id)
		removed++
	}
	return removed, errs
}

// StartRetentionScheduler runs the retention sweep every interval. Calling it
// again while a scheduler is running is a no-op.
func (r *RetentionService) StartRetentionScheduler(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid retention interval: %s", interval)
	}

	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()
	if r.scheduler != nil {
		return nil
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every "+interval.String(), r.scheduledSweep); err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}
	scheduler.Start()
	r.scheduler = scheduler

	r.logger.Info("Retention scheduler started",
		zap.Duration("interval", interval),
		zap.Duration("max_age", r.maxAge))

	if r.runOnStart {
		r.startup.Add(1)
		go func() {
			defer r.startup.Done()
			r.scheduledSweep()
		}()
	}
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (r *RetentionService) Stop() {
	r.lifecycleMu.Lock()
	scheduler := r.scheduler
	r.scheduler = nil
	r.lifecycleMu.Unlock()

	if scheduler == nil {
		return
	}
	<-scheduler.Stop().Done()
	r.startup.Wait()
	r.logger.Info("Retention scheduler stopped")
}

func (r *RetentionService) scheduledSweep() {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Recovered from panic in retention sweep", zap.Any("panic", rec))
		}
	}()

	if _, err := r.RunRetentionSweep(context.Background()); err != nil {
		r.logger.Warn("Retention sweep completed with errors", zap.Error(err))
	}
}
