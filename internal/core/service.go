package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	defaultInferenceTimeout = 2 * time.Minute
	defaultPollInterval     = 5 * time.Second
)

// PipelineOptions configures the analysis pipeline
type PipelineOptions struct {
	Prompt       string
	Timeout      time.Duration
	PollInterval time.Duration
}

// imageStatus is what this process has observed about an image
type imageStatus struct {
	state      AnalysisState
	recordedAt time.Time
}

// PipelineService discovers new images, submits them for inference one at a
// time and records the resulting verdicts
type PipelineService struct {
	inference    InferenceClient
	store        VerdictStore
	cache        *VerdictCache
	images       ImageSource
	sinks        []VerdictSink
	logger       *zap.Logger
	prompt       string
	timeout      time.Duration
	pollInterval time.Duration

	// gate wraps every call into the inference client
	gate *semaphore.Weighted

	mu       sync.Mutex
	statuses map[string]imageStatus

	enabled atomic.Bool

	lifecycleMu sync.Mutex
	started     bool
	cancel      context.CancelFunc
	group       *errgroup.Group
}

// NewPipelineService creates a new pipeline service
func NewPipelineService(
	inference InferenceClient,
	store VerdictStore,
	cache *VerdictCache,
	images ImageSource,
	sinks []VerdictSink,
	logger *zap.Logger,
	opts PipelineOptions,
) *PipelineService {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultInferenceTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	s := &PipelineService{
		inference:    inference,
		store:        store,
		cache:        cache,
		images:       images,
		sinks:        sinks,
		logger:       logger,
		prompt:       opts.Prompt,
		timeout:      opts.Timeout,
		pollInterval: opts.PollInterval,
		gate:         semaphore.NewWeighted(1),
		statuses:     make(map[string]imageStatus),
	}
	s.enabled.Store(true)
	return s
}

// SubmitManualAnalysis analyses an image regardless of its current state and
// overwrites any stored verdict. Inference failures come back as a verdict in
// the failed state, not as an error.
func (s *PipelineService) SubmitManualAnalysis(ctx context.Context, imageID string) (*Verdict, error) {
	if err := ValidateImageID(imageID); err != nil {
		return nil, err
	}

	s.logger.Info("Manual analysis requested", zap.String("image", imageID))
	return s.analyze(ctx, imageID, true)
}

// CachedVerdicts returns a snapshot of every known verdict text
func (s *PipelineService) CachedVerdicts(ctx context.Context) (map[string]string, error) {
	return s.cache.Snapshot(ctx)
}

// Verdicts returns the parsed verdicts for every known image, ordered by identifier.
// RecordedAt is zero for verdicts recorded before this process started.
func (s *PipelineService) Verdicts(ctx context.Context) ([]*Verdict, error) {
	snapshot, err := s.cache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	verdicts := make([]*Verdict, 0, len(snapshot))
	for _, id := range sortedIDs(snapshot) {
		status := s.status(id)
		if status.state == StatePending {
			// Loaded from the store by an earlier run
			status.state = StateRecorded
		}
		verdicts = append(verdicts, NewVerdict(id, snapshot[id], status.recordedAt, status.state))
	}
	return verdicts, nil
}

// State returns the lifecycle state of an image as seen by this process
func (s *PipelineService) State(imageID string) AnalysisState {
	return s.status(imageID).state
}

// SetDiscoveryEnabled pauses or resumes automatic analysis. Manual analysis is unaffected.
func (s *PipelineService) SetDiscoveryEnabled(enabled bool) {
	s.enabled.Store(enabled)
	s.logger.Info("Automatic analysis toggled", zap.Bool("enabled", enabled))
}

// DiscoveryEnabled reports whether automatic analysis is running
func (s *PipelineService) DiscoveryEnabled() bool {
	return s.enabled.Load()
}

// StartBackgroundDiscovery starts the discovery loop. Calling it again is a no-op.
func (s *PipelineService) StartBackgroundDiscovery() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.started {
		return nil
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	changes, err := s.images.Watch(ctx)
	if err != nil {
		s.logger.Warn("Directory notifications unavailable, relying on polling", zap.Error(err))
		changes = nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		s.discoveryLoop(groupCtx, changes)
		return nil
	})

	s.cancel = cancel
	s.group = group
	return nil
}

// Stop signals the discovery loop to exit and waits for it. An inference call
// in flight is allowed to finish or time out.
func (s *PipelineService) Stop() error {
	s.lifecycleMu.Lock()
	cancel, group := s.cancel, s.group
	s.cancel, s.group = nil, nil
	s.lifecycleMu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	return group.Wait()
}

// DiscoverOnce analyses every image in the directory that has no verdict yet.
// It returns the number of images submitted for inference.
func (s *PipelineService) DiscoverOnce(ctx context.Context) (int, error) {
	images, err := s.images.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list images: %w", err)
	}

	pending, err := s.pendingImages(ctx, images)
	if err != nil {
		return 0, err
	}

	analysed := 0
	for _, img := range pending {
		if ctx.Err() != nil {
			break
		}
		verdict, err := s.analyze(ctx, img.ID, false)
		if err != nil {
			s.logger.Warn("Skipping image", zap.String("image", img.ID), zap.Error(err))
			continue
		}
		if verdict != nil {
			analysed++
		}
	}

	if err := s.pruneStatuses(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("Failed to prune image states", zap.Error(err))
	}
	return analysed, nil
}

// pruneStatuses forgets images whose verdict has left the cache, which happens
// once the reconciler removes the image or its stored verdict
func (s *PipelineService) pruneStatuses(ctx context.Context) error {
	// No image is INFERRING while the gate is held
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.gate.Release(1)

	known, err := s.cache.Snapshot(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.statuses {
		if _, ok := known[id]; !ok {
			delete(s.statuses, id)
		}
	}
	return nil
}

// analyzeLatest gives the most recently modified image priority at startup
func (s *PipelineService) analyzeLatest(ctx context.Context) {
	images, err := s.images.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list images", zap.Error(err))
		return
	}
	if len(images) == 0 {
		return
	}

	latest := images[0]
	for _, img := range images[1:] {
		if img.ModTime.After(latest.ModTime) || (img.ModTime.Equal(latest.ModTime) && img.ID > latest.ID) {
			latest = img
		}
	}

	if _, err := s.analyze(ctx, latest.ID, false); err != nil {
		s.logger.Warn("Startup analysis of latest image failed", zap.String("image", latest.ID), zap.Error(err))
	}
}

func (s *PipelineService) discoveryLoop(ctx context.Context, changes <-chan struct{}) {
	s.logger.Info("Watching for new images", zap.Duration("poll_interval", s.pollInterval))

	if s.DiscoveryEnabled() {
		s.safely("startup analysis", func() { s.analyzeLatest(ctx) })
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		if s.DiscoveryEnabled() {
			s.safely("discovery", func() {
				if _, err := s.DiscoverOnce(ctx); err != nil {
					s.logger.Error("Discovery pass failed", zap.Error(err))
				}
			})
		}

		select {
		case <-ctx.Done():
			s.logger.Info("Discovery loop stopped")
			return
		case <-ticker.C:
		case _, ok := <-changes:
			if !ok {
				changes = nil
			}
		}
	}
}

// pendingImages returns the listed images absent from both cache and store,
// ordered by identifier
func (s *PipelineService) pendingImages(ctx context.Context, images []ImageInfo) ([]ImageInfo, error) {
	known, err := s.cache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	sorted := make([]ImageInfo, len(images))
	copy(sorted, images)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	pending := make([]ImageInfo, 0)
	for _, img := range sorted {
		if _, ok := known[img.ID]; ok {
			continue
		}
		stored, err := s.store.Has(ctx, img.ID)
		if err != nil {
			s.logger.Warn("Failed to check store, skipping image", zap.String("image", img.ID), zap.Error(err))
			continue
		}
		if !stored {
			pending = append(pending, img)
		}
	}
	return pending, nil
}

// analyze runs one image through the pipeline behind the inference gate.
// Without force an image that already has a verdict is skipped and nil is returned.
func (s *PipelineService) analyze(ctx context.Context, imageID string, force bool) (*Verdict, error) {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to wait for inference gate: %w", err)
	}
	verdict, err := s.analyzeLocked(ctx, imageID, force)
	s.gate.Release(1)

	if err != nil || verdict == nil {
		return verdict, err
	}
	if verdict.State == StateRecorded {
		s.publish(ctx, verdict)
	}
	return verdict, nil
}

func (s *PipelineService) analyzeLocked(ctx context.Context, imageID string, force bool) (*Verdict, error) {
	if !force {
		known, err := s.isKnown(ctx, imageID)
		if err != nil {
			return nil, err
		}
		if known {
			return nil, nil
		}
	}

	previous := s.transition(imageID, StateInferring)
	processingID := uuid.NewString()
	logger := s.logger.With(zap.String("image", imageID), zap.String("processing_id", processingID))

	// Shutdown must not interrupt a started inference or its store write
	writeCtx := context.WithoutCancel(ctx)

	rawText, err := s.infer(writeCtx, imageID)
	if err != nil {
		if errors.Is(err, ErrInvalidImageID) {
			s.setStatus(imageID, previous)
			return nil, err
		}
		logger.Error("Image analysis failed", zap.Error(err))
		verdict := s.recordFailure(imageID, err)
		verdict.ProcessingID = processingID
		return verdict, nil
	}

	if err := s.store.Put(writeCtx, imageID, rawText); err != nil {
		s.setStatus(imageID, previous)
		logger.Error("Failed to record verdict", zap.Error(err))
		return nil, err
	}
	recordedAt := time.Now()
	s.cache.Set(imageID, rawText)
	s.setStatus(imageID, imageStatus{state: StateRecorded, recordedAt: recordedAt})

	verdict := NewVerdict(imageID, rawText, recordedAt, StateRecorded)
	verdict.ProcessingID = processingID

	logger.Info("Image analysed",
		zap.String("answer", string(verdict.Answer)),
		zap.Float64("confidence", verdict.Confidence),
		zap.String("result", rawText))
	return verdict, nil
}

func (s *PipelineService) infer(ctx context.Context, imageID string) (string, error) {
	image, err := s.images.Read(ctx, imageID)
	if err != nil {
		return "", err
	}

	inferCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.inference.Infer(inferCtx, image, s.prompt)
}

// recordFailure caches a synthetic verdict so the failure is visible and the
// image is not picked up again by discovery
func (s *PipelineService) recordFailure(imageID string, cause error) *Verdict {
	rawText := "Error: " + cause.Error()
	failedAt := time.Now()
	s.cache.Set(imageID, rawText)
	s.setStatus(imageID, imageStatus{state: StateFailed, recordedAt: failedAt})
	return NewVerdict(imageID, rawText, failedAt, StateFailed)
}

func (s *PipelineService) isKnown(ctx context.Context, imageID string) (bool, error) {
	_, ok, err := s.cache.Get(ctx, imageID)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return s.store.Has(ctx, imageID)
}

func (s *PipelineService) status(imageID string) imageStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[imageID]
}

// transition moves an image to a new state and returns its previous status
func (s *PipelineService) transition(imageID string, state AnalysisState) imageStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.statuses[imageID]
	next := previous
	next.state = state
	s.setStatusLocked(imageID, next)
	return previous
}

// setStatus replaces the status of an image
func (s *PipelineService) setStatus(imageID string, status imageStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStatusLocked(imageID, status)
}

func (s *PipelineService) setStatusLocked(imageID string, status imageStatus) {
	if status.state == StatePending && status.recordedAt.IsZero() {
		delete(s.statuses, imageID)
		return
	}
	s.statuses[imageID] = status
}

func (s *PipelineService) publish(ctx context.Context, verdict *Verdict) {
	sinkCtx := context.WithoutCancel(ctx)
	for _, sink := range s.sinks {
		s.safely(sink.Name(), func() { sink.Publish(sinkCtx, verdict) })
	}
}

// safely runs fn and turns a panic into a log entry so background loops keep going
func (s *PipelineService) safely(task string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered from panic",
				zap.String("task", task),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	fn()
}
