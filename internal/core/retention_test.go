package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type retentionFixture struct {
	store   *mockStore
	images  *mockImages
	cache   *VerdictCache
	service *RetentionService
}

func newRetentionFixture(t *testing.T, opts RetentionOptions, stored map[string]string, images ...ImageInfo) *retentionFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	f := &retentionFixture{
		store:  newMockStore(stored),
		images: newMockImages(images...),
	}
	f.cache = NewVerdictCache(f.store, logger)
	f.service = NewRetentionService(f.images, f.store, f.cache, logger, opts)
	return f
}

func TestOrphanSweepRemovesVerdictsWithoutImages(t *testing.T) {
	f := newRetentionFixture(t, RetentionOptions{},
		map[string]string{"a.jpg": "No = 1", "b.jpg": "No = 2", "c.jpg": "No = 3"},
		imageAt("b.jpg", time.Minute))
	ctx := context.Background()

	removed, err := f.service.OrphanSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"b.jpg"}, f.store.IDs())

	snapshot, err := f.cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b.jpg": "No = 2"}, snapshot)

	removed, err = f.service.OrphanSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestOrphanSweepAbortsWhenListingFails(t *testing.T) {
	f := newRetentionFixture(t, RetentionOptions{},
		map[string]string{"a.jpg": "No = 1"})
	f.images.listErr = errBoom

	removed, err := f.service.OrphanSweep(context.Background())
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, removed)
	assert.Equal(t, []string{"a.jpg"}, f.store.IDs())
}

func TestOrphanSweepKeepsVerdictsRecordedDuringListing(t *testing.T) {
	tests := []struct {
		name    string
		respond func([]byte) (string, error)
		stored  []string
	}{
		{
			name:   "recorded",
			stored: []string{"new.jpg", "old.jpg"},
		},
		{
			name: "failed",
			respond: func([]byte) (string, error) {
				return "", &InferenceError{Provider: "mock", Err: errBoom}
			},
			stored: []string{"old.jpg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t, map[string]string{"old.jpg": "No = 1"}, imageAt("old.jpg", time.Minute))
			f.inference.respond = tt.respond
			ctx := context.Background()

			listing := &hookedImages{mockImages: f.images}
			listing.afterList = func() {
				f.images.Add(imageAt("new.jpg", 0))
				_, err := f.service.DiscoverOnce(ctx)
				require.NoError(t, err)
			}
			reconciler := NewRetentionService(listing, f.store, f.cache, zaptest.NewLogger(t), RetentionOptions{})

			removed, err := reconciler.OrphanSweep(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, removed)
			assert.Equal(t, tt.stored, f.store.IDs())

			_, ok, err := f.cache.Get(ctx, "new.jpg")
			require.NoError(t, err)
			assert.True(t, ok)

			_, err = f.service.DiscoverOnce(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"new.jpg"}, f.inference.Calls())
		})
	}
}

func TestOrphanSweepFallsBackToSingleRemovals(t *testing.T) {
	f := newRetentionFixture(t, RetentionOptions{},
		map[string]string{"a.jpg": "No = 1", "b.jpg": "No = 2", "c.jpg": "No = 3"},
		imageAt("b.jpg", time.Minute))
	f.store.removeManyErr = errBoom
	f.store.removeErr["c.jpg"] = errBoom

	removed, err := f.service.OrphanSweep(context.Background())
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"b.jpg", "c.jpg"}, f.store.IDs())
}

func TestOrphanSweepDropsCachedFailures(t *testing.T) {
	f := newRetentionFixture(t, RetentionOptions{}, nil, imageAt("kept.jpg", time.Minute))
	f.cache.Set("gone.jpg", "Error: timeout")
	f.cache.Set("kept.jpg", "Error: timeout")

	_, err := f.service.OrphanSweep(context.Background())
	require.NoError(t, err)

	snapshot, err := f.cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"kept.jpg": "Error: timeout"}, snapshot)
}

func TestRetentionSweepDeletesExpiredImagesAndTheirVerdicts(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	old := ImageInfo{ID: "old.jpg", ModTime: now.Add(-16 * 24 * time.Hour)}
	fresh := ImageInfo{ID: "fresh.jpg", ModTime: now.Add(-14 * 24 * time.Hour)}
	f := newRetentionFixture(t, RetentionOptions{MaxAge: 15 * 24 * time.Hour},
		map[string]string{"old.jpg": "Yes = 80", "fresh.jpg": "No = 10"},
		old, fresh)
	f.service.now = func() time.Time { return now }

	summary, err := f.service.RunRetentionSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &SweepSummary{RemovedFiles: 1, RemovedOrphans: 1}, summary)
	assert.False(t, f.images.Has("old.jpg"))
	assert.True(t, f.images.Has("fresh.jpg"))
	assert.Equal(t, []string{"fresh.jpg"}, f.store.IDs())

	summary, err = f.service.RunRetentionSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &SweepSummary{}, summary)
}

func TestExpirySweepDisabledWithoutMaxAge(t *testing.T) {
	f := newRetentionFixture(t, RetentionOptions{}, nil, imageAt("ancient.jpg", 365*24*time.Hour))

	removed, err := f.service.ExpirySweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.True(t, f.images.Has("ancient.jpg"))
}

func TestExpirySweepContinuesPastFailures(t *testing.T) {
	f := newRetentionFixture(t, RetentionOptions{MaxAge: time.Hour}, nil,
		imageAt("a.jpg", 2*time.Hour), imageAt("b.jpg", 2*time.Hour))
	f.images.removeErr["a.jpg"] = errBoom

	removed, err := f.service.ExpirySweep(context.Background())
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, removed)
	assert.True(t, f.images.Has("a.jpg"))
	assert.False(t, f.images.Has("b.jpg"))
}

func TestRetentionSchedulerRunsOnStart(t *testing.T) {
	f := newRetentionFixture(t, RetentionOptions{RunOnStart: true},
		map[string]string{"a.jpg": "No = 1"})

	assert.Error(t, f.service.StartRetentionScheduler(0))

	require.NoError(t, f.service.StartRetentionScheduler(time.Hour))
	require.NoError(t, f.service.StartRetentionScheduler(time.Hour))

	require.Eventually(t, func() bool {
		return len(f.store.IDs()) == 0
	}, 2*time.Second, 10*time.Millisecond)

	f.service.Stop()
	f.service.Stop()
}
