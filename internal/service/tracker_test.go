package service

import (
	"context"
	"testing"

	"github.com/logvault/logvault/internal/pkg/apperrors"
	"github.com/logvault/logvault/internal/repository"
	"github.com/stretchr/testify/assert"
)

func TestTrackerFreshFile(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryLogStore()
	tracker := NewPositionTracker(store, repository.NewMemoryPositionRepo(), 1)

	next, err := tracker.NextExpected(ctx, "f1")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), next)

	wm, err := tracker.Watermark(ctx, "f1")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), wm)
}

func TestTrackerAdvanceMonotonic(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryLogStore()
	tracker := NewPositionTracker(store, repository.NewMemoryPositionRepo(), 1)

	assert.NoError(t, tracker.Advance(ctx, "f1", 1))
	assert.NoError(t, tracker.Advance(ctx, "f1", 2))
	// Skipped lines may jump the watermark forward.
	assert.NoError(t, tracker.Advance(ctx, "f1", 5))

	err := tracker.Advance(ctx, "f1", 5)
	assert.True(t, apperrors.IsType(err, apperrors.ErrOutOfOrderAdvance))
	err = tracker.Advance(ctx, "f1", 3)
	assert.True(t, apperrors.IsType(err, apperrors.ErrOutOfOrderAdvance))

	next, err := tracker.NextExpected(ctx, "f1")
	assert.NoError(t, err)
	assert.Equal(t, int64(6), next)
}

func TestTrackerFilesAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryLogStore()
	tracker := NewPositionTracker(store, nil, 1)

	assert.NoError(t, tracker.Advance(ctx, "f1", 9))

	next, err := tracker.NextExpected(ctx, "f2")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), next)
}

func TestTrackerReconcileStorageWins(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryLogStore()
	repo := repository.NewMemoryPositionRepo()

	// Crash between put and advance: storage has lines 1..3 but the
	// persisted watermark stopped at 1.
	for n := int64(1); n <= 3; n++ {
		assert.NoError(t, store.Put(ctx, record("f1", n, float64(n))))
	}
	assert.NoError(t, repo.Save(ctx, "f1", 1))

	tracker := NewPositionTracker(store, repo, 1)
	wm, err := tracker.Reconcile(ctx, "f1")
	assert.NoError(t, err)
	assert.Equal(t, int64(3), wm)

	next, err := tracker.NextExpected(ctx, "f1")
	assert.NoError(t, err)
	assert.Equal(t, int64(4), next)

	// The persisted cache is corrected too.
	cached, err := repo.Load(ctx, "f1")
	assert.NoError(t, err)
	assert.Equal(t, int64(3), cached)
}

func TestTrackerReconcileCacheAheadOfStorage(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryLogStore()
	repo := repository.NewMemoryPositionRepo()

	assert.NoError(t, store.Put(ctx, record("f1", 2, 2)))
	assert.NoError(t, repo.Save(ctx, "f1", 9)) // cache ran ahead somehow

	tracker := NewPositionTracker(store, repo, 1)
	wm, err := tracker.Reconcile(ctx, "f1")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), wm)
}

func TestTrackerConfiguredStartLine(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryLogStore()
	tracker := NewPositionTracker(store, nil, 100)

	next, err := tracker.NextExpected(ctx, "f1")
	assert.NoError(t, err)
	assert.Equal(t, int64(100), next)
}
