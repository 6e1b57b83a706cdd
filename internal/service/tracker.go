package service

import (
	"context"
	"sync"

	"github.com/logvault/logvault/internal/pkg/apperrors"
	"github.com/logvault/logvault/internal/pkg/logger"
)

// PositionTracker tracks the last durably ingested line_no per file.
// The in-process map is the working state; an optional PositionRepo
// persists it across restarts. Neither is authoritative: the first
// access to a file reconciles against the Store's max stored line_no,
// and storage always wins.
type PositionTracker struct {
	store Store
	repo  PositionRepo // optional

	// startLine is the first line ingested for a never-seen file.
	startLine int64

	mu         sync.Mutex
	watermarks map[string]int64 // 0 = never ingested
	loaded     map[string]bool
}

func NewPositionTracker(store Store, repo PositionRepo, startLine int64) *PositionTracker {
	if startLine < 1 {
		startLine = 1
	}
	return &PositionTracker{
		store:      store,
		repo:       repo,
		startLine:  startLine,
		watermarks: make(map[string]int64),
		loaded:     make(map[string]bool),
	}
}

// StartLine is the configured first line number for fresh files.
func (t *PositionTracker) StartLine() int64 { return t.startLine }

// NextExpected returns the line number ingestion should read next:
// watermark+1, or the configured start line when the file has never
// been ingested.
func (t *PositionTracker) NextExpected(ctx context.Context, fileID string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	wm, err := t.loadLocked(ctx, fileID)
	if err != nil {
		return 0, err
	}
	if wm == 0 {
		return t.startLine, nil
	}
	return wm + 1, nil
}

// Watermark returns the current watermark for a file, 0 when none.
func (t *PositionTracker) Watermark(ctx context.Context, fileID string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loadLocked(ctx, fileID)
}

// Advance records lineNo as the new watermark. Advances must be
// strictly increasing per file; anything else is an ordering bug in the
// caller and fails with OutOfOrderAdvance.
func (t *PositionTracker) Advance(ctx context.Context, fileID string, lineNo int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	wm, err := t.loadLocked(ctx, fileID)
	if err != nil {
		return err
	}
	if lineNo <= wm {
		return apperrors.NewOutOfOrderAdvance(fileID, lineNo, wm)
	}
	t.watermarks[fileID] = lineNo

	if t.repo != nil {
		// Best effort: the persisted copy is a cache, reconciliation
		// repairs it if this write is lost.
		if err := t.repo.Save(ctx, fileID, lineNo); err != nil {
			logger.Warn("failed to persist watermark", "file_id", fileID, "line_no", lineNo, "error", err)
		}
	}
	return nil
}

// Reconcile forces the watermark for a file back to the store's max
// stored line_no and returns it. Called on startup and whenever the
// cached state is suspect.
func (t *PositionTracker) Reconcile(ctx context.Context, fileID string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reconcileLocked(ctx, fileID)
}

// loadLocked returns the watermark, lazily loading and reconciling the
// file on first access.
func (t *PositionTracker) loadLocked(ctx context.Context, fileID string) (int64, error) {
	if t.loaded[fileID] {
		return t.watermarks[fileID], nil
	}
	return t.reconcileLocked(ctx, fileID)
}

func (t *PositionTracker) reconcileLocked(ctx context.Context, fileID string) (int64, error) {
	var cached int64
	if t.repo != nil {
		var err error
		cached, err = t.repo.Load(ctx, fileID)
		if err != nil {
			logger.Warn("failed to load cached watermark", "file_id", fileID, "error", err)
			cached = 0
		}
	}

	stored, err := t.store.MaxLineNo(ctx, fileID)
	if err != nil {
		return 0, err
	}

	wm := stored
	if cached > stored {
		// A crash between put and advance leaves cached < stored; the
		// opposite means the cache ran ahead of durable writes. Either
		// way storage is the truth.
		logger.Warn("watermark cache ahead of storage, correcting",
			"file_id", fileID, "cached", cached, "stored", stored)
	}
	if cached != wm && t.repo != nil {
		if err := t.repo.Save(ctx, fileID, wm); err != nil {
			logger.Warn("failed to correct persisted watermark", "file_id", fileID, "error", err)
		}
	}

	t.watermarks[fileID] = wm
	t.loaded[fileID] = true
	return wm, nil
}
