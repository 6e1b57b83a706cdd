package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/logvault/logvault/internal/model"
	"github.com/logvault/logvault/internal/pkg/apperrors"
	"github.com/logvault/logvault/internal/pkg/metrics"
)

// MemoryLogStore keeps records in process memory. It backs unit tests
// and DSN-less runs; semantics match PostgresLogStore, including the
// duplicate-key rejection and scan ordering. Writes are atomic at
// record granularity: scans snapshot under the read lock and never see
// a partially written record.
type MemoryLogStore struct {
	mu    sync.RWMutex
	files map[string]map[int64]model.LogRecord
}

func NewMemoryLogStore() *MemoryLogStore {
	return &MemoryLogStore{files: make(map[string]map[int64]model.LogRecord)}
}

func (s *MemoryLogStore) Put(_ context.Context, rec *model.LogRecord) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, ok := s.files[rec.FileID]
	if !ok {
		lines = make(map[int64]model.LogRecord)
		s.files[rec.FileID] = lines
	}
	if _, exists := lines[rec.LineNo]; exists {
		return apperrors.NewDuplicateKey(rec.FileID, rec.LineNo)
	}
	lines[rec.LineNo] = *rec
	metrics.PutLatency.WithLabelValues("memory").Observe(time.Since(start).Seconds())
	return nil
}

func (s *MemoryLogStore) Get(_ context.Context, fileID string, lineNo int64) (*model.LogRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.files[fileID][lineNo]
	if !ok {
		return nil, apperrors.NewNotFound(fileID, lineNo)
	}
	return &rec, nil
}

func (s *MemoryLogStore) ScanFile(_ context.Context, fileID string, fromLine, toLine int64) (Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.LogRecord
	for lineNo, rec := range s.files[fileID] {
		if lineNo >= fromLine && lineNo <= toLine {
			r := rec
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LineNo < out[j].LineNo })
	return newSliceCursor(out), nil
}

func (s *MemoryLogStore) ScanFiltered(_ context.Context, f model.Filter) (Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.LogRecord
	for _, lines := range s.files {
		for _, rec := range lines {
			if f.Matches(&rec) {
				r := rec
				out = append(out, &r)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TS != b.TS {
			return a.TS < b.TS
		}
		if a.FileID != b.FileID {
			return a.FileID < b.FileID
		}
		return a.LineNo < b.LineNo
	})
	return newSliceCursor(out), nil
}

func (s *MemoryLogStore) MaxLineNo(_ context.Context, fileID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max int64
	for lineNo := range s.files[fileID] {
		if lineNo > max {
			max = lineNo
		}
	}
	return max, nil
}

// MemoryPositionRepo is the position store used when neither Postgres
// nor Redis is configured. State does not survive a restart, which is
// safe: reconciliation rebuilds the watermark from the log store.
type MemoryPositionRepo struct {
	mu        sync.RWMutex
	positions map[string]int64
}

func NewMemoryPositionRepo() *MemoryPositionRepo {
	return &MemoryPositionRepo{positions: make(map[string]int64)}
}

func (r *MemoryPositionRepo) Load(_ context.Context, fileID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.positions[fileID], nil
}

func (r *MemoryPositionRepo) Save(_ context.Context, fileID string, lineNo int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions[fileID] = lineNo
	return nil
}
