package service

import (
	"container/heap"
	"context"

	"github.com/logvault/logvault/internal/model"
	"github.com/logvault/logvault/internal/pkg/apperrors"
	"github.com/logvault/logvault/internal/repository"
)

// QueryService translates filters into storage scans and
// streams the results back.
type QueryService struct {
	store Store
}

func NewQueryService(store Store) *QueryService {
	return &QueryService{store: store}
}

// Record is a point lookup by position.
func (q *QueryService) Record(ctx context.Context, fileID string, lineNo int64) (*model.LogRecord, error) {
	return q.store.Get(ctx, fileID, lineNo)
}

// File streams one file's records with line_no in [fromLine, toLine].
func (q *QueryService) File(ctx context.Context, fileID string, fromLine, toLine int64) (repository.Cursor, error) {
	if fileID == "" {
		return nil, apperrors.NewInvalidRequest("file_id is required")
	}
	if fromLine < 1 {
		fromLine = 1
	}
	return q.store.ScanFile(ctx, fileID, fromLine, toLine)
}

// Filtered streams records matching the filter. When the filter names
// several files the per-file scans are merge-sorted by ts with
// (file_id, line_no) breaking ties, so the combined stream keeps the
// same ordering guarantee as a single scan.
func (q *QueryService) Filtered(ctx context.Context, f model.Filter) (repository.Cursor, error) {
	if f.To < f.From {
		return nil, apperrors.NewInvalidRequest("filter window is empty: to < from")
	}
	if len(f.FileIDs) < 2 {
		return q.store.ScanFiltered(ctx, f)
	}

	cursors := make([]repository.Cursor, 0, len(f.FileIDs))
	for _, fileID := range f.FileIDs {
		per := f
		per.FileIDs = []string{fileID}
		c, err := q.store.ScanFiltered(ctx, per)
		if err != nil {
			for _, open := range cursors {
				open.Close()
			}
			return nil, err
		}
		cursors = append(cursors, c)
	}
	return newMergeCursor(cursors), nil
}

// mergeCursor k-way merges already-ordered child cursors.
type mergeCursor struct {
	children []repository.Cursor
	h        *cursorHeap
	cur      *model.LogRecord
	err      error
	primed   bool
}

func newMergeCursor(children []repository.Cursor) *mergeCursor {
	return &mergeCursor{children: children, h: &cursorHeap{}}
}

func (m *mergeCursor) prime() {
	for _, c := range m.children {
		if c.Next() {
			heap.Push(m.h, cursorHead{rec: c.Record(), cursor: c})
		} else if err := c.Err(); err != nil && m.err == nil {
			m.err = err
		}
	}
	m.primed = true
}

func (m *mergeCursor) Next() bool {
	if m.err != nil {
		return false
	}
	if !m.primed {
		m.prime()
		if m.err != nil {
			return false
		}
	}
	if m.h.Len() == 0 {
		return false
	}
	head := heap.Pop(m.h).(cursorHead)
	m.cur = head.rec
	if head.cursor.Next() {
		heap.Push(m.h, cursorHead{rec: head.cursor.Record(), cursor: head.cursor})
	} else if err := head.cursor.Err(); err != nil {
		m.err = err
		return false
	}
	return true
}

func (m *mergeCursor) Record() *model.LogRecord { return m.cur }

func (m *mergeCursor) Err() error { return m.err }

func (m *mergeCursor) Close() error {
	var firstErr error
	for _, c := range m.children {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type cursorHead struct {
	rec    *model.LogRecord
	cursor repository.Cursor
}

type cursorHeap []cursorHead

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool {
	a, b := h[i].rec, h[j].rec
	if a.TS != b.TS {
		return a.TS < b.TS
	}
	if a.FileID != b.FileID {
		return a.FileID < b.FileID
	}
	return a.LineNo < b.LineNo
}

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x any) { *h = append(*h, x.(cursorHead)) }

func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
