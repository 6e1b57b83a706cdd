package repository

import (
	"context"
	"testing"

	"github.com/logvault/logvault/internal/model"
	"github.com/logvault/logvault/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
)

func record(fileID string, lineNo int64, ts float64) *model.LogRecord {
	return &model.LogRecord{
		FileID:      fileID,
		LineNo:      lineNo,
		TS:          ts,
		UserID:      "u",
		StatusCode:  200,
		RespHeaders: model.HeaderMap{},
		ReqHeaders:  model.HeaderMap{},
	}
}

func drain(t *testing.T, c Cursor) []*model.LogRecord {
	t.Helper()
	defer c.Close()
	var out []*model.LogRecord
	for c.Next() {
		out = append(out, c.Record())
	}
	if err := c.Err(); err != nil {
		t.Fatalf("cursor error: %v", err)
	}
	return out
}

func TestMemoryStorePutRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLogStore()

	assert.NoError(t, s.Put(ctx, record("f1", 1, 10)))
	err := s.Put(ctx, record("f1", 1, 10))
	assert.True(t, apperrors.IsType(err, apperrors.ErrDuplicateKey))

	// Same line number in another file is a different key.
	assert.NoError(t, s.Put(ctx, record("f2", 1, 10)))
}

func TestMemoryStoreGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLogStore()
	assert.NoError(t, s.Put(ctx, record("f1", 3, 10)))

	rec, err := s.Get(ctx, "f1", 3)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), rec.LineNo)

	_, err = s.Get(ctx, "f1", 4)
	assert.True(t, apperrors.IsType(err, apperrors.ErrNotFound))
}

func TestMemoryStoreScanFile(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLogStore()
	for _, n := range []int64{5, 1, 3, 2, 4} {
		assert.NoError(t, s.Put(ctx, record("f1", n, float64(n))))
	}
	assert.NoError(t, s.Put(ctx, record("f2", 1, 1)))

	cur, err := s.ScanFile(ctx, "f1", 2, 4)
	assert.NoError(t, err)
	records := drain(t, cur)

	assert.Len(t, records, 3)
	for i, rec := range records {
		assert.Equal(t, int64(i+2), rec.LineNo)
		assert.Equal(t, "f1", rec.FileID)
	}
}

func TestMemoryStoreScanFilteredOrderingAndWindow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLogStore()

	// Same ts across two files to exercise the tie-break.
	assert.NoError(t, s.Put(ctx, record("fb", 1, 50)))
	assert.NoError(t, s.Put(ctx, record("fa", 1, 50)))
	assert.NoError(t, s.Put(ctx, record("fa", 2, 30)))
	assert.NoError(t, s.Put(ctx, record("fa", 3, 99)))

	cur, err := s.ScanFiltered(ctx, model.Filter{From: 30, To: 50})
	assert.NoError(t, err)
	records := drain(t, cur)

	assert.Len(t, records, 3) // 99 is outside the closed window
	assert.Equal(t, 30.0, records[0].TS)
	assert.Equal(t, "fa", records[1].FileID)
	assert.Equal(t, "fb", records[2].FileID)
}

func TestMemoryStoreScanFilteredPredicates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLogStore()

	bad := record("f1", 1, 10)
	bad.StatusCode = 500
	bad.UserID = "mallory"
	assert.NoError(t, s.Put(ctx, bad))
	assert.NoError(t, s.Put(ctx, record("f1", 2, 11)))

	status := 500
	cur, err := s.ScanFiltered(ctx, model.Filter{From: 0, To: 100, StatusCode: &status})
	assert.NoError(t, err)
	records := drain(t, cur)
	assert.Len(t, records, 1)
	assert.Equal(t, "mallory", records[0].UserID)
}

func TestMemoryStoreMaxLineNo(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLogStore()

	max, err := s.MaxLineNo(ctx, "f1")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), max)

	assert.NoError(t, s.Put(ctx, record("f1", 7, 1)))
	assert.NoError(t, s.Put(ctx, record("f1", 2, 1)))

	max, err = s.MaxLineNo(ctx, "f1")
	assert.NoError(t, err)
	assert.Equal(t, int64(7), max)
}

func TestCursorCloseStopsIteration(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryLogStore()
	assert.NoError(t, s.Put(ctx, record("f1", 1, 1)))
	assert.NoError(t, s.Put(ctx, record("f1", 2, 2)))

	cur, err := s.ScanFile(ctx, "f1", 1, 2)
	assert.NoError(t, err)
	assert.True(t, cur.Next())
	assert.NoError(t, cur.Close())
	assert.False(t, cur.Next())
}
