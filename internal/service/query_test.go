package service

import (
	"context"
	"testing"

	"github.com/logvault/logvault/internal/model"
	"github.com/logvault/logvault/internal/pkg/apperrors"
	"github.com/logvault/logvault/internal/repository"
	"github.com/stretchr/testify/assert"
)

func seedStore(t *testing.T) *repository.MemoryLogStore {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryLogStore()

	// Interleaved timestamps across three files, plus a ts tie between
	// fa and fc.
	for _, rec := range []*model.LogRecord{
		record("fa", 1, 10),
		record("fa", 2, 40),
		record("fb", 1, 20),
		record("fb", 2, 50),
		record("fc", 1, 30),
		record("fc", 2, 40),
	} {
		assert.NoError(t, store.Put(ctx, rec))
	}
	return store
}

func TestQueryFilteredSingleScan(t *testing.T) {
	ctx := context.Background()
	q := NewQueryService(seedStore(t))

	cur, err := q.Filtered(ctx, model.Filter{From: 0, To: 100})
	assert.NoError(t, err)
	defer cur.Close()

	var ts []float64
	for cur.Next() {
		ts = append(ts, cur.Record().TS)
	}
	assert.NoError(t, cur.Err())
	assert.Equal(t, []float64{10, 20, 30, 40, 40, 50}, ts)
}

func TestQueryFilteredMultiFileMerge(t *testing.T) {
	ctx := context.Background()
	q := NewQueryService(seedStore(t))

	cur, err := q.Filtered(ctx, model.Filter{From: 0, To: 100, FileIDs: []string{"fc", "fa", "fb"}})
	assert.NoError(t, err)
	defer cur.Close()

	type key struct {
		fileID string
		ts     float64
	}
	var got []key
	for cur.Next() {
		rec := cur.Record()
		got = append(got, key{rec.FileID, rec.TS})
	}
	assert.NoError(t, cur.Err())

	// ts ascending, file_id breaking the tie at ts=40.
	assert.Equal(t, []key{
		{"fa", 10}, {"fb", 20}, {"fc", 30}, {"fa", 40}, {"fc", 40}, {"fb", 50},
	}, got)
}

func TestQueryFilteredEmptyWindow(t *testing.T) {
	q := NewQueryService(seedStore(t))
	_, err := q.Filtered(context.Background(), model.Filter{From: 10, To: 5})
	assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidRequest))
}

func TestQueryFileRange(t *testing.T) {
	ctx := context.Background()
	q := NewQueryService(seedStore(t))

	cur, err := q.File(ctx, "fa", 0, 10)
	assert.NoError(t, err)
	defer cur.Close()

	count := 0
	for cur.Next() {
		count++
	}
	assert.Equal(t, 2, count)

	_, err = q.File(ctx, "", 1, 10)
	assert.True(t, apperrors.IsType(err, apperrors.ErrInvalidRequest))
}

func TestQueryRecordLookup(t *testing.T) {
	ctx := context.Background()
	q := NewQueryService(seedStore(t))

	rec, err := q.Record(ctx, "fb", 2)
	assert.NoError(t, err)
	assert.Equal(t, 50.0, rec.TS)

	_, err = q.Record(ctx, "fb", 99)
	assert.True(t, apperrors.IsType(err, apperrors.ErrNotFound))
}
