package service

import (
	"context"

	"github.com/logvault/logvault/internal/model"
	"github.com/logvault/logvault/internal/repository"
)

// Store is the durable record store the services run against. Both the
// Postgres and the in-memory implementations satisfy it.
type Store interface {
	// Put persists a record, failing with a DuplicateKey AppError when
	// (file_id, line_no) is already occupied. A nil return means the
	// write is recoverable across a crash.
	Put(ctx context.Context, rec *model.LogRecord) error

	// Get returns the record at a position, or a NotFound AppError.
	Get(ctx context.Context, fileID string, lineNo int64) (*model.LogRecord, error)

	// ScanFile streams one file's records with line_no in [fromLine,
	// toLine], ascending.
	ScanFile(ctx context.Context, fileID string, fromLine, toLine int64) (repository.Cursor, error)

	// ScanFiltered streams records matching the filter, ordered by ts
	// then (file_id, line_no).
	ScanFiltered(ctx context.Context, f model.Filter) (repository.Cursor, error)

	// MaxLineNo is the highest stored line_no for a file, 0 when none.
	MaxLineNo(ctx context.Context, fileID string) (int64, error)
}

// PositionRepo persists per-file watermarks. Implementations are
// caches: on disagreement with the Store, the Store wins.
type PositionRepo interface {
	// Load returns the saved watermark, 0 when absent.
	Load(ctx context.Context, fileID string) (int64, error)
	Save(ctx context.Context, fileID string, lineNo int64) error
}
