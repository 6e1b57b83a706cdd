package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/logvault/logvault/internal/model"
	"github.com/logvault/logvault/internal/pkg/apperrors"
	"github.com/logvault/logvault/internal/pkg/metrics"
)

const logColumns = `file_id, line_no, ts, user_id, duration, size, status_code,
	resp_headers, remote_addr, proto, method, host, uri, req_headers`

// PostgresLogStore is the durable record store. (file_id, line_no) is
// the primary key; a conflicting insert is rejected so re-ingestion can
// never duplicate rows.
type PostgresLogStore struct {
	db *sqlx.DB
}

func NewPostgresLogStore(db *sqlx.DB) (*PostgresLogStore, error) {
	store := &PostgresLogStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("ensure logs schema: %w", err)
	}
	return store, nil
}

func (s *PostgresLogStore) Put(ctx context.Context, rec *model.LogRecord) error {
	start := time.Now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO logs (
			file_id, line_no, ts, user_id, duration, size, status_code,
			resp_headers, remote_addr, proto, method, host, uri, req_headers
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,
			$8,$9,$10,$11,$12,$13,$14
		)
		ON CONFLICT (file_id, line_no) DO NOTHING
	`, rec.FileID, rec.LineNo, rec.TS, rec.UserID, rec.Duration, rec.Size, rec.StatusCode,
		rec.RespHeaders, rec.RemoteAddr, rec.Proto, rec.Method, rec.Host, rec.URI, rec.ReqHeaders)
	if err != nil {
		return apperrors.NewStorageIO("insert log record", err).At(rec.FileID, rec.LineNo)
	}
	metrics.PutLatency.WithLabelValues("postgres").Observe(time.Since(start).Seconds())

	if rows, _ := result.RowsAffected(); rows == 0 {
		return apperrors.NewDuplicateKey(rec.FileID, rec.LineNo)
	}
	return nil
}

func (s *PostgresLogStore) Get(ctx context.Context, fileID string, lineNo int64) (*model.LogRecord, error) {
	var rec model.LogRecord
	err := s.db.GetContext(ctx, &rec,
		`SELECT `+logColumns+` FROM logs WHERE file_id = $1 AND line_no = $2`,
		fileID, lineNo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound(fileID, lineNo)
	}
	if err != nil {
		return nil, apperrors.NewStorageIO("get log record", err).At(fileID, lineNo)
	}
	return &rec, nil
}

// ScanFile streams records of one file with line_no in [fromLine,
// toLine], ascending by line_no.
func (s *PostgresLogStore) ScanFile(ctx context.Context, fileID string, fromLine, toLine int64) (Cursor, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT `+logColumns+` FROM logs
		 WHERE file_id = $1 AND line_no >= $2 AND line_no <= $3
		 ORDER BY line_no ASC`,
		fileID, fromLine, toLine)
	if err != nil {
		return nil, apperrors.NewStorageIO("scan file", err).At(fileID, fromLine)
	}
	return &rowsCursor{rows: rows}, nil
}

// ScanFiltered streams records matching all supplied predicates,
// ordered by ts ascending with (file_id, line_no) as a deterministic
// tie-break.
func (s *PostgresLogStore) ScanFiltered(ctx context.Context, f model.Filter) (Cursor, error) {
	query := `SELECT ` + logColumns + ` FROM logs`
	clauses := []string{}
	args := []interface{}{}
	idx := 1

	clauses = append(clauses, fmt.Sprintf("ts >= $%d", idx))
	args = append(args, f.From)
	idx++
	clauses = append(clauses, fmt.Sprintf("ts <= $%d", idx))
	args = append(args, f.To)
	idx++

	if f.UserID != nil {
		clauses = append(clauses, fmt.Sprintf("user_id = $%d", idx))
		args = append(args, *f.UserID)
		idx++
	}
	if f.StatusCode != nil {
		clauses = append(clauses, fmt.Sprintf("status_code = $%d", idx))
		args = append(args, *f.StatusCode)
		idx++
	}
	if len(f.FileIDs) > 0 {
		placeholders := make([]string, len(f.FileIDs))
		for i, id := range f.FileIDs {
			placeholders[i] = fmt.Sprintf("$%d", idx)
			args = append(args, id)
			idx++
		}
		clauses = append(clauses, "file_id IN ("+strings.Join(placeholders, ",")+")")
	}

	query += " WHERE " + strings.Join(clauses, " AND ")
	query += " ORDER BY ts ASC, file_id ASC, line_no ASC"

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageIO("scan filtered", err)
	}
	return &rowsCursor{rows: rows}, nil
}

// MaxLineNo returns the highest stored line_no for a file, or 0 when
// the file has no records. Reconciliation treats this as the truth.
func (s *PostgresLogStore) MaxLineNo(ctx context.Context, fileID string) (int64, error) {
	var max sql.NullInt64
	err := s.db.GetContext(ctx, &max,
		`SELECT MAX(line_no) FROM logs WHERE file_id = $1`, fileID)
	if err != nil {
		return 0, apperrors.NewStorageIO("max line_no", err).At(fileID, 0)
	}
	if !max.Valid {
		return 0, nil
	}
	return max.Int64, nil
}

// logsSchema declares the header columns as json, not jsonb: jsonb
// sorts keys and collapses repeated ones, which would corrupt the
// stored header order.
const logsSchema = `
	CREATE TABLE IF NOT EXISTS logs (
		file_id TEXT NOT NULL,
		line_no BIGINT NOT NULL,
		ts DOUBLE PRECISION NOT NULL,
		user_id TEXT NOT NULL,
		duration DOUBLE PRECISION NOT NULL,
		size BIGINT NOT NULL,
		status_code INTEGER NOT NULL,
		resp_headers JSON NOT NULL,
		remote_addr TEXT NOT NULL,
		proto TEXT NOT NULL,
		method TEXT NOT NULL,
		host TEXT NOT NULL,
		uri TEXT NOT NULL,
		req_headers JSON NOT NULL,
		PRIMARY KEY (file_id, line_no)
	)`

func (s *PostgresLogStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, logsSchema)
	if err != nil {
		return err
	}
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_logs_ts ON logs(ts)`)
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_logs_user_ts ON logs(user_id, ts)`)
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_logs_status_ts ON logs(status_code, ts)`)
	return nil
}

// rowsCursor streams sqlx rows as records.
type rowsCursor struct {
	rows *sqlx.Rows
	cur  *model.LogRecord
	err  error
}

func (c *rowsCursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	var rec model.LogRecord
	if err := c.rows.StructScan(&rec); err != nil {
		c.err = apperrors.NewStorageIO("scan row", err)
		return false
	}
	c.cur = &rec
	return true
}

func (c *rowsCursor) Record() *model.LogRecord { return c.cur }

func (c *rowsCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	if err := c.rows.Err(); err != nil {
		return apperrors.NewStorageIO("row iteration", err)
	}
	return nil
}

func (c *rowsCursor) Close() error { return c.rows.Close() }
