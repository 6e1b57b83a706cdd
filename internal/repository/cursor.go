package repository

import "github.com/logvault/logvault/internal/model"

// Cursor streams records out of a scan. Usage mirrors sql.Rows: iterate
// with Next, read with Record, check Err after the loop, and always
// Close. Closing mid-iteration releases the underlying resources
// immediately.
type Cursor interface {
	Next() bool
	Record() *model.LogRecord
	Err() error
	Close() error
}

// sliceCursor serves a scan from an in-memory snapshot.
type sliceCursor struct {
	records []*model.LogRecord
	pos     int
	closed  bool
}

func newSliceCursor(records []*model.LogRecord) *sliceCursor {
	return &sliceCursor{records: records}
}

func (c *sliceCursor) Next() bool {
	if c.closed || c.pos >= len(c.records) {
		return false
	}
	c.pos++
	return true
}

func (c *sliceCursor) Record() *model.LogRecord {
	if c.pos == 0 || c.pos > len(c.records) {
		return nil
	}
	return c.records[c.pos-1]
}

func (c *sliceCursor) Err() error { return nil }

func (c *sliceCursor) Close() error {
	c.closed = true
	c.records = nil
	return nil
}
