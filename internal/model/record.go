package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// LogRecord is one HTTP request/response event parsed from an access log.
// (FileID, LineNo) uniquely identifies a record; records are immutable
// after insertion.
type LogRecord struct {
	FileID      string    `json:"file_id" db:"file_id"`
	LineNo      int64     `json:"line_no" db:"line_no"`
	TS          float64   `json:"ts" db:"ts"`
	UserID      string    `json:"user_id" db:"user_id"`
	Duration    float64   `json:"duration" db:"duration"`
	Size        int64     `json:"size" db:"size"`
	StatusCode  int       `json:"status_code" db:"status_code"`
	RespHeaders HeaderMap `json:"resp_headers" db:"resp_headers"`
	RemoteAddr  string    `json:"remote_addr" db:"remote_addr"`
	Proto       string    `json:"proto" db:"proto"`
	Method      string    `json:"method" db:"method"`
	Host        string    `json:"host" db:"host"`
	URI         string    `json:"uri" db:"uri"`
	ReqHeaders  HeaderMap `json:"req_headers" db:"req_headers"`
}

// Key returns the record's composite storage key.
func (r *LogRecord) Key() string {
	return fmt.Sprintf("%s:%d", r.FileID, r.LineNo)
}

// Header is one header name with its values, in wire order.
type Header struct {
	Name   string
	Values []string
}

// HeaderMap is an ordered multimap of HTTP headers. Insertion order is
// preserved and repeated names are allowed, since HTTP permits
// multi-valued headers. The JSON form is an object of name -> value
// array, in map order.
type HeaderMap []Header

// Add appends values for name, keeping insertion order.
func (h *HeaderMap) Add(name string, values ...string) {
	*h = append(*h, Header{Name: name, Values: values})
}

// Get returns the values of the first entry matching name, or nil.
func (h HeaderMap) Get(name string) []string {
	for _, e := range h {
		if e.Name == name {
			return e.Values
		}
	}
	return nil
}

// Len returns the number of entries.
func (h HeaderMap) Len() int { return len(h) }

func (h HeaderMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range h {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		vals, err := json.Marshal(e.Values)
		if err != nil {
			return nil, err
		}
		buf.Write(vals)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (h *HeaderMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("header map: expected object, got %v", tok)
	}

	out := HeaderMap{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("header map: expected key, got %v", tok)
		}
		var values []string
		if err := dec.Decode(&values); err != nil {
			return fmt.Errorf("header map: values for %q: %w", name, err)
		}
		out = append(out, Header{Name: name, Values: values})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*h = out
	return nil
}

// Value implements driver.Valuer so a HeaderMap persists as a JSON blob.
func (h HeaderMap) Value() (driver.Value, error) {
	b, err := h.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for reading the JSON blob back.
func (h *HeaderMap) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*h = HeaderMap{}
		return nil
	case []byte:
		return h.UnmarshalJSON(v)
	case string:
		return h.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("header map: cannot scan %T", src)
	}
}
