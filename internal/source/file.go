// Package source turns log files on disk into ordered line streams for
// the ingestion pipeline. Lines must be read in file order with no
// concurrent writer appending mid-read; that is a precondition on the
// caller, not something enforced here.
package source

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"lukechampine.com/blake3"
)

// Line is one raw line plus its stable position.
type Line struct {
	FileID string
	LineNo int64
	Raw    []byte
}

// FileSource reads a single access-log file, plain or gzip-compressed.
// The file id is the BLAKE3 hex digest of the first line, so the same
// file keeps the same id across restarts.
type FileSource struct {
	path    string
	file    *os.File
	gz      *gzip.Reader
	scanner *bufio.Scanner

	fileID string
	lineNo int64
	peeked *Line
}

// maxLineSize bounds a single log line; URIs are unbounded in theory
// but 16MiB covers anything Caddy will emit.
const maxLineSize = 16 << 20

func Open(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	s := &FileSource{path: path, file: f}

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open gzip log file: %w", err)
		}
		s.gz = gz
		r = gz
	}

	s.scanner = bufio.NewScanner(r)
	s.scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return s, nil
}

// Path returns the path the source was opened with.
func (s *FileSource) Path() string { return s.path }

// FileID returns the source's stable identifier. It is derived from the
// first line, so the first call may read one line ahead internally; an
// empty file has no id and returns an error.
func (s *FileSource) FileID() (string, error) {
	if s.fileID != "" {
		return s.fileID, nil
	}
	// Peek by reading: Next caches the line it consumed.
	if s.peeked == nil && !s.scan() {
		if err := s.scanner.Err(); err != nil {
			return "", fmt.Errorf("read first line: %w", err)
		}
		return "", fmt.Errorf("empty log file %s", s.path)
	}
	return s.fileID, nil
}

// Next returns the next line of the file, or ok=false at EOF. Err must
// be checked after the loop ends.
func (s *FileSource) Next() (Line, bool) {
	if s.peeked != nil {
		l := *s.peeked
		s.peeked = nil
		return l, true
	}
	if !s.scan() {
		return Line{}, false
	}
	l := *s.peeked
	s.peeked = nil
	return l, true
}

// Err reports any I/O error hit while scanning.
func (s *FileSource) Err() error {
	return s.scanner.Err()
}

func (s *FileSource) Close() error {
	if s.gz != nil {
		s.gz.Close()
	}
	return s.file.Close()
}

// scan consumes one physical line into s.peeked, deriving the file id
// from the first line read.
func (s *FileSource) scan() bool {
	if !s.scanner.Scan() {
		return false
	}
	raw := append([]byte(nil), s.scanner.Bytes()...)
	s.lineNo++
	if s.fileID == "" {
		sum := blake3.Sum256(raw)
		s.fileID = hex.EncodeToString(sum[:])
	}
	s.peeked = &Line{FileID: s.fileID, LineNo: s.lineNo, Raw: raw}
	return true
}
