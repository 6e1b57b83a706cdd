package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/logvault/logvault/internal/codec"
	"github.com/logvault/logvault/internal/pkg/apperrors"
	"github.com/logvault/logvault/internal/pkg/logger"
	"github.com/logvault/logvault/internal/pkg/metrics"
	"github.com/logvault/logvault/internal/source"
)

// ParsePolicy decides what a run does with a malformed line.
type ParsePolicy string

const (
	// PolicySkip logs the malformed line, advances the watermark past
	// it, and keeps going. This matches the original importer behavior
	// and is the default.
	PolicySkip ParsePolicy = "skip"
	// PolicyHalt stops the file's run at the first malformed line.
	PolicyHalt ParsePolicy = "halt"
)

// RunState is the pipeline state machine for one file.
type RunState string

const (
	StateIdle    RunState = "idle"
	StateReading RunState = "reading"
	StateParsing RunState = "parsing"
	StateWriting RunState = "writing"
	StateErrored RunState = "errored"
	StateDone    RunState = "done"
)

// LineSource is the collaborator-facing input contract: an ordered
// stream of (file_id, line_no, raw_line) tuples.
type LineSource interface {
	Next() (source.Line, bool)
	Err() error
	Close() error
}

// RunStats reports the outcome of one ingestion run.
type RunStats struct {
	RunID          string   `json:"run_id"`
	FileID         string   `json:"file_id"`
	State          RunState `json:"state"`
	LinesProcessed int64    `json:"lines_processed"`
	RowsInserted   int64    `json:"rows_inserted"`
	Duplicates     int64    `json:"duplicates"`
	ParseErrors    int64    `json:"parse_errors"`
	Watermark      int64    `json:"watermark"`
	Error          string   `json:"error,omitempty"`
}

// IngestService drives files through the Reading -> Parsing -> Writing
// loop. Distinct files may run concurrently; a single file is strictly
// sequential and guarded so only one run holds it at a time.
type IngestService struct {
	store   Store
	tracker *PositionTracker
	policy  ParsePolicy
	tail    *TailBroker

	// runCtx governs background runs; Stop cancels it so server
	// shutdown does not leave ingestions writing.
	runCtx context.Context
	stop   context.CancelFunc

	mu     sync.Mutex
	active map[string]bool      // file_id -> run in flight
	runs   map[string]*RunStats // run_id -> latest stats snapshot
}

func NewIngestService(store Store, tracker *PositionTracker, policy ParsePolicy, tail *TailBroker) *IngestService {
	if policy != PolicyHalt {
		policy = PolicySkip
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &IngestService{
		store:   store,
		tracker: tracker,
		policy:  policy,
		tail:    tail,
		runCtx:  ctx,
		stop:    cancel,
		active:  make(map[string]bool),
		runs:    make(map[string]*RunStats),
	}
}

// Stop cancels every background run started by StartPath. The watermark
// of an interrupted file stays at its last advanced line, so the next
// run resumes cleanly.
func (s *IngestService) Stop() {
	s.stop()
}

// IngestPath opens a log file (plain or .gz) and runs it to completion.
func (s *IngestService) IngestPath(ctx context.Context, path string, resume bool) (*RunStats, error) {
	src, err := source.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(err)
	}
	defer src.Close()
	return s.Run(ctx, src, resume)
}

// StartPath begins an ingestion run in the background and returns its
// run id; progress is observed through RunStatus.
func (s *IngestService) StartPath(path string, resume bool) (string, error) {
	src, err := source.Open(path)
	if err != nil {
		return "", apperrors.Wrap(err)
	}
	stats := &RunStats{RunID: uuid.NewString(), State: StateReading}
	s.saveSnapshot(stats)
	go func() {
		defer src.Close()
		_, _ = s.run(s.runCtx, src, resume, stats)
	}()
	return stats.RunID, nil
}

// RunStatus returns the latest stats snapshot for a run id.
func (s *IngestService) RunStatus(runID string) (*RunStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats, ok := s.runs[runID]
	if !ok {
		return nil, false
	}
	snapshot := *stats
	return &snapshot, true
}

// saveSnapshot publishes a copy of the run's stats for RunStatus.
func (s *IngestService) saveSnapshot(stats *RunStats) {
	snapshot := *stats
	s.mu.Lock()
	s.runs[stats.RunID] = &snapshot
	s.mu.Unlock()
}

// Run ingests every line the source produces. With resume=true it
// starts at the tracker's next expected line; with resume=false it
// starts at the configured start line and relies on duplicate
// absorption, so re-running over an unchanged file is a no-op.
func (s *IngestService) Run(ctx context.Context, src LineSource, resume bool) (*RunStats, error) {
	return s.run(ctx, src, resume, &RunStats{RunID: uuid.NewString(), State: StateReading})
}

func (s *IngestService) run(ctx context.Context, src LineSource, resume bool, stats *RunStats) (*RunStats, error) {
	// The file id travels with every line; nothing is known about the
	// file before the first line arrives.
	first, ok := src.Next()
	if !ok {
		if err := src.Err(); err != nil {
			return s.finish(stats, apperrors.Wrap(err))
		}
		stats.State = StateDone
		return stats, nil
	}
	stats.FileID = first.FileID

	if !s.acquire(first.FileID) {
		return s.finish(stats, apperrors.NewInvalidRequest(
			fmt.Sprintf("ingestion already running for file %s", first.FileID)))
	}
	defer s.release(first.FileID)

	s.saveSnapshot(stats)

	from := s.tracker.StartLine()
	if resume {
		var err error
		from, err = s.tracker.NextExpected(ctx, first.FileID)
		if err != nil {
			return s.finish(stats, err)
		}
	}

	log := logger.With("run_id", stats.RunID, "file_id", first.FileID)
	log.Info("ingestion run started", "from_line", from, "resume", resume, "policy", string(s.policy))

	line := first
	for {
		if err := ctx.Err(); err != nil {
			return s.finish(stats, apperrors.Wrap(err))
		}
		if line.LineNo >= from {
			if err := s.ingestLine(ctx, stats, line); err != nil {
				return s.finish(stats, err)
			}
			// Republish after every line so RunStatus reflects a run
			// in flight, not just its start and end.
			s.saveSnapshot(stats)
		}
		next, ok := src.Next()
		if !ok {
			break
		}
		line = next
	}
	if err := src.Err(); err != nil {
		// Unrecoverable I/O on the source is terminal for this file;
		// a collaborator has to restart the run.
		return s.finish(stats, apperrors.Wrap(err))
	}

	stats.State = StateDone
	stats.Watermark, _ = s.tracker.Watermark(ctx, stats.FileID)
	s.saveSnapshot(stats)
	log.Info("ingestion run finished",
		"lines_processed", stats.LinesProcessed,
		"rows_inserted", stats.RowsInserted,
		"duplicates", stats.Duplicates,
		"parse_errors", stats.ParseErrors,
		"watermark", stats.Watermark)
	return stats, nil
}

// ingestLine runs one line through Parsing -> Writing -> advance.
func (s *IngestService) ingestLine(ctx context.Context, stats *RunStats, line source.Line) error {
	stats.LinesProcessed++
	metrics.LinesProcessed.WithLabelValues(line.FileID).Inc()

	stats.State = StateParsing
	rec, err := codec.ParseLine(line.FileID, line.LineNo, line.Raw)
	if err != nil {
		stats.ParseErrors++
		metrics.ParseErrors.WithLabelValues(line.FileID, string(s.policy)).Inc()
		if s.policy == PolicyHalt {
			return err
		}
		logger.WithPosition(line.FileID, line.LineNo).Error("skipping malformed line", "error", err)
		return s.advancePast(ctx, stats, line)
	}
	if rec == nil {
		// Blank line or a non-access-log message; it still owns its
		// line number.
		return s.advancePast(ctx, stats, line)
	}

	stats.State = StateWriting
	if err := s.store.Put(ctx, rec); err != nil {
		if apperrors.IsType(err, apperrors.ErrDuplicateKey) {
			// Idempotency guard, not a failure: the record is already
			// queryable.
			stats.Duplicates++
			metrics.DuplicatesAbsorbed.WithLabelValues(line.FileID).Inc()
			return s.advancePast(ctx, stats, line)
		}
		// Storage failures are surfaced, never swallowed, and the
		// watermark stays put so the line is retried next run.
		return err
	}
	stats.RowsInserted++
	metrics.RecordsInserted.WithLabelValues(line.FileID).Inc()
	if s.tail != nil {
		s.tail.Publish(rec)
	}
	return s.advancePast(ctx, stats, line)
}

// advancePast moves the watermark over a handled line. Lines at or
// below the watermark (re-ingestion of old lines) are left alone.
func (s *IngestService) advancePast(ctx context.Context, stats *RunStats, line source.Line) error {
	wm, err := s.tracker.Watermark(ctx, line.FileID)
	if err != nil {
		return err
	}
	if line.LineNo <= wm {
		return nil
	}
	if err := s.tracker.Advance(ctx, line.FileID, line.LineNo); err != nil {
		return err
	}
	stats.Watermark = line.LineNo
	return nil
}

func (s *IngestService) finish(stats *RunStats, err error) (*RunStats, error) {
	stats.State = StateErrored
	stats.Error = err.Error()
	s.saveSnapshot(stats)
	logger.Error("ingestion run failed",
		"run_id", stats.RunID, "file_id", stats.FileID, "error", err)
	return stats, err
}

func (s *IngestService) acquire(fileID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[fileID] {
		return false
	}
	s.active[fileID] = true
	return true
}

func (s *IngestService) release(fileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, fileID)
}
