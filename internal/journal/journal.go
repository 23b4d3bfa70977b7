package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phenoscribe/phenoscribe/internal/config"
	_ "modernc.org/sqlite"
)

// Event is one timeline entry for a run.
type Event struct {
	ID          int64
	RunID       string
	SessionID   string
	RecordingID string
	Type        string
	Detail      string
	CreatedAt   time.Time
}

// Completed captures what was persisted for one finished recording.
type Completed struct {
	RecordingID  string
	RunID        string
	DurationSec  float64
	WordCount    int
	QualityFlags []string
}

// Journal records pipeline progress in a per-output-dir SQLite database so
// interrupted runs can skip already-completed recordings. A disabled
// journal is a no-op; callers never treat journal errors as fatal.
type Journal struct {
	db    *sql.DB
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the journal. With cfg.Enabled false it returns a no-op
// journal backed by no database.
func Open(ctx context.Context, cfg config.JournalConfig, outputDir string, log *slog.Logger) (*Journal, error) {
	j := &Journal{
		log:   log.With(slog.String("component", "journal")),
		clock: time.Now,
	}
	if !cfg.Enabled {
		return j, nil
	}

	path := cfg.Path
	if path == "" {
		path = filepath.Join(outputDir, "phenoscribe.db")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	j.db = db
	if err := j.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    pipeline_version TEXT,
    sessions_total INTEGER NOT NULL DEFAULT 0,
    sessions_succeeded INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS recordings (
    session_id TEXT NOT NULL,
    recording_id TEXT NOT NULL,
    run_id TEXT,
    status TEXT NOT NULL,
    duration_sec REAL,
    word_count INTEGER,
    quality_flags TEXT,
    completed_at TIMESTAMP NOT NULL,
    PRIMARY KEY(session_id, recording_id)
);
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT,
    session_id TEXT,
    recording_id TEXT,
    event_type TEXT,
    detail TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_run_created ON events(run_id, created_at);
`
	_, err := j.db.ExecContext(ctx, ddl)
	return err
}

// Close releases the underlying database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// BeginRun opens a run row.
func (j *Journal) BeginRun(ctx context.Context, runID, pipelineVersion string, sessionsTotal int) error {
	if j.db == nil {
		return nil
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs(run_id, started_at, pipeline_version, sessions_total)
		 VALUES(?, ?, ?, ?)`,
		runID, j.clock().UTC(), pipelineVersion, sessionsTotal)
	return err
}

// FinishRun closes a run row with its success count.
func (j *Journal) FinishRun(ctx context.Context, runID string, sessionsSucceeded int) error {
	if j.db == nil {
		return nil
	}
	_, err := j.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, sessions_succeeded = ? WHERE run_id = ?`,
		j.clock().UTC(), sessionsSucceeded, runID)
	return err
}

// MarkCompleted upserts a recording as completed.
func (j *Journal) MarkCompleted(ctx context.Context, sessionID string, rec Completed) error {
	if j.db == nil {
		return nil
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO recordings(session_id, recording_id, run_id, status, duration_sec, word_count, quality_flags, completed_at)
		 VALUES(?, ?, ?, 'completed', ?, ?, ?, ?)
		 ON CONFLICT(session_id, recording_id) DO UPDATE SET
		   run_id = excluded.run_id,
		   status = excluded.status,
		   duration_sec = excluded.duration_sec,
		   word_count = excluded.word_count,
		   quality_flags = excluded.quality_flags,
		   completed_at = excluded.completed_at`,
		sessionID, rec.RecordingID, rec.RunID,
		rec.DurationSec, rec.WordCount, strings.Join(rec.QualityFlags, ","), j.clock().UTC())
	return err
}

// CompletedRecordings lists a session's completed recording IDs.
func (j *Journal) CompletedRecordings(ctx context.Context, sessionID string) (map[string]bool, error) {
	if j.db == nil {
		return nil, nil
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT recording_id FROM recordings WHERE session_id = ? AND status = 'completed'`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	completed := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		completed[id] = true
	}
	return completed, rows.Err()
}

// AppendEvent writes one timeline entry.
func (j *Journal) AppendEvent(ctx context.Context, evt Event) error {
	if j.db == nil {
		return nil
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = j.clock().UTC()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events(run_id, session_id, recording_id, event_type, detail, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		evt.RunID, evt.SessionID, evt.RecordingID, evt.Type, evt.Detail, evt.CreatedAt)
	return err
}

// ListRunEvents retrieves up to limit events for a run ordered by time.
func (j *Journal) ListRunEvents(ctx context.Context, runID string, limit int) ([]Event, error) {
	if j.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, run_id, session_id, recording_id, event_type, detail, created_at
		 FROM events WHERE run_id = ? ORDER BY created_at ASC, id ASC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var created string
		if err := rows.Scan(&e.ID, &e.RunID, &e.SessionID, &e.RecordingID, &e.Type, &e.Detail, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = ts
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
