// Package store persists call records, script versions and model-call audit
// events in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/apresai/callcoach/internal/analysis"
	"github.com/apresai/callcoach/internal/dialogue"
	"github.com/apresai/callcoach/internal/script"
)

const timeLayout = time.RFC3339Nano

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	iterations INTEGER NOT NULL,
	started_at_utc TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS calls (
	call_id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	iteration INTEGER NOT NULL,
	persona_id TEXT NOT NULL,
	persona_name TEXT NOT NULL,
	script_version INTEGER NOT NULL,
	end_reason TEXT NOT NULL,
	turns INTEGER NOT NULL,
	effectiveness REAL NOT NULL,
	outcome TEXT NOT NULL,
	transcript_json TEXT NOT NULL,
	analysis_json TEXT NOT NULL,
	audio_json TEXT NOT NULL,
	recording TEXT NOT NULL DEFAULT '',
	started_at_utc TEXT NOT NULL,
	ended_at_utc TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS script_versions (
	run_id TEXT NOT NULL,
	version INTEGER NOT NULL,
	strategy TEXT NOT NULL,
	notes_json TEXT NOT NULL,
	script_json TEXT NOT NULL,
	created_at_utc TEXT NOT NULL,
	PRIMARY KEY (run_id, version)
)`,
	`CREATE TABLE IF NOT EXISTS llm_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at_utc TEXT NOT NULL,
	provider TEXT NOT NULL,
	purpose TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	status TEXT NOT NULL,
	error TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_calls_run ON calls(run_id, iteration)`,
	`CREATE INDEX IF NOT EXISTS idx_llm_events_purpose ON llm_events(purpose, status)`,
}

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// CallRecord is the persisted outcome of one simulated call.
type CallRecord struct {
	CallID        string                `json:"call_id"`
	RunID         string                `json:"run_id"`
	Iteration     int                   `json:"iteration"`
	PersonaID     string                `json:"persona_id"`
	PersonaName   string                `json:"persona_name"`
	ScriptVersion int                   `json:"script_version"`
	Transcript    dialogue.Transcript   `json:"transcript"`
	Analysis      analysis.CallAnalysis `json:"analysis"`
	AudioFiles    []string              `json:"audio_files,omitempty"`
	Recording     string                `json:"recording,omitempty"`
	StartedAt     time.Time             `json:"started_at"`
	EndedAt       time.Time             `json:"ended_at"`
}

// Run is one learning-loop run.
type Run struct {
	RunID      string    `json:"run_id"`
	Iterations int       `json:"iterations"`
	StartedAt  time.Time `json:"started_at"`
	Calls      int       `json:"calls"`
}

// Store wraps a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use "file::memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection: in-memory databases are per connection, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// StartRun records the beginning of a run.
func (s *Store) StartRun(ctx context.Context, runID string, iterations int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, iterations, started_at_utc) VALUES (?, ?, ?)`,
		runID, iterations, s.now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", runID, err)
	}
	return nil
}

// Runs lists runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT r.run_id, r.iterations, r.started_at_utc, COUNT(c.call_id)
FROM runs r LEFT JOIN calls c ON c.run_id = r.run_id
GROUP BY r.run_id
ORDER BY r.started_at_utc DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.RunID, &r.Iterations, &started, &r.Calls); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(timeLayout, started)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestRunID returns the most recently started run.
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id FROM runs ORDER BY started_at_utc DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query latest run: %w", err)
	}
	return id, nil
}

// SaveCall inserts a call record.
func (s *Store) SaveCall(ctx context.Context, rec CallRecord) error {
	transcript, err := json.Marshal(rec.Transcript)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	result, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	audio, err := json.Marshal(nonNil(rec.AudioFiles))
	if err != nil {
		return fmt.Errorf("encode audio files: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO calls (
	call_id, run_id, iteration, persona_id, persona_name, script_version,
	end_reason, turns, effectiveness, outcome,
	transcript_json, analysis_json, audio_json, recording,
	started_at_utc, ended_at_utc
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CallID, rec.RunID, rec.Iteration, rec.PersonaID, rec.PersonaName, rec.ScriptVersion,
		string(rec.Transcript.EndReason), len(rec.Transcript.Turns), rec.Analysis.Effectiveness, string(rec.Analysis.Outcome),
		string(transcript), string(result), string(audio), rec.Recording,
		rec.StartedAt.UTC().Format(timeLayout), rec.EndedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert call %s: %w", rec.CallID, err)
	}
	return nil
}

// Calls returns the calls of a run in iteration order.
func (s *Store) Calls(ctx context.Context, runID string) ([]CallRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT call_id, run_id, iteration, persona_id, persona_name, script_version,
	transcript_json, analysis_json, audio_json, recording, started_at_utc, ended_at_utc
FROM calls WHERE run_id = ? ORDER BY iteration`, runID)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		rec, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Call loads one call by id.
func (s *Store) Call(ctx context.Context, callID string) (CallRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT call_id, run_id, iteration, persona_id, persona_name, script_version,
	transcript_json, analysis_json, audio_json, recording, started_at_utc, ended_at_utc
FROM calls WHERE call_id = ?`, callID)
	if err != nil {
		return CallRecord{}, fmt.Errorf("query call: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return CallRecord{}, err
		}
		return CallRecord{}, fmt.Errorf("call %s: %w", callID, ErrNotFound)
	}
	return scanCall(rows)
}

func scanCall(rows *sql.Rows) (CallRecord, error) {
	var rec CallRecord
	var transcript, result, audio, startedAt, endedAt string
	if err := rows.Scan(&rec.CallID, &rec.RunID, &rec.Iteration, &rec.PersonaID, &rec.PersonaName,
		&rec.ScriptVersion, &transcript, &result, &audio, &rec.Recording, &startedAt, &endedAt); err != nil {
		return CallRecord{}, fmt.Errorf("scan call: %w", err)
	}
	if err := json.Unmarshal([]byte(transcript), &rec.Transcript); err != nil {
		return CallRecord{}, fmt.Errorf("decode transcript of %s: %w", rec.CallID, err)
	}
	if err := json.Unmarshal([]byte(result), &rec.Analysis); err != nil {
		return CallRecord{}, fmt.Errorf("decode analysis of %s: %w", rec.CallID, err)
	}
	if err := json.Unmarshal([]byte(audio), &rec.AudioFiles); err != nil {
		return CallRecord{}, fmt.Errorf("decode audio files of %s: %w", rec.CallID, err)
	}
	rec.StartedAt, _ = time.Parse(timeLayout, startedAt)
	rec.EndedAt, _ = time.Parse(timeLayout, endedAt)
	return rec, nil
}

// SaveRevision records one script version of a run.
func (s *Store) SaveRevision(ctx context.Context, runID string, rev script.Revision) error {
	notes, err := json.Marshal(nonNil(rev.Notes))
	if err != nil {
		return fmt.Errorf("encode notes: %w", err)
	}
	body, err := json.Marshal(rev.Script)
	if err != nil {
		return fmt.Errorf("encode script: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO script_versions (run_id, version, strategy, notes_json, script_json, created_at_utc)
VALUES (?, ?, ?, ?, ?, ?)`,
		runID, rev.Version, rev.Strategy, string(notes), string(body), rev.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert script version %d: %w", rev.Version, err)
	}
	return nil
}

// Revisions returns the script versions of a run, oldest first.
func (s *Store) Revisions(ctx context.Context, runID string) ([]script.Revision, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT version, strategy, notes_json, script_json, created_at_utc
FROM script_versions WHERE run_id = ? ORDER BY version`, runID)
	if err != nil {
		return nil, fmt.Errorf("query script versions: %w", err)
	}
	defer rows.Close()

	var out []script.Revision
	for rows.Next() {
		var rev script.Revision
		var notes, body, createdAt string
		if err := rows.Scan(&rev.Version, &rev.Strategy, &notes, &body, &createdAt); err != nil {
			return nil, fmt.Errorf("scan script version: %w", err)
		}
		if err := json.Unmarshal([]byte(notes), &rev.Notes); err != nil {
			return nil, fmt.Errorf("decode notes of version %d: %w", rev.Version, err)
		}
		if err := json.Unmarshal([]byte(body), &rev.Script); err != nil {
			return nil, fmt.Errorf("decode script version %d: %w", rev.Version, err)
		}
		rev.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		out = append(out, rev)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
