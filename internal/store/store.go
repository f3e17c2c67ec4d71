// Package store persists analyzed documents and processed outputs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when no row matches the requested id.
var ErrNotFound = errors.New("not found")

// Analysis is a tagged document awaiting values.
type Analysis struct {
	ID        string            `json:"id"`
	FileName  string            `json:"file_name"`
	Document  []byte            `json:"-"`
	Tags      []string          `json:"tags"`
	Prompts   map[string]string `json:"prompts"`
	CreatedAt time.Time         `json:"created_at"`
}

// Output is a processed document.
type Output struct {
	ID         string    `json:"id"`
	AnalysisID string    `json:"analysis_id,omitempty"`
	JobID      string    `json:"job_id,omitempty"`
	FileName   string    `json:"file_name"`
	Document   []byte    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite database with WAL mode enabled and creates the
// schema if needed.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS analyses (
	id TEXT PRIMARY KEY,
	file_name TEXT NOT NULL,
	document BLOB NOT NULL,
	tags TEXT NOT NULL,
	prompts TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS outputs (
	id TEXT PRIMARY KEY,
	analysis_id TEXT REFERENCES analyses(id) ON DELETE SET NULL,
	job_id TEXT,
	file_name TEXT NOT NULL,
	document BLOB NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outputs_job ON outputs(job_id);
CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at);
CREATE INDEX IF NOT EXISTS idx_outputs_created ON outputs(created_at);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// SaveAnalysis inserts a, assigning an id and creation time when unset.
func (s *Store) SaveAnalysis(ctx context.Context, a *Analysis) error {
	if a.ID == "" {
		a.ID = ulid.Make().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	tags, err := json.Marshal(a.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	prompts, err := json.Marshal(a.Prompts)
	if err != nil {
		return fmt.Errorf("encode prompts: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (id, file_name, document, tags, prompts, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.FileName, a.Document, string(tags), string(prompts), a.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// GetAnalysis loads one analysis by id.
func (s *Store) GetAnalysis(ctx context.Context, id string) (*Analysis, error) {
	var a Analysis
	var tags, prompts, created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, file_name, document, tags, prompts, created_at FROM analyses WHERE id = ?`, id).
		Scan(&a.ID, &a.FileName, &a.Document, &tags, &prompts, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query analysis: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(prompts), &a.Prompts); err != nil {
		return nil, fmt.Errorf("decode prompts: %w", err)
	}
	if a.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	return &a, nil
}

// SaveOutput inserts o, assigning an id and creation time when unset.
func (s *Store) SaveOutput(ctx context.Context, o *Output) error {
	if o.ID == "" {
		o.ID = ulid.Make().String()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outputs (id, analysis_id, job_id, file_name, document, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, nullString(o.AnalysisID), nullString(o.JobID), o.FileName, o.Document, o.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert output: %w", err)
	}
	return nil
}

// GetOutput loads one output by id.
func (s *Store) GetOutput(ctx context.Context, id string) (*Output, error) {
	return s.scanOutput(s.db.QueryRowContext(ctx,
		`SELECT id, analysis_id, job_id, file_name, document, created_at FROM outputs WHERE id = ?`, id))
}

// OutputForJob loads the most recent output written by a job.
func (s *Store) OutputForJob(ctx context.Context, jobID string) (*Output, error) {
	return s.scanOutput(s.db.QueryRowContext(ctx,
		`SELECT id, analysis_id, job_id, file_name, document, created_at FROM outputs
		 WHERE job_id = ? ORDER BY created_at DESC LIMIT 1`, jobID))
}

func (s *Store) scanOutput(row *sql.Row) (*Output, error) {
	var o Output
	var analysisID, jobID sql.NullString
	var created string
	err := row.Scan(&o.ID, &analysisID, &jobID, &o.FileName, &o.Document, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query output: %w", err)
	}
	o.AnalysisID = analysisID.String
	o.JobID = jobID.String
	if o.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	return &o, nil
}

// Purge deletes analyses and outputs created before cutoff and reports how
// many rows went.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	ts := cutoff.UTC().Format(timeLayout)
	var total int64
	for _, q := range []string{
		`DELETE FROM outputs WHERE created_at < ?`,
		`DELETE FROM analyses WHERE created_at < ?`,
	} {
		res, err := s.db.ExecContext(ctx, q, ts)
		if err != nil {
			return total, fmt.Errorf("purge: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
