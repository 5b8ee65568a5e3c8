// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history archives finished citation runs in SQLite so past
// results can be listed, inspected, and exported. Runs are recorded only
// after they finish; nothing here is used to resume a session.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citeagent/internal/bibtex"
	"github.com/pdiddy/citeagent/pkg/types"
)

// ErrRunNotFound is returned by Get for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

const defaultListLimit = 20

// Store manages the run archive database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the archive at path, creating parent directories
// and the schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			provider TEXT,
			model TEXT,
			state TEXT NOT NULL,
			iterations INTEGER,
			input_chars INTEGER,
			output_chars INTEGER,
			error TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			key TEXT,
			entry TEXT NOT NULL,
			placeholder INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_key ON entries(key)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores a finished run and its entries. A run without an ID gets
// a new one; the stored ID is returned.
func (s *Store) Record(ctx context.Context, run types.RunRecord) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, provider, model, state, iterations, input_chars, output_chars, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), run.Provider, run.Model, run.State,
		run.Iterations, run.InputChars, run.OutputChars, run.Error,
	)
	if err != nil {
		return "", fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (run_id, position, key, entry, placeholder) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, entry := range run.Entries {
		var key string
		if keys := bibtex.DefinedKeys(entry); len(keys) > 0 {
			key = keys[0]
		}
		if _, err := stmt.ExecContext(ctx, run.ID, i, key, entry, bibtex.IsPlaceholder(entry)); err != nil {
			return "", fmt.Errorf("inserting entry %d of run %s: %w", i, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run %s: %w", run.ID, err)
	}
	return run.ID, nil
}

// List returns the most recent runs, newest first, without entries.
// limit <= 0 uses a default of 20.
func (s *Store) List(ctx context.Context, limit int) ([]types.RunRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, provider, model, state, iterations, input_chars, output_chars, error
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []types.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get returns one run with its entries.
func (s *Store) Get(ctx context.Context, id string) (types.RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, provider, model, state, iterations, input_chars, output_chars, error
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return types.RunRecord{}, err
	}

	run.Entries, err = s.Entries(ctx, id)
	if err != nil {
		return types.RunRecord{}, err
	}
	return run, nil
}

// Entries returns the entries of a run in their original order.
func (s *Store) Entries(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry FROM entries WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ExportYAML writes every run with its entries to w, oldest first.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, provider, model, state, iterations, input_chars, output_chars, error
		 FROM runs ORDER BY started_at, id`)
	if err != nil {
		return fmt.Errorf("querying runs for export: %w", err)
	}
	var runs []types.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return err
		}
		runs = append(runs, run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading runs for export: %w", err)
	}

	for i := range runs {
		if runs[i].Entries, err = s.Entries(ctx, runs[i].ID); err != nil {
			return err
		}
	}

	if runs == nil {
		runs = []types.RunRecord{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(runs); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (types.RunRecord, error) {
	var (
		run       types.RunRecord
		startedAt string
		provider  sql.NullString
		model     sql.NullString
		errText   sql.NullString
	)
	err := sc.Scan(&run.ID, &startedAt, &provider, &model, &run.State,
		&run.Iterations, &run.InputChars, &run.OutputChars, &errText)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("scanning run: %w", err)
	}
	run.Provider = provider.String
	run.Model = model.String
	run.Error = errText.String
	if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		run.StartedAt = t
	}
	return run, nil
}
