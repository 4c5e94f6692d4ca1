/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package results keeps the history of graded submissions in SQLite and
// exports single results as JSON files.
package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chainguard.dev/refgrader/grading/pipeline"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS evaluations (
	id               TEXT PRIMARY KEY,
	document         TEXT NOT NULL,
	mode             TEXT NOT NULL,
	created_at       TEXT NOT NULL,
	overall_score    REAL NOT NULL,
	passed           INTEGER NOT NULL,
	images_extracted INTEGER NOT NULL,
	images_scored    INTEGER NOT NULL,
	error_count      INTEGER NOT NULL,
	result_json      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS evaluations_created_at ON evaluations (created_at);
`

// timeLayout is fixed width so created_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned by Get for an unknown result ID.
var ErrNotFound = errors.New("result not found")

// Store is the evaluation history. It satisfies pipeline.Recorder.
type Store struct {
	db *sql.DB
}

var _ pipeline.Recorder = (*Store)(nil)

// Open opens (creating if needed) the SQLite database at path. Use
// ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores r, replacing any earlier result with the same ID.
func (s *Store) Record(ctx context.Context, r *pipeline.Result) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result %s: %w", r.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO evaluations
		   (id, document, mode, created_at, overall_score, passed, images_extracted, images_scored, error_count, result_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   document = excluded.document,
		   mode = excluded.mode,
		   created_at = excluded.created_at,
		   overall_score = excluded.overall_score,
		   passed = excluded.passed,
		   images_extracted = excluded.images_extracted,
		   images_scored = excluded.images_scored,
		   error_count = excluded.error_count,
		   result_json = excluded.result_json`,
		r.ID, r.Document, string(r.Mode), r.Timestamp.UTC().Format(timeLayout),
		r.OverallScore, r.Passed, r.ImagesExtracted, len(r.Images), len(r.Errors), string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert result %s: %w", r.ID, err)
	}
	return nil
}

// Get returns the full result stored under id.
func (s *Store) Get(ctx context.Context, id string) (*pipeline.Result, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT result_json FROM evaluations WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query result %s: %w", id, err)
	}
	var r pipeline.Result
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", id, err)
	}
	return &r, nil
}

// Entry is one row of the history listing.
type Entry struct {
	ID              string
	Document        string
	Mode            pipeline.Mode
	Timestamp       time.Time
	OverallScore    float64
	Passed          bool
	ImagesExtracted int
	ImagesScored    int
	Errors          int
}

// List returns up to limit results, newest first. A limit of zero or less
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document, mode, created_at, overall_score, passed, images_extracted, images_scored, error_count
		 FROM evaluations ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			mode    string
			created string
		)
		if err := rows.Scan(&e.ID, &e.Document, &mode, &created, &e.OverallScore, &e.Passed, &e.ImagesExtracted, &e.ImagesScored, &e.Errors); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Mode = pipeline.Mode(mode)
		if e.Timestamp, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parse timestamp of %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
