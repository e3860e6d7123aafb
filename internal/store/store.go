// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store is the downstream document store for normalized studies.
// Each ingest replaces the previous release's documents; within a release
// a repeated _id keeps the first document seen.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/ctgov-connector/internal/normalize"
	"github.com/pdiddy/ctgov-connector/pkg/types"
)

const dbFile = "studies.db"

// ErrNotFound is returned by Get for an unknown study id.
var ErrNotFound = errors.New("study not found")

// Store manages the studies SQLite database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
}

// Open opens or creates dir/studies.db and its schema.
func Open(cfg types.StoreConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, dir: cfg.Dir, maxResults: maxResults}
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
		`CREATE TABLE IF NOT EXISTS studies (
			id TEXT PRIMARY KEY,
			title TEXT,
			doc TEXT NOT NULL,
			release TEXT NOT NULL,
			ingested_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_studies_title ON studies(title)`,
		`CREATE TABLE IF NOT EXISTS releases (
			release TEXT PRIMARY KEY,
			studies INTEGER NOT NULL,
			duplicates INTEGER NOT NULL,
			ingested_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// IngestSummary holds counts from an ingest run.
type IngestSummary struct {
	Release    string
	Inserted   int
	Duplicates int
	Failed     int
}

// Total returns the number of records read from the source.
func (s IngestSummary) Total() int {
	return s.Inserted + s.Duplicates + s.Failed
}

// Ingest replaces the stored studies with the records of src and records
// release as the latest ingested release. Records without an _id are
// counted as failed and skipped. A source error aborts the ingest and
// leaves the previous contents in place.
func (s *Store) Ingest(ctx context.Context, src normalize.RecordSource, release string, w io.Writer) (IngestSummary, error) {
	summary := IngestSummary{Release: release}
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM studies`); err != nil {
		return summary, fmt.Errorf("clearing previous release: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO studies (id, title, doc, release, ingested_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return summary, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for study, err := range src.Records() {
		if err != nil {
			return summary, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, ctxErr
		}

		id := study.ID()
		if id == "" {
			fmt.Fprintf(w, "failed  study without _id\n")
			summary.Failed++
			continue
		}
		doc, err := json.Marshal(study)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", id, err)
			summary.Failed++
			continue
		}

		res, err := stmt.ExecContext(ctx, id, study.BriefTitle(), string(doc), release, now)
		if err != nil {
			return summary, fmt.Errorf("inserting %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			summary.Duplicates++
			continue
		}
		summary.Inserted++
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO releases (release, studies, duplicates, ingested_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(release) DO UPDATE SET
			studies=excluded.studies, duplicates=excluded.duplicates, ingested_at=excluded.ingested_at`,
		release, summary.Inserted, summary.Duplicates, now,
	)
	if err != nil {
		return summary, fmt.Errorf("recording release: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("committing ingest: %w", err)
	}

	fmt.Fprintf(w, "\nrelease: %s, inserted: %d, duplicates: %d, failed: %d\n",
		release, summary.Inserted, summary.Duplicates, summary.Failed)
	return summary, nil
}

// Get returns the stored document for id.
func (s *Store) Get(ctx context.Context, id string) (types.Study, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM studies WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", id, err)
	}
	return decodeDoc(doc)
}

// Count returns the number of stored studies.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM studies`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting studies: %w", err)
	}
	return n, nil
}

// LastRelease returns the most recently ingested release, or "" if none.
func (s *Store) LastRelease(ctx context.Context) (string, error) {
	var release string
	err := s.db.QueryRowContext(ctx,
		`SELECT release FROM releases ORDER BY ingested_at DESC, release DESC LIMIT 1`,
	).Scan(&release)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying last release: %w", err)
	}
	return release, nil
}

// SearchResult is one title match.
type SearchResult struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}

// Search returns studies whose brief title contains query, case-insensitively,
// ordered by id. limit <= 0 uses the store default.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = s.maxResults
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, COALESCE(title, '') FROM studies
		 WHERE title LIKE '%' || ? || '%'
		 ORDER BY id LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching studies: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Title); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// decodeDoc decodes a stored document keeping numbers as json.Number, as the
// normalizer produced them.
func decodeDoc(doc string) (types.Study, error) {
	dec := json.NewDecoder(strings.NewReader(doc))
	dec.UseNumber()

	var study types.Study
	if err := dec.Decode(&study); err != nil {
		return nil, fmt.Errorf("decoding stored document: %w", err)
	}
	return study, nil
}
