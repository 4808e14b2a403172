// Package store persists finished chunking results in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("record not found")

// Record is one chunked document. Output holds the serialized result JSON.
type Record struct {
	ID          string
	Document    string
	Fingerprint string
	TotalChunks int
	Output      []byte
	CreatedAt   time.Time
}

// Summary is a Record without its output body.
type Summary struct {
	ID          string    `json:"doc_id"`
	Document    string    `json:"document"`
	Fingerprint string    `json:"fingerprint"`
	TotalChunks int       `json:"total_chunks"`
	CreatedAt   time.Time `json:"created_at"`
}

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	document     TEXT NOT NULL,
	fingerprint  TEXT NOT NULL,
	total_chunks INTEGER NOT NULL,
	output       BLOB NOT NULL,
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_fingerprint ON documents(fingerprint);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);
`

// Store is the SQLite-backed result store.
type Store struct {
	db    DB
	close func() error
}

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps an in-memory database alive and serializes writes.
	db.SetMaxOpenConns(1)

	s, err := New(context.Background(), db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.close = db.Close
	return s, nil
}

// New wraps an existing connection and applies the schema.
func New(ctx context.Context, db DB) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, close: func() error { return nil }}, nil
}

// Close releases the database when it was opened by Open.
func (s *Store) Close() error {
	return s.close()
}

// Save inserts or replaces a record.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return errors.New("record id is required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	query := `
		INSERT OR REPLACE INTO documents (id, document, fingerprint, total_chunks, output, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Document, rec.Fingerprint, rec.TotalChunks, rec.Output, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves a record by ID.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	query := `
		SELECT id, document, fingerprint, total_chunks, output, created_at
		FROM documents WHERE id = ?
	`
	return scanRecord(s.db.QueryRowContext(ctx, query, id))
}

// FindByFingerprint returns the oldest record with the given fingerprint.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) (*Record, error) {
	query := `
		SELECT id, document, fingerprint, total_chunks, output, created_at
		FROM documents WHERE fingerprint = ?
		ORDER BY created_at ASC LIMIT 1
	`
	return scanRecord(s.db.QueryRowContext(ctx, query, fingerprint))
}

func scanRecord(row *sql.Row) (*Record, error) {
	rec := &Record{}
	err := row.Scan(&rec.ID, &rec.Document, &rec.Fingerprint, &rec.TotalChunks, &rec.Output, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	return rec, nil
}

// List returns summaries newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, document, fingerprint, total_chunks, created_at
		FROM documents
		ORDER BY created_at DESC, id ASC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit, max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Document, &sum.Fingerprint, &sum.TotalChunks, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
