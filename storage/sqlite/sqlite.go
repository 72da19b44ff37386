// Package sqlite implements the storage.Backend contract on an
// embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/embermind/recall/storage"
)

// Store is a SQLite-backed storage.Backend. Payloads are stored as
// opaque blobs with the filterable attributes extracted into columns.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and prepares the schema.
// Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		kind TEXT NOT NULL,
		id TEXT NOT NULL,
		data BLOB NOT NULL,
		tier TEXT DEFAULT '',
		category TEXT DEFAULT '',
		importance INTEGER DEFAULT 0,
		archived INTEGER DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (kind, id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_tier ON records(kind, tier);
	CREATE INDEX IF NOT EXISTS idx_records_category ON records(kind, category);
	CREATE INDEX IF NOT EXISTS idx_records_updated ON records(kind, updated_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Get returns the record for (kind, id).
func (s *Store) Get(ctx context.Context, kind storage.Kind, id string) (storage.Record, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data, tier, category, importance, archived, updated_at
		 FROM records WHERE kind = ? AND id = ?`, string(kind), id)

	rec := storage.Record{Kind: kind, ID: id}
	var archived int
	var updated string
	err := row.Scan(&rec.Data, &rec.Attrs.Tier, &rec.Attrs.Category,
		&rec.Attrs.Importance, &archived, &updated)
	if err == sql.ErrNoRows {
		return storage.Record{}, false, nil
	}
	if err != nil {
		return storage.Record{}, false, fmt.Errorf("get record: %w", err)
	}

	rec.Attrs.Archived = archived != 0
	rec.Attrs.UpdatedAt = parseTime(updated)
	return rec, true, nil
}

// Put inserts or replaces a record.
func (s *Store) Put(ctx context.Context, rec storage.Record) error {
	updated := rec.Attrs.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO records
		 (kind, id, data, tier, category, importance, archived, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(rec.Kind), rec.ID, rec.Data,
		rec.Attrs.Tier, rec.Attrs.Category, rec.Attrs.Importance,
		boolToInt(rec.Attrs.Archived), updated.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("put record: %w", err)
	}
	return nil
}

// Query returns records of a kind matching the filter, newest first.
func (s *Store) Query(ctx context.Context, kind storage.Kind, f storage.Filter) ([]storage.Record, error) {
	var (
		conds = []string{"kind = ?"}
		args  = []any{string(kind)}
	)
	if f.Tier != "" {
		conds = append(conds, "tier = ?")
		args = append(args, f.Tier)
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.MinImportance > 0 {
		conds = append(conds, "importance >= ?")
		args = append(args, f.MinImportance)
	}
	if f.Archived != nil {
		conds = append(conds, "archived = ?")
		args = append(args, boolToInt(*f.Archived))
	}

	query := `SELECT id, data, tier, category, importance, archived, updated_at
		 FROM records WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY updated_at DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []storage.Record
	for rows.Next() {
		rec := storage.Record{Kind: kind}
		var archived int
		var updated string
		if err := rows.Scan(&rec.ID, &rec.Data, &rec.Attrs.Tier, &rec.Attrs.Category,
			&rec.Attrs.Importance, &archived, &updated); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Attrs.Archived = archived != 0
		rec.Attrs.UpdatedAt = parseTime(updated)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
