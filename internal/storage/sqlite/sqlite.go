// Package sqlite provides the durable storage adapter: an append-only
// event log and a content-addressed key-value table in one SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/tally/internal/storage"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// Store implements storage.EventLog and storage.KeyValueStore on one
// SQLite database.
//
// Configuration mirrors the single-writer model of the core:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - one open connection, avoiding SQLITE_BUSY on the write path
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at path. Idempotent: pragmas
// and schema are applied every time.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time; keep a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	_, err := db.Exec(
		"INSERT INTO schema_version (version) VALUES (?) ON CONFLICT(version) DO NOTHING",
		currentSchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// Append implements storage.EventLog. Offsets start at 0 to match the
// in-memory adapter (SQLite AUTOINCREMENT starts at 1).
func (s *Store) Append(ctx context.Context, data []byte) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO events (data, knowledge_time) VALUES (?, ?)",
		data, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, &storage.PersistenceError{Op: "sqlite append", Err: err}
	}
	rowid, err := res.LastInsertId()
	if err != nil {
		return 0, &storage.PersistenceError{Op: "sqlite append", Err: err}
	}
	return rowid - 1, nil
}

// Replay implements storage.EventLog. Results are ordered by offset;
// deterministic ordering is required for replay to reproduce the single
// writer's total order.
func (s *Store) Replay(ctx context.Context, from, to int64) ([]storage.Record, error) {
	// The offset column holds rowid (1-based); exposed offsets are
	// rowid-1, so [from, to) maps to rowid > from AND rowid <= to.
	query := `SELECT offset, data, knowledge_time FROM events WHERE offset > ?`
	args := []any{from}
	if to >= 0 {
		query += ` AND offset <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY offset ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &storage.PersistenceError{Op: "sqlite replay", Err: err}
	}
	defer rows.Close()

	var out []storage.Record
	for rows.Next() {
		var rec storage.Record
		var rowid int64
		if err := rows.Scan(&rowid, &rec.Data, &rec.KnowledgeTime); err != nil {
			return nil, &storage.PersistenceError{Op: "sqlite replay scan", Err: err}
		}
		rec.Offset = rowid - 1
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &storage.PersistenceError{Op: "sqlite replay rows", Err: err}
	}
	return out, nil
}

// End implements storage.EventLog.
func (s *Store) End(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&count)
	if err != nil {
		return 0, &storage.PersistenceError{Op: "sqlite end", Err: err}
	}
	return count, nil
}

// Put implements storage.KeyValueStore. Content-addressed keys make
// duplicate writes safe, so conflicts are silently ignored rather than
// overwritten: the first write wins and later identical writes are
// no-ops.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return &storage.PersistenceError{Op: "sqlite put", Err: err}
	}
	return nil
}

// Get implements storage.KeyValueStore.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &storage.PersistenceError{Op: "sqlite get", Err: err}
	}
	return value, true, nil
}
