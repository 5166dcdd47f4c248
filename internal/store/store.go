// Package store wraps the read-only SQLite-backed transactions table: a
// single *sql.DB opened once at process start, plus the prepared-statement
// contract the query and aggregation layers build against. Grounded on the
// teacher's sqlite_backend.go (chronicle), adapted from a read-write
// time-series backend to a read-only tabular one.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Config configures how the store opens the SQLite file.
type Config struct {
	// DataDir is the directory holding cea-transactions.db, datasets.json,
	// and per-dataset metadata snapshots.
	DataDir string

	// PageCacheKB is SQLite's in-process page cache size in KB.
	PageCacheKB int

	// MmapSizeBytes is the memory-mapped I/O window in bytes.
	MmapSizeBytes int64
}

const dbFileName = "cea-transactions.db"

// Store exposes a prepared-statement interface over the read-only
// transactions table and its precomputed aggregate tables.
type Store struct {
	db      *sql.DB
	dataDir string
}

// Open opens the store read-only against <DataDir>/cea-transactions.db. It
// fails fast if the file is missing and runs a planner-statistics refresh
// (ANALYZE) once before returning. ANALYZE writes the sqlite_stat tables, so
// it runs on a short-lived writable connection that is closed before the
// read-only serving connection opens.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	path := filepath.Join(cfg.DataDir, dbFileName)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	pageCacheKB := cfg.PageCacheKB
	if pageCacheKB <= 0 {
		pageCacheKB = 10 * 1024
	}
	mmapBytes := cfg.MmapSizeBytes
	if mmapBytes <= 0 {
		mmapBytes = 30 * 1024 * 1024
	}

	rw, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(30000)", path))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	_, err = rw.ExecContext(ctx, "ANALYZE")
	rw.Close()
	if err != nil {
		return nil, fmt.Errorf("open store: refresh planner statistics: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?mode=ro&_pragma=cache_size(-%d)&_pragma=mmap_size(%d)&_pragma=synchronous(OFF)&_pragma=query_only(true)",
		path, pageCacheKB, mmapBytes,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// Read-only, many concurrent readers: there is nothing to serialize
	// around, so the pool can grow freely with request concurrency.
	db.SetMaxIdleConns(4)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &Store{db: db, dataDir: cfg.DataDir}, nil
}

// DataDir returns the directory the store was opened against, for locating
// the sibling datasets.json and per-dataset metadata snapshots.
func (s *Store) DataDir() string {
	return s.dataDir
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Prepare compiles a SQL statement for repeated use. Statements are safe for
// concurrent use by multiple goroutines and hold no lock across calls; the
// guarantee comes from database/sql's own connection pool plus SQLite's
// read-only snapshot isolation per statement.
func (s *Store) Prepare(ctx context.Context, query string) (*Statement, error) {
	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare statement: %w", err)
	}
	return &Statement{stmt: stmt}, nil
}

// Statement is a reusable prepared statement exposing the .all()/.get()
// contract the query and aggregation layers consume.
type Statement struct {
	stmt *sql.Stmt
}

// Close releases the prepared statement.
func (st *Statement) Close() error {
	return st.stmt.Close()
}

// All executes the statement and returns every row, each as a column-name
// keyed map. Row-scan failures at request time are the caller's to classify
// (typically as an internal error), never as a fatal condition.
func (st *Statement) All(ctx context.Context, args ...any) ([]map[string]any, error) {
	rows, err := st.stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		row, err := scanRow(rows, cols)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Get executes the statement and returns the first row, or ok=false if the
// result set is empty.
func (st *Statement) Get(ctx context.Context, args ...any) (map[string]any, bool, error) {
	rows, err := st.stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, false, fmt.Errorf("query row: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, false, fmt.Errorf("read columns: %w", err)
	}

	if !rows.Next() {
		return nil, false, rows.Err()
	}
	row, err := scanRow(rows, cols)
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

func scanRow(rows *sql.Rows, cols []string) (map[string]any, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}

	row := make(map[string]any, len(cols))
	for i, col := range cols {
		v := values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		row[col] = v
	}
	return row, nil
}
