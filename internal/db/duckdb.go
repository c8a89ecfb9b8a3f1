package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Open opens the DuckDB database at path. An empty path gives a private
// in-memory database.
func Open(path string) (*sql.DB, error) {
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	return open(path)
}

// OpenReadOnly opens an existing database file without taking the write lock
// inside this process. DuckDB still refuses while another process holds the
// file read-write.
func OpenReadOnly(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("read-only access needs a database file")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}
	return open(path + "?access_mode=READ_ONLY")
}

func open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to DuckDB: %w", err)
	}

	return db, nil
}
