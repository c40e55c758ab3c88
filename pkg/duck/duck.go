// Package duck opens DuckDB database handles for the ask311 services.
package duck

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2"
)

// Open opens the DuckDB database file at path. When readOnly is true the
// handle is opened in read-only access mode, which allows the server to share
// the file with an out-of-band ETL run. The parent directory is created for
// writable handles.
func Open(path string, readOnly bool) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}

	dsn := abs
	if readOnly {
		dsn = abs + "?" + url.Values{"access_mode": {"read_only"}}.Encode()
	} else {
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
