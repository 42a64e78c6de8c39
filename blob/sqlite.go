package blob

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hubenschmidt/go-semcat/blob/migrations"
	_ "modernc.org/sqlite"
)

const defaultSQLitePath = "data/semcat.db"

// NewSQLiteMedium opens (creating if needed) a SQLite-backed medium.
func NewSQLiteMedium(dsn string) (*SQLMedium, error) {
	if dsn == "" {
		dsn = defaultSQLitePath
	}

	dir := filepath.Dir(dsn)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// database/sql pools connections; SQLite serialises writers anyway.
	db.SetMaxOpenConns(1)

	if err := runSQLiteMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLMedium{db: db, queries: sqlQueries{
		find:  `SELECT path FROM blobs WHERE path LIKE ? ESCAPE '\' ORDER BY path LIMIT 1`,
		fetch: `SELECT data FROM blobs WHERE path = ?`,
		put:   `INSERT OR REPLACE INTO blobs (path, data, updated_at) VALUES (?, ?, ?)`,
	}}, nil
}

func runSQLiteMigrations(db *sql.DB) error {
	data, err := migrations.SQLite.ReadFile("sqlite/001_init.sql")
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	_, err = db.Exec(string(data))
	if err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	return nil
}
