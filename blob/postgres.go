package blob

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hubenschmidt/go-semcat/blob/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// NewPostgresMedium opens a PostgreSQL-backed medium.
func NewPostgresMedium(dsn string) (*SQLMedium, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := runPostgresMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLMedium{db: db, queries: sqlQueries{
		find:  `SELECT path FROM blobs WHERE path LIKE $1 ESCAPE '\' ORDER BY path LIMIT 1`,
		fetch: `SELECT data FROM blobs WHERE path = $1`,
		put: `INSERT INTO blobs (path, data, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (path) DO UPDATE SET
				data = EXCLUDED.data,
				updated_at = EXCLUDED.updated_at`,
	}}, nil
}

func runPostgresMigrations(db *sql.DB) error {
	data, err := migrations.Postgres.ReadFile("postgres/001_init.sql")
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	_, err = db.Exec(string(data))
	if err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	return nil
}
