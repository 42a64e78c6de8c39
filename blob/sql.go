package blob

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const sqlScheme = "sql:///"

// SQLMedium stores blobs as rows of a single table. It is consistent by
// nature; it satisfies Medium so that deployments without an object store
// can still run the same versioned-store protocol.
type SQLMedium struct {
	db      *sql.DB
	queries sqlQueries
}

type sqlQueries struct {
	find  string
	fetch string
	put   string
}

func (s *SQLMedium) Find(ctx context.Context, prefix string) (string, bool, error) {
	var path string
	err := s.db.QueryRowContext(ctx, s.queries.find, escapeLike(prefix)+"%").Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find blob: %w", err)
	}
	return sqlScheme + path, true, nil
}

func (s *SQLMedium) Fetch(ctx context.Context, url string) ([]byte, error) {
	path, err := sqlPath(url)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = s.db.QueryRowContext(ctx, s.queries.fetch, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fetch %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %v: %w", path, err, ErrTransient)
	}
	return data, nil
}

func (s *SQLMedium) Put(ctx context.Context, path string, data []byte) error {
	_, err := s.db.ExecContext(ctx, s.queries.put, path, data, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLMedium) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLMedium) Close() error {
	return s.db.Close()
}

func sqlPath(url string) (string, error) {
	if !strings.HasPrefix(url, sqlScheme) {
		return "", fmt.Errorf("sql medium: unsupported url %q", url)
	}
	path := strings.TrimPrefix(url, sqlScheme)
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

var _ Medium = (*SQLMedium)(nil)
