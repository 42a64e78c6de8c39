package blob

import (
	"fmt"
	"io"
	"strings"
)

// Config selects a Medium implementation.
type Config struct {
	Backend string // memory, sqlite, postgres, http; empty picks from DSN
	DSN     string // sqlite path or postgres:// URL
	URL     string // object store base URL for http
	Token   string // bearer token for http
}

// New creates the medium described by cfg. The returned closer is non-nil
// when the medium holds resources.
//   - memory: in-process map
//   - sqlite / empty backend with non-postgres DSN: SQLite at DSN (default data/semcat.db)
//   - postgres / postgres:// DSN: PostgreSQL
//   - http: remote object store at URL
func New(cfg Config) (Medium, io.Closer, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = backendFromDSN(cfg.DSN)
	}

	switch backend {
	case "memory":
		return NewMemoryMedium(0), nil, nil
	case "sqlite":
		m, err := NewSQLiteMedium(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		return m, m, nil
	case "postgres":
		m, err := NewPostgresMedium(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		return m, m, nil
	case "http":
		if cfg.URL == "" {
			return nil, nil, fmt.Errorf("http blob backend requires a url")
		}
		return NewHTTPMedium(cfg.URL, cfg.Token), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown blob backend %q", backend)
	}
}

func backendFromDSN(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}
