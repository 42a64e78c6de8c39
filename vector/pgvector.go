package vector

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hubenschmidt/go-semcat/core"
)

// PgVectorIndex is a PostgreSQL-based Index using pgvector.
type PgVectorIndex struct {
	db        *sql.DB
	dimension int
}

// NewPgVectorIndex creates a new pgvector-based index.
// The dimension parameter specifies the embedding dimension (e.g., 1536 for OpenAI).
func NewPgVectorIndex(dsn string, dimension int) (*PgVectorIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("pgvector: invalid dimension %d", dimension)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	idx := &PgVectorIndex{db: db, dimension: dimension}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return idx, nil
}

func (s *PgVectorIndex) migrate() error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS category_embeddings (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			seq BIGSERIAL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`, s.dimension),
		`CREATE INDEX IF NOT EXISTS idx_category_embeddings_hnsw ON category_embeddings USING hnsw (embedding vector_cosine_ops)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// Upsert stores records, updating existing ones by ID. The original insertion
// sequence is kept on update so tie ordering is stable.
func (s *PgVectorIndex) Upsert(ctx context.Context, records []Record) error {
	return s.upsert(ctx, s.db, records)
}

// Replace swaps the whole table for records in one transaction.
func (s *PgVectorIndex) Replace(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM category_embeddings`); err != nil {
		return fmt.Errorf("purge category embeddings: %w", err)
	}
	if err := s.upsert(ctx, tx, records); err != nil {
		return err
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PgVectorIndex) upsert(ctx context.Context, db execer, records []Record) error {
	for _, rec := range records {
		if len(rec.Vector) != s.dimension {
			return fmt.Errorf("upsert %s: dimension %d, index has %d", rec.ID, len(rec.Vector), s.dimension)
		}
		if err := CheckVector(rec.Vector); err != nil {
			return fmt.Errorf("upsert %s: %w", rec.ID, err)
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO category_embeddings (id, name, embedding)
			VALUES ($1, $2, $3::vector)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				embedding = EXCLUDED.embedding
		`, rec.ID, rec.Name, formatEmbedding(rec.Vector))
		if err != nil {
			return fmt.Errorf("upsert category embedding: %w", err)
		}
	}
	return nil
}

// Search ranks rows by cosine distance, keeping only those whose similarity
// (1 - distance) reaches threshold.
func (s *PgVectorIndex) Search(ctx context.Context, query []float64, topK int, threshold float64) ([]Match, error) {
	if topK <= 0 {
		return []Match{}, nil
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("pgvector search: %w: query has %d, index has %d", core.ErrDimensionMismatch, len(query), s.dimension)
	}
	if err := CheckVector(query); err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		WITH q AS (SELECT $1::vector AS v)
		SELECT id, name, 1 - (embedding <=> (SELECT v FROM q)) AS score
		FROM category_embeddings
		WHERE 1 - (embedding <=> (SELECT v FROM q)) >= $2
		ORDER BY embedding <=> (SELECT v FROM q) ASC, seq ASC
		LIMIT $3
	`, formatEmbedding(query), threshold, topK)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	results := make([]Match, 0, topK)
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Name, &m.Score); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		m.Rank = len(results) + 1
		results = append(results, m)
	}

	return results, rows.Err()
}

// Delete removes rows by ID.
func (s *PgVectorIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf("DELETE FROM category_embeddings WHERE id IN (%s)", strings.Join(placeholders, ","))
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

// Close closes the database connection.
func (s *PgVectorIndex) Close() error {
	return s.db.Close()
}

// formatEmbedding converts a float64 slice to pgvector format: "[0.1,0.2,0.3]".
// Non-finite components are written as 0.
func formatEmbedding(embedding []float64) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

var _ Index = (*PgVectorIndex)(nil)
