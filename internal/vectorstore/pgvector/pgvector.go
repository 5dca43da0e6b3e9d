// Package pgvector stores topic vectors in Postgres with the pgvector
// extension. Namespaces are a column of one shared table.
package pgvector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"topicrag/internal/domain"
)

// DefaultTable is the table used when Config.Table is empty.
const DefaultTable = "topic_vectors"

type Config struct {
	DSN       string
	Table     string
	Dimension int
}

// Index implements domain.VectorIndex on Postgres + pgvector.
type Index struct {
	db        *sql.DB
	table     string
	dimension int
}

// Open connects to Postgres and ensures the table exists.
func Open(ctx context.Context, cfg Config) (*Index, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	idx, err := NewFromDB(ctx, db, cfg.Table, cfg.Dimension)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

// NewFromDB reuses an existing *sql.DB.
func NewFromDB(ctx context.Context, db *sql.DB, table string, dimension int) (*Index, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dimension)
	}
	if table == "" {
		table = DefaultTable
	}
	idx := &Index{db: db, table: table, dimension: dimension}
	if err := idx.ensureTable(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (s *Index) ensureTable(ctx context.Context) error {
	t := pq.QuoteIdentifier(s.table)
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS %[1]s (
  namespace    text NOT NULL,
  id           text NOT NULL,
  content_text text,
  metadata     jsonb,
  embedding    vector(%[2]d),
  updated_at   timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (namespace, id)
);
CREATE INDEX IF NOT EXISTS %[3]s ON %[1]s USING gin (metadata);
`, t, s.dimension, pq.QuoteIdentifier(s.table+"_meta_idx"))
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Index) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Index) Upsert(ctx context.Context, namespace string, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`
INSERT INTO %s (namespace, id, content_text, metadata, embedding, updated_at)
 VALUES ($1, $2, $3, $4, $5, $6)
 ON CONFLICT (namespace, id) DO UPDATE SET
   content_text=EXCLUDED.content_text,
   metadata=EXCLUDED.metadata,
   embedding=EXCLUDED.embedding,
   updated_at=EXCLUDED.updated_at;
`, pq.QuoteIdentifier(s.table))
	now := time.Now().UTC()
	for _, r := range records {
		if len(r.Values) != s.dimension {
			return fmt.Errorf("vector %s: dimension %d, table expects %d", r.ID, len(r.Values), s.dimension)
		}
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("vector %s metadata: %w", r.ID, err)
		}
		text := domain.MetaString(r.Metadata, domain.MetaText)
		if _, err := tx.ExecContext(ctx, stmt, namespace, r.ID, text, meta, pgvector.NewVector(r.Values), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Index) Query(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]any) ([]domain.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	where, args, err := buildWhere(namespace, filter)
	if err != nil {
		return nil, err
	}
	args = append(args, pgvector.NewVector(vector))
	vecArg := len(args)
	query := fmt.Sprintf(`
SELECT id, 1 - (embedding <=> $%[1]d) AS score, content_text, metadata
FROM %[2]s
WHERE %[3]s
ORDER BY embedding <=> $%[1]d
LIMIT %[4]d;
`, vecArg, pq.QuoteIdentifier(s.table), where, topK)
	return s.scan(ctx, query, args...)
}

func (s *Index) Sample(ctx context.Context, namespace string, limit int) ([]domain.Match, error) {
	if limit <= 0 {
		limit = 1
	}
	query := fmt.Sprintf(`SELECT id, 0::float8, content_text, metadata FROM %s WHERE namespace = $1 LIMIT %d`,
		pq.QuoteIdentifier(s.table), limit)
	return s.scan(ctx, query, namespace)
}

func (s *Index) DeleteNamespace(ctx context.Context, namespace string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1`, pq.QuoteIdentifier(s.table)), namespace)
	return err
}

func (s *Index) DescribeStats(ctx context.Context) (domain.IndexStats, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT namespace, count(*) FROM %s GROUP BY namespace`, pq.QuoteIdentifier(s.table)))
	if err != nil {
		return domain.IndexStats{}, err
	}
	defer rows.Close()
	stats := domain.IndexStats{Dimension: s.dimension, Namespaces: map[string]domain.NamespaceStats{}}
	for rows.Next() {
		var ns string
		var n int
		if err := rows.Scan(&ns, &n); err != nil {
			return domain.IndexStats{}, err
		}
		stats.Namespaces[ns] = domain.NamespaceStats{VectorCount: n}
		stats.TotalVectors += n
	}
	return stats, rows.Err()
}

func (s *Index) scan(ctx context.Context, query string, args ...any) ([]domain.Match, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []domain.Match{}
	for rows.Next() {
		var m domain.Match
		var text sql.NullString
		var metaBytes []byte
		if err := rows.Scan(&m.ID, &m.Score, &text, &metaBytes); err != nil {
			return nil, err
		}
		meta, err := decodeMetadata(metaBytes)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", m.ID, err)
		}
		m.Metadata = meta
		m.Text = text.String
		results = append(results, m)
	}
	return results, rows.Err()
}

// decodeMetadata reads a jsonb metadata column. NULL decodes to nil.
func decodeMetadata(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var md map[string]any
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return md, nil
}

// buildWhere scopes a query to one namespace and adds a jsonb containment
// test for the metadata filter.
func buildWhere(namespace string, filter map[string]any) (string, []any, error) {
	where := []string{"namespace = $1"}
	args := []any{namespace}
	if len(filter) > 0 {
		data, err := json.Marshal(filter)
		if err != nil {
			return "", nil, fmt.Errorf("encode filter: %w", err)
		}
		args = append(args, string(data))
		where = append(where, fmt.Sprintf("metadata @> $%d::jsonb", len(args)))
	}
	return strings.Join(where, " AND "), args, nil
}
