// Package postgres reads source records from a Postgres table.
//
// Each row becomes a record keyed by its key column (as text) with the whole
// row as fields. Rows are paged in key text order.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/source"
)

// Table maps a source name to a table and its key column.
type Table struct {
	Source    string `yaml:"source"`
	Table     string `yaml:"table"`
	KeyColumn string `yaml:"key_column"`
}

// Source is a source.Source over one table.
type Source struct {
	pool   *pgxpool.Pool
	name   string
	table  string
	key    string
	logger *slog.Logger
}

var _ source.Source = (*Source)(nil)

// Connect opens a pool for dsn.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return pool, nil
}

// New creates a source over t. An empty KeyColumn means "id".
func New(pool *pgxpool.Pool, t Table, logger *slog.Logger) *Source {
	if t.KeyColumn == "" {
		t.KeyColumn = "id"
	}
	if t.Table == "" {
		t.Table = t.Source
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		pool:   pool,
		name:   t.Source,
		table:  pgx.Identifier{t.Table}.Sanitize(),
		key:    pgx.Identifier{t.KeyColumn}.Sanitize(),
		logger: logger.With("component", "postgres-source", "source", t.Source),
	}
}

// Register adds a source for every table to reg.
func Register(reg *source.Registry, pool *pgxpool.Pool, tables []Table, logger *slog.Logger) error {
	for _, t := range tables {
		if err := reg.Register(New(pool, t, logger)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Source) Name() string { return s.name }

func (s *Source) Fetch(ctx context.Context, keys []string) ([]core.Record, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	sql := fmt.Sprintf(`
SELECT t.%[1]s::text, to_jsonb(t)
  FROM %[2]s t
 WHERE t.%[1]s::text = ANY($1)
 ORDER BY t.%[1]s::text`, s.key, s.table)
	return s.query(ctx, sql, keys)
}

func (s *Source) Scan(ctx context.Context, after string, limit int) ([]core.Record, error) {
	sql := fmt.Sprintf(`
SELECT t.%[1]s::text, to_jsonb(t)
  FROM %[2]s t
 WHERE t.%[1]s::text > $1
 ORDER BY t.%[1]s::text
 LIMIT $2`, s.key, s.table)
	return s.query(ctx, sql, after, limit)
}

func (s *Source) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: counting %s: %w", s.name, err)
	}
	return n, nil
}

func (s *Source) query(ctx context.Context, sql string, args ...any) ([]core.Record, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: querying %s: %w", s.name, err)
	}
	defer rows.Close()

	var records []core.Record
	for rows.Next() {
		var (
			key    string
			fields map[string]any
		)
		if err := rows.Scan(&key, &fields); err != nil {
			return nil, fmt.Errorf("postgres: scanning %s: %w", s.name, err)
		}
		records = append(records, core.Record{Key: key, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: reading %s: %w", s.name, err)
	}
	s.logger.Debug("read records", "count", len(records))
	return records, nil
}
