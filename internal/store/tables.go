package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bondtrack/bondtrack/internal/ledger"
	"github.com/bondtrack/bondtrack/internal/platform/cache"
)

// ErrUnknownTable is returned when the requested source table does not exist.
var ErrUnknownTable = errors.New("store: unknown table")

// Source reads whole source tables.
type Source interface {
	Table(ctx context.Context, name string) ([]Row, error)
}

// Querier is the subset of pgxpool.Pool used for reads.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Tables reads source tables from Postgres.
type Tables struct {
	db Querier
}

// NewTables constructs a Postgres backed Source.
func NewTables(db Querier) *Tables {
	return &Tables{db: db}
}

// Table returns every row of the table ordered by updated_at when that column exists.
func (t *Tables) Table(ctx context.Context, name string) ([]Row, error) {
	ident := pgx.Identifier{name}.Sanitize()
	rows, err := t.db.Query(ctx, "SELECT * FROM "+ident+" ORDER BY updated_at")
	if isUndefinedColumn(err) {
		rows, err = t.db.Query(ctx, "SELECT * FROM "+ident)
	}
	if err != nil {
		return nil, mapError(name, err)
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, mapError(name, err)
	}
	out := make([]Row, len(maps))
	for i, m := range maps {
		out[i] = normalize(m)
	}
	return out, nil
}

func isUndefinedColumn(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42703"
}

func mapError(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42P01":
			return fmt.Errorf("%w: %s", ErrUnknownTable, table)
		case "42703":
			return fmt.Errorf("%w: %s: %s", ledger.ErrMissingColumn, table, pgErr.Message)
		}
	}
	return fmt.Errorf("store: read %s: %w", table, err)
}

// Cached serves tables from the versioned Redis cache. Ingest bumps the version after
// every load so a cached table never outlives the data it was read from.
type Cached struct {
	next  Source
	cache *cache.Versioned
}

// NewCached wraps next with c.
func NewCached(next Source, c *cache.Versioned) *Cached {
	return &Cached{next: next, cache: c}
}

// Table implements Source.
func (c *Cached) Table(ctx context.Context, name string) ([]Row, error) {
	key, err := c.cache.BuildKey(ctx, "table", name)
	if err != nil {
		return c.next.Table(ctx, name)
	}
	var out []Row
	err = c.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return c.next.Table(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
