package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/bondtrack/bondtrack/internal/platform/db"
)

// Writer replaces the contents of a table with one batch.
type Writer interface {
	ReplaceBatch(ctx context.Context, table string, data *Table, batchID string, loadedAt time.Time) (int64, error)
}

// PGWriter copies rows into Postgres. Every row is tagged with batch_id and updated_at;
// once the new batch is in, rows of older batches are deleted in the same transaction.
type PGWriter struct {
	pool db.TxBeginner
}

// NewPGWriter constructs a writer on pool.
func NewPGWriter(pool db.TxBeginner) *PGWriter {
	return &PGWriter{pool: pool}
}

// ReplaceBatch implements Writer.
func (w *PGWriter) ReplaceBatch(ctx context.Context, table string, data *Table, batchID string, loadedAt time.Time) (int64, error) {
	columns := append(append([]string{}, data.Columns...), "batch_id", "updated_at")
	rows := make([][]any, len(data.Rows))
	for i, r := range data.Rows {
		row := make([]any, 0, len(columns))
		for _, v := range r {
			row = append(row, pgValue(v))
		}
		rows[i] = append(row, batchID, loadedAt)
	}

	var copied int64
	err := db.WithTx(ctx, w.pool, func(tx pgx.Tx) error {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("ingest: copy %s: %w", table, err)
		}
		copied = n
		sql := "DELETE FROM " + pgx.Identifier{table}.Sanitize() + " WHERE batch_id IS DISTINCT FROM $1"
		if _, err := tx.Exec(ctx, sql, batchID); err != nil {
			return fmt.Errorf("ingest: prune %s: %w", table, err)
		}
		return nil
	})
	return copied, err
}

func pgValue(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
	}
	return v
}
