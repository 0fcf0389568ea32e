// Package store reads the raw source tables loaded by ingest and converts their rows into
// the typed values the pipelines work with.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/bondtrack/bondtrack/internal/ledger"
)

// ErrColumnType is returned when a column holds a value that cannot be converted.
var ErrColumnType = errors.New("store: unexpected column type")

// Row is one record of a source table keyed by column name.
type Row map[string]any

// Has reports whether the column is present.
func (r Row) Has(col string) bool {
	_, ok := r[col]
	return ok
}

func (r Row) value(col string) (any, error) {
	v, ok := r[col]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrMissingColumn, col)
	}
	return v, nil
}

// String returns the column as text. Numbers are formatted without exponent so that
// numeric organization codes concatenate as written.
func (r Row) String(col string) (string, error) {
	v, err := r.value(col)
	if err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case int:
		return strconv.Itoa(t), nil
	case int16:
		return strconv.FormatInt(int64(t), 10), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case json.Number:
		return t.String(), nil
	case decimal.Decimal:
		return t.String(), nil
	default:
		return "", fmt.Errorf("%w: %s is %T", ErrColumnType, col, v)
	}
}

// Int returns the column as an integer.
func (r Row) Int(col string) (int, error) {
	v, err := r.value(col)
	if err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case int:
		return t, nil
	case int16:
		return int(t), nil
	case int32:
		return int(t), nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrColumnType, col, err)
		}
		return int(n), nil
	case decimal.Decimal:
		return int(t.IntPart()), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrColumnType, col, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s is %T", ErrColumnType, col, v)
	}
}

// Decimal returns the column as a decimal. NULL reads as zero.
func (r Row) Decimal(col string) (decimal.Decimal, error) {
	v, err := r.value(col)
	if err != nil {
		return decimal.Zero, err
	}
	switch t := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return t, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case float32:
		return decimal.NewFromFloat32(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int32:
		return decimal.NewFromInt32(t), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case json.Number:
		return parseDecimal(col, t.String())
	case string:
		return parseDecimal(col, t)
	default:
		return decimal.Zero, fmt.Errorf("%w: %s is %T", ErrColumnType, col, v)
	}
}

// Time returns the column as a UTC timestamp. Text dates use 2006-01-02 or RFC 3339.
func (r Row) Time(col string) (time.Time, error) {
	v, err := r.value(col)
	if err != nil {
		return time.Time{}, err
	}
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05.000", "01/02/2006"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %s: unparseable date %q", ErrColumnType, col, t)
	default:
		return time.Time{}, fmt.Errorf("%w: %s is %T", ErrColumnType, col, v)
	}
}

// Strings concatenates several columns as text, in order.
func (r Row) Strings(cols ...string) ([]string, error) {
	out := make([]string, len(cols))
	for i, col := range cols {
		s, err := r.String(col)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func parseDecimal(col, s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrColumnType, col, err)
	}
	return d, nil
}

// normalize converts driver specific values so rows survive a JSON round trip through the
// cache with the same meaning.
func normalize(row map[string]any) Row {
	out := make(Row, len(row))
	for k, v := range row {
		switch t := v.(type) {
		case pgtype.Numeric:
			out[k] = numericToDecimal(t)
		case time.Time:
			out[k] = t.UTC().Format(time.RFC3339)
		case [16]byte:
			out[k] = fmt.Sprintf("%x", t)
		default:
			out[k] = v
		}
	}
	return out
}

func numericToDecimal(n pgtype.Numeric) any {
	if !n.Valid || n.NaN || n.Int == nil {
		return nil
	}
	return decimal.NewFromBigInt(new(big.Int).Set(n.Int), n.Exp)
}
