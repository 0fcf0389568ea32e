package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/bondtrack/bondtrack/internal/ledger"
)

var (
	// ErrUnmappedColumn is returned when the export carries a header the field map
	// does not know.
	ErrUnmappedColumn = errors.New("ingest: unmapped column")
	// ErrSchema is returned when a value violates its column type or check.
	ErrSchema = errors.New("ingest: schema violation")
	// ErrUnknownSource is returned when a table is not part of the catalog.
	ErrUnknownSource = errors.New("ingest: unknown source")
)

const (
	exportDateLayout = "01/02/2006"
	tableDateLayout  = "2006-01-02"
)

// Table is a parsed and validated export ready for loading.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Parser converts CSV exports into typed tables.
type Parser struct {
	validate *validator.Validate
}

// NewParser returns a Parser. It is safe for concurrent use.
func NewParser() *Parser {
	return &Parser{validate: validator.New()}
}

// Parse reads r, renames headers through src.FieldMaps, normalises the date column and
// validates every value against src.Schema.
func (p *Parser) Parse(r io.Reader, src Source) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s: empty export", ledger.ErrMissingColumn, src.Table)
		}
		return nil, fmt.Errorf("ingest: %s: read header: %w", src.Table, err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		name, ok := src.FieldMaps[strings.TrimPrefix(h, "\ufeff")]
		if !ok {
			return nil, fmt.Errorf("%w: %s: %q", ErrUnmappedColumn, src.Table, h)
		}
		columns[i] = name
	}
	if err := checkColumns(src, columns); err != nil {
		return nil, err
	}

	schema := make(map[string]Column, len(src.Schema.Columns))
	for _, c := range src.Schema.Columns {
		schema[c.Name] = c
	}

	table := &Table{Columns: columns}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("ingest: %s: line %d: %w", src.Table, line, err)
		}
		row := make([]any, len(columns))
		for i, raw := range record {
			col := columns[i]
			if src.DateField && col == "date" {
				raw, err = convertDate(raw)
				if err != nil {
					return nil, fmt.Errorf("%w: %s: line %d: %v", ErrSchema, src.Table, line, err)
				}
			}
			def, ok := schema[col]
			if !ok {
				row[i] = raw
				continue
			}
			v, err := p.convert(def, raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: line %d: column %s: %v", ErrSchema, src.Table, line, col, err)
			}
			row[i] = v
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func checkColumns(src Source, columns []string) error {
	present := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, dup := present[c]; dup {
			return fmt.Errorf("%w: %s: column %s mapped twice", ErrSchema, src.Table, c)
		}
		present[c] = struct{}{}
	}
	var missing []string
	for _, c := range src.Schema.Columns {
		if _, ok := present[c.Name]; !ok {
			missing = append(missing, c.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s: %s", ledger.ErrMissingColumn, src.Table, strings.Join(missing, ", "))
	}
	if src.Schema.Strict && len(columns) != len(src.Schema.Columns) {
		declared := make(map[string]struct{}, len(src.Schema.Columns))
		for _, c := range src.Schema.Columns {
			declared[c.Name] = struct{}{}
		}
		var extra []string
		for _, c := range columns {
			if _, ok := declared[c]; !ok {
				extra = append(extra, c)
			}
		}
		sort.Strings(extra)
		return fmt.Errorf("%w: %s: undeclared columns %s", ErrSchema, src.Table, strings.Join(extra, ", "))
	}
	return nil
}

func convertDate(raw string) (string, error) {
	t, err := time.Parse(exportDateLayout, strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("date %q: %w", raw, err)
	}
	return t.Format(tableDateLayout), nil
}

func (p *Parser) convert(def Column, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	var v any
	switch def.Type {
	case TypeString:
		v = raw
	case TypeInt:
		n, err := parseInt(raw)
		if err != nil {
			return nil, err
		}
		v = n
	case TypeFloat:
		if raw == "" {
			return nil, errors.New("empty value")
		}
		d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
		if err != nil {
			return nil, err
		}
		v = d
	default:
		return nil, fmt.Errorf("unknown type %q", def.Type)
	}
	if def.Check != "" {
		checked := v
		if d, ok := v.(decimal.Decimal); ok {
			checked = d.InexactFloat64()
		}
		if err := p.validate.Var(checked, def.Check); err != nil {
			return nil, fmt.Errorf("check %q failed for %q", def.Check, raw)
		}
	}
	return v, nil
}

// parseInt accepts "2024" and integral floats such as "2024.0" that spreadsheet exports
// produce for numeric codes.
func parseInt(raw string) (int64, error) {
	if raw == "" {
		return 0, errors.New("empty value")
	}
	raw = strings.ReplaceAll(raw, ",", "")
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || !d.IsInteger() {
		return 0, fmt.Errorf("not an integer: %q", raw)
	}
	return d.IntPart(), nil
}
