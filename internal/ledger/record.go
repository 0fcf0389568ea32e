// Package ledger implements the fiscal aggregation engine: densification, crosswalk
// resolution, cumulative totals, fiscal-window bucketing and quarterly reshaping. All
// functions are pure; inputs are never mutated.
package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bondtrack/bondtrack/internal/fiscal"
)

var (
	// ErrMissingColumn indicates that a required key or metric column is absent.
	ErrMissingColumn = errors.New("ledger: missing required column")
	// ErrNoData is returned when a transform needs at least one row.
	ErrNoData = errors.New("ledger: no data")
)

// Period is a calendar month bucket.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf truncates t to its calendar month.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// IsZero reports whether p is unset.
func (p Period) IsZero() bool {
	return p.Year == 0 || p.Month == 0
}

// Before reports whether p is earlier than other.
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// Next returns the following month.
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// FiscalYear returns the fiscal year containing p.
func (p Period) FiscalYear() int {
	return fiscal.Year(p.Year, p.Month)
}

// FiscalMonth returns p on the fiscal calendar.
func (p Period) FiscalMonth() fiscal.Month {
	return fiscal.MonthOf(p.Year, p.Month)
}

// Date returns the first day of the month in UTC.
func (p Period) Date() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// String renders p as "2006-01".
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// PeriodFromFiscal converts a fiscal month back to its calendar period.
func PeriodFromFiscal(m fiscal.Month) Period {
	year, month := m.Calendar()
	return Period{Year: year, Month: month}
}

// Metrics holds named numeric measures such as "expenses" or "obligated".
type Metrics map[string]decimal.Decimal

// Clone returns a copy of m.
func (m Metrics) Clone() Metrics {
	out := make(Metrics, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Get returns the named metric, zero when absent.
func (m Metrics) Get(name string) decimal.Decimal {
	if v, ok := m[name]; ok {
		return v
	}
	return decimal.Zero
}

// Record is one ledger observation keyed by entity and period.
type Record struct {
	Entity     string
	Target     *string // crosswalk target key; nil when unmapped or unresolved
	Period     Period
	FiscalYear int // fiscal year reported by the source row
	Metrics    Metrics
	Running    Metrics // running totals per metric, filled by Cumulate
	Synthetic  bool    // zero row created by Densify
}

// Clone deep-copies r so transforms never share maps with their input.
func (r Record) Clone() Record {
	out := r
	if r.Target != nil {
		target := *r.Target
		out.Target = &target
	}
	if r.Metrics != nil {
		out.Metrics = r.Metrics.Clone()
	}
	if r.Running != nil {
		out.Running = r.Running.Clone()
	}
	return out
}

// EntityKey concatenates organizational sub-codes without a separator. Different splits
// of the same characters ("12"+"3" and "1"+"23") collide; crosswalk tables are keyed on
// this exact form so no separator is inserted.
func EntityKey(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p)
	}
	return b.String()
}

func cloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
