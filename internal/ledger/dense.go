package ledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/bondtrack/bondtrack/internal/fiscal"
)

// Metric names shared by the pipelines.
const (
	MetricExpenses  = "expenses"
	MetricObligated = "obligated"
	MetricAmount    = "amount"
)

// GridSpec declares which metrics to zero-fill and whether the grid is repeated per
// fiscal year.
type GridSpec struct {
	Metrics      []string
	ByFiscalYear bool
}

type gridKey struct {
	entity string
	period Period
	year   int
}

func (s GridSpec) key(r Record) gridKey {
	k := gridKey{entity: r.Entity, period: r.Period}
	if s.ByFiscalYear {
		k.year = r.FiscalYear
	}
	return k
}

// Densify completes a sparse table so that every entity has exactly one row per period
// (and per fiscal year when spec.ByFiscalYear is set). Observed rows sharing a key are
// summed first. The period axis runs contiguously from the start of the fiscal year of
// the earliest observation to the latest observation. Missing cells become synthetic
// rows with every listed metric set to zero.
func Densify(records []Record, spec GridSpec) ([]Record, error) {
	if len(spec.Metrics) == 0 {
		return nil, fmt.Errorf("%w: no metrics to densify", ErrMissingColumn)
	}
	if len(records) == 0 {
		return []Record{}, nil
	}

	rows := make([]Record, 0, len(records))
	observed := make(map[gridKey]int, len(records))
	entities := make(map[string]struct{})
	years := make(map[int]struct{})
	var first, last Period

	for i, r := range records {
		if r.Entity == "" {
			return nil, fmt.Errorf("%w: entity key missing on row %d", ErrMissingColumn, i)
		}
		if r.Period.IsZero() {
			return nil, fmt.Errorf("%w: period missing on row %d", ErrMissingColumn, i)
		}
		if spec.ByFiscalYear && r.FiscalYear == 0 {
			return nil, fmt.Errorf("%w: fiscal year missing on row %d", ErrMissingColumn, i)
		}

		key := spec.key(r)
		if idx, ok := observed[key]; ok {
			merged := rows[idx].Metrics
			for name, v := range r.Metrics {
				merged[name] = merged.Get(name).Add(v)
			}
			continue
		}

		row := r.Clone()
		row.Synthetic = false
		if row.Metrics == nil {
			row.Metrics = Metrics{}
		}
		for _, name := range spec.Metrics {
			if _, ok := row.Metrics[name]; !ok {
				row.Metrics[name] = decimal.Zero
			}
		}
		observed[key] = len(rows)
		rows = append(rows, row)

		entities[r.Entity] = struct{}{}
		years[key.year] = struct{}{}
		if len(rows) == 1 || r.Period.Before(first) {
			first = r.Period
		}
		if len(rows) == 1 || last.Before(r.Period) {
			last = r.Period
		}
	}

	axis := periodAxis(first, last)
	entityAxis := sortedKeys(entities)
	yearAxis := make([]int, 0, len(years))
	for y := range years {
		yearAxis = append(yearAxis, y)
	}
	sort.Ints(yearAxis)

	for _, year := range yearAxis {
		for _, p := range axis {
			for _, entity := range entityAxis {
				key := gridKey{entity: entity, period: p, year: year}
				if _, ok := observed[key]; ok {
					continue
				}
				fy := year
				if !spec.ByFiscalYear {
					fy = p.FiscalYear()
				}
				metrics := make(Metrics, len(spec.Metrics))
				for _, name := range spec.Metrics {
					metrics[name] = decimal.Zero
				}
				observed[key] = len(rows)
				rows = append(rows, Record{
					Entity:     entity,
					Period:     p,
					FiscalYear: fy,
					Metrics:    metrics,
					Synthetic:  true,
				})
			}
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if spec.ByFiscalYear && a.FiscalYear != b.FiscalYear {
			return a.FiscalYear < b.FiscalYear
		}
		if a.Period != b.Period {
			return a.Period.Before(b.Period)
		}
		return a.Entity < b.Entity
	})
	return rows, nil
}

// periodAxis lists every month from the fiscal year start preceding first up to last.
func periodAxis(first, last Period) []Period {
	start := Period{Year: first.FiscalYear() - 1, Month: fiscal.StartMonth}
	var out []Period
	for p := start; !last.Before(p); p = p.Next() {
		out = append(out, p)
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
