package bond

import (
	"github.com/bondtrack/bondtrack/internal/ledger"
	"github.com/bondtrack/bondtrack/internal/publish"
	"github.com/bondtrack/bondtrack/internal/store"
)

// bookkeeping columns written by ingest that never leave the warehouse.
var internalColumns = map[string]struct{}{
	"batch_id":   {},
	"updated_at": {},
}

// seriesRows renders cumulated records. Synthetic rows carry the entity description of
// the observed rows so every line stays attributable.
func seriesRows(records []ledger.Record, attrs map[string]publish.Row, withFY bool) []publish.Row {
	out := make([]publish.Row, 0, len(records))
	for _, r := range records {
		row := make(publish.Row, len(attrs[r.Entity])+7)
		for k, v := range attrs[r.Entity] {
			row[k] = v
		}
		row[colEntity] = r.Entity
		row[colDate] = publish.FormatDate(r.Period.Date())
		if withFY {
			row[colFY] = r.FiscalYear
		}
		row[ledger.MetricExpenses] = r.Metrics.Get(ledger.MetricExpenses)
		row[ledger.MetricObligated] = r.Metrics.Get(ledger.MetricObligated)
		row["sum_expenses"] = r.Running.Get(ledger.MetricExpenses)
		row["sum_obligated"] = r.Running.Get(ledger.MetricObligated)
		out = append(out, row)
	}
	return out
}

func summaryRows(rows []ledger.SummaryRow) []publish.Row {
	out := make([]publish.Row, 0, len(rows))
	for _, r := range rows {
		var entity any
		if r.Entity != nil {
			entity = *r.Entity
		}
		out = append(out, publish.Row{
			"table_col":    r.Bucket,
			colDashboard:   entity,
			"Expenses":     r.Expenses,
			"Baseline":     r.Baseline,
			"Planned":      r.Planned,
			"Sum_expenses": r.SumExpenses,
			"Sum_baseline": r.SumBaseline,
			"Sum_planned":  r.SumPlanned,
		})
	}
	return out
}

// passThrough republishes a source table as loaded.
func passThrough(rows []store.Row) []publish.Row {
	out := make([]publish.Row, 0, len(rows))
	for _, r := range rows {
		row := make(publish.Row, len(r))
		for k, v := range r {
			if _, skip := internalColumns[k]; skip {
				continue
			}
			row[k] = v
		}
		out = append(out, row)
	}
	return out
}
