package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// SummaryInput feeds the fiscal year summary table.
type SummaryInput struct {
	FiscalYear int
	// Expenses are crosswalked ledger rows; they are grouped by Target.
	Expenses []Record
	// Baseline and Planned are already keyed in the target scheme and read the
	// MetricAmount measure.
	Baseline []Record
	Planned  []Record
	// Drop removes whole buckets from the result, e.g. the following year's catch-all.
	Drop []string
}

// SummaryRow is one (bucket, entity) line of the summary table.
type SummaryRow struct {
	Bucket      string          `json:"table_col"`
	Entity      *string         `json:"dashboard_deptfundprogact"`
	Expenses    decimal.Decimal `json:"Expenses"`
	Baseline    decimal.Decimal `json:"Baseline"`
	Planned     decimal.Decimal `json:"Planned"`
	SumExpenses decimal.Decimal `json:"Sum_expenses"`
	SumBaseline decimal.Decimal `json:"Sum_baseline"`
	SumPlanned  decimal.Decimal `json:"Sum_planned"`
}

type summaryKey struct {
	bucket   string
	entity   string
	unmapped bool
}

// Summarize buckets expenses, baseline and plan amounts relative to in.FiscalYear and
// derives cumulative columns per entity in bucket order. Rows exist for every
// (bucket, entity) seen in expenses or baseline; plan amounts only attach to those rows.
func Summarize(in SummaryInput) []SummaryRow {
	rows := make(map[summaryKey]*SummaryRow)
	get := func(key summaryKey, create bool) *SummaryRow {
		if row, ok := rows[key]; ok {
			return row
		}
		if !create {
			return nil
		}
		row := &SummaryRow{Bucket: key.bucket}
		if !key.unmapped {
			entity := key.entity
			row.Entity = &entity
		}
		rows[key] = row
		return row
	}

	for _, r := range in.Baseline {
		key := summaryKey{bucket: PlanBucketLabel(in.FiscalYear, r.Period), entity: r.Entity}
		row := get(key, true)
		row.Baseline = row.Baseline.Add(r.Metrics.Get(MetricAmount))
	}
	for _, r := range in.Expenses {
		key := summaryKey{bucket: BucketLabel(in.FiscalYear, r.FiscalYear, r.Period)}
		if r.Target == nil {
			key.unmapped = true
		} else {
			key.entity = *r.Target
		}
		row := get(key, true)
		row.Expenses = row.Expenses.Add(r.Metrics.Get(MetricExpenses))
	}
	for _, r := range in.Planned {
		key := summaryKey{bucket: PlanBucketLabel(in.FiscalYear, r.Period), entity: r.Entity}
		if row := get(key, false); row != nil {
			row.Planned = row.Planned.Add(r.Metrics.Get(MetricAmount))
		}
	}

	dropped := make(map[string]struct{}, len(in.Drop))
	for _, b := range in.Drop {
		dropped[b] = struct{}{}
	}
	keys := make([]summaryKey, 0, len(rows))
	for k := range rows {
		if _, ok := dropped[k.bucket]; ok {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].bucket != keys[j].bucket {
			return keys[i].bucket < keys[j].bucket
		}
		if keys[i].unmapped != keys[j].unmapped {
			return !keys[i].unmapped
		}
		return keys[i].entity < keys[j].entity
	})

	type totals struct{ expenses, baseline, planned decimal.Decimal }
	running := make(map[summaryKey]*totals)
	out := make([]SummaryRow, 0, len(keys))
	for _, k := range keys {
		row := *rows[k]
		entityKey := summaryKey{entity: k.entity, unmapped: k.unmapped}
		t, ok := running[entityKey]
		if !ok {
			t = &totals{}
			running[entityKey] = t
		}
		t.expenses = t.expenses.Add(row.Expenses)
		t.baseline = t.baseline.Add(row.Baseline)
		t.planned = t.planned.Add(row.Planned)
		row.SumExpenses, row.SumBaseline, row.SumPlanned = t.expenses, t.baseline, t.planned
		out = append(out, row)
	}
	return out
}
