package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func targeted(target string, year int, month time.Month, fy int, amount int64) Record {
	r := expenseRow("src-"+target, year, month, amount)
	r.FiscalYear = fy
	if target != "" {
		r.Target = &target
	}
	return r
}

func amountRow(entity string, year int, month time.Month, amount int64) Record {
	return Record{
		Entity:  entity,
		Period:  Period{Year: year, Month: month},
		Metrics: Metrics{MetricAmount: decimal.NewFromInt(amount)},
	}
}

func TestSummarize(t *testing.T) {
	rows := Summarize(SummaryInput{
		FiscalYear: 2024,
		Expenses: []Record{
			targeted("X", 2023, time.October, 2024, 10),
			targeted("X", 2023, time.November, 2024, 5),
			targeted("", 2023, time.October, 2024, 3),
			targeted("X", 2023, time.May, 2023, 7),
			targeted("X", 2024, time.October, 2025, 11),
		},
		Baseline: []Record{amountRow("X", 2023, time.October, 20)},
		Planned: []Record{
			amountRow("X", 2023, time.November, 4),
			amountRow("Y", 2023, time.October, 9),
		},
		Drop: []string{CatchAllLabel(2025)},
	})

	type flat struct {
		bucket, entity                     string
		exp, sumExp, sumBase, sumPlan, pln string
	}
	var got []flat
	for _, r := range rows {
		entity := "<unmapped>"
		if r.Entity != nil {
			entity = *r.Entity
		}
		got = append(got, flat{
			bucket:  r.Bucket,
			entity:  entity,
			exp:     r.Expenses.String(),
			pln:     r.Planned.String(),
			sumExp:  r.SumExpenses.String(),
			sumBase: r.SumBaseline.String(),
			sumPlan: r.SumPlanned.String(),
		})
	}

	require.Equal(t, []flat{
		{bucket: "0FY 23", entity: "X", exp: "7", pln: "0", sumExp: "7", sumBase: "0", sumPlan: "0"},
		{bucket: "2023 10", entity: "X", exp: "10", pln: "0", sumExp: "17", sumBase: "20", sumPlan: "0"},
		{bucket: "2023 10", entity: "<unmapped>", exp: "3", pln: "0", sumExp: "3", sumBase: "0", sumPlan: "0"},
		{bucket: "2023 11", entity: "X", exp: "5", pln: "4", sumExp: "22", sumBase: "20", sumPlan: "4"},
	}, got)
}

func TestSummarizeEmpty(t *testing.T) {
	require.Empty(t, Summarize(SummaryInput{FiscalYear: 2024}))
}
