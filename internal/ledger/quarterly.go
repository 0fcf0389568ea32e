package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bondtrack/bondtrack/internal/fiscal"
)

const (
	// PriorSpendCol is the month column collecting all spend before a quarter window.
	PriorSpendCol = "0"
	// PriorSpendLabel is the display name of the prior spend column.
	PriorSpendLabel = "Prior Spend"
)

// MonthlyAmount is an amount keyed by entity and fiscal month. Actual expenses and
// spend plan entries share this shape.
type MonthlyAmount struct {
	Entity string
	Month  fiscal.Month
	Amount decimal.Decimal
}

// QuarterRow is one line of a quarter table. The prior spend row carries no running
// sums; the three month rows accumulate expenses and plan within the quarter.
type QuarterRow struct {
	Entity           string           `json:"unit_code"`
	MonthCol         string           `json:"month_col"`
	MonthName        string           `json:"month_name"`
	Expenses         decimal.Decimal  `json:"expenses"`
	SpendPlan        decimal.Decimal  `json:"spend_plan"`
	SumExpenses      *decimal.Decimal `json:"sum_expenses"`
	SumPlanned       *decimal.Decimal `json:"sum_planned"`
	QuarterSelection string           `json:"quarter_selection"`
}

// QuarterTable is the reshaped output for one quarter window.
type QuarterTable struct {
	Window fiscal.Window
	Label  string
	Rows   []QuarterRow
}

type monthKey struct {
	entity string
	month  fiscal.Month
}

// ReshapeQuarters builds the current and previous quarter tables. The current window
// is the one holding the latest observed month. Each table has, per entity, a prior
// spend row followed by exactly three month rows; months without data are zero.
func ReshapeQuarters(actuals, plan []MonthlyAmount) (QuarterTable, QuarterTable, error) {
	if len(actuals) == 0 {
		return QuarterTable{}, QuarterTable{}, ErrNoData
	}

	records := make([]Record, 0, len(actuals))
	for i, a := range actuals {
		if a.Entity == "" {
			return QuarterTable{}, QuarterTable{}, fmt.Errorf("%w: entity key missing on row %d", ErrMissingColumn, i)
		}
		records = append(records, Record{
			Entity:     a.Entity,
			Period:     PeriodFromFiscal(a.Month),
			FiscalYear: a.Month.Year,
			Metrics:    Metrics{MetricExpenses: a.Amount},
		})
	}
	dense, err := Densify(records, GridSpec{Metrics: []string{MetricExpenses}})
	if err != nil {
		return QuarterTable{}, QuarterTable{}, err
	}

	amounts := make(map[monthKey]decimal.Decimal, len(dense))
	entitySet := make(map[string]struct{})
	var latest fiscal.Month
	for i, r := range dense {
		m := r.Period.FiscalMonth()
		amounts[monthKey{entity: r.Entity, month: m}] = r.Metrics.Get(MetricExpenses)
		entitySet[r.Entity] = struct{}{}
		if i == 0 || latest.Before(m) {
			latest = m
		}
	}
	entities := sortedKeys(entitySet)

	planned := make(map[monthKey]decimal.Decimal, len(plan))
	for _, p := range plan {
		key := monthKey{entity: p.Entity, month: p.Month}
		planned[key] = planned[key].Add(p.Amount)
	}

	current := latest.Window()
	previous := current.Previous()
	return quarterTable(current, entities, amounts, planned), quarterTable(previous, entities, amounts, planned), nil
}

func quarterTable(w fiscal.Window, entities []string, amounts, planned map[monthKey]decimal.Decimal) QuarterTable {
	label := w.Label()
	months := w.Months()
	table := QuarterTable{Window: w, Label: label, Rows: make([]QuarterRow, 0, len(entities)*4)}

	for _, entity := range entities {
		prior := decimal.Zero
		for key, v := range amounts {
			if key.entity == entity && key.month.Window().Before(w) {
				prior = prior.Add(v)
			}
		}
		table.Rows = append(table.Rows, QuarterRow{
			Entity:           entity,
			MonthCol:         PriorSpendCol,
			MonthName:        PriorSpendLabel,
			Expenses:         prior,
			SpendPlan:        prior,
			QuarterSelection: label,
		})

		expenses := make([]decimal.Decimal, len(months))
		plans := make([]decimal.Decimal, len(months))
		for i, m := range months {
			key := monthKey{entity: entity, month: m}
			expenses[i] = amounts[key]
			plans[i] = planned[key]
		}
		sumExpenses := runningSums(expenses)
		sumPlanned := runningSums(plans)
		for i, m := range months {
			name, _ := fiscal.DecodeMonth(m.OrdinalString())
			table.Rows = append(table.Rows, QuarterRow{
				Entity:           entity,
				MonthCol:         m.Col(),
				MonthName:        name,
				Expenses:         expenses[i],
				SpendPlan:        plans[i],
				SumExpenses:      &sumExpenses[i],
				SumPlanned:       &sumPlanned[i],
				QuarterSelection: label,
			})
		}
	}
	return table
}
