package bond

import (
	"fmt"

	"github.com/bondtrack/bondtrack/internal/ledger"
	"github.com/bondtrack/bondtrack/internal/publish"
	"github.com/bondtrack/bondtrack/internal/store"
)

// Source tables read by the pipeline.
const (
	TableExpenses2020     = "expenses_obligated_2020_bond_raw"
	TableExpensesAllBonds = "expenses_obligated_all_bonds_raw"
	TableCrosswalk        = "bond_2020_aims_to_dashboard"
	TableBaseline         = "bond_2020_baseline_spend"
	TableCurrentPlan      = "bond_2020_current_fy_spend_plan"
	TablePreviousPlan     = "bond_2020_previous_fy_spend_plan"
	TableProgramNames     = "all_bonds_program_names"
	TableLookup           = "all_bonds_aims_to_dashboard"
)

const (
	colEntity    = "aims_dept_prog_act"
	colDashboard = "dashboard_deptfundprogact"
	colDate      = "date"
	colFY        = "fiscal_year"
)

// Tables lists every source table in load order.
var Tables = []string{
	TableExpenses2020,
	TableExpensesAllBonds,
	TableCrosswalk,
	TableBaseline,
	TableCurrentPlan,
	TablePreviousPlan,
	TableProgramNames,
	TableLookup,
}

// layout describes how an expenses table forms its entity key and which columns travel
// with the entity into the published series.
type layout struct {
	key      []string
	describe []string
	byFY     bool
}

var (
	layout2020 = layout{
		key:      []string{"department", "fund", "division", "group"},
		describe: []string{"department", "fund", "division", "group"},
		byFY:     true,
	}
	layoutAllBonds = layout{
		key: []string{"department", "fund_code", "division_code", "group_code"},
		describe: []string{
			"department", "department_long_name",
			"fund_code", "fund_long_name",
			"division_code", "division_long_name",
			"group_code", "group_long_name",
		},
	}
)

// expenseRecords converts raw expense rows into ledger records. The descriptive columns
// of the first row seen for each entity are returned alongside.
func expenseRecords(table string, rows []store.Row, l layout) ([]ledger.Record, map[string]publish.Row, error) {
	records := make([]ledger.Record, 0, len(rows))
	attrs := make(map[string]publish.Row)
	for i, row := range rows {
		parts, err := row.Strings(l.key...)
		if err != nil {
			return nil, nil, fmt.Errorf("bond: %s row %d: %w", table, i, err)
		}
		date, err := row.Time(colDate)
		if err != nil {
			return nil, nil, fmt.Errorf("bond: %s row %d: %w", table, i, err)
		}
		expenses, err := row.Decimal(ledger.MetricExpenses)
		if err != nil {
			return nil, nil, fmt.Errorf("bond: %s row %d: %w", table, i, err)
		}
		obligated, err := row.Decimal(ledger.MetricObligated)
		if err != nil {
			return nil, nil, fmt.Errorf("bond: %s row %d: %w", table, i, err)
		}
		rec := ledger.Record{
			Entity:  ledger.EntityKey(parts...),
			Period:  ledger.PeriodOf(date),
			Metrics: ledger.Metrics{ledger.MetricExpenses: expenses, ledger.MetricObligated: obligated},
		}
		if l.byFY {
			if rec.FiscalYear, err = row.Int(colFY); err != nil {
				return nil, nil, fmt.Errorf("bond: %s row %d: %w", table, i, err)
			}
		} else {
			rec.FiscalYear = rec.Period.FiscalYear()
		}
		if _, ok := attrs[rec.Entity]; !ok {
			desc := make(publish.Row, len(l.describe))
			for _, col := range l.describe {
				desc[col] = row[col]
			}
			attrs[rec.Entity] = desc
		}
		records = append(records, rec)
	}
	return records, attrs, nil
}

// amountRecords reads baseline and spend plan rows, already keyed on dashboard ids.
func amountRecords(table string, rows []store.Row) ([]ledger.Record, error) {
	records := make([]ledger.Record, 0, len(rows))
	for i, row := range rows {
		entity, err := row.String(colDashboard)
		if err != nil {
			return nil, fmt.Errorf("bond: %s row %d: %w", table, i, err)
		}
		date, err := row.Time(colDate)
		if err != nil {
			return nil, fmt.Errorf("bond: %s row %d: %w", table, i, err)
		}
		amount, err := row.Decimal(ledger.MetricAmount)
		if err != nil {
			return nil, fmt.Errorf("bond: %s row %d: %w", table, i, err)
		}
		p := ledger.PeriodOf(date)
		records = append(records, ledger.Record{
			Entity:     entity,
			Period:     p,
			FiscalYear: p.FiscalYear(),
			Metrics:    ledger.Metrics{ledger.MetricAmount: amount},
		})
	}
	return records, nil
}

func crosswalkEntries(rows []store.Row) ([]ledger.CrosswalkEntry, error) {
	entries := make([]ledger.CrosswalkEntry, 0, len(rows))
	for i, row := range rows {
		pair, err := row.Strings(colEntity, colDashboard)
		if err != nil {
			return nil, fmt.Errorf("bond: %s row %d: %w", TableCrosswalk, i, err)
		}
		entries = append(entries, ledger.CrosswalkEntry{Source: pair[0], Target: pair[1]})
	}
	return entries, nil
}

// reportingYear is the latest fiscal year covered by the current spend plan.
func reportingYear(plan []ledger.Record) (int, error) {
	fy := 0
	for _, r := range plan {
		if r.FiscalYear > fy {
			fy = r.FiscalYear
		}
	}
	if fy == 0 {
		return 0, fmt.Errorf("%w: %s is empty", ledger.ErrNoData, TableCurrentPlan)
	}
	return fy, nil
}
