package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bondtrack/bondtrack/internal/fiscal"
)

func monthly(entity string, fy, ordinal int, amount int64) MonthlyAmount {
	return MonthlyAmount{
		Entity: entity,
		Month:  fiscal.Month{Year: fy, Ordinal: ordinal},
		Amount: decimal.NewFromInt(amount),
	}
}

type quarterLine struct {
	col, name, exp, plan, sumExp, sumPlan string
}

func flatten(rows []QuarterRow) []quarterLine {
	out := make([]quarterLine, 0, len(rows))
	for _, r := range rows {
		line := quarterLine{col: r.MonthCol, name: r.MonthName, exp: r.Expenses.String(), plan: r.SpendPlan.String()}
		if r.SumExpenses != nil {
			line.sumExp = r.SumExpenses.String()
		}
		if r.SumPlanned != nil {
			line.sumPlan = r.SumPlanned.String()
		}
		out = append(out, line)
	}
	return out
}

func TestReshapeQuartersPadsCurrentWindow(t *testing.T) {
	actuals := []MonthlyAmount{
		monthly("A", 2024, 0, 10),
		monthly("A", 2024, 3, 20),
	}
	plan := []MonthlyAmount{
		monthly("A", 2024, 3, 15),
		monthly("A", 2024, 3, 1),
		monthly("A", 2024, 4, 5),
	}

	current, previous, err := ReshapeQuarters(actuals, plan)
	require.NoError(t, err)

	require.Equal(t, fiscal.Window{Year: 2024, Quarter: 2}, current.Window)
	require.Equal(t, "2024 Q2", current.Label)
	require.Equal(t, []quarterLine{
		{col: PriorSpendCol, name: PriorSpendLabel, exp: "10", plan: "10"},
		{col: "202403", name: "January", exp: "20", plan: "16", sumExp: "20", sumPlan: "16"},
		{col: "202404", name: "February", exp: "0", plan: "5", sumExp: "20", sumPlan: "21"},
		{col: "202405", name: "March", exp: "0", plan: "0", sumExp: "20", sumPlan: "21"},
	}, flatten(current.Rows))
	for _, r := range current.Rows {
		require.Equal(t, "2024 Q2", r.QuarterSelection)
	}

	require.Equal(t, "2024 Q1", previous.Label)
	require.Equal(t, []quarterLine{
		{col: PriorSpendCol, name: PriorSpendLabel, exp: "0", plan: "0"},
		{col: "202400", name: "October", exp: "10", plan: "0", sumExp: "10", sumPlan: "0"},
		{col: "202401", name: "November", exp: "0", plan: "0", sumExp: "10", sumPlan: "0"},
		{col: "202402", name: "December", exp: "0", plan: "0", sumExp: "10", sumPlan: "0"},
	}, flatten(previous.Rows))
}

func TestReshapeQuartersWrapsFiscalYear(t *testing.T) {
	current, previous, err := ReshapeQuarters([]MonthlyAmount{
		monthly("A", 2024, 11, 3),
		monthly("B", 2025, 1, 4),
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "2025 Q1", current.Label)
	require.Equal(t, "2024 Q4", previous.Label)

	// one prior row plus three months for each entity
	require.Len(t, current.Rows, 8)
	require.Len(t, previous.Rows, 8)
	require.Equal(t, "A", current.Rows[0].Entity)
	require.Equal(t, "3", current.Rows[0].Expenses.String())
	require.Equal(t, "B", current.Rows[4].Entity)
	require.Equal(t, "0", current.Rows[4].Expenses.String())
}

func TestReshapeQuartersErrors(t *testing.T) {
	_, _, err := ReshapeQuarters(nil, nil)
	require.ErrorIs(t, err, ErrNoData)

	_, _, err = ReshapeQuarters([]MonthlyAmount{monthly("", 2024, 1, 1)}, nil)
	require.ErrorIs(t, err, ErrMissingColumn)
}
