package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func expenseRow(entity string, year int, month time.Month, amount int64) Record {
	p := Period{Year: year, Month: month}
	return Record{
		Entity:     entity,
		Period:     p,
		FiscalYear: p.FiscalYear(),
		Metrics:    Metrics{MetricExpenses: decimal.NewFromInt(amount)},
	}
}

func TestDensifyFillsLeadingMonthAndCumulates(t *testing.T) {
	in := []Record{
		expenseRow("A", 2023, time.November, 100),
		expenseRow("A", 2023, time.December, 50),
	}

	dense, err := Densify(in, GridSpec{Metrics: []string{MetricExpenses}, ByFiscalYear: true})
	require.NoError(t, err)
	require.Len(t, dense, 3)

	require.Equal(t, Period{Year: 2023, Month: time.October}, dense[0].Period)
	require.True(t, dense[0].Synthetic)
	require.True(t, dense[0].Metrics.Get(MetricExpenses).IsZero())
	for _, r := range dense {
		require.Equal(t, 2024, r.FiscalYear)
	}

	cum := Cumulate(dense, CumulateOptions{Metrics: []string{MetricExpenses}, ByFiscalYear: true})
	var got []string
	for _, r := range cum {
		got = append(got, r.Running.Get(MetricExpenses).String())
	}
	require.Equal(t, []string{"0", "100", "150"}, got)

	// input untouched
	require.Nil(t, in[0].Running)
	require.Len(t, in, 2)
}

func TestDensifyCompleteness(t *testing.T) {
	in := []Record{
		expenseRow("A", 2024, time.January, 10),
		expenseRow("B", 2023, time.November, 5),
		expenseRow("C", 2023, time.December, 1),
	}

	dense, err := Densify(in, GridSpec{Metrics: []string{MetricExpenses}})
	require.NoError(t, err)

	// Oct 2023 .. Jan 2024 for three entities.
	require.Len(t, dense, 12)
	seen := make(map[gridKey]int)
	for _, r := range dense {
		seen[gridKey{entity: r.Entity, period: r.Period}]++
	}
	for _, entity := range []string{"A", "B", "C"} {
		end := Period{Year: 2024, Month: time.January}
		for p := (Period{Year: 2023, Month: time.October}); !end.Before(p); p = p.Next() {
			require.Equal(t, 1, seen[gridKey{entity: entity, period: p}], "%s %s", entity, p)
		}
	}
}

func TestDensifyKeepsObservedOverSynthetic(t *testing.T) {
	in := []Record{
		expenseRow("A", 2023, time.October, 7),
		expenseRow("B", 2023, time.November, 3),
	}
	dense, err := Densify(in, GridSpec{Metrics: []string{MetricExpenses}})
	require.NoError(t, err)

	for _, r := range dense {
		if r.Entity == "A" && r.Period.Month == time.October {
			require.False(t, r.Synthetic)
			require.Equal(t, "7", r.Metrics.Get(MetricExpenses).String())
		}
	}
}

func TestDensifySumsDuplicateObservations(t *testing.T) {
	in := []Record{
		expenseRow("A", 2023, time.October, 7),
		expenseRow("A", 2023, time.October, 3),
	}
	dense, err := Densify(in, GridSpec{Metrics: []string{MetricExpenses}})
	require.NoError(t, err)
	require.Len(t, dense, 1)
	require.Equal(t, "10", dense[0].Metrics.Get(MetricExpenses).String())
}

func TestDensifyPerFiscalYear(t *testing.T) {
	late := expenseRow("A", 2023, time.November, 4)
	late.FiscalYear = 2023 // posted against the prior year
	in := []Record{
		expenseRow("A", 2023, time.October, 1),
		late,
		expenseRow("B", 2023, time.November, 2),
	}

	dense, err := Densify(in, GridSpec{Metrics: []string{MetricExpenses}, ByFiscalYear: true})
	require.NoError(t, err)
	// two fiscal years x two periods x two entities
	require.Len(t, dense, 8)
	for i := 1; i < len(dense); i++ {
		require.LessOrEqual(t, dense[i-1].FiscalYear, dense[i].FiscalYear)
	}
}

func TestDensifyAddsMissingMetricColumns(t *testing.T) {
	in := []Record{expenseRow("A", 2024, time.March, 1)}
	dense, err := Densify(in, GridSpec{Metrics: []string{MetricExpenses, MetricObligated}})
	require.NoError(t, err)
	for _, r := range dense {
		_, ok := r.Metrics[MetricObligated]
		require.True(t, ok)
	}
}

func TestDensifyMissingColumns(t *testing.T) {
	_, err := Densify([]Record{{Period: Period{Year: 2024, Month: time.May}}}, GridSpec{Metrics: []string{MetricExpenses}})
	require.ErrorIs(t, err, ErrMissingColumn)

	_, err = Densify([]Record{{Entity: "A"}}, GridSpec{Metrics: []string{MetricExpenses}})
	require.ErrorIs(t, err, ErrMissingColumn)

	_, err = Densify([]Record{expenseRow("A", 2024, time.May, 1)}, GridSpec{})
	require.ErrorIs(t, err, ErrMissingColumn)

	noYear := expenseRow("A", 2024, time.May, 1)
	noYear.FiscalYear = 0
	_, err = Densify([]Record{noYear}, GridSpec{Metrics: []string{MetricExpenses}, ByFiscalYear: true})
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestDensifyEmpty(t *testing.T) {
	dense, err := Densify(nil, GridSpec{Metrics: []string{MetricExpenses}})
	require.NoError(t, err)
	require.Empty(t, dense)
}
