package fiscal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonthOfAndCalendar(t *testing.T) {
	for year := 2022; year <= 2025; year++ {
		for month := time.January; month <= time.December; month++ {
			m := MonthOf(year, month)
			require.Equal(t, Year(year, month), m.Year)
			gotYear, gotMonth := m.Calendar()
			require.Equal(t, year, gotYear)
			require.Equal(t, month, gotMonth)
		}
	}

	require.Equal(t, Month{Year: 2024, Ordinal: 0}, MonthOf(2023, time.October))
	require.Equal(t, Month{Year: 2024, Ordinal: 11}, MonthOf(2024, time.September))
}

func TestMonthCol(t *testing.T) {
	m := Month{Year: 2024, Ordinal: 3}
	require.Equal(t, "202403", m.Col())

	parsed, err := ParseMonthCol("202403")
	require.NoError(t, err)
	require.Equal(t, m, parsed)

	for _, bad := range []string{"0", "2024", "202412", "20x403", "2024-3"} {
		_, err := ParseMonthCol(bad)
		require.ErrorIs(t, err, ErrLookup, bad)
	}
}

func TestWindow(t *testing.T) {
	w := Month{Year: 2024, Ordinal: 7}.Window()
	require.Equal(t, Window{Year: 2024, Quarter: 3}, w)
	require.Equal(t, "2024 Q3", w.Label())
	require.Equal(t, "20243", w.Key())

	months := w.Months()
	require.Equal(t, []string{"202406", "202407", "202408"}, []string{months[0].Col(), months[1].Col(), months[2].Col()})
	require.True(t, w.Contains(Month{Year: 2024, Ordinal: 8}))
	require.False(t, w.Contains(Month{Year: 2024, Ordinal: 9}))

	require.Equal(t, Window{Year: 2024, Quarter: 2}, w.Previous())
	require.Equal(t, Window{Year: 2023, Quarter: 4}, Window{Year: 2024, Quarter: 1}.Previous())
	require.True(t, Window{Year: 2023, Quarter: 4}.Before(Window{Year: 2024, Quarter: 1}))

	_, err := NewWindow(2024, 5)
	require.ErrorIs(t, err, ErrQuarterRange)
}

func TestPositionOf(t *testing.T) {
	pos := PositionOf(time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC))
	require.Equal(t, Position{
		FiscalYear: 2024,
		Quarter:    "2024 Q2",
		MonthCol:   "202403",
		MonthName:  "January",
		Previous:   "2024 Q1",
	}, pos)

	pos = PositionOf(time.Date(2023, time.October, 1, 0, 0, 0, 0, time.UTC))
	require.Equal(t, "2024 Q1", pos.Quarter)
	require.Equal(t, "2023 Q4", pos.Previous)
}
