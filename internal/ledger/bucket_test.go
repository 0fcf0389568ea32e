package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBucketLabel(t *testing.T) {
	cases := []struct {
		name   string
		rowFY  int
		period Period
		want   string
	}{
		{"first month", 2024, Period{2023, time.October}, "2023 10"},
		{"last month", 2024, Period{2024, time.September}, "2024 09"},
		{"spill over", 2024, Period{2024, time.November}, "2024 09"},
		{"before start", 2024, Period{2023, time.March}, "2023 10"},
		{"other year", 2022, Period{2022, time.May}, "0FY 22"},
		{"other year, any period", 2025, Period{2024, time.January}, "0FY 25"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, BucketLabel(2024, tc.rowFY, tc.period))
		})
	}
}

func TestPlanBucketLabel(t *testing.T) {
	require.Equal(t, "2024 03", PlanBucketLabel(2024, Period{2024, time.March}))
	require.Equal(t, "0FY 25", PlanBucketLabel(2024, Period{2024, time.October}))
	require.Equal(t, "0FY 23", PlanBucketLabel(2024, Period{2023, time.September}))
}

func TestBucketLabelCardinality(t *testing.T) {
	const reportFY = 2024
	regular := make(map[string]struct{})
	catchAll := make(map[int]map[string]struct{})

	for rowFY := 2019; rowFY <= 2027; rowFY++ {
		for p := (Period{2018, time.January}); p.Year < 2029; p = p.Next() {
			label := BucketLabel(reportFY, rowFY, p)
			if IsCatchAll(label) {
				require.NotEqual(t, reportFY, rowFY)
				if catchAll[rowFY] == nil {
					catchAll[rowFY] = make(map[string]struct{})
				}
				catchAll[rowFY][label] = struct{}{}
				continue
			}
			regular[label] = struct{}{}
		}
	}

	require.LessOrEqual(t, len(regular), 12)
	for fy, labels := range catchAll {
		require.Len(t, labels, 1, "fiscal year %d", fy)
	}
}

func TestCatchAllLabel(t *testing.T) {
	require.Equal(t, "0FY 05", CatchAllLabel(2005))
	require.True(t, IsCatchAll("0FY 05"))
	require.False(t, IsCatchAll("2024 09"))
}
