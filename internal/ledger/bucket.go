package ledger

import (
	"fmt"
	"strings"
)

const catchAllPrefix = "0FY "

// BucketLabel assigns a display bucket relative to the reporting fiscal year. Rows of the
// reporting year get one label per calendar month ("2023 10" ... "2024 09"); periods
// spilling past the fiscal year end collapse into "{FY} 09", periods before its start
// into "{FY-1} 10". Rows of any other fiscal year share a single "0FY yy" bucket.
func BucketLabel(reportFY, rowFY int, p Period) string {
	if rowFY != reportFY {
		return CatchAllLabel(rowFY)
	}
	switch periodFY := p.FiscalYear(); {
	case periodFY > reportFY:
		return fmt.Sprintf("%d 09", reportFY)
	case periodFY < reportFY:
		return fmt.Sprintf("%d 10", reportFY-1)
	default:
		return monthLabel(p)
	}
}

// PlanBucketLabel is the spend plan variant: only the period's own fiscal year matters.
func PlanBucketLabel(reportFY int, p Period) string {
	if fy := p.FiscalYear(); fy != reportFY {
		return CatchAllLabel(fy)
	}
	return monthLabel(p)
}

// CatchAllLabel is the bucket shared by every row of fiscal year fy outside the
// reporting year.
func CatchAllLabel(fy int) string {
	return fmt.Sprintf("%s%02d", catchAllPrefix, fy%100)
}

// IsCatchAll reports whether label is a catch-all bucket.
func IsCatchAll(label string) bool {
	return strings.HasPrefix(label, catchAllPrefix)
}

func monthLabel(p Period) string {
	return fmt.Sprintf("%d %02d", p.Year, int(p.Month))
}
