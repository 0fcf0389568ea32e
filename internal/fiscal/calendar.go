// Package fiscal maps calendar months onto the government fiscal calendar used by the
// bond dashboards. A fiscal year starts on October 1 of the prior calendar year, so
// October is fiscal month 00 and September is fiscal month 11.
package fiscal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// StartMonth is the first calendar month of a fiscal year.
const StartMonth = time.October

var (
	// ErrLookup is returned when a month label is not part of the fiscal month tables.
	ErrLookup = errors.New("fiscal: lookup failed")
	// ErrQuarterRange is returned for quarter numbers outside 1..4.
	ErrQuarterRange = errors.New("fiscal: quarter out of range")
)

// abbrevOrdinals maps three letter month abbreviations to fiscal ordinals. P13 is the
// extra accounting period posted after September; it rolls into September.
var abbrevOrdinals = map[string]string{
	"OCT": "00",
	"NOV": "01",
	"DEC": "02",
	"JAN": "03",
	"FEB": "04",
	"MAR": "05",
	"APR": "06",
	"MAY": "07",
	"JUN": "08",
	"JUL": "09",
	"AUG": "10",
	"SEP": "11",
	"P13": "11",
}

var ordinalNames = map[string]string{
	"00": "October",
	"01": "November",
	"02": "December",
	"03": "January",
	"04": "February",
	"05": "March",
	"06": "April",
	"07": "May",
	"08": "June",
	"09": "July",
	"10": "August",
	"11": "September",
}

var nameOrdinals = func() map[string]string {
	out := make(map[string]string, len(ordinalNames))
	for ord, name := range ordinalNames {
		out[name] = ord
	}
	return out
}()

// Year returns the fiscal year a calendar month belongs to.
func Year(calendarYear int, month time.Month) int {
	if month > 9 {
		return calendarYear + 1
	}
	return calendarYear
}

// MonthOrdinal resolves a month abbreviation such as "OCT" or "Oct-2023" to its two digit
// fiscal ordinal. Only the first three characters are considered.
func MonthOrdinal(abbrev string) (string, error) {
	key := strings.TrimSpace(abbrev)
	if len(key) > 3 {
		key = key[:3]
	}
	ord, ok := abbrevOrdinals[cases.Upper(language.English).String(key)]
	if !ok {
		return "", fmt.Errorf("%w: month abbreviation %q", ErrLookup, abbrev)
	}
	return ord, nil
}

// DecodeMonth returns the month name for a fiscal ordinal ("00" -> "October").
func DecodeMonth(ordinal string) (string, error) {
	name, ok := ordinalNames[ordinal]
	if !ok {
		return "", fmt.Errorf("%w: fiscal ordinal %q", ErrLookup, ordinal)
	}
	return name, nil
}

// EncodeMonth is the inverse of DecodeMonth.
func EncodeMonth(name string) (string, error) {
	ord, ok := nameOrdinals[name]
	if !ok {
		return "", fmt.Errorf("%w: month name %q", ErrLookup, name)
	}
	return ord, nil
}

// Quarter returns the fiscal quarter (1..4) of a fiscal month ordinal (0..11).
func Quarter(ordinal int) int {
	return ordinal/3 + 1
}

// PreviousQuarter steps one quarter back, wrapping Q1 into Q4 of the prior fiscal year.
func PreviousQuarter(fiscalYear, quarter int) (int, int, error) {
	if quarter < 1 || quarter > 4 {
		return 0, 0, fmt.Errorf("%w: %d", ErrQuarterRange, quarter)
	}
	if quarter == 1 {
		return fiscalYear - 1, 4, nil
	}
	return fiscalYear, quarter - 1, nil
}
