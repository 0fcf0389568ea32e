package fiscal

import (
	"fmt"
	"strconv"
	"time"
)

// Month identifies a month on the fiscal calendar.
type Month struct {
	Year    int // fiscal year
	Ordinal int // 0 = October ... 11 = September
}

// MonthOf converts a calendar month into its fiscal month.
func MonthOf(calendarYear int, month time.Month) Month {
	return Month{
		Year:    Year(calendarYear, month),
		Ordinal: (int(month) + 2) % 12,
	}
}

// ParseMonthCol parses a "YYYYMM" column label where MM is the fiscal ordinal.
func ParseMonthCol(col string) (Month, error) {
	if len(col) != 6 {
		return Month{}, fmt.Errorf("%w: month column %q", ErrLookup, col)
	}
	year, err := strconv.Atoi(col[:4])
	if err != nil {
		return Month{}, fmt.Errorf("%w: month column %q", ErrLookup, col)
	}
	ord, err := strconv.Atoi(col[4:])
	if err != nil || ord < 0 || ord > 11 {
		return Month{}, fmt.Errorf("%w: month column %q", ErrLookup, col)
	}
	return Month{Year: year, Ordinal: ord}, nil
}

// Col renders the "YYYYMM" column label, e.g. "202403" for January of FY2024.
func (m Month) Col() string {
	return fmt.Sprintf("%d%02d", m.Year, m.Ordinal)
}

// OrdinalString returns the two digit ordinal ("00".."11").
func (m Month) OrdinalString() string {
	return fmt.Sprintf("%02d", m.Ordinal)
}

// Calendar returns the calendar year and month of m.
func (m Month) Calendar() (int, time.Month) {
	month := time.Month((m.Ordinal+9)%12 + 1)
	if month >= StartMonth {
		return m.Year - 1, month
	}
	return m.Year, month
}

// Quarter returns the fiscal quarter of m.
func (m Month) Quarter() int {
	return Quarter(m.Ordinal)
}

// Window returns the quarter window containing m.
func (m Month) Window() Window {
	return Window{Year: m.Year, Quarter: m.Quarter()}
}

// Before reports whether m is earlier than other.
func (m Month) Before(other Month) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Ordinal < other.Ordinal
}

// Window is a three month fiscal quarter.
type Window struct {
	Year    int
	Quarter int
}

// NewWindow validates the quarter number.
func NewWindow(fiscalYear, quarter int) (Window, error) {
	if quarter < 1 || quarter > 4 {
		return Window{}, fmt.Errorf("%w: %d", ErrQuarterRange, quarter)
	}
	return Window{Year: fiscalYear, Quarter: quarter}, nil
}

// Months returns the three fiscal months of the window in order.
func (w Window) Months() [3]Month {
	first := (w.Quarter - 1) * 3
	return [3]Month{
		{Year: w.Year, Ordinal: first},
		{Year: w.Year, Ordinal: first + 1},
		{Year: w.Year, Ordinal: first + 2},
	}
}

// Contains reports whether m falls inside the window.
func (w Window) Contains(m Month) bool {
	return m.Window() == w
}

// Previous returns the window one quarter earlier. w must hold a valid quarter.
func (w Window) Previous() Window {
	year, quarter, err := PreviousQuarter(w.Year, w.Quarter)
	if err != nil {
		panic(err)
	}
	return Window{Year: year, Quarter: quarter}
}

// Key is the "{FY}{Q}" sort key, e.g. "20243".
func (w Window) Key() string {
	return fmt.Sprintf("%d%d", w.Year, w.Quarter)
}

// Label is the human readable selector, e.g. "2024 Q3".
func (w Window) Label() string {
	return fmt.Sprintf("%d Q%d", w.Year, w.Quarter)
}

// Before reports whether w is earlier than other.
func (w Window) Before(other Window) bool {
	if w.Year != other.Year {
		return w.Year < other.Year
	}
	return w.Quarter < other.Quarter
}

// Position describes where a calendar date falls on the fiscal calendar.
type Position struct {
	FiscalYear int    `json:"fiscal_year"`
	Quarter    string `json:"quarter"`
	MonthCol   string `json:"month_col"`
	MonthName  string `json:"month_name"`
	Previous   string `json:"previous_quarter"`
}

// PositionOf returns the fiscal position of t.
func PositionOf(t time.Time) Position {
	m := MonthOf(t.Year(), t.Month())
	w := m.Window()
	return Position{
		FiscalYear: m.Year,
		Quarter:    w.Label(),
		MonthCol:   m.Col(),
		MonthName:  ordinalNames[m.OrdinalString()],
		Previous:   w.Previous().Label(),
	}
}
