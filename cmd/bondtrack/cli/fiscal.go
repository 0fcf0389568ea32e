package cli

import (
	"fmt"
	"time"

	"github.com/alecthomas/kong"

	"github.com/bondtrack/bondtrack/internal/fiscal"
)

var now = time.Now

// FiscalCmd prints the fiscal position of a date.
type FiscalCmd struct {
	Date string `arg:"" optional:"" help:"Calendar date as YYYY-MM-DD. Defaults to today."`
	JSON bool   `help:"Print JSON instead of text."`
}

// Run implements the command.
func (c *FiscalCmd) Run(k *kong.Context) error {
	t := now()
	if c.Date != "" {
		parsed, err := time.Parse("2006-01-02", c.Date)
		if err != nil {
			return fmt.Errorf("date %q: expected YYYY-MM-DD", c.Date)
		}
		t = parsed
	}

	pos := fiscal.PositionOf(t)
	if c.JSON {
		return writeJSON(k.Stdout, pos)
	}
	_, err := fmt.Fprintf(k.Stdout, "FY%d %s (%s, column %s); previous quarter %s\n",
		pos.FiscalYear, pos.Quarter, pos.MonthName, pos.MonthCol, pos.Previous)
	return err
}
