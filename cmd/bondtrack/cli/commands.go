// Package cli implements the bondtrack operator commands.
package cli

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/bondtrack/bondtrack/internal/app"
)

// Globals defines flags available to all commands.
type Globals struct {
	Quiet bool `help:"Only log warnings and errors." short:"q"`
}

// Commands is the command tree.
type Commands struct {
	Globals

	Run    RunCmd    `cmd:"" help:"Run a pipeline now, or enqueue it for the worker."`
	Ingest IngestCmd `cmd:"" help:"Reload source tables from their CSV exports."`
	Serve  ServeCmd  `cmd:"" help:"Serve the ops API."`
	Fiscal FiscalCmd `cmd:"" help:"Show the fiscal calendar position of a date."`
	Queue  QueueCmd  `cmd:"" help:"Show queue statistics and upcoming scheduled runs."`
}

func loadConfig(globals *Globals) (*app.Config, *slog.Logger, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := app.NewLogger(cfg)
	if globals != nil && globals.Quiet {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	return cfg, logger, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
