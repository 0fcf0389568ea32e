package cli

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/bondtrack/bondtrack/internal/app"
	"github.com/bondtrack/bondtrack/jobs"
)

// RunCmd groups the pipeline commands.
type RunCmd struct {
	Bond      RunBondCmd      `cmd:"" help:"Build and publish the bond dashboards."`
	Quarterly RunQuarterlyCmd `cmd:"" help:"Build and publish the quarterly report."`
}

// RunBondCmd runs the bond pipeline.
type RunBondCmd struct {
	Enqueue     bool   `help:"Hand the run to the worker instead of running it here."`
	RequestedBy string `help:"Recorded with enqueued runs." default:"cli"`
}

// Run implements the command.
func (c *RunBondCmd) Run(ctx context.Context, k *kong.Context, globals *Globals) error {
	if c.Enqueue {
		return enqueue(ctx, k, globals, jobs.PipelineBond, jobs.RunPayload{RequestedBy: c.RequestedBy})
	}
	return withServices(ctx, globals, func(s *app.Services) error {
		report, err := s.Bond.Run(ctx)
		if err != nil {
			return err
		}
		return writeJSON(k.Stdout, report)
	})
}

// RunQuarterlyCmd runs the quarterly pipeline.
type RunQuarterlyCmd struct {
	Enqueue     bool   `help:"Hand the run to the worker instead of running it here."`
	RequestedBy string `help:"Recorded with enqueued runs." default:"cli"`
}

// Run implements the command.
func (c *RunQuarterlyCmd) Run(ctx context.Context, k *kong.Context, globals *Globals) error {
	if c.Enqueue {
		return enqueue(ctx, k, globals, jobs.PipelineQuarterly, jobs.RunPayload{RequestedBy: c.RequestedBy})
	}
	return withServices(ctx, globals, func(s *app.Services) error {
		report, err := s.Quarterly.Run(ctx)
		if err != nil {
			return err
		}
		return writeJSON(k.Stdout, report)
	})
}

// IngestCmd reloads source tables.
type IngestCmd struct {
	Tables      []string `arg:"" optional:"" help:"Tables to reload. Defaults to the whole catalog."`
	Enqueue     bool     `help:"Hand the load to the worker instead of running it here."`
	RequestedBy string   `help:"Recorded with enqueued runs." default:"cli"`
}

// Run implements the command.
func (c *IngestCmd) Run(ctx context.Context, k *kong.Context, globals *Globals) error {
	if c.Enqueue {
		return enqueue(ctx, k, globals, jobs.PipelineIngest, jobs.RunPayload{Tables: c.Tables, RequestedBy: c.RequestedBy})
	}
	return withServices(ctx, globals, func(s *app.Services) error {
		results, err := s.Ingest.Run(ctx, c.Tables...)
		if werr := writeJSON(k.Stdout, results); werr != nil && err == nil {
			err = werr
		}
		return err
	})
}

func withServices(ctx context.Context, globals *Globals, fn func(*app.Services) error) error {
	cfg, logger, err := loadConfig(globals)
	if err != nil {
		return err
	}
	services, err := app.OpenServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer services.Close()
	return fn(services)
}

func enqueue(ctx context.Context, k *kong.Context, globals *Globals, pipeline string, payload jobs.RunPayload) error {
	cfg, _, err := loadConfig(globals)
	if err != nil {
		return err
	}
	opts, err := jobs.RedisOpt(cfg.RedisAddr)
	if err != nil {
		return err
	}
	client, err := jobs.NewClient(opts)
	if err != nil {
		return err
	}
	defer client.Close()

	info, err := client.EnqueuePipeline(ctx, pipeline, payload)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", pipeline, err)
	}
	_, _ = fmt.Fprintf(k.Stdout, "enqueued %s as %s on %s\n", pipeline, info.ID, info.Queue)
	return nil
}
