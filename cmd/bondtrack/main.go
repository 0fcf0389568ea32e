package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/bondtrack/bondtrack/cmd/bondtrack/cli"
)

var (
	// Version is set via ldflags when building.
	Version = ""

	// CommitSHA is set via ldflags when building.
	CommitSHA = ""
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var root struct {
		Version kong.VersionFlag `help:"Show version information."`
		cli.Commands
	}
	kctx := kong.Parse(&root,
		kong.Vars{"version": buildVersion()},
		kong.Name("bondtrack"),
		kong.Description("Bond and quarterly spending dashboards: ingest, compute and publish."),
		kong.UsageOnError(),
		kong.Bind(&root.Globals),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	kctx.FatalIfErrorf(kctx.Run())
}

func buildVersion() string {
	if Version == "" {
		Version = "dev"
	}
	if CommitSHA == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, CommitSHA)
}
