package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	"github.com/bondtrack/bondtrack/internal/fiscal"
)

func parse(t *testing.T, args ...string) (*kong.Context, *Commands, *bytes.Buffer) {
	t.Helper()
	var cmds Commands
	var out bytes.Buffer
	parser, err := kong.New(&cmds,
		kong.Name("bondtrack"),
		kong.Writers(&out, &out),
		kong.Bind(&cmds.Globals),
		kong.BindTo(context.Background(), (*context.Context)(nil)),
		kong.Exit(func(int) { t.Fatalf("unexpected exit: %s", out.String()) }),
	)
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	return kctx, &cmds, &out
}

func TestFiscalCommand(t *testing.T) {
	kctx, _, out := parse(t, "fiscal", "2024-01-15")
	require.NoError(t, kctx.Run())
	require.Equal(t, "FY2024 2024 Q2 (January, column 202403); previous quarter 2024 Q1\n", out.String())

	kctx, _, out = parse(t, "fiscal", "--json", "2023-10-01")
	require.NoError(t, kctx.Run())
	var pos fiscal.Position
	require.NoError(t, json.Unmarshal(out.Bytes(), &pos))
	require.Equal(t, "2024 Q1", pos.Quarter)
	require.Equal(t, "2023 Q4", pos.Previous)

	kctx, _, _ = parse(t, "fiscal", "15/01/2024")
	require.Error(t, kctx.Run())
}

func TestFiscalCommandDefaultsToToday(t *testing.T) {
	restore := now
	now = func() time.Time { return time.Date(2025, time.September, 30, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = restore })

	kctx, _, out := parse(t, "fiscal")
	require.NoError(t, kctx.Run())
	require.Contains(t, out.String(), "FY2025 2025 Q4 (September")
}

func TestCommandTree(t *testing.T) {
	kctx, cmds, _ := parse(t, "ingest", "--enqueue", "quarterly_spend_plan", "fdu_metadata_quarterly")
	require.Equal(t, "ingest <tables>", kctx.Command())
	require.True(t, cmds.Ingest.Enqueue)
	require.Equal(t, []string{"quarterly_spend_plan", "fdu_metadata_quarterly"}, cmds.Ingest.Tables)
	require.Equal(t, "cli", cmds.Ingest.RequestedBy)

	kctx, cmds, _ = parse(t, "-q", "run", "quarterly", "--enqueue", "--requested-by", "ops")
	require.Equal(t, "run quarterly", kctx.Command())
	require.True(t, cmds.Quiet)
	require.Equal(t, "ops", cmds.Run.Quarterly.RequestedBy)

	kctx, _, _ = parse(t, "serve", "--addr", ":9999")
	require.Equal(t, "serve", kctx.Command())
}
