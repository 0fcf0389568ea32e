package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/hibiken/asynq"

	"github.com/bondtrack/bondtrack/jobs"
)

// QueueCmd reports queue state.
type QueueCmd struct {
	Scheduled int `help:"Number of scheduled tasks to list." default:"10"`
}

// Run implements the command.
func (c *QueueCmd) Run(ctx context.Context, k *kong.Context, globals *Globals) error {
	cfg, _, err := loadConfig(globals)
	if err != nil {
		return err
	}
	opts, err := jobs.RedisOpt(cfg.RedisAddr)
	if err != nil {
		return err
	}
	inspector := asynq.NewInspector(opts)
	defer inspector.Close()

	info, err := inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return fmt.Errorf("inspect queue: %w", err)
	}
	tw := tabwriter.NewWriter(k.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "queue\t%s\n", info.Queue)
	_, _ = fmt.Fprintf(tw, "pending\t%d\n", info.Pending)
	_, _ = fmt.Fprintf(tw, "active\t%d\n", info.Active)
	_, _ = fmt.Fprintf(tw, "scheduled\t%d\n", info.Scheduled)
	_, _ = fmt.Fprintf(tw, "retry\t%d\n", info.Retry)
	_, _ = fmt.Fprintf(tw, "archived\t%d\n", info.Archived)
	if err := tw.Flush(); err != nil {
		return err
	}

	if c.Scheduled <= 0 {
		return nil
	}
	tasks, err := inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(c.Scheduled), asynq.Page(1))
	if err != nil {
		return fmt.Errorf("list scheduled: %w", err)
	}
	for _, t := range tasks {
		_, _ = fmt.Fprintf(k.Stdout, "%s\t%s\t%s\n", t.NextProcessAt.Format("2006-01-02 15:04"), t.Type, t.ID)
	}
	return nil
}
