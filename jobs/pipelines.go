package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/bondtrack/bondtrack/internal/bond"
	"github.com/bondtrack/bondtrack/internal/fiscal"
	"github.com/bondtrack/bondtrack/internal/ingest"
	"github.com/bondtrack/bondtrack/internal/ledger"
	"github.com/bondtrack/bondtrack/internal/publish"
	"github.com/bondtrack/bondtrack/internal/quarterly"
)

// BondRunner runs the bond dashboards pipeline.
type BondRunner interface {
	Run(ctx context.Context) (bond.Report, error)
}

// QuarterlyRunner runs the quarterly report pipeline.
type QuarterlyRunner interface {
	Run(ctx context.Context) (quarterly.Report, error)
}

// IngestRunner reloads source tables.
type IngestRunner interface {
	Run(ctx context.Context, tables ...string) ([]ingest.Result, error)
}

// fatalErrors break the data contract; retrying cannot fix them until the inputs change.
var fatalErrors = []error{
	ledger.ErrMissingColumn,
	fiscal.ErrLookup,
	ingest.ErrSchema,
	ingest.ErrUnmappedColumn,
	ingest.ErrUnknownSource,
	publish.ErrDataset,
}

// classify marks data contract violations so asynq archives the task instead of
// retrying it.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, fatal := range fatalErrors {
		if errors.Is(err, fatal) {
			return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
		}
	}
	return err
}

// PipelineJob adapts a pipeline to an asynq handler.
type PipelineJob struct {
	task   string
	run    func(ctx context.Context, payload RunPayload) (slog.Attr, error)
	logger *slog.Logger
}

// NewBondJob wraps the bond pipeline.
func NewBondJob(runner BondRunner, logger *slog.Logger) *PipelineJob {
	return &PipelineJob{task: TaskBond, logger: logger, run: func(ctx context.Context, _ RunPayload) (slog.Attr, error) {
		report, err := runner.Run(ctx)
		return slog.Group("report", slog.String("run_id", report.RunID), slog.Int("fiscal_year", report.FiscalYear)), err
	}}
}

// NewQuarterlyJob wraps the quarterly pipeline.
func NewQuarterlyJob(runner QuarterlyRunner, logger *slog.Logger) *PipelineJob {
	return &PipelineJob{task: TaskQuarterly, logger: logger, run: func(ctx context.Context, _ RunPayload) (slog.Attr, error) {
		report, err := runner.Run(ctx)
		return slog.Group("report", slog.String("run_id", report.RunID), slog.String("quarter", report.Current)), err
	}}
}

// NewIngestJob wraps the ingest service.
func NewIngestJob(runner IngestRunner, logger *slog.Logger) *PipelineJob {
	return &PipelineJob{task: TaskIngest, logger: logger, run: func(ctx context.Context, payload RunPayload) (slog.Attr, error) {
		results, err := runner.Run(ctx, payload.Tables...)
		return slog.Int("tables", len(results)), err
	}}
}

// Type returns the task type the job handles.
func (j *PipelineJob) Type() string {
	return j.task
}

// Handle executes the pipeline for one task.
func (j *PipelineJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.run == nil {
		return errors.New("jobs: pipeline not configured")
	}
	payload, err := decodePayload(task)
	if err != nil {
		return asynq.SkipRetry
	}
	attr, err := j.run(ctx, payload)
	if err != nil {
		j.log().Error("pipeline failed", attr, slog.Any("error", err))
		return classify(err)
	}
	j.log().Info("pipeline finished", attr, slog.String("requested_by", payload.RequestedBy))
	return nil
}

// Handler returns the job as a worker registration.
func (j *PipelineJob) Handler() TaskHandler {
	return TaskHandler{Type: j.task, Handler: j.Handle}
}

func (j *PipelineJob) log() *slog.Logger {
	if j != nil && j.logger != nil {
		return j.logger.With(slog.String("task", j.task))
	}
	return slog.Default().With(slog.String("task", j.task))
}
