package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/bondtrack/bondtrack/internal/bond"
	jobmetrics "github.com/bondtrack/bondtrack/internal/jobs"
	"github.com/bondtrack/bondtrack/internal/quarterly"
	"github.com/bondtrack/bondtrack/internal/store"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// WarmupTables lists every source table read by the pipelines.
func WarmupTables() []string {
	tables := append([]string{}, bond.Tables...)
	return append(tables, quarterly.TableMetadata, quarterly.TableExpenses, quarterly.TableSpendPlan)
}

// CacheWarmupJob reads source tables through the cached source so the next pipeline
// run is served from Redis.
type CacheWarmupJob struct {
	Source  store.Source
	Tables  []string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewCacheWarmupJob wires dependencies for the warmup handler. An empty table list
// warms every pipeline table.
func NewCacheWarmupJob(source store.Source, tables []string, logger *slog.Logger, metrics *jobmetrics.Metrics) *CacheWarmupJob {
	if len(tables) == 0 {
		tables = WarmupTables()
	}
	return &CacheWarmupJob{
		Source:  source,
		Tables:  tables,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes cache warmup tasks.
func (j *CacheWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Source == nil {
		return errors.New("cache warmup: handler not configured")
	}
	payload, err := decodePayload(t)
	if err != nil {
		return asynq.SkipRetry
	}
	tables := payload.Tables
	if len(tables) == 0 {
		tables = j.Tables
	}

	tracker := j.metrics().Track(TaskCacheWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := j.now()
	rows := 0
	for _, table := range tables {
		n, err := j.warmTable(ctx, table)
		if err != nil {
			logger.Error("warm table", slog.String("table", table), slog.Any("error", err))
			return classify(err)
		}
		rows += n
	}
	j.metrics().AddRows(TaskCacheWarmup, "cached", rows)
	logger.Info("completed cache warmup", slog.Int("tables", len(tables)), slog.Int("rows", rows), slog.Duration("duration", j.now().Sub(start)))
	return nil
}

// Handler returns the job as a worker registration.
func (j *CacheWarmupJob) Handler() TaskHandler {
	return TaskHandler{Type: TaskCacheWarmup, Handler: j.Handle}
}

func (j *CacheWarmupJob) warmTable(ctx context.Context, table string) (int, error) {
	tableCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	rows, err := j.Source.Table(tableCtx, table)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (j *CacheWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCacheWarmup))
	}
	return slog.Default().With(slog.String("job", TaskCacheWarmup))
}

func (j *CacheWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *CacheWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
