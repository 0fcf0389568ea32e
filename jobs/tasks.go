package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskIngest reloads raw source tables from the catalog.
	TaskIngest = "bondtrack:ingest"
	// TaskBond recomputes and publishes the bond dashboards.
	TaskBond = "bondtrack:bond"
	// TaskQuarterly recomputes and publishes the quarterly FDU report.
	TaskQuarterly = "bondtrack:quarterly"
	// TaskCacheWarmup primes the source table cache.
	TaskCacheWarmup = "bondtrack:cache_warmup"
)

// Pipeline names accepted by NewPipelineTask.
const (
	PipelineIngest    = "ingest"
	PipelineBond      = "bond"
	PipelineQuarterly = "quarterly"
	PipelineWarmup    = "warmup"
)

// ErrUnknownPipeline is returned for pipeline names without a task.
var ErrUnknownPipeline = errors.New("jobs: unknown pipeline")

// RunPayload is shared by every pipeline task.
type RunPayload struct {
	// Tables restricts an ingest or warmup run; empty means every table.
	Tables      []string  `json:"tables,omitempty"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewIngestTask builds an ingest task for the given tables.
func NewIngestTask(tables ...string) (*asynq.Task, error) {
	return newTask(TaskIngest, RunPayload{Tables: tables})
}

// NewBondTask builds a bond dashboards task.
func NewBondTask() (*asynq.Task, error) {
	return newTask(TaskBond, RunPayload{})
}

// NewQuarterlyTask builds a quarterly report task.
func NewQuarterlyTask() (*asynq.Task, error) {
	return newTask(TaskQuarterly, RunPayload{})
}

// NewCacheWarmupTask builds a cache warmup task for the given tables.
func NewCacheWarmupTask(tables ...string) (*asynq.Task, error) {
	return newTask(TaskCacheWarmup, RunPayload{Tables: tables})
}

// NewPipelineTask resolves a pipeline name into its task.
func NewPipelineTask(pipeline string, payload RunPayload) (*asynq.Task, error) {
	switch pipeline {
	case PipelineIngest:
		return newTask(TaskIngest, payload)
	case PipelineBond:
		return newTask(TaskBond, payload)
	case PipelineQuarterly:
		return newTask(TaskQuarterly, payload)
	case PipelineWarmup:
		return newTask(TaskCacheWarmup, payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPipeline, pipeline)
	}
}

func newTask(taskType string, payload RunPayload) (*asynq.Task, error) {
	if payload.RequestedAt.IsZero() {
		payload.RequestedAt = time.Now().UTC()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

func decodePayload(t *asynq.Task) (RunPayload, error) {
	var payload RunPayload
	if len(t.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}
