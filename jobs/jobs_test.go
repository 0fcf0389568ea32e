package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/bondtrack/bondtrack/internal/bond"
	"github.com/bondtrack/bondtrack/internal/fiscal"
	"github.com/bondtrack/bondtrack/internal/ingest"
	"github.com/bondtrack/bondtrack/internal/ledger"
	"github.com/bondtrack/bondtrack/internal/store"
)

func TestNewPipelineTask(t *testing.T) {
	task, err := NewPipelineTask(PipelineIngest, RunPayload{Tables: []string{"quarterly_spend_plan"}, RequestedBy: "ops"})
	require.NoError(t, err)
	require.Equal(t, TaskIngest, task.Type())

	payload, err := decodePayload(task)
	require.NoError(t, err)
	require.Equal(t, []string{"quarterly_spend_plan"}, payload.Tables)
	require.False(t, payload.RequestedAt.IsZero())

	_, err = NewPipelineTask("payroll", RunPayload{})
	require.ErrorIs(t, err, ErrUnknownPipeline)

	for _, build := range []func() (*asynq.Task, error){NewBondTask, NewQuarterlyTask} {
		task, err := build()
		require.NoError(t, err)
		require.Contains(t, []string{TaskBond, TaskQuarterly}, task.Type())
	}
}

func TestClassify(t *testing.T) {
	require.NoError(t, classify(nil))

	for _, fatal := range []error{ledger.ErrMissingColumn, fiscal.ErrLookup, ingest.ErrSchema} {
		err := classify(fmt.Errorf("bond: load: %w", fatal))
		require.ErrorIs(t, err, asynq.SkipRetry)
		require.ErrorIs(t, err, fatal)
	}

	transient := errors.New("connection reset")
	require.Equal(t, transient, classify(transient))
	require.NotErrorIs(t, classify(ledger.ErrNoData), asynq.SkipRetry)
}

type bondRunnerFunc func(ctx context.Context) (bond.Report, error)

func (f bondRunnerFunc) Run(ctx context.Context) (bond.Report, error) { return f(ctx) }

type ingestRunnerFunc func(ctx context.Context, tables ...string) ([]ingest.Result, error)

func (f ingestRunnerFunc) Run(ctx context.Context, tables ...string) ([]ingest.Result, error) {
	return f(ctx, tables...)
}

func TestPipelineJobHandle(t *testing.T) {
	calls := 0
	job := NewBondJob(bondRunnerFunc(func(context.Context) (bond.Report, error) {
		calls++
		return bond.Report{RunID: "r1", FiscalYear: 2024}, nil
	}), nil)
	task, err := NewBondTask()
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, calls)
	require.Equal(t, TaskBond, job.Handler().Type)

	failing := NewBondJob(bondRunnerFunc(func(context.Context) (bond.Report, error) {
		return bond.Report{}, fmt.Errorf("bond: %w", ledger.ErrMissingColumn)
	}), nil)
	require.ErrorIs(t, failing.Handle(context.Background(), task), asynq.SkipRetry)

	require.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(TaskBond, []byte("{"))), asynq.SkipRetry)
}

func TestIngestJobPassesTables(t *testing.T) {
	var got []string
	job := NewIngestJob(ingestRunnerFunc(func(_ context.Context, tables ...string) ([]ingest.Result, error) {
		got = tables
		return nil, nil
	}), nil)
	task, err := NewIngestTask("a", "b")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []string{"a", "b"}, got)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type(), Queue: QueueDefault}, nil
}

func TestClientEnqueuePipeline(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := NewClientWith(enq)
	info, err := client.EnqueuePipeline(context.Background(), PipelineQuarterly, RunPayload{})
	require.NoError(t, err)
	require.Equal(t, "task-1", info.ID)
	require.Len(t, enq.tasks, 1)
	require.NoError(t, client.Close())

	_, err = client.EnqueuePipeline(context.Background(), "nope", RunPayload{})
	require.ErrorIs(t, err, ErrUnknownPipeline)
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return f.info, f.err }

func TestHealthEndpoint(t *testing.T) {
	serve := func(h *Handler) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		h.MountRoutes(r)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		return rec
	}

	rec := serve(NewHandler(fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Retry: 1}}, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body QueueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 3, body.Pending)
	require.Equal(t, 1, body.Retry)

	rec = serve(NewHandler(fakeInspector{err: errors.New("redis down")}, nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(NewHandler(nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

type countingSource struct {
	reads map[string]int
	fail  string
}

func (s *countingSource) Table(_ context.Context, name string) ([]store.Row, error) {
	if name == s.fail {
		return nil, fmt.Errorf("store: %s: %w", name, ledger.ErrMissingColumn)
	}
	if s.reads == nil {
		s.reads = map[string]int{}
	}
	s.reads[name]++
	return []store.Row{{"id": 1}, {"id": 2}}, nil
}

func TestCacheWarmupJob(t *testing.T) {
	source := &countingSource{}
	job := NewCacheWarmupJob(source, nil, nil, nil)
	require.Equal(t, WarmupTables(), job.Tables)
	require.Contains(t, job.Tables, "quarterly_spend_plan")

	task, err := NewCacheWarmupTask()
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	for _, table := range WarmupTables() {
		require.Equal(t, 1, source.reads[table], table)
	}

	task, err = NewPipelineTask(PipelineWarmup, RunPayload{Tables: []string{"fdu_expenses_quarterly"}})
	require.NoError(t, err)
	require.Equal(t, TaskCacheWarmup, task.Type())
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 2, source.reads["fdu_expenses_quarterly"])

	source.fail = "fdu_expenses_quarterly"
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}
