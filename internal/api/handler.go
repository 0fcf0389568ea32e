// Package api serves the operations endpoints used to trigger pipeline runs and inspect
// the fiscal calendar.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"

	"github.com/bondtrack/bondtrack/internal/fiscal"
	"github.com/bondtrack/bondtrack/internal/platform/httpx"
	"github.com/bondtrack/bondtrack/jobs"
)

// Enqueuer schedules pipeline runs.
type Enqueuer interface {
	EnqueuePipeline(ctx context.Context, pipeline string, payload jobs.RunPayload) (*asynq.TaskInfo, error)
}

// Handler exposes the ops API.
type Handler struct {
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewHandler constructs the ops API handler.
func NewHandler(enqueuer Enqueuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{enqueuer: enqueuer, logger: logger}
}

// MountRoutes attaches the API routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/runs/{pipeline}", h.triggerRun)
	r.Get("/fiscal/{date}", h.fiscalDate)
}

type runRequest struct {
	Tables      []string `json:"tables"`
	RequestedBy string   `json:"requested_by"`
}

type runResponse struct {
	TaskID   string `json:"task_id"`
	Pipeline string `json:"pipeline"`
	Queue    string `json:"queue"`
}

func (h *Handler) triggerRun(w http.ResponseWriter, r *http.Request) {
	pipeline := chi.URLParam(r, "pipeline")
	var req runRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	if len(req.Tables) > 0 && pipeline != jobs.PipelineIngest && pipeline != jobs.PipelineWarmup {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "tables only apply to ingest and warmup runs")
		return
	}
	if h.enqueuer == nil {
		httpx.RespondError(w, httpx.ErrUnavailable)
		return
	}

	info, err := h.enqueuer.EnqueuePipeline(r.Context(), pipeline, jobs.RunPayload{
		Tables:      req.Tables,
		RequestedBy: req.RequestedBy,
	})
	switch {
	case errors.Is(err, jobs.ErrUnknownPipeline):
		httpx.RespondError(w, errors.Join(httpx.ErrNotFound, err))
		return
	case err != nil:
		h.logger.Error("enqueue pipeline", slog.String("pipeline", pipeline), slog.String("request_id", middleware.GetReqID(r.Context())), slog.Any("error", err))
		httpx.RespondError(w, errors.Join(httpx.ErrUnavailable, err))
		return
	}
	h.logger.Info("pipeline enqueued", slog.String("pipeline", pipeline), slog.String("task_id", info.ID))
	httpx.JSON(w, http.StatusAccepted, runResponse{TaskID: info.ID, Pipeline: pipeline, Queue: info.Queue})
}

type fiscalResponse struct {
	Date string `json:"date"`
	fiscal.Position
}

func (h *Handler) fiscalDate(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "date")
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}
	httpx.JSON(w, http.StatusOK, fiscalResponse{Date: raw, Position: fiscal.PositionOf(t)})
}
