package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alecthomas/kong"
	"github.com/hibiken/asynq"

	"github.com/bondtrack/bondtrack/internal/api"
	"github.com/bondtrack/bondtrack/internal/app"
	"github.com/bondtrack/bondtrack/jobs"
)

// ServeCmd runs the ops API until interrupted.
type ServeCmd struct {
	Addr string `help:"Listen address. Defaults to APP_ADDR."`
}

// Run implements the command.
func (c *ServeCmd) Run(ctx context.Context, _ *kong.Context, globals *Globals) error {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return nil
	}
	cfg, logger, err := loadConfig(globals)
	if err != nil {
		return err
	}
	services, err := app.OpenServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer services.Close()

	opts, err := jobs.RedisOpt(cfg.RedisAddr)
	if err != nil {
		return err
	}
	client, err := jobs.NewClient(opts)
	if err != nil {
		return err
	}
	defer client.Close()
	inspector := asynq.NewInspector(opts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:     logger,
		Config:     cfg,
		Metrics:    services.Metrics,
		APIHandler: api.NewHandler(client, logger),
		JobHandler: jobs.NewHandler(inspector, logger),
		Checks: map[string]app.ReadinessCheck{
			"postgres": services.Ping,
			"redis":    services.PingRedis,
		},
	})

	addr := c.Addr
	if addr == "" {
		addr = cfg.AppAddr
	}
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
