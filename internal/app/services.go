package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bondtrack/bondtrack/internal/bond"
	"github.com/bondtrack/bondtrack/internal/ingest"
	jobmetrics "github.com/bondtrack/bondtrack/internal/jobs"
	"github.com/bondtrack/bondtrack/internal/observability"
	"github.com/bondtrack/bondtrack/internal/platform/cache"
	"github.com/bondtrack/bondtrack/internal/platform/cloud"
	"github.com/bondtrack/bondtrack/internal/platform/db"
	"github.com/bondtrack/bondtrack/internal/publish"
	"github.com/bondtrack/bondtrack/internal/quarterly"
	"github.com/bondtrack/bondtrack/internal/store"
)

const sourceCacheNamespace = "bondtrack:sources"

// Services holds the connections and pipeline services shared by the worker and the CLI.
type Services struct {
	Pool       *pgxpool.Pool
	Redis      *redis.Client
	Cache      *cache.Versioned
	Source     store.Source
	Metrics    *observability.Metrics
	JobMetrics *jobmetrics.Metrics
	Bond       *bond.Service
	Quarterly  *quarterly.Service
	Ingest     *ingest.Service

	closers []func()
}

// OpenServices connects to Postgres, Redis and AWS and builds the pipeline services.
func OpenServices(ctx context.Context, cfg *Config, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Services{Metrics: observability.NewMetrics()}
	s.JobMetrics = jobmetrics.NewMetrics(s.Metrics.Registerer())

	awsCfg, err := cloud.LoadConfig(ctx, cfg.AWSRegion, cfg.AWSProfile)
	if err != nil {
		return nil, err
	}

	var dbOpts []db.Option
	if cfg.PGIAMAuth {
		dbOpts = append(dbOpts, db.WithIAMAuth(cfg.PGIAMRegion, cfg.PGIAMUser, awsCfg.Credentials))
	}
	s.Pool, err = db.New(ctx, cfg.PGDSN, dbOpts...)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, s.Pool.Close)

	s.Redis, err = cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, source cache disabled", slog.Any("error", err))
	} else {
		client := s.Redis
		s.closers = append(s.closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		})
	}
	s.Cache = cache.NewVersioned(s.Redis, sourceCacheNamespace, cfg.CacheTTL)

	catalog, err := ingest.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		s.Close()
		return nil, err
	}

	s3Client := cloud.NewS3(awsCfg)
	s.Source = store.NewCached(store.NewTables(s.Pool), s.Cache)
	sink := newSink(cfg, logger, s3Client, s.Metrics)

	s.Bond = bond.NewService(s.Source, sink, bond.Datasets{
		CurrentExpenses:  cfg.CurrentExpenses,
		PreviousExpenses: cfg.PreviousExpenses,
		AllBonds:         cfg.AllBonds,
		CurrentSummary:   cfg.CurrentSummary,
		PreviousSummary:  cfg.PreviousSummary,
		ProgramNames:     cfg.ProgramNames,
		Lookup:           cfg.Lookup,
	}, s.JobMetrics, logger)
	s.Quarterly = quarterly.NewService(s.Source, sink, quarterly.Datasets{
		Metadata: cfg.FDUMetadata,
		Report:   cfg.Quarterly,
	}, s.JobMetrics, logger)
	s.Ingest = ingest.NewService(ingest.ServiceConfig{
		Catalog: catalog,
		Fetcher: ingest.Fetchers{
			ingest.OriginS3:   ingest.S3Fetcher{Client: s3Client, Bucket: catalog.Bucket},
			ingest.OriginHTTP: ingest.HTTPFetcher{Client: &http.Client{Timeout: cfg.SocrataTimeout}},
		},
		Writer:      ingest.NewPGWriter(s.Pool),
		Invalidator: s.Cache,
		Metrics:     s.JobMetrics,
		Logger:      logger,
		Concurrency: cfg.IngestConcurrency,
	})
	return s, nil
}

// newSink combines the configured publish targets. Test mode and an empty configuration
// both fall back to the discarding sink.
func newSink(cfg *Config, logger *slog.Logger, s3Client publish.ObjectPutter, observer publish.Observer) publish.Sink {
	if InTestMode() {
		return publish.Discard{Logger: logger}
	}
	var sinks []publish.Sink
	if cfg.SocrataURL != "" {
		socrata, err := publish.NewSocrata(publish.SocrataConfig{
			BaseURL:  cfg.SocrataURL,
			AppToken: cfg.SocrataToken,
			Username: cfg.SocrataUser,
			Password: cfg.SocrataPassword,
			Timeout:  cfg.SocrataTimeout,
		})
		if err != nil {
			logger.Error("socrata sink disabled", slog.Any("error", err))
		} else {
			sinks = append(sinks, socrata)
		}
	}
	if cfg.S3Bucket != "" {
		sinks = append(sinks, publish.NewS3CSV(s3Client, cfg.S3Bucket, cfg.S3ExportPrefix))
	}
	if len(sinks) == 0 {
		logger.Warn("no publish target configured, outputs are discarded")
		sinks = append(sinks, publish.Discard{Logger: logger})
	}
	return publish.NewMulti(observer, sinks...)
}

// Ping reports whether Postgres answers.
func (s *Services) Ping(ctx context.Context) error {
	if s == nil || s.Pool == nil {
		return fmt.Errorf("app: database not configured")
	}
	return s.Pool.Ping(ctx)
}

// PingRedis reports whether Redis answers.
func (s *Services) PingRedis(ctx context.Context) error {
	if s == nil || s.Redis == nil {
		return fmt.Errorf("app: redis not configured")
	}
	return s.Redis.Ping(ctx).Err()
}

// Close releases every connection in reverse order of opening.
func (s *Services) Close() {
	if s == nil {
		return
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
