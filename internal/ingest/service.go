package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/bondtrack/bondtrack/internal/jobs"
)

// JobName labels ingest runs in job metrics.
const JobName = "ingest"

// Invalidator drops cached reads of the source tables after a load.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Result reports one loaded table.
type Result struct {
	Table   string `json:"table"`
	BatchID string `json:"batch_id"`
	Rows    int64  `json:"rows"`
}

// Service fetches, parses and loads catalog sources.
type Service struct {
	catalog     *Catalog
	fetcher     Fetcher
	writer      Writer
	parser      *Parser
	invalidator Invalidator
	metrics     *jobmetrics.Metrics
	logger      *slog.Logger
	limit       int
	now         func() time.Time
}

// ServiceConfig bundles the collaborators of a Service.
type ServiceConfig struct {
	Catalog     *Catalog
	Fetcher     Fetcher
	Writer      Writer
	Invalidator Invalidator
	Metrics     *jobmetrics.Metrics
	Logger      *slog.Logger
	Concurrency int
}

// NewService builds an ingest service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.Concurrency
	if limit < 1 {
		limit = 1
	}
	return &Service{
		catalog:     cfg.Catalog,
		fetcher:     cfg.Fetcher,
		writer:      cfg.Writer,
		parser:      NewParser(),
		invalidator: cfg.Invalidator,
		metrics:     cfg.Metrics,
		logger:      logger.With(slog.String("job", JobName)),
		limit:       limit,
		now:         time.Now,
	}
}

// Run loads the named tables, or the whole catalog when none are given. A failing
// source leaves its table untouched; the first error is returned once every source
// that started has finished.
func (s *Service) Run(ctx context.Context, tables ...string) (results []Result, err error) {
	tracker := s.metrics.Track(JobName)
	defer func() { err = tracker.End(err) }()

	sources, err := s.catalog.Select(tables...)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for _, src := range sources {
		g.Go(func() error {
			res, err := s.load(gctx, src)
			if err != nil {
				s.logger.Error("ingest source failed", slog.String("table", src.Table), slog.Any("error", err))
				return err
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	waitErr := g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Table < results[j].Table })
	if len(results) > 0 && s.invalidator != nil {
		if err := s.invalidator.Bump(ctx); err != nil {
			s.logger.Warn("cache invalidation failed", slog.Any("error", err))
		}
	}
	return results, waitErr
}

func (s *Service) load(ctx context.Context, src Source) (Result, error) {
	body, err := s.fetcher.Open(ctx, src)
	if err != nil {
		return Result{}, err
	}
	defer body.Close()

	table, err := s.parser.Parse(body, src)
	if err != nil {
		return Result{}, err
	}

	batch := ulid.Make().String()
	n, err := s.writer.ReplaceBatch(ctx, src.Table, table, batch, s.now().UTC())
	if err != nil {
		return Result{}, fmt.Errorf("ingest: load %s: %w", src.Table, err)
	}
	s.metrics.AddRows(JobName, "loaded", int(n))
	s.logger.Info("source loaded",
		slog.String("table", src.Table),
		slog.String("batch_id", batch),
		slog.Int64("rows", n),
	)
	return Result{Table: src.Table, BatchID: batch, Rows: n}, nil
}
