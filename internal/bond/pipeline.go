// Package bond computes the bond program dashboards: cumulative expense and obligation
// series for the 2020 bond and for all bonds, and the fiscal year summary tables that
// compare expenses against baseline and planned spend.
package bond

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/bondtrack/bondtrack/internal/jobs"
	"github.com/bondtrack/bondtrack/internal/ledger"
	"github.com/bondtrack/bondtrack/internal/publish"
	"github.com/bondtrack/bondtrack/internal/store"
)

// JobName labels bond runs in metrics and logs.
const JobName = "bond"

var seriesMetrics = []string{ledger.MetricExpenses, ledger.MetricObligated}

// Datasets names the published dataset for every output table.
type Datasets struct {
	CurrentExpenses  string
	PreviousExpenses string
	AllBonds         string
	CurrentSummary   string
	PreviousSummary  string
	ProgramNames     string
	Lookup           string
}

// Output holds every table a run publishes.
type Output struct {
	FiscalYear       int
	CurrentExpenses  []publish.Row
	PreviousExpenses []publish.Row
	AllBonds         []publish.Row
	CurrentSummary   []publish.Row
	PreviousSummary  []publish.Row
	ProgramNames     []publish.Row
	Lookup           []publish.Row

	Synthesized int
	// Unmapped lists 2020 entity keys without a dashboard id.
	Unmapped []string

	// Ambiguous lists 2020 entity keys mapped to more than one dashboard id.
	Ambiguous []string
}

// Build computes every output table from the loaded source tables.
func Build(tables map[string][]store.Row) (*Output, error) {
	out := &Output{}

	raw2020, attrs2020, err := expenseRecords(TableExpenses2020, tables[TableExpenses2020], layout2020)
	if err != nil {
		return nil, err
	}
	if len(raw2020) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ledger.ErrNoData, TableExpenses2020)
	}
	dense2020, err := ledger.Densify(raw2020, ledger.GridSpec{Metrics: seriesMetrics, ByFiscalYear: true})
	if err != nil {
		return nil, fmt.Errorf("bond: %s: %w", TableExpenses2020, err)
	}
	series2020 := ledger.Cumulate(dense2020, ledger.CumulateOptions{Metrics: seriesMetrics, ByFiscalYear: true})
	latest := 0
	for _, r := range series2020 {
		latest = max(latest, r.FiscalYear)
	}
	var previous []ledger.Record
	for _, r := range series2020 {
		if r.FiscalYear < latest {
			previous = append(previous, r)
		}
	}
	out.CurrentExpenses = seriesRows(series2020, attrs2020, true)
	out.PreviousExpenses = seriesRows(previous, attrs2020, true)

	rawAll, attrsAll, err := expenseRecords(TableExpensesAllBonds, tables[TableExpensesAllBonds], layoutAllBonds)
	if err != nil {
		return nil, err
	}
	denseAll, err := ledger.Densify(rawAll, ledger.GridSpec{Metrics: seriesMetrics})
	if err != nil {
		return nil, fmt.Errorf("bond: %s: %w", TableExpensesAllBonds, err)
	}
	out.AllBonds = seriesRows(ledger.Cumulate(denseAll, ledger.CumulateOptions{Metrics: seriesMetrics}), attrsAll, false)
	out.Synthesized = countSynthetic(dense2020) + countSynthetic(denseAll)

	currentPlan, err := amountRecords(TableCurrentPlan, tables[TableCurrentPlan])
	if err != nil {
		return nil, err
	}
	previousPlan, err := amountRecords(TablePreviousPlan, tables[TablePreviousPlan])
	if err != nil {
		return nil, err
	}
	baseline, err := amountRecords(TableBaseline, tables[TableBaseline])
	if err != nil {
		return nil, err
	}
	if out.FiscalYear, err = reportingYear(currentPlan); err != nil {
		return nil, err
	}

	entries, err := crosswalkEntries(tables[TableCrosswalk])
	if err != nil {
		return nil, err
	}
	out.Ambiguous = ledger.DuplicateSources(entries)
	resolved := ledger.Resolve(dense2020, entries)
	out.Unmapped = unmapped(resolved)

	fy := out.FiscalYear
	out.PreviousSummary = summaryRows(ledger.Summarize(ledger.SummaryInput{
		FiscalYear: fy - 1,
		Expenses:   resolved,
		Baseline:   baseline,
		Planned:    previousPlan,
		Drop:       []string{ledger.CatchAllLabel(fy)},
	}))
	out.CurrentSummary = summaryRows(ledger.Summarize(ledger.SummaryInput{
		FiscalYear: fy,
		Expenses:   resolved,
		Baseline:   baseline,
		Planned:    currentPlan,
	}))

	out.ProgramNames = passThrough(tables[TableProgramNames])
	out.Lookup = passThrough(tables[TableLookup])
	return out, nil
}

func countSynthetic(records []ledger.Record) int {
	n := 0
	for _, r := range records {
		if r.Synthetic {
			n++
		}
	}
	return n
}

func unmapped(records []ledger.Record) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		if r.Target == nil {
			seen[r.Entity] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Report summarises a completed run.
type Report struct {
	RunID      string         `json:"run_id"`
	FiscalYear int            `json:"fiscal_year"`
	Published  map[string]int `json:"published"`
}

// Service loads the source tables, builds the dashboards and publishes them.
type Service struct {
	source   store.Source
	sink     publish.Sink
	datasets Datasets
	metrics  *jobmetrics.Metrics
	logger   *slog.Logger
}

// NewService wires the pipeline collaborators. metrics and logger may be nil.
func NewService(source store.Source, sink publish.Sink, datasets Datasets, metrics *jobmetrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, sink: sink, datasets: datasets, metrics: metrics, logger: logger}
}

// Run executes one pipeline run.
func (s *Service) Run(ctx context.Context) (report Report, err error) {
	tracker := s.metrics.Track(JobName)
	defer func() { err = tracker.End(err) }()

	report = Report{RunID: uuid.NewString(), Published: map[string]int{}}
	log := s.logger.With(slog.String("job", JobName), slog.String("run_id", report.RunID))

	tables, err := s.load(ctx)
	if err != nil {
		return report, err
	}
	out, err := Build(tables)
	if err != nil {
		return report, err
	}
	report.FiscalYear = out.FiscalYear
	s.metrics.AddRows(JobName, "synthesized", out.Synthesized)
	if len(out.Ambiguous) > 0 {
		log.Warn("crosswalk maps entities more than once", slog.Any("entities", out.Ambiguous))
	}
	if len(out.Unmapped) > 0 {
		log.Warn("entities without dashboard id", slog.Int("count", len(out.Unmapped)), slog.Any("entities", out.Unmapped))
	}

	for _, t := range []struct {
		dataset string
		rows    []publish.Row
	}{
		{s.datasets.CurrentExpenses, out.CurrentExpenses},
		{s.datasets.PreviousExpenses, out.PreviousExpenses},
		{s.datasets.AllBonds, out.AllBonds},
		{s.datasets.CurrentSummary, out.CurrentSummary},
		{s.datasets.PreviousSummary, out.PreviousSummary},
		{s.datasets.ProgramNames, out.ProgramNames},
		{s.datasets.Lookup, out.Lookup},
	} {
		if err := s.sink.Replace(ctx, t.dataset, t.rows); err != nil {
			return report, err
		}
		report.Published[t.dataset] = len(t.rows)
		s.metrics.AddRows(JobName, "published", len(t.rows))
	}

	log.Info("bond dashboards published", slog.Int("fiscal_year", out.FiscalYear), slog.Int("synthesized", out.Synthesized))
	return report, nil
}

func (s *Service) load(ctx context.Context) (map[string][]store.Row, error) {
	var mu sync.Mutex
	tables := make(map[string][]store.Row, len(Tables))
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range Tables {
		g.Go(func() error {
			rows, err := s.source.Table(ctx, name)
			if err != nil {
				return fmt.Errorf("bond: load %s: %w", name, err)
			}
			mu.Lock()
			tables[name] = rows
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}
