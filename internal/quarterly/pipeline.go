// Package quarterly builds the quarterly FDU spending report: the unit metadata table and
// the current and previous quarter views of expenses against the spend plan.
package quarterly

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bondtrack/bondtrack/internal/fiscal"
	jobmetrics "github.com/bondtrack/bondtrack/internal/jobs"
	"github.com/bondtrack/bondtrack/internal/ledger"
	"github.com/bondtrack/bondtrack/internal/publish"
	"github.com/bondtrack/bondtrack/internal/store"
)

// JobName labels quarterly runs in metrics and logs.
const JobName = "quarterly"

// Source tables read by the pipeline.
const (
	TableMetadata  = "fdu_metadata_quarterly"
	TableExpenses  = "fdu_expenses_quarterly"
	TableSpendPlan = "quarterly_spend_plan"
)

const (
	bikewaysProgram   = "D001"
	unassignedSubprog = "ZZZZ"
)

// Datasets names the published dataset of each output.
type Datasets struct {
	Metadata string
	Report   string
}

// Output holds the tables of one run.
type Output struct {
	Metadata []publish.Row
	Report   []publish.Row
	Current  string
	Previous string
}

// Build transforms the loaded source tables.
func Build(metadata, expenses, plan []store.Row) (*Output, error) {
	meta, err := transformMetadata(metadata)
	if err != nil {
		return nil, err
	}
	actuals, err := expenseAmounts(expenses)
	if err != nil {
		return nil, err
	}
	planned, err := planAmounts(plan)
	if err != nil {
		return nil, err
	}
	current, previous, err := ledger.ReshapeQuarters(actuals, planned)
	if err != nil {
		return nil, fmt.Errorf("quarterly: %s: %w", TableExpenses, err)
	}
	report := make([]publish.Row, 0, len(current.Rows)+len(previous.Rows))
	report = append(report, quarterRows(current)...)
	report = append(report, quarterRows(previous)...)
	return &Output{Metadata: meta, Report: report, Current: current.Label, Previous: previous.Label}, nil
}

// transformMetadata groups bikeway subprograms and unassigned subprograms under their
// program name and qualifies unit codes with the department.
func transformMetadata(rows []store.Row) ([]publish.Row, error) {
	out := make([]publish.Row, 0, len(rows))
	for i, row := range rows {
		cols, err := row.Strings("department", "unit_code", "program_code", "program_long_name", "subprogram_code")
		if err != nil {
			return nil, fmt.Errorf("quarterly: %s row %d: %w", TableMetadata, i, err)
		}
		dept, unit, program, programName, subprogram := cols[0], cols[1], cols[2], cols[3], cols[4]

		r := make(publish.Row, len(row))
		for k, v := range row {
			switch k {
			case "department", "department_long_name", "batch_id", "updated_at":
				continue
			}
			r[k] = v
		}
		if program == bikewaysProgram || subprogram == unassignedSubprog {
			r["subprogram_long_name"] = programName
		}
		r["unit_code"] = dept + unit
		out = append(out, r)
	}
	return out, nil
}

func unitKey(table string, i int, row store.Row) (string, error) {
	parts, err := row.Strings("department", "unit_code")
	if err != nil {
		return "", fmt.Errorf("quarterly: %s row %d: %w", table, i, err)
	}
	return ledger.EntityKey(parts...), nil
}

func fiscalMonth(table string, i int, row store.Row, ordinal string) (fiscal.Month, error) {
	fy, err := row.Int("fiscal_year")
	if err != nil {
		return fiscal.Month{}, fmt.Errorf("quarterly: %s row %d: %w", table, i, err)
	}
	ord, err := strconv.Atoi(ordinal)
	if err != nil {
		return fiscal.Month{}, fmt.Errorf("quarterly: %s row %d: %w", table, i, err)
	}
	return fiscal.Month{Year: fy, Ordinal: ord}, nil
}

func expenseAmounts(rows []store.Row) ([]ledger.MonthlyAmount, error) {
	out := make([]ledger.MonthlyAmount, 0, len(rows))
	for i, row := range rows {
		entity, err := unitKey(TableExpenses, i, row)
		if err != nil {
			return nil, err
		}
		label, err := row.String("month-year")
		if err != nil {
			return nil, fmt.Errorf("quarterly: %s row %d: %w", TableExpenses, i, err)
		}
		ord, err := fiscal.MonthOrdinal(label)
		if err != nil {
			return nil, fmt.Errorf("quarterly: %s row %d: %w", TableExpenses, i, err)
		}
		month, err := fiscalMonth(TableExpenses, i, row, ord)
		if err != nil {
			return nil, err
		}
		amount, err := row.Decimal("expenses")
		if err != nil {
			return nil, fmt.Errorf("quarterly: %s row %d: %w", TableExpenses, i, err)
		}
		out = append(out, ledger.MonthlyAmount{Entity: entity, Month: month, Amount: amount})
	}
	return out, nil
}

func planAmounts(rows []store.Row) ([]ledger.MonthlyAmount, error) {
	out := make([]ledger.MonthlyAmount, 0, len(rows))
	for i, row := range rows {
		entity, err := unitKey(TableSpendPlan, i, row)
		if err != nil {
			return nil, err
		}
		name, err := row.String("month")
		if err != nil {
			return nil, fmt.Errorf("quarterly: %s row %d: %w", TableSpendPlan, i, err)
		}
		ord, err := fiscal.EncodeMonth(name)
		if err != nil {
			return nil, fmt.Errorf("quarterly: %s row %d: %w", TableSpendPlan, i, err)
		}
		month, err := fiscalMonth(TableSpendPlan, i, row, ord)
		if err != nil {
			return nil, err
		}
		amount, err := row.Decimal("spend_plan")
		if err != nil {
			return nil, fmt.Errorf("quarterly: %s row %d: %w", TableSpendPlan, i, err)
		}
		out = append(out, ledger.MonthlyAmount{Entity: entity, Month: month, Amount: amount})
	}
	return out, nil
}

func quarterRows(t ledger.QuarterTable) []publish.Row {
	out := make([]publish.Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := publish.Row{
			"unit_code":         r.Entity,
			"month_col":         r.MonthCol,
			"month_name":        r.MonthName,
			"expenses":          r.Expenses,
			"spend_plan":        r.SpendPlan,
			"sum_expenses":      nil,
			"sum_planned":       nil,
			"quarter_selection": r.QuarterSelection,
		}
		if r.SumExpenses != nil {
			row["sum_expenses"] = *r.SumExpenses
		}
		if r.SumPlanned != nil {
			row["sum_planned"] = *r.SumPlanned
		}
		out = append(out, row)
	}
	return out
}

// Report summarises a completed run.
type Report struct {
	RunID     string         `json:"run_id"`
	Current   string         `json:"current_quarter"`
	Previous  string         `json:"previous_quarter"`
	Published map[string]int `json:"published"`
}

// Service runs the quarterly pipeline.
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

// Run executes one pipeline run. Outputs without a configured dataset are skipped.
func (s *Service) Run(ctx context.Context) (report Report, err error) {
	tracker := s.metrics.Track(JobName)
	defer func() { err = tracker.End(err) }()

	report = Report{RunID: uuid.NewString(), Published: map[string]int{}}
	log := s.logger.With(slog.String("job", JobName), slog.String("run_id", report.RunID))

	var metadata, expenses, plan []store.Row
	g, gctx := errgroup.WithContext(ctx)
	for name, dest := range map[string]*[]store.Row{
		TableMetadata:  &metadata,
		TableExpenses:  &expenses,
		TableSpendPlan: &plan,
	} {
		g.Go(func() error {
			rows, err := s.source.Table(gctx, name)
			if err != nil {
				return fmt.Errorf("quarterly: load %s: %w", name, err)
			}
			*dest = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	out, err := Build(metadata, expenses, plan)
	if err != nil {
		return report, err
	}
	report.Current, report.Previous = out.Current, out.Previous

	for _, t := range []struct {
		dataset string
		rows    []publish.Row
	}{
		{s.datasets.Metadata, out.Metadata},
		{s.datasets.Report, out.Report},
	} {
		if t.dataset == "" {
			log.Warn("dataset not configured, output skipped", slog.Int("rows", len(t.rows)))
			continue
		}
		if err := s.sink.Replace(ctx, t.dataset, t.rows); err != nil {
			return report, err
		}
		report.Published[t.dataset] = len(t.rows)
		s.metrics.AddRows(JobName, "published", len(t.rows))
	}

	log.Info("quarterly report published", slog.String("current", out.Current), slog.String("previous", out.Previous))
	return report, nil
}
