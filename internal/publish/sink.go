// Package publish replaces downstream datasets with freshly computed tables.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// DateLayout is the floating timestamp format expected by the open data portal.
const DateLayout = "2006-01-02T00:00:00.000"

// ErrDataset is returned when a sink is asked to publish without a dataset id.
var ErrDataset = errors.New("publish: dataset id required")

// Row is one output record keyed by column name. Nil values are published as null.
type Row map[string]any

// Sink replaces the full contents of a dataset.
type Sink interface {
	Name() string
	Replace(ctx context.Context, dataset string, rows []Row) error
}

// Observer receives the number of rows written per dataset and sink.
type Observer interface {
	ObservePublished(dataset, sink string, rows int)
}

// FormatDate renders t in DateLayout.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Columns returns the sorted union of column names across rows.
func Columns(rows []Row) []string {
	set := make(map[string]struct{})
	for _, r := range rows {
		for k := range r {
			set[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(set))
	for k := range set {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Multi fans a replace out to every sink concurrently. The first failure cancels the
// remaining uploads.
type Multi struct {
	sinks    []Sink
	observer Observer
}

// NewMulti combines sinks. observer may be nil.
func NewMulti(observer Observer, sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, observer: observer}
}

// Name implements Sink.
func (m *Multi) Name() string { return "multi" }

// Replace implements Sink.
func (m *Multi) Replace(ctx context.Context, dataset string, rows []Row) error {
	if dataset == "" {
		return ErrDataset
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, sink := range m.sinks {
		sink := sink
		g.Go(func() error {
			if err := sink.Replace(ctx, dataset, rows); err != nil {
				return fmt.Errorf("publish: %s %s: %w", sink.Name(), dataset, err)
			}
			if m.observer != nil {
				m.observer.ObservePublished(dataset, sink.Name(), len(rows))
			}
			return nil
		})
	}
	return g.Wait()
}

// Discard logs what would have been published. It stands in for real sinks in test mode
// and when no sink is configured.
type Discard struct {
	Logger *slog.Logger
}

// Name implements Sink.
func (Discard) Name() string { return "discard" }

// Replace implements Sink.
func (d Discard) Replace(ctx context.Context, dataset string, rows []Row) error {
	if d.Logger != nil {
		d.Logger.InfoContext(ctx, "publish skipped", slog.String("dataset", dataset), slog.Int("rows", len(rows)))
	}
	return nil
}
