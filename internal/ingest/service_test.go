package ingest

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bondtrack/bondtrack/internal/ledger"
)

type stubFetcher struct {
	bodies map[string]string
}

func (s stubFetcher) Open(_ context.Context, src Source) (io.ReadCloser, error) {
	body, ok := s.bodies[src.Key]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

type recordingWriter struct {
	mu      sync.Mutex
	tables  map[string]*Table
	batches map[string]string
}

func (w *recordingWriter) ReplaceBatch(_ context.Context, table string, data *Table, batchID string, _ time.Time) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tables == nil {
		w.tables = map[string]*Table{}
		w.batches = map[string]string{}
	}
	w.tables[table] = data
	w.batches[table] = batchID
	return int64(len(data.Rows)), nil
}

type countingInvalidator struct {
	mu    sync.Mutex
	bumps int
}

func (c *countingInvalidator) Bump(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bumps++
	return nil
}

func lookupSource(key, table string) Source {
	return Source{
		Key:       key,
		Table:     table,
		Origin:    OriginHTTP,
		FieldMaps: map[string]string{"AIMS Dept Prog Act": "aims_dept_prog_act", "Dashboard DeptFundProgAct": "dashboard_deptfundprogact"},
		Schema: Schema{Strict: true, Columns: []Column{
			{Name: "aims_dept_prog_act", Type: TypeString},
			{Name: "dashboard_deptfundprogact", Type: TypeString},
		}},
	}
}

func TestServiceRunLoadsEverySource(t *testing.T) {
	catalog := &Catalog{Sources: []Source{
		lookupSource("a.csv", "bond_2020_aims_to_dashboard"),
		lookupSource("b.csv", "all_bonds_aims_to_dashboard"),
	}}
	fetcher := stubFetcher{bodies: map[string]string{
		"a.csv": "AIMS Dept Prog Act,Dashboard DeptFundProgAct\n62008613,A1\n62008614,A1\n",
		"b.csv": "AIMS Dept Prog Act,Dashboard DeptFundProgAct\n62008613,B1\n",
	}}
	writer := &recordingWriter{}
	inv := &countingInvalidator{}

	svc := NewService(ServiceConfig{Catalog: catalog, Fetcher: fetcher, Writer: writer, Invalidator: inv, Concurrency: 2})
	results, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "all_bonds_aims_to_dashboard", results[0].Table)
	require.EqualValues(t, 1, results[0].Rows)
	require.EqualValues(t, 2, results[1].Rows)
	require.NotEqual(t, results[0].BatchID, results[1].BatchID)
	require.Equal(t, results[1].BatchID, writer.batches["bond_2020_aims_to_dashboard"])
	require.Equal(t, 1, inv.bumps)
}

func TestServiceRunReportsFailures(t *testing.T) {
	catalog := &Catalog{Sources: []Source{
		lookupSource("a.csv", "bond_2020_aims_to_dashboard"),
		lookupSource("missing.csv", "all_bonds_aims_to_dashboard"),
	}}
	fetcher := stubFetcher{bodies: map[string]string{
		"a.csv": "AIMS Dept Prog Act\n62008613\n",
	}}
	writer := &recordingWriter{}
	inv := &countingInvalidator{}

	svc := NewService(ServiceConfig{Catalog: catalog, Fetcher: fetcher, Writer: writer, Invalidator: inv})
	_, err := svc.Run(context.Background(), "bond_2020_aims_to_dashboard")
	require.ErrorIs(t, err, ledger.ErrMissingColumn)
	require.Empty(t, writer.tables)
	require.Zero(t, inv.bumps)

	_, err = svc.Run(context.Background(), "nope")
	require.ErrorIs(t, err, ErrUnknownSource)
}

func TestFetchersDispatchOnOrigin(t *testing.T) {
	f := Fetchers{OriginHTTP: stubFetcher{bodies: map[string]string{"a.csv": "x"}}}
	rc, err := f.Open(context.Background(), Source{Key: "a.csv", Origin: OriginHTTP})
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	_, err = f.Open(context.Background(), Source{Key: "a.csv", Origin: OriginS3})
	require.ErrorContains(t, err, "no fetcher")
}
