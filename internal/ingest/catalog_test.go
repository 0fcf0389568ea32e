package ingest

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCatalogShipsEverySource(t *testing.T) {
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	cat, err := LoadCatalog(filepath.Join(filepath.Dir(file), "..", "..", "config", "catalog.yaml"))
	require.NoError(t, err)
	require.Equal(t, "atd-microstrategy-reports", cat.Bucket)

	sources, err := cat.Select("bond_2020_current_fy_spend_plan", "fdu_expenses_quarterly")
	require.NoError(t, err)
	require.Len(t, sources, 2)
	require.Equal(t, OriginHTTP, sources[0].Origin)
	require.True(t, sources[0].DateField)
	require.Equal(t, []string{"dashboard_deptfundprogact", "date", "amount"}, sources[0].Schema.ColumnNames())
	require.Equal(t, OriginS3, sources[1].Origin)
	require.Equal(t, "month-year", sources[1].FieldMaps["Fiscal Month-Fiscal Year"])
}

func TestParseCatalogRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"unknown key", `
sources:
  - key: a.csv
    table: a
    origin: http
    fields: {}
`},
		{"bad origin", `
sources:
  - key: a.csv
    table: a
    origin: ftp
    field_maps: {A: a}
    schema: {columns: [{name: a, type: str}]}
`},
		{"bad type", `
sources:
  - key: a.csv
    table: a
    origin: http
    field_maps: {A: a}
    schema: {columns: [{name: a, type: bool}]}
`},
		{"s3 without bucket", `
sources:
  - key: a.csv
    table: a
    origin: s3
    field_maps: {A: a}
    schema: {columns: [{name: a, type: str}]}
`},
		{"duplicate table", `
sources:
  - key: a.csv
    table: a
    origin: http
    field_maps: {A: a}
    schema: {columns: [{name: a, type: str}]}
  - key: b.csv
    table: a
    origin: http
    field_maps: {A: a}
    schema: {columns: [{name: a, type: str}]}
`},
		{"empty", `sources: []`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tc.raw))
			require.Error(t, err)
		})
	}
}

func TestSelectUnknownTable(t *testing.T) {
	cat := &Catalog{Sources: []Source{{Table: "a"}}}
	all, err := cat.Select()
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = cat.Select("b")
	require.ErrorIs(t, err, ErrUnknownSource)
}
