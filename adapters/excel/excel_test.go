package excel

import (
	"math"
	"path/filepath"
	"testing"

	"timbersim/domain/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.New()
	require.NoError(t, tbl.AddCategorical("country", []string{"at", "de", "at"}))
	require.NoError(t, tbl.AddNumeric("f", []float64{30.5, math.NaN(), 28.25}))
	require.NoError(t, tbl.AddNumeric("E", []float64{11000, 11450, 10725}))
	return tbl
}

func assertRestored(t *testing.T, got *table.Table) {
	t.Helper()
	require.Equal(t, 3, got.RowCount())
	require.Equal(t, 3, got.ColumnCount())

	country, ok := got.Categorical("country")
	require.True(t, ok, "country should come back categorical")
	assert.Equal(t, []string{"at", "de", "at"}, country)

	f, ok := got.Numeric("f")
	require.True(t, ok, "f should come back numeric")
	assert.Equal(t, 30.5, f[0])
	assert.True(t, table.IsMissing(f[1]), "empty cell should read as missing")
	assert.Equal(t, 28.25, f[2])

	e, _ := got.Numeric("E")
	assert.Equal(t, []float64{11000, 11450, 10725}, e)
}

func TestRoundTrip(t *testing.T) {
	for _, ext := range []string{".csv", ".xlsx"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "boards"+ext)
			require.NoError(t, NewDataWriter(path).Write(sampleTable(t)))

			got, err := NewDataReader(path).Read()
			require.NoError(t, err)
			assertRestored(t, got)
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	_, err := NewDataReader(filepath.Join(t.TempDir(), "absent.csv")).Read()
	assert.Error(t, err)
}

func TestBuildTable_RequiresHeaderAndData(t *testing.T) {
	_, err := buildTable([][]string{{"f", "E"}})
	assert.Error(t, err)
}

func TestBuildTable_RaggedRows(t *testing.T) {
	tbl, err := buildTable([][]string{
		{"country", "f"},
		{"at", "30.5"},
		{"de"},
	})
	require.NoError(t, err)

	f, _ := tbl.Numeric("f")
	assert.Equal(t, 30.5, f[0])
	assert.True(t, table.IsMissing(f[1]), "short row should pad with missing")
}
