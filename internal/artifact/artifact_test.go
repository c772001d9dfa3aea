package artifact

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/jnsofini/auto-scorecard/internal/model"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	fh, err := os.Open(path)
	require.NoError(t, err)
	defer fh.Close()
	records, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteAtomic_NoPartialFileOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")

	err := WriteAtomic(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file is cleaned up")
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")

	require.NoError(t, WriteJSON(path, map[string]int{"base": 612}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"base": 612}`, string(data))
}

func TestScorecardTable_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scorecard-table.csv")
	rows := []model.ScorecardRow{
		{Variable: model.BaseVariable, Points: 612},
		{Variable: "ExternalRiskEstimate", Bin: "(-inf, 63.5)", Count: 120, EventRate: 0.71234, WoE: -1.23456, Coefficient: -0.84321, Points: -45},
	}

	require.NoError(t, WriteCSV(path, ScorecardTable(rows)))

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"variable", "bin", "count", "event_rate", "woe", "coefficient", "points"}, records[0])
	assert.Equal(t, "(base)", records[1][0])
	assert.Equal(t, "612", records[1][6])
	assert.Equal(t, []string{"ExternalRiskEstimate", "(-inf, 63.5)", "120", "0.712", "-1.235", "-0.843", "-45"}, records[2])
}

func TestClusterTable(t *testing.T) {
	table := ClusterTable([]model.ClusterRow{
		{Cluster: 0, Variable: "a", RSOwn: 0.9, RSNC: 0.1, RSRatio: 0.1111, IV: 0.5, HasIV: true, Selected: true},
		{Cluster: 1, Variable: "b", RSOwn: 1, RSRatio: 0},
	})

	assert.Equal(t, "cluster_iv_selection", table.Header[6])
	assert.Equal(t, []string{"0", "a", "0.9", "0.1", "0.111", "0.5", "true"}, table.Rows[0])
	assert.Equal(t, "", table.Rows[1][5], "IV left blank when unknown")
}

func TestIVAndBinTables(t *testing.T) {
	iv := IVTable([]model.IVRow{{Name: "x", Dtype: "numerical", NBins: 6, IV: 0.31415, Gini: 0.4, Selected: true}})
	assert.Equal(t, []string{"x", "numerical", "6", "0.314", "0.4", "true"}, iv.Rows[0])

	bins := BinTable([]model.BinRow{{Name: "x", Bin: "Missing", Count: 3, CountPct: 0.0003, WoE: math.NaN()}})
	assert.Equal(t, "0", bins.Rows[0][3])
	assert.Equal(t, "", bins.Rows[0][7])
}

func TestScoresTable(t *testing.T) {
	table := ScoresTable(nil, []int{600, 710}, []float64{0.25, 0.05})
	assert.Equal(t, []string{"0", "600", "0.250000"}, table.Rows[0])

	table = ScoresTable([]string{"c-1", "c-2"}, []int{600, 710}, []float64{0.25, 0.05})
	assert.Equal(t, "c-2", table.Rows[1][0])
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scorecard.xlsx")
	iv := IVTable([]model.IVRow{{Name: "x", Dtype: "numerical", NBins: 4, IV: 0.2}})
	sc := ScorecardTable([]model.ScorecardRow{{Variable: model.BaseVariable, Points: 600}})

	require.NoError(t, WriteWorkbook(path, iv, sc))

	wb, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 2)
	assert.Equal(t, "iv", wb.Sheets[0].Name)
	assert.Equal(t, "name", wb.Sheets[0].Rows[0].Cells[0].String())
	assert.Equal(t, "x", wb.Sheets[0].Rows[1].Cells[0].String())
	assert.Equal(t, "scorecard", wb.Sheets[1].Name)
}
