package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnsofini/auto-scorecard/internal/config"
	"github.com/jnsofini/auto-scorecard/internal/pipeline"
	"github.com/jnsofini/auto-scorecard/internal/store"
)

// writeTrainingFiles writes X.csv and y.csv with one numeric driver, one
// categorical driver and one noise column.
func writeTrainingFiles(t *testing.T, dir string, n int) (string, string) {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	var x, y strings.Builder
	x.WriteString("ExternalRiskEstimate,HomeOwnership,Noise\n")
	y.WriteString("RiskPerformance\n")
	levels := []string{"rent", "own", "mortgage"}
	levelRisk := []float64{0.25, -0.2, -0.05}
	// Noise values are dealt round-robin per label so none carries signal.
	dealt := map[string]int{}
	for i := 0; i < n; i++ {
		v := math.Floor(rng.Float64() * 100)
		k := rng.Intn(3)
		label := "Good"
		if rng.Float64() < 0.1+0.6*(100-v)/100+levelRisk[k] {
			label = "Bad"
		}
		noise := dealt[label] % 10
		dealt[label]++
		fmt.Fprintf(&x, "%g,%s,%d\n", v, levels[k], noise)
		fmt.Fprintf(&y, "%s\n", label)
	}
	xPath := filepath.Join(dir, "X.csv")
	yPath := filepath.Join(dir, "y.csv")
	require.NoError(t, os.WriteFile(xPath, []byte(x.String()), 0o644))
	require.NoError(t, os.WriteFile(yPath, []byte(y.String()), 0o644))
	return xPath, yPath
}

func testConfig(dir, xPath, yPath string) *config.Config {
	c := &config.Config{}
	c.Data.XTrain = xPath
	c.Data.YTrain = yPath
	c.Data.PositiveLabel = "Bad"
	c.Binning.SpecialCodes = []float64{-9, -8, -7}
	c.Binning.MissingCodes = []float64{-99_000_000}
	c.Binning.MinPrebinSize = 1e-4
	c.Binning.MaxNPrebins = 20
	c.Binning.MinIV = 0.1
	c.Binning.DefaultTrend = "auto"
	c.Cluster.MaxEigen = 0.7
	c.Cluster.MaxIter = 100
	c.Selection.CVFolds = 5
	c.Selection.C = 1
	c.Selection.MaxIter = 100
	c.Selection.ScoreTolerance = 1e-9
	c.Selection.MinFeatures = 1
	c.Scaling.PDO = 30
	c.Scaling.Odds = 20
	c.Scaling.Points = 750
	c.Scaling.InterceptBased = true
	c.Output.Dir = filepath.Join(dir, "pipeline")
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(dir, "pipeline", "runs.db")
	c.Server.ModelPath = filepath.Join(dir, "pipeline", pipeline.ModelFile)
	return c
}

func TestRunFit_ThenScore(t *testing.T) {
	dir := t.TempDir()
	xPath, yPath := writeTrainingFiles(t, dir, 1500)
	c := testConfig(dir, xPath, yPath)

	res, err := runFit(context.Background(), c)
	require.NoError(t, err)
	require.NotNil(t, res.Model)
	assert.NotEmpty(t, res.RunID)
	assert.NotContains(t, res.Model.Names(), "Noise")
	assert.Contains(t, res.Model.Names(), "ExternalRiskEstimate")

	var summary bytes.Buffer
	printFitSummary(&summary, res)
	assert.Contains(t, summary.String(), "Base points:")
	assert.Contains(t, summary.String(), pipeline.ModelFile)

	// The run is recorded with its config hash.
	st, err := store.Open(context.Background(), c.Store)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	run, err := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.ConfigHash(c.Scorecard()), run.Input.ConfigHash)
	assert.Equal(t, 1500, run.Input.Rows)

	out := filepath.Join(dir, "scores.csv")
	require.NoError(t, scoreFile(context.Background(), c.Server.ModelPath, xPath, out, ""))

	fh, err := os.Open(out)
	require.NoError(t, err)
	defer fh.Close() //nolint:errcheck
	records, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1501)
	assert.Equal(t, []string{"id", "score", "probability"}, records[0])
	assert.Equal(t, "0", records[1][0])
}

func TestRunFit_InvalidConfig(t *testing.T) {
	c := testConfig(t.TempDir(), "", "")

	_, err := runFit(context.Background(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data.x_train is required")
}

func TestScoreFile_IDColumn(t *testing.T) {
	dir := t.TempDir()
	xPath, yPath := writeTrainingFiles(t, dir, 1500)
	c := testConfig(dir, xPath, yPath)
	c.Store.Driver = "unknown"

	res, err := runFit(context.Background(), c)
	require.NoError(t, err)
	assert.Empty(t, res.RunID)

	out := filepath.Join(dir, "scores.csv")
	err = scoreFile(context.Background(), c.Server.ModelPath, xPath, out, "missing_id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing_id")

	require.NoError(t, scoreFile(context.Background(), c.Server.ModelPath, xPath, out, "Noise"))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "id,score,probability\n"))
}

func TestDataPath(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "X.csv")
	require.NoError(t, os.WriteFile(existing, []byte("a\n1\n"), 0o644))

	assert.Equal(t, existing, dataPath("data", existing))
	assert.Equal(t, filepath.Join("data", "X_train.parquet"), dataPath("data", "X_train.parquet"))
	assert.Equal(t, "X_train.parquet", dataPath("", "X_train.parquet"))
}
