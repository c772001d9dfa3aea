package fetcher

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnsofini/auto-scorecard/internal/frame"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRowsToFrame_InfersKinds(t *testing.T) {
	f, err := RowsToFrame(
		[]string{"MSinceMostRecentDelq", "Purpose", "Mixed"},
		[][]string{
			{"12", "car", "1"},
			{"NA", "Café", "x"},
			{"-7"},
		},
	)
	require.NoError(t, err)

	delq, _ := f.Column("MSinceMostRecentDelq")
	assert.Equal(t, frame.Numeric, delq.Kind)
	assert.Equal(t, 12.0, delq.Num[0])
	assert.True(t, math.IsNaN(delq.Num[1]))
	assert.Equal(t, -7.0, delq.Num[2])

	purpose, _ := f.Column("Purpose")
	assert.Equal(t, frame.Categorical, purpose.Kind)
	assert.Equal(t, "Café", purpose.Cat[1], "levels are NFC-normalized")
	assert.True(t, purpose.IsMissing(2))

	mixed, _ := f.Column("Mixed")
	assert.Equal(t, frame.Categorical, mixed.Kind)
}

func TestLoadFrame_CSV(t *testing.T) {
	path := writeFile(t, "X_train.csv", "a,b\n1,x\n2,y\n")

	f, err := LoadFrame(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Rows())
	assert.Equal(t, []string{"b"}, f.CategoricalNames())
}

func TestLoadFrame_XLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {{"a", "b"}, {"1", "x"}, {"2", "y"}, {"3", "z"}},
	})

	f, err := LoadFrame(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, f.Rows())
	a, _ := f.Column("a")
	assert.Equal(t, []float64{1, 2, 3}, a.Num)
}

type parquetRecord struct {
	Score  float64 `parquet:"score"`
	Count  int64   `parquet:"count"`
	Region string  `parquet:"region"`
}

func TestLoadFrame_Parquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "X_train.parquet")
	require.NoError(t, parquet.WriteFile(path, []parquetRecord{
		{Score: 0.5, Count: 3, Region: "north"},
		{Score: 1.5, Count: -9, Region: "south"},
	}))

	f, err := LoadFrame(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Rows())

	score, ok := f.Column("score")
	require.True(t, ok)
	assert.Equal(t, []float64{0.5, 1.5}, score.Num)

	count, ok := f.Column("count")
	require.True(t, ok)
	assert.Equal(t, []float64{3, -9}, count.Num)

	region, ok := f.Column("region")
	require.True(t, ok)
	assert.Equal(t, frame.Categorical, region.Kind)
	assert.Equal(t, []string{"north", "south"}, region.Cat)
}

func TestLoadFrame_UnsupportedExtension(t *testing.T) {
	_, err := LoadFrame(context.Background(), "data.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestLoadTarget_Numeric(t *testing.T) {
	path := writeFile(t, "y.csv", "RiskPerformance\n0\n1\n1\n")

	y, err := LoadTarget(context.Background(), path, TargetOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 1}, y)
}

func TestLoadTarget_CategoricalLabel(t *testing.T) {
	path := writeFile(t, "y.csv", "id,RiskPerformance\n1,Bad\n2,Good\n")

	y, err := LoadTarget(context.Background(), path, TargetOptions{Column: "RiskPerformance", PositiveLabel: "Bad"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, y)
}

func TestTargetFromFrame_Errors(t *testing.T) {
	twoCols, err := frame.New(frame.NewNumeric("a", []float64{0}), frame.NewNumeric("b", []float64{1}))
	require.NoError(t, err)
	badValue, err := frame.New(frame.NewNumeric("y", []float64{0, 2}))
	require.NoError(t, err)
	missing, err := frame.New(frame.NewNumeric("y", []float64{0, math.NaN()}))
	require.NoError(t, err)
	noLabel, err := frame.New(frame.NewCategorical("y", []string{"Bad"}))
	require.NoError(t, err)

	tests := []struct {
		name string
		f    *frame.Frame
		opts TargetOptions
		want string
	}{
		{"ambiguous column", twoCols, TargetOptions{}, "set data.target"},
		{"unknown column", twoCols, TargetOptions{Column: "c"}, "target column missing"},
		{"non-binary", badValue, TargetOptions{}, "want 0 or 1"},
		{"missing label", missing, TargetOptions{}, "missing"},
		{"no positive label", noLabel, TargetOptions{}, "positive label"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TargetFromFrame(tt.f, tt.opts)
			require.Error(t, err)
			var se *frame.SchemaError
			assert.True(t, errors.As(err, &se))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
