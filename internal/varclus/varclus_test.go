package varclus

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/jnsofini/auto-scorecard/internal/frame"
)

// twoBlockFrame builds three features driven by one latent factor, two by a
// second independent factor, and one pure noise feature.
func twoBlockFrame(t *testing.T, n int) *frame.Frame {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	cols := map[string][]float64{}
	names := []string{"a1", "a2", "a3", "b1", "b2", "noise"}
	for _, name := range names {
		cols[name] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		a, b := rng.NormFloat64(), rng.NormFloat64()
		cols["a1"][i] = a + 0.2*rng.NormFloat64()
		cols["a2"][i] = a + 0.2*rng.NormFloat64()
		cols["a3"][i] = -a + 0.2*rng.NormFloat64()
		cols["b1"][i] = b + 0.2*rng.NormFloat64()
		cols["b2"][i] = b + 0.2*rng.NormFloat64()
		cols["noise"][i] = rng.NormFloat64()
	}
	var fc []*frame.Column
	for _, name := range names {
		fc = append(fc, frame.NewNumeric(name, cols[name]))
	}
	f, err := frame.New(fc...)
	require.NoError(t, err)
	return f
}

func clusterOf(res *Result) map[string]int {
	out := map[string]int{}
	for _, row := range res.Rows {
		out[row.Variable] = row.Cluster
	}
	return out
}

func TestFit_RecoversBlocks(t *testing.T) {
	f := twoBlockFrame(t, 1000)

	res, err := Fit(context.Background(), f, Options{MaxEigen: 0.7, MaxIter: 100})
	require.NoError(t, err)

	of := clusterOf(res)
	assert.Equal(t, of["a1"], of["a2"])
	assert.Equal(t, of["a1"], of["a3"])
	assert.Equal(t, of["b1"], of["b2"])
	assert.NotEqual(t, of["a1"], of["b1"])
	assert.NotEqual(t, of["noise"], of["a1"])
	assert.NotEqual(t, of["noise"], of["b1"])
	assert.Equal(t, 3, res.NumClusters())
}

func TestFit_ExactPartition(t *testing.T) {
	f := twoBlockFrame(t, 400)

	res, err := Fit(context.Background(), f, Options{MaxEigen: 0.7})
	require.NoError(t, err)

	require.Len(t, res.Rows, f.Width())
	seen := map[string]int{}
	for _, row := range res.Rows {
		seen[row.Variable]++
		assert.GreaterOrEqual(t, row.Cluster, 0)
		assert.Less(t, row.Cluster, res.NumClusters())
		assert.GreaterOrEqual(t, row.RSRatio, 0.0)
		assert.GreaterOrEqual(t, row.RSOwn, 0.0)
		assert.LessOrEqual(t, row.RSOwn, 1.0)
	}
	for _, name := range f.Names() {
		assert.Equal(t, 1, seen[name], name)
	}
	for id, members := range res.Clusters {
		assert.NotEmpty(t, members, "cluster %d", id)
	}
}

func TestFit_MaxClusters(t *testing.T) {
	f := twoBlockFrame(t, 400)

	res, err := Fit(context.Background(), f, Options{MaxEigen: 0.7, MaxClusters: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.NumClusters())
}

func TestFit_HighThresholdKeepsOneCluster(t *testing.T) {
	f := twoBlockFrame(t, 400)

	res, err := Fit(context.Background(), f, Options{MaxEigen: 100})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NumClusters())
	for _, row := range res.Rows {
		assert.Equal(t, 0.0, row.RSNC)
	}
}

func TestFit_SingleFeature(t *testing.T) {
	f, err := frame.New(frame.NewNumeric("only", []float64{1, 2, 3, 4}))
	require.NoError(t, err)

	res, err := Fit(context.Background(), f, Options{MaxEigen: 0.7})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, 0, res.Rows[0].Cluster)
	assert.InDelta(t, 1, res.Rows[0].RSOwn, 1e-12)
	assert.InDelta(t, 0, res.Rows[0].RSRatio, 1e-12)
}

func TestFit_EmptyFrame(t *testing.T) {
	f, err := frame.New()
	require.NoError(t, err)

	res, err := Fit(context.Background(), f, Options{MaxEigen: 0.7})
	require.NoError(t, err)
	assert.Equal(t, 0, res.NumClusters())
}

func TestCorrelation_ConstantColumn(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
	})

	corr := Correlation(x)
	assert.Equal(t, 1.0, corr.At(0, 0))
	assert.Equal(t, 1.0, corr.At(1, 1))
	assert.Equal(t, 0.0, corr.At(0, 1))
}

func TestQuartimax_MaximizesCriterion(t *testing.T) {
	l1 := []float64{0.8, 0.7, 0.6, 0.5}
	l2 := []float64{0.5, 0.4, -0.6, -0.7}

	criterion := func(theta float64) float64 {
		c, s := math.Cos(theta), math.Sin(theta)
		var q float64
		for i := range l1 {
			r1 := l1[i]*c + l2[i]*s
			r2 := -l1[i]*s + l2[i]*c
			q += math.Pow(r1, 4) + math.Pow(r2, 4)
		}
		return q
	}

	best := criterion(quartimax(l1, l2))
	for k := 0; k < 360; k++ {
		assert.GreaterOrEqual(t, best+1e-9, criterion(float64(k)*math.Pi/180))
	}
}
