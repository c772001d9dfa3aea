package binning

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnsofini/auto-scorecard/internal/frame"
)

var testOptions = Options{
	SpecialCodes:  []float64{-9, -8, -7},
	MissingCodes:  []float64{-99_000_000},
	MinPrebinSize: 1e-4,
	MaxNPrebins:   20,
	Trend:         TrendAuto,
}

// riskyColumn draws x uniformly on [0, 100) with event probability rising in x.
func riskyColumn(n int, seed int64) (*frame.Column, []int) {
	rng := rand.New(rand.NewSource(seed))
	vals := make([]float64, n)
	y := make([]int, n)
	for i := range vals {
		x := math.Floor(rng.Float64() * 100)
		vals[i] = x
		if rng.Float64() < 0.05+0.6*x/100 {
			y[i] = 1
		}
	}
	return frame.NewNumeric("NetFractionRevolvingBurden", vals), y
}

// balancedNoise deals values 0..levels-1 round-robin within each class, so
// every value carries the overall event rate up to one row.
func balancedNoise(y []int, levels int) []float64 {
	var next [2]int
	out := make([]float64, len(y))
	for i, label := range y {
		out[i] = float64(next[label] % levels)
		next[label]++
	}
	return out
}

func regularRates(f *Feature) []float64 {
	var rates []float64
	for _, b := range f.Bins[:f.NumRegular()] {
		rates = append(rates, b.EventRate)
	}
	return rates
}

func TestFit_AscendingTrendIsMonotonic(t *testing.T) {
	c, y := riskyColumn(2000, 1)
	opts := testOptions
	opts.Trend = TrendAscending

	f, err := Fit(c, y, opts)
	require.NoError(t, err)

	rates := regularRates(f)
	require.Greater(t, len(rates), 1)
	for i := 1; i < len(rates); i++ {
		assert.GreaterOrEqual(t, rates[i], rates[i-1], "bin %d", i)
	}
	assert.Equal(t, TrendAscending, f.Trend)
	assert.Greater(t, f.IV, 0.1)
	assert.Greater(t, f.Gini, 0.0)
}

func TestFit_DescendingTrendIsMonotonic(t *testing.T) {
	c, y := riskyColumn(2000, 2)
	opts := testOptions
	opts.Trend = TrendDescending

	f, err := Fit(c, y, opts)
	require.NoError(t, err)

	rates := regularRates(f)
	for i := 1; i < len(rates); i++ {
		assert.LessOrEqual(t, rates[i], rates[i-1], "bin %d", i)
	}
}

// separatingColumn cycles through 0..99 and puts every row at or above 50
// in the event class.
func separatingColumn(n int) (*frame.Column, []int) {
	vals := make([]float64, n)
	y := make([]int, n)
	for i := range vals {
		vals[i] = float64(i % 100)
		if vals[i] >= 50 {
			y[i] = 1
		}
	}
	return frame.NewNumeric("ExternalRiskEstimate", vals), y
}

func regularWoE(f *Feature) []float64 {
	var woe []float64
	for _, b := range f.Bins[:f.NumRegular()] {
		woe = append(woe, b.WoE)
	}
	return woe
}

func TestFit_PureBinsArePooled(t *testing.T) {
	c, y := separatingColumn(1000)
	for _, trend := range []Trend{TrendAscending, TrendAuto} {
		opts := testOptions
		opts.Trend = trend

		f, err := Fit(c, y, opts)
		require.NoError(t, err)
		require.Equal(t, 2, f.NumRegular(), "trend %s", trend)
		assert.Equal(t, []float64{0, 1}, regularRates(f))
		assert.Equal(t, []float64{49.5}, f.Splits)
		assert.Greater(t, f.Bins[0].WoE, f.Bins[1].WoE)
	}
}

func TestFit_WoEStrictlyMonotonicWithTrend(t *testing.T) {
	tests := []struct {
		trend Trend
		seed  int64
	}{
		{TrendAscending, 11},
		{TrendDescending, 12},
		{TrendAuto, 13},
	}
	for _, tt := range tests {
		t.Run(string(tt.trend), func(t *testing.T) {
			risky, y := riskyColumn(1500, tt.seed)
			// Pure tails of different sizes at both ends.
			vals := make([]float64, len(y))
			for i, x := range risky.Num {
				switch {
				case x < 5:
					y[i] = 0
				case x >= 97:
					y[i] = 1
				}
				vals[i] = x
				if tt.trend == TrendDescending {
					vals[i] = 99 - x
				}
			}
			c := frame.NewNumeric(risky.Name, vals)
			opts := testOptions
			opts.Trend = tt.trend

			f, err := Fit(c, y, opts)
			require.NoError(t, err)

			rates := regularRates(f)
			woe := regularWoE(f)
			require.Greater(t, len(rates), 1)
			for i := 1; i < len(rates); i++ {
				assert.NotEqual(t, rates[i-1], rates[i], "bin %d repeats an event rate", i)
				if f.Trend == TrendDescending {
					assert.Greater(t, woe[i], woe[i-1], "bin %d", i)
				} else {
					assert.Less(t, woe[i], woe[i-1], "bin %d", i)
				}
			}
		})
	}
}

func TestPava_PoolsEqualRates(t *testing.T) {
	groups := []group{
		{count: 10, event: 0, min: 0, max: 0},
		{count: 40, event: 0, min: 1, max: 1},
		{count: 20, event: 10, min: 2, max: 2},
		{count: 10, event: 5, min: 3, max: 3},
		{count: 5, event: 5, min: 4, max: 4},
	}

	pooled := pava(groups, true)
	require.Len(t, pooled, 3)
	assert.Equal(t, 50, pooled[0].count)
	assert.Equal(t, 30, pooled[1].count)
	assert.Equal(t, 15, pooled[1].event)
	assert.Equal(t, 5, pooled[2].count)
}

func TestPava_SmallPureBinAfterLowRate(t *testing.T) {
	// A pure bin of 10 rows has smoothed odds 0.5:10, above the 1:100 of
	// the next bin, so an ascending fit pools them although raw rates rise.
	groups := []group{
		{count: 10, event: 0, min: 0, max: 0},
		{count: 101, event: 1, min: 1, max: 1},
		{count: 50, event: 25, min: 2, max: 2},
	}

	pooled := pava(groups, true)
	require.Len(t, pooled, 2)
	assert.Equal(t, 111, pooled[0].count)
	assert.Equal(t, 1, pooled[0].event)
}

func TestFit_AutoPicksInformativeDirection(t *testing.T) {
	c, y := riskyColumn(2000, 3)

	f, err := Fit(c, y, testOptions)
	require.NoError(t, err)
	assert.Equal(t, TrendAscending, f.Trend)
}

func TestFit_SpecialAndMissingPseudoBins(t *testing.T) {
	c := frame.NewNumeric("MSinceMostRecentDelq", []float64{
		1, 2, 3, 4, 5, 6, -9, -9, -8, math.NaN(), -99_000_000, 7,
	})
	y := []int{0, 0, 1, 0, 1, 1, 1, 0, 1, 0, 1, 0}

	f, err := Fit(c, y, testOptions)
	require.NoError(t, err)

	r := f.NumRegular()
	require.Len(t, f.Bins, r+3+1)

	assert.Equal(t, r, f.IndexNum(-9))
	assert.Equal(t, r+1, f.IndexNum(-8))
	assert.Equal(t, r+2, f.IndexNum(-7))
	assert.Equal(t, f.MissingIndex(), f.IndexNum(math.NaN()))
	assert.Equal(t, f.MissingIndex(), f.IndexNum(-99_000_000))

	assert.Equal(t, 2, f.Bins[r].Count)
	assert.Equal(t, KindSpecial, f.Bins[r].Kind)
	assert.Equal(t, 0, f.Bins[r+2].Count, "unobserved special code still has a bin")
	assert.Equal(t, 0.0, f.Bins[r+2].WoE)
	assert.Equal(t, 2, f.Bins[f.MissingIndex()].Count)
	assert.Equal(t, "Missing", f.Bins[f.MissingIndex()].Label)

	// Special values never share a bin with ordinary values.
	for _, v := range []float64{1, 4, 7} {
		assert.Less(t, f.IndexNum(v), r)
	}
}

func TestFit_ZeroVariance(t *testing.T) {
	c := frame.NewNumeric("Constant", []float64{3, 3, 3, 3})
	y := []int{0, 1, 0, 1}

	f, err := Fit(c, y, testOptions)
	require.NoError(t, err)
	assert.True(t, f.Constant)
	assert.Equal(t, 1, f.NumRegular())
	assert.Equal(t, 0.0, f.IV)
}

func TestFit_MaxNBins(t *testing.T) {
	c, y := riskyColumn(3000, 4)
	opts := testOptions
	opts.MaxNBins = 3

	f, err := Fit(c, y, opts)
	require.NoError(t, err)
	assert.LessOrEqual(t, f.NumRegular(), 3)
}

func TestFit_Categorical(t *testing.T) {
	levels := []string{"rent", "own", "mortgage", "rent", "own", "rent", "", "mortgage", "rent", "own"}
	y := []int{1, 0, 0, 1, 0, 1, 1, 0, 0, 1}
	c := frame.NewCategorical("HomeOwnership", levels)

	f, err := Fit(c, y, testOptions)
	require.NoError(t, err)

	rates := regularRates(f)
	for i := 1; i < len(rates); i++ {
		assert.GreaterOrEqual(t, rates[i], rates[i-1])
	}
	assert.Equal(t, TrendAscending, f.Trend)
	assert.Equal(t, f.MissingIndex(), f.IndexCat("boat"), "unseen level maps to Missing")
	assert.Equal(t, f.MissingIndex(), f.IndexCat(""))
	assert.Less(t, f.IndexCat("rent"), f.NumRegular())
}

func TestFit_CategoricalHonoursTrend(t *testing.T) {
	levels := []string{"rent", "own", "mortgage", "rent", "own", "rent", "", "mortgage", "rent", "own"}
	y := []int{1, 0, 0, 1, 0, 1, 1, 0, 0, 1}
	c := frame.NewCategorical("HomeOwnership", levels)

	opts := testOptions
	opts.Trend = TrendDescending
	f, err := Fit(c, y, opts)
	require.NoError(t, err)

	assert.Equal(t, TrendDescending, f.Trend)
	rates := regularRates(f)
	require.Len(t, rates, 3)
	for i := 1; i < len(rates); i++ {
		assert.Less(t, rates[i], rates[i-1])
	}
	assert.Equal(t, 0, f.IndexCat("rent"))
	assert.Equal(t, 2, f.IndexCat("mortgage"))

	opts.Trend = TrendNone
	f, err = Fit(c, y, opts)
	require.NoError(t, err)
	assert.Equal(t, TrendNone, f.Trend)
}

func TestFeatureTransform_TotalAndIdempotent(t *testing.T) {
	c, y := riskyColumn(500, 5)
	f, err := Fit(c, y, testOptions)
	require.NoError(t, err)

	inputs := frame.NewNumeric(c.Name, []float64{-1e9, 0, 50.5, 99, 1e9, -9, math.NaN(), -99_000_000, math.Inf(1)})
	first, err := f.Transform(inputs, MetricWoE)
	require.NoError(t, err)
	second, err := f.Transform(inputs, MetricWoE)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	for i, v := range first {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "row %d", i)
	}

	idx, err := f.Transform(inputs, MetricBinIndex)
	require.NoError(t, err)
	for _, k := range idx {
		assert.True(t, k >= 0 && int(k) < len(f.Bins))
	}
}

func TestFeatureTransform_KindMismatch(t *testing.T) {
	c, y := riskyColumn(100, 6)
	f, err := Fit(c, y, testOptions)
	require.NoError(t, err)

	_, err = f.Transform(frame.NewCategorical(c.Name, []string{"a"}), MetricWoE)
	require.Error(t, err)
	assert.True(t, frame.IsSchemaError(err))
}

func TestFitProcess_IVGate(t *testing.T) {
	signal, y := riskyColumn(2000, 7)
	noise := balancedNoise(y, 10)
	constant := make([]float64, len(y))

	f, err := frame.New(
		signal,
		frame.NewNumeric("Noise", noise),
		frame.NewNumeric("Constant", constant),
	)
	require.NoError(t, err)

	p, err := FitProcess(context.Background(), f, y, ProcessOptions{Options: testOptions, MinIV: 0.1})
	require.NoError(t, err)

	assert.Equal(t, []string{"NetFractionRevolvingBurden"}, p.Active)
	assert.True(t, p.IsActive("NetFractionRevolvingBurden"))
	assert.False(t, p.IsActive("Noise"))

	summary := p.Summary()
	require.Len(t, summary, 3)
	assert.Equal(t, "numerical", summary[0].Dtype)
	assert.True(t, summary[0].Selected)
	assert.Less(t, summary[1].IV, 0.1)
	assert.False(t, summary[2].Selected)

	woe, err := p.Transform(f, MetricWoE)
	require.NoError(t, err)
	assert.Equal(t, []string{"NetFractionRevolvingBurden"}, woe.Names())
	assert.Equal(t, f.Rows(), woe.Rows())

	assert.NotEmpty(t, p.Detail())
	assert.InDelta(t, summary[0].IV, p.IVs()["NetFractionRevolvingBurden"], 1e-12)
}

func TestFitProcess_PerFeatureTrend(t *testing.T) {
	signal, y := riskyColumn(1000, 9)
	f, err := frame.New(signal)
	require.NoError(t, err)

	p, err := FitProcess(context.Background(), f, y, ProcessOptions{
		Options: testOptions,
		Params:  map[string]Trend{"NetFractionRevolvingBurden": TrendNone},
	})
	require.NoError(t, err)

	feat, ok := p.Feature("NetFractionRevolvingBurden")
	require.True(t, ok)
	assert.Equal(t, TrendNone, feat.Trend)
}

func TestFitProcess_MissingColumnAtTransform(t *testing.T) {
	signal, y := riskyColumn(500, 10)
	f, err := frame.New(signal)
	require.NoError(t, err)
	p, err := FitProcess(context.Background(), f, y, ProcessOptions{Options: testOptions})
	require.NoError(t, err)

	empty, err := frame.New(frame.NewNumeric("Other", []float64{1}))
	require.NoError(t, err)
	_, err = p.Transform(empty, MetricWoE)
	require.Error(t, err)
	assert.True(t, frame.IsSchemaError(err))
}

func TestQuantileGroups(t *testing.T) {
	distinct := make([]group, 100)
	for i := range distinct {
		distinct[i] = group{count: 1, min: float64(i), max: float64(i)}
	}

	groups := quantileGroups(distinct, 10)
	require.Len(t, groups, 10)
	for _, g := range groups {
		assert.Equal(t, 10, g.count)
	}
}

func TestMergeSmall(t *testing.T) {
	groups := []group{{count: 50}, {count: 1}, {count: 30}, {count: 2}}

	merged := mergeSmall(groups, 5)
	require.Len(t, merged, 2)
	assert.Equal(t, 50, merged[0].count)
	assert.Equal(t, 33, merged[1].count)
}

func TestParseTrend(t *testing.T) {
	trend, err := ParseTrend("")
	require.NoError(t, err)
	assert.Equal(t, TrendAuto, trend)

	trend, err = ParseTrend("Descending")
	require.NoError(t, err)
	assert.Equal(t, TrendDescending, trend)

	_, err = ParseTrend("sideways")
	assert.Error(t, err)
}
