package binning

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/jnsofini/auto-scorecard/internal/frame"
)

// Options configures the fit of a single feature.
type Options struct {
	SpecialCodes []float64
	MissingCodes []float64
	// MinPrebinSize is the smallest pre-bin as a fraction of all rows.
	MinPrebinSize float64
	MaxNPrebins   int
	// MaxNBins caps the regular bins after monotonic merging; 0 disables it.
	MaxNBins int
	Trend    Trend
}

func (o Options) withDefaults() Options {
	if o.MaxNPrebins < 2 {
		o.MaxNPrebins = 20
	}
	if o.Trend == "" {
		o.Trend = TrendAuto
	}
	return o
}

// Feature is the fitted binning of one column. Regular bins come first,
// then one pseudo-bin per special code in SpecialCodes order, then Missing.
type Feature struct {
	Name         string         `json:"name"`
	Kind         frame.Kind     `json:"kind"`
	Trend        Trend          `json:"trend"`
	Splits       []float64      `json:"splits,omitempty"`
	Levels       map[string]int `json:"levels,omitempty"`
	SpecialCodes []float64      `json:"special_codes"`
	MissingCodes []float64      `json:"missing_codes"`
	Bins         []Bin          `json:"bins"`
	IV           float64        `json:"iv"`
	Gini         float64        `json:"gini"`
	// Constant is set when all rows fall into a single bin.
	Constant bool `json:"constant"`
}

// NumRegular returns the number of ordinary (non-pseudo) bins.
func (f *Feature) NumRegular() int {
	return len(f.Bins) - len(f.SpecialCodes) - 1
}

// MissingIndex returns the index of the Missing pseudo-bin.
func (f *Feature) MissingIndex() int {
	return len(f.Bins) - 1
}

// IndexNum returns the bin of a numeric value.
func (f *Feature) IndexNum(v float64) int {
	if math.IsNaN(v) || containsCode(f.MissingCodes, v) {
		return f.MissingIndex()
	}
	for k, code := range f.SpecialCodes {
		if v == code {
			return f.NumRegular() + k
		}
	}
	return sort.Search(len(f.Splits), func(k int) bool { return f.Splits[k] > v })
}

// IndexCat returns the bin of a categorical level. Unseen levels fall into
// the Missing pseudo-bin.
func (f *Feature) IndexCat(level string) int {
	if level == "" {
		return f.MissingIndex()
	}
	if k, ok := f.Levels[level]; ok {
		return k
	}
	return f.MissingIndex()
}

// Transform maps every row of c to its bin index or WoE.
func (f *Feature) Transform(c *frame.Column, metric Metric) ([]float64, error) {
	if c.Kind != f.Kind {
		return nil, &frame.SchemaError{
			Feature: f.Name,
			Reason:  "fitted as " + f.Kind.String() + " but observed " + c.Kind.String(),
		}
	}
	out := make([]float64, c.Len())
	for i := range out {
		var k int
		if c.Kind == frame.Categorical {
			k = f.IndexCat(c.Cat[i])
		} else {
			k = f.IndexNum(c.Num[i])
		}
		if metric == MetricBinIndex {
			out[i] = float64(k)
		} else {
			out[i] = f.Bins[k].WoE
		}
	}
	return out, nil
}

func containsCode(codes []float64, v float64) bool {
	for _, c := range codes {
		if v == c {
			return true
		}
	}
	return false
}

// Fit bins a single column against the binary target.
func Fit(c *frame.Column, y []int, opts Options) (*Feature, error) {
	if c.Len() != len(y) {
		return nil, &frame.SchemaError{Feature: c.Name, Reason: "column and target lengths differ"}
	}
	opts = opts.withDefaults()

	f := &Feature{
		Name:         c.Name,
		Kind:         c.Kind,
		SpecialCodes: append([]float64(nil), opts.SpecialCodes...),
		MissingCodes: append([]float64(nil), opts.MissingCodes...),
	}

	special := make([]group, len(opts.SpecialCodes))
	var missing group
	var groups []group

	if c.Kind == frame.Categorical {
		// Levels have no natural order, so they are ranked by event rate in
		// the configured direction. Auto ranks them ascending.
		f.Trend = opts.Trend
		if f.Trend == TrendAuto {
			f.Trend = TrendAscending
		}
		groups = f.categoricalGroups(c, y, &missing, f.Trend == TrendDescending)
		groups = mergeClosest(groups, opts.MaxNPrebins)
		groups = mergeSmall(groups, opts.MinPrebinSize*float64(len(y)))
		if f.Trend != TrendNone {
			groups = pava(groups, f.Trend == TrendAscending)
		}
	} else {
		distinct := f.numericGroups(c, y, special, &missing)
		groups = quantileGroups(distinct, opts.MaxNPrebins)
		groups = mergeSmall(groups, opts.MinPrebinSize*float64(len(y)))
		groups, f.Trend = monotone(groups, opts.Trend, special, missing)
	}
	if opts.MaxNBins > 0 {
		groups = mergeClosest(groups, opts.MaxNBins)
		if f.Trend == TrendAscending || f.Trend == TrendDescending {
			groups = pava(groups, f.Trend == TrendAscending)
		}
	}

	f.build(groups, special, missing)
	return f, nil
}

// numericGroups sorts ordinary values into one group per distinct value and
// tallies the special and missing rows.
func (f *Feature) numericGroups(c *frame.Column, y []int, special []group, missing *group) []group {
	type obs struct {
		v     float64
		event int
	}
	values := make([]obs, 0, len(y))
	for i, v := range c.Num {
		if math.IsNaN(v) || containsCode(f.MissingCodes, v) {
			missing.count++
			missing.event += y[i]
			continue
		}
		if k := indexOf(f.SpecialCodes, v); k >= 0 {
			special[k].count++
			special[k].event += y[i]
			continue
		}
		values = append(values, obs{v: v, event: y[i]})
	}
	sort.Slice(values, func(a, b int) bool { return values[a].v < values[b].v })

	var distinct []group
	for _, o := range values {
		if n := len(distinct); n > 0 && distinct[n-1].max == o.v {
			distinct[n-1].count++
			distinct[n-1].event += o.event
			continue
		}
		distinct = append(distinct, group{count: 1, event: o.event, min: o.v, max: o.v})
	}
	return distinct
}

// categoricalGroups builds one group per level, ordered by event rate,
// highest first when descending.
func (f *Feature) categoricalGroups(c *frame.Column, y []int, missing *group, descending bool) []group {
	byLevel := make(map[string]*group)
	for i, level := range c.Cat {
		if level == "" {
			missing.count++
			missing.event += y[i]
			continue
		}
		g, ok := byLevel[level]
		if !ok {
			g = &group{levels: []string{level}}
			byLevel[level] = g
		}
		g.count++
		g.event += y[i]
	}
	groups := make([]group, 0, len(byLevel))
	for _, g := range byLevel {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(a, b int) bool {
		lo, hi := groups[a], groups[b]
		if descending {
			lo, hi = hi, lo
		}
		if rateGreater(hi, lo) {
			return true
		}
		if rateGreater(lo, hi) {
			return false
		}
		return groups[a].levels[0] < groups[b].levels[0]
	})
	return groups
}

func indexOf(codes []float64, v float64) int {
	for k, c := range codes {
		if v == c {
			return k
		}
	}
	return -1
}

// build turns the final groups and pseudo-bin tallies into bins with WoE,
// IV and Gini.
func (f *Feature) build(groups []group, special []group, missing group) {
	if len(groups) == 0 {
		groups = []group{{}}
	}

	var totalEvent, totalNonEvent int
	for _, g := range groups {
		totalEvent += g.event
		totalNonEvent += g.count - g.event
	}
	for _, g := range special {
		totalEvent += g.event
		totalNonEvent += g.count - g.event
	}
	totalEvent += missing.event
	totalNonEvent += missing.count - missing.event

	bins := make([]Bin, 0, len(groups)+len(special)+1)
	if f.Kind == frame.Categorical {
		f.Levels = make(map[string]int)
		for k, g := range groups {
			levels := append([]string(nil), g.levels...)
			sort.Strings(levels)
			for _, level := range levels {
				f.Levels[level] = k
			}
			bins = append(bins, Bin{Kind: KindRegular, Label: levelsLabel(levels), Levels: levels})
		}
	} else {
		f.Splits = make([]float64, 0, len(groups)-1)
		for k := 1; k < len(groups); k++ {
			f.Splits = append(f.Splits, groups[k-1].max+(groups[k].min-groups[k-1].max)/2)
		}
		for k := range groups {
			lo, hi := math.Inf(-1), math.Inf(1)
			if k > 0 {
				lo = f.Splits[k-1]
			}
			if k < len(f.Splits) {
				hi = f.Splits[k]
			}
			bins = append(bins, Bin{Kind: KindRegular, Label: intervalLabel(lo, hi)})
		}
	}
	for _, code := range f.SpecialCodes {
		bins = append(bins, Bin{Kind: KindSpecial, Label: "Special " + formatBound(code), Code: code})
	}
	bins = append(bins, Bin{Kind: KindMissing, Label: "Missing"})

	tallies := make([]group, 0, len(bins))
	tallies = append(tallies, groups...)
	tallies = append(tallies, special...)
	tallies = append(tallies, missing)

	f.IV = 0
	nonEmpty := 0
	for k := range bins {
		g := tallies[k]
		b := &bins[k]
		b.Count = g.count
		b.Event = g.event
		b.NonEvent = g.count - g.event
		b.EventRate = g.rate()
		b.WoE, b.IV = woeIV(b.NonEvent, b.Event, totalNonEvent, totalEvent)
		f.IV += b.IV
		if g.count > 0 {
			nonEmpty++
		}
	}
	f.Bins = bins
	f.Constant = nonEmpty <= 1
	f.Gini = gini(bins, totalNonEvent, totalEvent)
}

// gini is 2*AUC-1 of the bin event rate as a score, with each bin
// weighted by its event and non-event counts.
func gini(bins []Bin, totalNonEvent, totalEvent int) float64 {
	if totalNonEvent == 0 || totalEvent == 0 {
		return 0
	}
	var rates, weights []float64
	var classes []bool
	for _, b := range bins {
		if b.Event > 0 {
			rates = append(rates, b.EventRate)
			classes = append(classes, true)
			weights = append(weights, float64(b.Event))
		}
		if b.NonEvent > 0 {
			rates = append(rates, b.EventRate)
			classes = append(classes, false)
			weights = append(weights, float64(b.NonEvent))
		}
	}
	stat.SortWeightedLabeled(rates, classes, weights)
	tpr, fpr, _ := stat.ROC(nil, rates, classes, weights)
	return 2*integrate.Trapezoidal(fpr, tpr) - 1
}
