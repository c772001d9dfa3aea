package binning

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// quantileGroups coalesces sorted distinct-value groups into at most
// maxBins groups of roughly equal frequency. Cut points are weighted
// empirical quantiles of the distinct values, so boundaries only fall
// between distinct values.
func quantileGroups(distinct []group, maxBins int) []group {
	if len(distinct) <= maxBins {
		return distinct
	}
	values := make([]float64, len(distinct))
	weights := make([]float64, len(distinct))
	for i, g := range distinct {
		values[i] = g.min
		weights[i] = float64(g.count)
	}
	cuts := make(map[float64]bool, maxBins)
	for q := 1; q < maxBins; q++ {
		cuts[stat.Quantile(float64(q)/float64(maxBins), stat.Empirical, values, weights)] = true
	}

	out := make([]group, 0, maxBins)
	var cur group
	open := false
	for _, g := range distinct {
		if open {
			cur = merge(cur, g)
		} else {
			cur, open = g, true
		}
		if cuts[g.max] {
			out = append(out, cur)
			open = false
		}
	}
	if open {
		out = append(out, cur)
	}
	return out
}

// mergeSmall folds groups with fewer than minSize rows into their smaller
// neighbour until every group is large enough or one group remains.
func mergeSmall(groups []group, minSize float64) []group {
	for len(groups) > 1 {
		k := -1
		for i, g := range groups {
			if float64(g.count) < minSize {
				k = i
				break
			}
		}
		if k < 0 {
			break
		}
		left := k == len(groups)-1 || (k > 0 && groups[k-1].count <= groups[k+1].count)
		if left {
			groups = mergeAt(groups, k-1)
		} else {
			groups = mergeAt(groups, k)
		}
	}
	return groups
}

// mergeClosest merges the adjacent pair with the closest event rates until
// at most maxBins groups remain. Merging adjacent groups preserves any
// monotonic order already present.
func mergeClosest(groups []group, maxBins int) []group {
	if maxBins < 1 {
		maxBins = 1
	}
	for len(groups) > maxBins {
		best, bestDiff := 0, math.Inf(1)
		for i := 0; i+1 < len(groups); i++ {
			if d := math.Abs(groups[i].rate() - groups[i+1].rate()); d < bestDiff {
				best, bestDiff = i, d
			}
		}
		groups = mergeAt(groups, best)
	}
	return groups
}

// mergeAt replaces groups i and i+1 by their union.
func mergeAt(groups []group, i int) []group {
	out := make([]group, 0, len(groups)-1)
	out = append(out, groups[:i]...)
	out = append(out, merge(groups[i], groups[i+1]))
	return append(out, groups[i+2:]...)
}

// pava pools adjacent violators until event rates strictly increase
// (ascending) or strictly decrease (descending) across the groups. Equal
// rates count as violations, and so does any pair whose smoothed event odds
// are out of order, which keeps the WoE of pure bins monotone too.
func pava(groups []group, ascending bool) []group {
	stack := make([]group, 0, len(groups))
	for _, g := range groups {
		stack = append(stack, g)
		for len(stack) > 1 {
			a, b := stack[len(stack)-2], stack[len(stack)-1]
			ordered := strictlyBelow(a, b)
			if !ascending {
				ordered = strictlyBelow(b, a)
			}
			if ordered {
				break
			}
			stack = append(stack[:len(stack)-2], merge(a, b))
		}
	}
	return stack
}

// strictlyBelow reports whether a has both a lower event rate and lower
// smoothed event odds than b.
func strictlyBelow(a, b group) bool {
	if !rateGreater(b, a) {
		return false
	}
	ae, an := smoothedCounts(a)
	be, bn := smoothedCounts(b)
	return ae*bn < be*an
}

// monotone enforces the trend. Auto tries both directions and keeps the one
// with the larger information value.
func monotone(groups []group, trend Trend, special []group, missing group) ([]group, Trend) {
	switch trend {
	case TrendNone:
		return groups, TrendNone
	case TrendAscending:
		return pava(groups, true), TrendAscending
	case TrendDescending:
		return pava(groups, false), TrendDescending
	}

	asc := pava(groups, true)
	desc := pava(groups, false)
	if totalIV(desc, special, missing) > totalIV(asc, special, missing) {
		return desc, TrendDescending
	}
	return asc, TrendAscending
}

func totalIV(groups []group, special []group, missing group) float64 {
	all := make([]group, 0, len(groups)+len(special)+1)
	all = append(all, groups...)
	all = append(all, special...)
	all = append(all, missing)

	var totalEvent, totalNonEvent int
	for _, g := range all {
		totalEvent += g.event
		totalNonEvent += g.count - g.event
	}
	var iv float64
	for _, g := range all {
		_, contribution := woeIV(g.count-g.event, g.event, totalNonEvent, totalEvent)
		iv += contribution
	}
	return iv
}
