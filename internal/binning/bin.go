// Package binning discretizes features into monotonic risk bins and encodes
// them by weight of evidence.
package binning

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Trend is the required direction of event rate across ordered bins.
type Trend string

const (
	TrendAuto       Trend = "auto"
	TrendAscending  Trend = "ascending"
	TrendDescending Trend = "descending"
	TrendNone       Trend = "none"
)

// ParseTrend maps a configured trend name to a Trend; empty means auto.
func ParseTrend(s string) (Trend, error) {
	switch Trend(strings.ToLower(strings.TrimSpace(s))) {
	case "", TrendAuto:
		return TrendAuto, nil
	case TrendAscending:
		return TrendAscending, nil
	case TrendDescending:
		return TrendDescending, nil
	case TrendNone:
		return TrendNone, nil
	}
	return "", eris.Errorf("binning: unknown monotonic trend %q", s)
}

// BinKind separates ordinary bins from the special and missing pseudo-bins.
type BinKind string

const (
	KindRegular BinKind = "regular"
	KindSpecial BinKind = "special"
	KindMissing BinKind = "missing"
)

// Bin is one cell of a fitted binning with its training statistics.
type Bin struct {
	Kind      BinKind  `json:"kind"`
	Label     string   `json:"label"`
	Levels    []string `json:"levels,omitempty"`
	Code      float64  `json:"code,omitempty"`
	Count     int      `json:"count"`
	NonEvent  int      `json:"non_event"`
	Event     int      `json:"event"`
	EventRate float64  `json:"event_rate"`
	WoE       float64  `json:"woe"`
	IV        float64  `json:"iv"`
}

// Metric selects the value a transform emits for each row.
type Metric int

const (
	MetricWoE Metric = iota
	MetricBinIndex
)

// group is a run of adjacent values (or categorical levels) being merged.
type group struct {
	count  int
	event  int
	min    float64
	max    float64
	levels []string
}

func (g group) rate() float64 {
	if g.count == 0 {
		return 0
	}
	return float64(g.event) / float64(g.count)
}

func merge(a, b group) group {
	return group{
		count:  a.count + b.count,
		event:  a.event + b.event,
		min:    a.min,
		max:    b.max,
		levels: append(append([]string(nil), a.levels...), b.levels...),
	}
}

// rateGreater compares event rates exactly using integer cross products.
func rateGreater(a, b group) bool {
	return a.event*b.count > b.event*a.count
}

// smoothedCounts returns twice the event and non-event counts of g with a zero
// count replaced by one, i.e. the smoothed counts woeIV uses, doubled so
// comparisons stay in integers.
func smoothedCounts(g group) (event, nonEvent int) {
	event, nonEvent = 2*g.event, 2*(g.count-g.event)
	if event == 0 {
		event = 1
	}
	if nonEvent == 0 {
		nonEvent = 1
	}
	return event, nonEvent
}

// woeIV returns the weight of evidence and IV contribution of one bin.
// A zero cell count is replaced by 0.5 so pure bins stay finite.
func woeIV(nonEvent, event, totalNonEvent, totalEvent int) (float64, float64) {
	if nonEvent+event == 0 || totalNonEvent == 0 || totalEvent == 0 {
		return 0, 0
	}
	e2, ne2 := smoothedCounts(group{count: nonEvent + event, event: event})
	ne, e := float64(ne2)/2, float64(e2)/2
	pn := ne / float64(totalNonEvent)
	pe := e / float64(totalEvent)
	w := math.Log(pn / pe)
	return w, (pn - pe) * w
}

func formatBound(v float64) string {
	switch {
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsInf(v, 1):
		return "inf"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func intervalLabel(lo, hi float64) string {
	if math.IsInf(lo, -1) {
		return fmt.Sprintf("(-inf, %s)", formatBound(hi))
	}
	return fmt.Sprintf("[%s, %s)", formatBound(lo), formatBound(hi))
}

func levelsLabel(levels []string) string {
	return "[" + strings.Join(levels, ", ") + "]"
}
