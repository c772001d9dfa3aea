// Package scorecard fits the final logistic model over WoE-encoded bins and
// scales it into an integer points table.
package scorecard

import "math"

// Scaling maps log-odds to points: every PDO points doubles the good:bad
// odds, and Points corresponds to odds of Odds:1.
type Scaling struct {
	PDO    float64 `json:"pdo"`
	Odds   float64 `json:"odds"`
	Points float64 `json:"scorecard_points"`
	// InterceptBased puts the intercept in a base row instead of spreading
	// it across the features.
	InterceptBased bool `json:"intercept_based"`
}

// Factor is the number of points per unit of log-odds.
func (s Scaling) Factor() float64 {
	return s.PDO / math.Ln2
}

// Offset is the score at even odds.
func (s Scaling) Offset() float64 {
	return s.Points - s.Factor()*math.Log(s.Odds)
}

// Score converts log-odds of the event into unrounded points.
func (s Scaling) Score(logOdds float64) float64 {
	return s.Offset() - s.Factor()*logOdds
}

// ImpliedOdds returns the good:bad odds implied by a score.
func (s Scaling) ImpliedOdds(score float64) float64 {
	return math.Exp((score - s.Offset()) / s.Factor())
}

// allocate rounds the contribution of one bin, and the base row, to points.
func (s Scaling) allocate(intercept float64, coef []float64, woe [][]float64) (int, [][]int) {
	factor, offset := s.Factor(), s.Offset()
	n := float64(len(coef))

	points := make([][]int, len(coef))
	base := 0
	if s.InterceptBased {
		base = int(math.Round(offset - factor*intercept))
	}
	for j, c := range coef {
		points[j] = make([]int, len(woe[j]))
		for k, w := range woe[j] {
			if s.InterceptBased {
				points[j][k] = int(math.Round(-factor * c * w))
			} else {
				points[j][k] = int(math.Round(-(c*w+intercept/n)*factor + offset/n))
			}
		}
	}
	return base, points
}
