// Package selection picks cluster representatives and runs cross-validated
// recursive feature elimination.
package selection

import (
	"github.com/jnsofini/auto-scorecard/internal/model"
)

// SelectRepresentatives marks, for every cluster, the feature with the
// lowest R-square ratio and the feature with the highest IV. A nil iv map
// selects by R-square ratio alone. Ties keep the first row of the cluster.
// It returns the annotated rows and the selected names in row order.
func SelectRepresentatives(rows []model.ClusterRow, iv map[string]float64) ([]model.ClusterRow, []string) {
	out := make([]model.ClusterRow, len(rows))
	copy(out, rows)

	bestRatio := map[int]int{}
	bestIV := map[int]int{}
	for i := range out {
		r := &out[i]
		r.Selected = false
		if iv != nil {
			r.IV, r.HasIV = iv[r.Variable]
		}

		if j, ok := bestRatio[r.Cluster]; !ok || r.RSRatio < out[j].RSRatio {
			bestRatio[r.Cluster] = i
		}
		if !r.HasIV {
			continue
		}
		if j, ok := bestIV[r.Cluster]; !ok || r.IV > out[j].IV {
			bestIV[r.Cluster] = i
		}
	}

	for _, i := range bestRatio {
		out[i].Selected = true
	}
	for _, i := range bestIV {
		out[i].Selected = true
	}

	var names []string
	for _, r := range out {
		if r.Selected {
			names = append(names, r.Variable)
		}
	}
	return out, names
}
