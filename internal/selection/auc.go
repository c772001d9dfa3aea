package selection

import (
	"slices"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// AUC is the area under the ROC curve of scores against binary labels.
// Tied scores share one cutoff, so they count half. ok is false when one
// class is absent.
func AUC(y []int, scores []float64) (float64, bool) {
	classes := make([]bool, len(y))
	var pos int
	for i, label := range y {
		classes[i] = label == 1
		if classes[i] {
			pos++
		}
	}
	if pos == 0 || pos == len(y) {
		return 0, false
	}

	sorted := slices.Clone(scores)
	stat.SortWeightedLabeled(sorted, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, sorted, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), true
}
