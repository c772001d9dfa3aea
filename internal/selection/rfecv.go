package selection

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/jnsofini/auto-scorecard/internal/frame"
	"github.com/jnsofini/auto-scorecard/internal/linear"
)

// Options configures cross-validated recursive feature elimination.
type Options struct {
	Folds int
	// Workers bounds the folds evaluated concurrently; 0 means one per fold.
	Workers int
	C       float64
	MaxIter int
	// ScoreTolerance lets a smaller subset win when its mean score is within
	// this distance of the best.
	ScoreTolerance float64
	MinFeatures    int
}

// Result is the outcome of RFECV over the input feature names.
type Result struct {
	Names   []string
	Support []bool
	// Ranking is 1 for selected features; larger values were eliminated earlier.
	Ranking  []int
	Selected []string
	// Scores[s-1] is the mean held-out AUC using s features, NaN when no
	// fold produced a score for that size.
	Scores     []float64
	BestScore  float64
	ValidFolds int
}

// columnView exposes a row and column subset of x without copying.
type columnView struct {
	x    mat.Matrix
	rows []int
	cols []int
}

func (v columnView) Dims() (int, int)    { return len(v.rows), len(v.cols) }
func (v columnView) At(i, j int) float64 { return v.x.At(v.rows[i], v.cols[j]) }
func (v columnView) T() mat.Matrix       { return mat.Transpose{Matrix: v} }

type foldResult struct {
	scores []float64
	valid  bool
	reason string
}

// RFECV selects the subset size with the best mean cross-validated AUC,
// preferring smaller subsets on ties, then eliminates on the full data down
// to that size. Importance is the absolute logistic regression coefficient.
func RFECV(ctx context.Context, f *frame.Frame, y []int, opts Options) (*Result, error) {
	names := f.Names()
	p := len(names)
	if p == 0 {
		return nil, eris.New("selection: no features to eliminate")
	}
	if err := frame.ValidateTarget(y, f.Rows()); err != nil {
		return nil, err
	}
	x, err := f.Matrix()
	if err != nil {
		return nil, eris.Wrap(err, "selection: build matrix")
	}

	if opts.Folds < 2 {
		opts.Folds = 5
	}
	minFeatures := opts.MinFeatures
	if minFeatures < 1 {
		minFeatures = 1
	}
	if minFeatures > p {
		minFeatures = p
	}
	lo := linear.Options{C: opts.C, MaxIter: opts.MaxIter}

	folds := StratifiedFolds(y, opts.Folds)
	results := make([]foldResult, len(folds))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, test := range folds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return eris.Wrap(err, "selection: cancelled")
			}
			results[i] = runFold(x, y, test, p, minFeatures, lo)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Names: names, Scores: make([]float64, p)}
	sums := make([]float64, p)
	counts := make([]int, p)
	for i, fr := range results {
		if !fr.valid {
			zap.L().Warn("selection: fold excluded",
				zap.Int("fold", i),
				zap.String("reason", fr.reason),
			)
			continue
		}
		res.ValidFolds++
		for s, v := range fr.scores {
			if !math.IsNaN(v) {
				sums[s] += v
				counts[s]++
			}
		}
	}
	for s := range res.Scores {
		res.Scores[s] = math.NaN()
		if counts[s] > 0 {
			res.Scores[s] = sums[s] / float64(counts[s])
		}
	}

	if res.ValidFolds == 0 {
		zap.L().Warn("selection: no valid folds, keeping all features",
			zap.Int("features", p),
		)
		keepAll(res)
		return res, nil
	}

	best := math.Inf(-1)
	for s := minFeatures; s <= p; s++ {
		if v := res.Scores[s-1]; !math.IsNaN(v) && v > best {
			best = v
		}
	}
	size := p
	for s := minFeatures; s <= p; s++ {
		if v := res.Scores[s-1]; !math.IsNaN(v) && v >= best-opts.ScoreTolerance {
			size = s
			break
		}
	}
	res.BestScore = res.Scores[size-1]

	support, ranking, err := eliminateFn(x, y, size, lo)
	if err != nil {
		zap.L().Warn("selection: final elimination failed, keeping all features",
			zap.Int("features", p),
			zap.Int("size", size),
			zap.Error(err),
		)
		keepAll(res)
		return res, nil
	}
	res.Support = support
	res.Ranking = ranking
	for j, keep := range support {
		if keep {
			res.Selected = append(res.Selected, names[j])
		}
	}

	zap.L().Info("selection: rfecv complete",
		zap.Int("features_in", p),
		zap.Int("features_out", size),
		zap.Int("valid_folds", res.ValidFolds),
		zap.Float64("cv_auc", res.BestScore),
	)
	return res, nil
}

// runFold walks the elimination path on the training rows of one fold and
// scores every subset size on its test rows.
func runFold(x mat.Matrix, y []int, test []int, p, minFeatures int, lo linear.Options) foldResult {
	n := len(y)
	train := complement(n, test)
	trainY := frame.TakeTarget(y, train)
	testY := frame.TakeTarget(y, test)

	scores := make([]float64, p)
	for i := range scores {
		scores[i] = math.NaN()
	}

	cols := allColumns(p)
	for {
		m, err := linear.Fit(columnView{x: x, rows: train, cols: cols}, trainY, lo)
		if err != nil {
			return foldResult{reason: err.Error()}
		}
		auc, ok := AUC(testY, m.PredictProba(columnView{x: x, rows: test, cols: cols}))
		if !ok {
			return foldResult{reason: "test split lacks one class"}
		}
		scores[len(cols)-1] = auc
		if len(cols) <= minFeatures {
			break
		}
		cols = without(cols, weakest(m.Coef))
	}
	return foldResult{scores: scores, valid: true}
}

// keepAll selects every input feature with rank 1.
func keepAll(res *Result) {
	p := len(res.Names)
	res.Support = make([]bool, p)
	res.Ranking = make([]int, p)
	for j := range res.Names {
		res.Support[j] = true
		res.Ranking[j] = 1
	}
	res.Selected = append([]string(nil), res.Names...)
}

// eliminateFn is swapped in tests to force a failing final fit.
var eliminateFn = eliminate

// eliminate removes the least important feature until size remain and
// returns the support mask and ranking over all columns.
func eliminate(x mat.Matrix, y []int, size int, lo linear.Options) ([]bool, []int, error) {
	n, p := x.Dims()
	rows := allColumns(n)

	ranking := make([]int, p)
	cols := allColumns(p)
	for len(cols) > size {
		m, err := linear.Fit(columnView{x: x, rows: rows, cols: cols}, y, lo)
		if err != nil {
			return nil, nil, eris.Wrap(err, "selection: fit elimination step")
		}
		k := weakest(m.Coef)
		ranking[cols[k]] = len(cols) - size + 1
		cols = without(cols, k)
	}

	support := make([]bool, p)
	for _, j := range cols {
		support[j] = true
		ranking[j] = 1
	}
	return support, ranking, nil
}

func allColumns(p int) []int {
	cols := make([]int, p)
	for i := range cols {
		cols[i] = i
	}
	return cols
}

// weakest returns the position of the smallest absolute coefficient.
func weakest(coef []float64) int {
	k := 0
	for i, c := range coef {
		if math.Abs(c) < math.Abs(coef[k]) {
			k = i
		}
	}
	return k
}

// without drops the element at position k.
func without(cols []int, k int) []int {
	out := make([]int, 0, len(cols)-1)
	out = append(out, cols[:k]...)
	return append(out, cols[k+1:]...)
}
