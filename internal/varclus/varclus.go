// Package varclus groups correlated features by divisive principal
// component clustering and reports each feature's R-square ratio.
package varclus

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/jnsofini/auto-scorecard/internal/frame"
	"github.com/jnsofini/auto-scorecard/internal/model"
)

// Options configures the clustering.
type Options struct {
	// MaxEigen is the second-eigenvalue threshold above which a cluster splits.
	MaxEigen float64
	// MaxClusters caps the number of clusters; 0 means unbounded.
	MaxClusters int
	// MaxIter caps the reassignment passes after each split.
	MaxIter int
}

// Result is the final partition of the input features.
type Result struct {
	Names []string
	// Clusters holds member feature indices per cluster id, ids from 0.
	Clusters [][]int
	Rows     []model.ClusterRow
}

// NumClusters returns the number of clusters.
func (r *Result) NumClusters() int { return len(r.Clusters) }

// Fit clusters the columns of an all-numeric frame.
func Fit(ctx context.Context, f *frame.Frame, opts Options) (*Result, error) {
	if f.Width() == 0 {
		return &Result{}, nil
	}
	x, err := f.Matrix()
	if err != nil {
		return nil, eris.Wrap(err, "varclus: build matrix")
	}
	return FitCorrelation(ctx, f.Names(), Correlation(x), opts)
}

// Correlation returns the column correlation matrix of x. Entries that are
// undefined because a column is constant are set to 0 off the diagonal and
// 1 on it.
func Correlation(x *mat.Dense) *mat.SymDense {
	n, p := x.Dims()
	corr := mat.NewSymDense(p, nil)
	if n >= 2 {
		stat.CorrelationMatrix(corr, x, nil)
	}
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			v := corr.At(i, j)
			switch {
			case i == j:
				v = 1
			case math.IsNaN(v):
				v = 0
			}
			corr.SetSym(i, j, v)
		}
	}
	return corr
}

// FitCorrelation clusters features given their correlation matrix.
func FitCorrelation(ctx context.Context, names []string, corr *mat.SymDense, opts Options) (*Result, error) {
	p := len(names)
	if p == 0 {
		return &Result{}, nil
	}
	if opts.MaxIter < 1 {
		opts.MaxIter = 100
	}

	all := make([]int, p)
	for i := range all {
		all[i] = i
	}
	clusters := map[int][]int{0: all}
	terminal := make(map[int]bool)
	second := make(map[int]float64)

	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "varclus: cancelled")
		}
		if opts.MaxClusters > 0 && len(clusters) >= opts.MaxClusters {
			break
		}

		best, bestEig := -1, opts.MaxEigen
		for id := 0; id < len(clusters); id++ {
			if terminal[id] || len(clusters[id]) < 2 {
				continue
			}
			e2, ok := second[id]
			if !ok {
				vals, _, err := topEigen(corr, clusters[id])
				if err != nil {
					return nil, err
				}
				e2 = vals[1]
				second[id] = e2
			}
			if e2 > bestEig {
				best, bestEig = id, e2
			}
		}
		if best < 0 {
			break
		}

		a, b, err := split(corr, clusters[best], opts.MaxIter)
		if err != nil {
			return nil, err
		}
		if len(a) == 0 || len(b) == 0 {
			terminal[best] = true
			continue
		}

		next := len(clusters)
		clusters[best] = a
		clusters[next] = b
		delete(second, best)

		zap.L().Debug("varclus: split cluster",
			zap.Int("cluster", best),
			zap.Float64("second_eigenvalue", bestEig),
			zap.Int("left", len(a)),
			zap.Int("right", len(b)),
		)
	}

	res := &Result{Names: names, Clusters: make([][]int, len(clusters))}
	for id := range res.Clusters {
		res.Clusters[id] = clusters[id]
	}
	rows, err := rsquare(corr, names, res.Clusters)
	if err != nil {
		return nil, err
	}
	res.Rows = rows

	zap.L().Info("varclus: clustering complete",
		zap.Int("features", p),
		zap.Int("clusters", len(res.Clusters)),
	)
	return res, nil
}

// submatrix extracts the correlations among members.
func submatrix(corr *mat.SymDense, members []int) *mat.SymDense {
	k := len(members)
	sub := mat.NewSymDense(k, nil)
	for a := 0; a < k; a++ {
		for b := a; b < k; b++ {
			sub.SetSym(a, b, corr.At(members[a], members[b]))
		}
	}
	return sub
}

// topEigen returns the two largest eigenvalues (descending) of the member
// correlation matrix and their eigenvectors. The leading vector is signed
// so its components sum to a non-negative value.
func topEigen(corr *mat.SymDense, members []int) ([2]float64, [2][]float64, error) {
	k := len(members)
	if k == 1 {
		return [2]float64{1, 0}, [2][]float64{{1}, {0}}, nil
	}

	var es mat.EigenSym
	if ok := es.Factorize(submatrix(corr, members), true); !ok {
		return [2]float64{}, [2][]float64{}, eris.New("varclus: eigendecomposition failed")
	}
	values := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	var out [2][]float64
	for slot, col := range []int{k - 1, k - 2} {
		v := make([]float64, k)
		var sum float64
		for i := range v {
			v[i] = vecs.At(i, col)
			sum += v[i]
		}
		if sum < 0 {
			for i := range v {
				v[i] = -v[i]
			}
		}
		out[slot] = v
	}
	return [2]float64{values[k-1], values[k-2]}, out, nil
}

func firstEigen(corr *mat.SymDense, members []int) (float64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	vals, _, err := topEigen(corr, members)
	return vals[0], err
}

// split divides members into two groups by their correlation with the two
// quartimax-rotated leading components, then reassigns features one at a
// time while that increases the summed first eigenvalues.
func split(corr *mat.SymDense, members []int, maxIter int) ([]int, []int, error) {
	vals, vecs, err := topEigen(corr, members)
	if err != nil {
		return nil, nil, err
	}

	k := len(members)
	l1 := make([]float64, k)
	l2 := make([]float64, k)
	s1, s2 := math.Sqrt(math.Max(vals[0], 0)), math.Sqrt(math.Max(vals[1], 0))
	for i := 0; i < k; i++ {
		l1[i] = vecs[0][i] * s1
		l2[i] = vecs[1][i] * s2
	}
	theta := quartimax(l1, l2)
	cos, sin := math.Cos(theta), math.Sin(theta)

	var a, b []int
	for i, m := range members {
		r1 := l1[i]*cos + l2[i]*sin
		r2 := -l1[i]*sin + l2[i]*cos
		if math.Abs(r1) >= math.Abs(r2) {
			a = append(a, m)
		} else {
			b = append(b, m)
		}
	}
	if len(a) == 0 || len(b) == 0 {
		return a, b, nil
	}
	return reassign(corr, members, a, b, maxIter)
}

// quartimax returns the rotation angle of two loading columns that
// maximizes the sum of fourth powers of the rotated loadings.
func quartimax(l1, l2 []float64) float64 {
	var num, den float64
	for i := range l1 {
		u := l1[i]*l1[i] - l2[i]*l2[i]
		v := 2 * l1[i] * l2[i]
		num += 2 * u * v
		den += u*u - v*v
	}
	return math.Atan2(num, den) / 4
}

func reassign(corr *mat.SymDense, members, a, b []int, maxIter int) ([]int, []int, error) {
	side := make(map[int]bool, len(members))
	for _, m := range a {
		side[m] = true
	}

	ea, err := firstEigen(corr, a)
	if err != nil {
		return nil, nil, err
	}
	eb, err := firstEigen(corr, b)
	if err != nil {
		return nil, nil, err
	}
	total := ea + eb

	for pass := 0; pass < maxIter; pass++ {
		moved := false
		for _, m := range members {
			from, to := a, b
			if !side[m] {
				from, to = b, a
			}
			if len(from) == 1 {
				continue
			}
			nextFrom := without(from, m)
			nextTo := with(to, m)
			ef, err := firstEigen(corr, nextFrom)
			if err != nil {
				return nil, nil, err
			}
			et, err := firstEigen(corr, nextTo)
			if err != nil {
				return nil, nil, err
			}
			if ef+et <= total+1e-10 {
				continue
			}
			total = ef + et
			side[m] = !side[m]
			if side[m] {
				a, b = nextTo, nextFrom
			} else {
				a, b = nextFrom, nextTo
			}
			moved = true
		}
		if !moved {
			break
		}
	}
	return a, b, nil
}

func without(members []int, m int) []int {
	out := make([]int, 0, len(members)-1)
	for _, x := range members {
		if x != m {
			out = append(out, x)
		}
	}
	return out
}

func with(members []int, m int) []int {
	out := append(append([]int(nil), members...), m)
	sort.Ints(out)
	return out
}

// rsquare computes the R-square of every feature with its own cluster's
// first component and with the nearest other cluster's.
func rsquare(corr *mat.SymDense, names []string, clusters [][]int) ([]model.ClusterRow, error) {
	type component struct {
		members []int
		weights []float64
		scale   float64
	}
	comps := make([]component, len(clusters))
	for id, members := range clusters {
		vals, vecs, err := topEigen(corr, members)
		if err != nil {
			return nil, err
		}
		comps[id] = component{members: members, weights: vecs[0], scale: math.Sqrt(vals[0])}
	}

	rsq := func(f int, c component) float64 {
		var s float64
		for i, g := range c.members {
			s += corr.At(f, g) * c.weights[i]
		}
		r := s / c.scale
		return math.Min(r*r, 1)
	}

	var rows []model.ClusterRow
	for id, members := range clusters {
		for _, f := range members {
			own := rsq(f, comps[id])
			var nc float64
			for other := range comps {
				if other != id {
					nc = math.Max(nc, rsq(f, comps[other]))
				}
			}
			rows = append(rows, model.ClusterRow{
				Cluster:  id,
				Variable: names[f],
				RSOwn:    own,
				RSNC:     nc,
				RSRatio:  math.Max(0, (1-own)/math.Max(1-nc, 1e-12)),
			})
		}
	}
	return rows, nil
}
