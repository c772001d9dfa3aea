// Package linear fits L2-regularized logistic regression by Newton's method.
package linear

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"
)

// ErrSingleClass is returned when the target holds only one label.
var ErrSingleClass = eris.New("linear: target has a single class")

// Options configures the solver.
type Options struct {
	// C is the inverse regularization strength; the intercept is not penalized.
	C       float64
	MaxIter int
	Tol     float64
}

func (o Options) withDefaults() Options {
	if o.C <= 0 {
		o.C = 1
	}
	if o.MaxIter <= 0 {
		o.MaxIter = 100
	}
	if o.Tol <= 0 {
		o.Tol = 1e-8
	}
	return o
}

// Model is a fitted logistic regression predicting P(y = 1).
type Model struct {
	Intercept  float64   `json:"intercept"`
	Coef       []float64 `json:"coef"`
	Iterations int       `json:"iterations"`
	Converged  bool      `json:"converged"`
}

// Fit minimizes sum(logloss) + ||coef||^2 / (2C) over the rows of x.
func Fit(x mat.Matrix, y []int, opts Options) (*Model, error) {
	opts = opts.withDefaults()
	n, p := dims(x)
	if n != len(y) {
		return nil, eris.Errorf("linear: %d rows but %d labels", n, len(y))
	}

	var pos int
	for _, v := range y {
		if v == 1 {
			pos++
		}
	}
	if pos == 0 || pos == n {
		return nil, ErrSingleClass
	}

	lambda := 1 / opts.C
	k := p + 1
	w := make([]float64, k)
	w[0] = math.Log(float64(pos) / float64(n-pos))

	z := make([]float64, n)
	loss := objective(x, y, w, lambda, z)

	grad := mat.NewVecDense(k, nil)
	step := mat.NewVecDense(k, nil)
	hess := mat.NewSymDense(k, nil)
	trial := make([]float64, k)

	m := &Model{}
	for iter := 1; iter <= opts.MaxIter; iter++ {
		m.Iterations = iter
		buildNewtonSystem(x, y, w, lambda, z, grad, hess)

		var chol mat.Cholesky
		if ok := chol.Factorize(hess); !ok {
			// Saturated weights; nudge the diagonal so the system stays solvable.
			for i := 0; i < k; i++ {
				hess.SetSym(i, i, hess.At(i, i)+1e-8)
			}
			if ok := chol.Factorize(hess); !ok {
				return nil, eris.New("linear: hessian is not positive definite")
			}
		}
		if err := chol.SolveVecTo(step, grad); err != nil {
			// Ill-conditioning is reported but the solution is still usable.
			if _, ok := err.(mat.Condition); !ok {
				return nil, eris.Wrap(err, "linear: solve newton step")
			}
		}

		t := 1.0
		accepted := false
		var trialLoss float64
		for halving := 0; halving < 30; halving++ {
			for i := range w {
				trial[i] = w[i] - t*step.AtVec(i)
			}
			trialLoss = objective(x, y, trial, lambda, z)
			if trialLoss <= loss {
				accepted = true
				break
			}
			t /= 2
		}
		if !accepted {
			// No descent direction left at floating point precision.
			m.Converged = true
			break
		}

		var maxStep float64
		for i := range w {
			maxStep = math.Max(maxStep, math.Abs(w[i]-trial[i]))
		}
		copy(w, trial)
		loss = trialLoss
		if maxStep < opts.Tol {
			m.Converged = true
			break
		}
	}

	for _, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, eris.New("linear: fit diverged")
		}
	}

	m.Intercept = w[0]
	m.Coef = append([]float64(nil), w[1:]...)
	return m, nil
}

// Decision returns the log-odds of y = 1 for one feature row.
func (m *Model) Decision(row []float64) float64 {
	z := m.Intercept
	for j, c := range m.Coef {
		z += c * row[j]
	}
	return z
}

// PredictProba returns P(y = 1) for each row of x.
func (m *Model) PredictProba(x mat.Matrix) []float64 {
	n, p := dims(x)
	out := make([]float64, n)
	row := make([]float64, p)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			row[j] = x.At(i, j)
		}
		out[i] = Sigmoid(m.Decision(row))
	}
	return out
}

// Sigmoid is the numerically stable logistic function.
func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus computes log(1 + exp(z)) without overflow.
func softplus(z float64) float64 {
	return math.Max(z, 0) + math.Log1p(math.Exp(-math.Abs(z)))
}

func dims(x mat.Matrix) (int, int) {
	if x == nil {
		return 0, 0
	}
	return x.Dims()
}

// linearPredictor fills z with intercept + x*coef.
func linearPredictor(x mat.Matrix, w []float64, z []float64) {
	_, p := dims(x)
	for i := range z {
		s := w[0]
		for j := 0; j < p; j++ {
			s += x.At(i, j) * w[j+1]
		}
		z[i] = s
	}
}

func objective(x mat.Matrix, y []int, w []float64, lambda float64, z []float64) float64 {
	linearPredictor(x, w, z)
	var loss float64
	for i, zi := range z {
		loss += softplus(zi) - float64(y[i])*zi
	}
	var penalty float64
	for _, c := range w[1:] {
		penalty += c * c
	}
	return loss + lambda*penalty/2
}

// buildNewtonSystem writes the gradient and hessian of the objective at w.
func buildNewtonSystem(x mat.Matrix, y []int, w []float64, lambda float64, z []float64, grad *mat.VecDense, hess *mat.SymDense) {
	_, p := dims(x)
	k := p + 1
	linearPredictor(x, w, z)

	g := make([]float64, k)
	h := make([]float64, k*k)
	row := make([]float64, k)
	row[0] = 1
	for i, zi := range z {
		for j := 0; j < p; j++ {
			row[j+1] = x.At(i, j)
		}
		pi := Sigmoid(zi)
		r := pi - float64(y[i])
		wt := pi * (1 - pi)
		for a := 0; a < k; a++ {
			g[a] += r * row[a]
			if row[a] == 0 {
				continue
			}
			for b := a; b < k; b++ {
				h[a*k+b] += wt * row[a] * row[b]
			}
		}
	}
	for a := 1; a < k; a++ {
		g[a] += lambda * w[a]
		h[a*k+a] += lambda
	}
	for a := 0; a < k; a++ {
		grad.SetVec(a, g[a])
		for b := a; b < k; b++ {
			hess.SetSym(a, b, h[a*k+b])
		}
	}
}
