package scorecard

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jnsofini/auto-scorecard/internal/artifact"
	"github.com/jnsofini/auto-scorecard/internal/binning"
	"github.com/jnsofini/auto-scorecard/internal/frame"
	"github.com/jnsofini/auto-scorecard/internal/linear"
	"github.com/jnsofini/auto-scorecard/internal/model"
)

// FormatVersion is bumped whenever the persisted model layout changes.
const FormatVersion = 1

// Options configures Build.
type Options struct {
	Binning binning.ProcessOptions
	C       float64
	MaxIter int
	Scaling Scaling
}

// Model is a fitted scorecard. It is not modified after Build or Load.
type Model struct {
	Version      int                `json:"version"`
	Features     []*binning.Feature `json:"features"`
	Intercept    float64            `json:"intercept"`
	Coefficients []float64          `json:"coefficients"`
	Scaling      Scaling            `json:"scaling"`
	BasePoints   int                `json:"base_points"`
	// Points[j][k] is the allocation of bin k of feature j.
	Points    [][]int   `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// Build refits the binning on f, fits logistic regression on the WoE
// encoding of the features that pass the IV gate, and scales the result.
func Build(ctx context.Context, f *frame.Frame, y []int, opts Options) (*Model, error) {
	proc, err := binning.FitProcess(ctx, f, y, opts.Binning)
	if err != nil {
		return nil, eris.Wrap(err, "scorecard: fit binning")
	}
	if len(proc.Active) == 0 {
		return nil, eris.New("scorecard: no feature passed the IV gate")
	}

	woe, err := proc.Transform(f, binning.MetricWoE)
	if err != nil {
		return nil, eris.Wrap(err, "scorecard: woe transform")
	}
	x, err := woe.Matrix()
	if err != nil {
		return nil, eris.Wrap(err, "scorecard: build matrix")
	}
	lm, err := linear.Fit(x, y, linear.Options{C: opts.C, MaxIter: opts.MaxIter})
	if err != nil {
		return nil, eris.Wrap(err, "scorecard: fit logistic regression")
	}
	if !lm.Converged {
		zap.L().Warn("scorecard: logistic regression did not converge",
			zap.Int("iterations", lm.Iterations),
		)
	}

	m := &Model{
		Version:      FormatVersion,
		Intercept:    lm.Intercept,
		Coefficients: lm.Coef,
		Scaling:      opts.Scaling,
		CreatedAt:    time.Now().UTC(),
	}
	woeByBin := make([][]float64, 0, len(proc.Active))
	for _, name := range proc.Active {
		feat, _ := proc.Feature(name)
		m.Features = append(m.Features, feat)
		vals := make([]float64, len(feat.Bins))
		for k, b := range feat.Bins {
			vals[k] = b.WoE
		}
		woeByBin = append(woeByBin, vals)
	}
	m.BasePoints, m.Points = opts.Scaling.allocate(m.Intercept, m.Coefficients, woeByBin)

	zap.L().Info("scorecard: model built",
		zap.Strings("features", m.Names()),
		zap.Float64("intercept", m.Intercept),
		zap.Int("base_points", m.BasePoints),
	)
	return m, nil
}

// Names returns the model features in order.
func (m *Model) Names() []string {
	names := make([]string, len(m.Features))
	for j, feat := range m.Features {
		names[j] = feat.Name
	}
	return names
}

// Categorical returns the categorical model features.
func (m *Model) Categorical() []string {
	var names []string
	for _, feat := range m.Features {
		if feat.Kind == frame.Categorical {
			names = append(names, feat.Name)
		}
	}
	return names
}

// Schema describes the input columns the model requires.
func (m *Model) Schema() frame.Schema {
	s := frame.Schema{Required: m.Names()}
	for _, feat := range m.Features {
		if feat.Kind == frame.Categorical {
			s.Categorical = append(s.Categorical, feat.Name)
		} else {
			s.Numeric = append(s.Numeric, feat.Name)
		}
	}
	return s
}

func (m *Model) binIndices(f *frame.Frame) ([][]int, error) {
	out := make([][]int, len(m.Features))
	for j, feat := range m.Features {
		c, ok := f.Column(feat.Name)
		if !ok {
			return nil, &frame.SchemaError{Feature: feat.Name, Reason: "required feature missing from input"}
		}
		idx, err := feat.Transform(c, binning.MetricBinIndex)
		if err != nil {
			return nil, err
		}
		out[j] = make([]int, len(idx))
		for i, v := range idx {
			out[j][i] = int(v)
		}
	}
	return out, nil
}

// Score returns the integer score of every row: the base points plus the
// points of the bin each feature value falls in.
func (m *Model) Score(f *frame.Frame) ([]int, error) {
	idx, err := m.binIndices(f)
	if err != nil {
		return nil, err
	}
	scores := make([]int, f.Rows())
	for i := range scores {
		s := m.BasePoints
		for j := range m.Features {
			s += m.Points[j][idx[j][i]]
		}
		scores[i] = s
	}
	return scores, nil
}

// ScoreOne scores a single-row frame.
func (m *Model) ScoreOne(f *frame.Frame) (int, error) {
	if f.Rows() != 1 {
		return 0, &frame.SchemaError{Reason: "expected a single row"}
	}
	scores, err := m.Score(f)
	if err != nil {
		return 0, err
	}
	return scores[0], nil
}

// PredictProba returns the modelled probability of the event per row.
func (m *Model) PredictProba(f *frame.Frame) ([]float64, error) {
	idx, err := m.binIndices(f)
	if err != nil {
		return nil, err
	}
	probs := make([]float64, f.Rows())
	for i := range probs {
		z := m.Intercept
		for j, feat := range m.Features {
			z += m.Coefficients[j] * feat.Bins[idx[j][i]].WoE
		}
		probs[i] = linear.Sigmoid(z)
	}
	return probs, nil
}

// ImpliedOdds returns the good:bad odds implied by a score.
func (m *Model) ImpliedOdds(score float64) float64 {
	return m.Scaling.ImpliedOdds(score)
}

// Table returns the detailed scorecard, base row first.
func (m *Model) Table() []model.ScorecardRow {
	rows := []model.ScorecardRow{{Variable: model.BaseVariable, Points: m.BasePoints}}
	for j, feat := range m.Features {
		for k, b := range feat.Bins {
			rows = append(rows, model.ScorecardRow{
				Variable:    feat.Name,
				Bin:         b.Label,
				Count:       b.Count,
				EventRate:   b.EventRate,
				WoE:         b.WoE,
				Coefficient: m.Coefficients[j],
				Points:      m.Points[j][k],
			})
		}
	}
	return rows
}

// Save writes the model as JSON, atomically.
func (m *Model) Save(path string) error {
	return artifact.WriteJSON(path, m)
}

// Load reads a model written by Save.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scorecard: read model %s", path)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "scorecard: decode model %s", path)
	}
	if m.Version != FormatVersion {
		return nil, eris.Errorf("scorecard: model %s has version %d, want %d", path, m.Version, FormatVersion)
	}
	if len(m.Coefficients) != len(m.Features) || len(m.Points) != len(m.Features) {
		return nil, eris.Errorf("scorecard: model %s is inconsistent", path)
	}
	for j, feat := range m.Features {
		if len(m.Points[j]) != len(feat.Bins) {
			return nil, eris.Errorf("scorecard: model %s has %d points for %d bins of %s", path, len(m.Points[j]), len(feat.Bins), feat.Name)
		}
	}
	return &m, nil
}
