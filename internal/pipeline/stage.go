package pipeline

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/jnsofini/auto-scorecard/internal/binning"
	"github.com/jnsofini/auto-scorecard/internal/frame"
	"github.com/jnsofini/auto-scorecard/internal/model"
	"github.com/jnsofini/auto-scorecard/internal/selection"
	"github.com/jnsofini/auto-scorecard/internal/varclus"
)

// Stage is one step of the variable reduction chain.
type Stage interface {
	Name() string
	Fit(ctx context.Context, f *frame.Frame, target []int) (Fitted, error)
}

// Fitted is a stage that has learned its parameters and can transform
// frames shaped like the one it was fitted on.
type Fitted interface {
	Apply(f *frame.Frame) (*frame.Frame, error)
}

// varianceStage drops columns that hold a single distinct value.
type varianceStage struct{}

type varianceFit struct {
	kept    []string
	dropped []string
}

func (varianceStage) Name() string { return "variance" }

func (varianceStage) Fit(_ context.Context, f *frame.Frame, _ []int) (Fitted, error) {
	fit := &varianceFit{}
	for _, c := range f.Columns() {
		if constant(c) {
			zap.L().Warn("pipeline: zero-variance feature dropped", zap.String("feature", c.Name))
			fit.dropped = append(fit.dropped, c.Name)
			continue
		}
		fit.kept = append(fit.kept, c.Name)
	}
	return fit, nil
}

func (v *varianceFit) Apply(f *frame.Frame) (*frame.Frame, error) {
	return f.Select(v.kept...)
}

// constant reports whether c has at most one distinct non-missing value.
func constant(c *frame.Column) bool {
	if c.Kind == frame.Categorical {
		first := ""
		for _, v := range c.Cat {
			if v == "" {
				continue
			}
			if first == "" {
				first = v
			} else if v != first {
				return false
			}
		}
		return true
	}
	first := math.NaN()
	for _, v := range c.Num {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(first) {
			first = v
		} else if v != first {
			return false
		}
	}
	return true
}

// binningStage fits optimal binning and emits the WoE encoding of the
// features that pass the IV gate.
type binningStage struct {
	opts binning.ProcessOptions
}

type binningFit struct {
	proc *binning.Process
}

func (binningStage) Name() string { return "binning" }

func (s binningStage) Fit(ctx context.Context, f *frame.Frame, target []int) (Fitted, error) {
	proc, err := binning.FitProcess(ctx, f, target, s.opts)
	if err != nil {
		return nil, err
	}
	return &binningFit{proc: proc}, nil
}

func (b *binningFit) Apply(f *frame.Frame) (*frame.Frame, error) {
	return b.proc.Transform(f, binning.MetricWoE)
}

// clusterStage groups correlated WoE columns and keeps one or two
// representatives per cluster.
type clusterStage struct {
	opts varclus.Options
	// iv is joined onto the cluster rows; nil selects on RS ratio alone.
	iv map[string]float64
}

type clusterFit struct {
	result   *varclus.Result
	rows     []model.ClusterRow
	selected []string
}

func (*clusterStage) Name() string { return "clustering" }

func (s *clusterStage) Fit(ctx context.Context, f *frame.Frame, _ []int) (Fitted, error) {
	res, err := varclus.Fit(ctx, f, s.opts)
	if err != nil {
		return nil, err
	}
	rows, selected := selection.SelectRepresentatives(res.Rows, s.iv)
	return &clusterFit{result: res, rows: rows, selected: selected}, nil
}

func (c *clusterFit) Apply(f *frame.Frame) (*frame.Frame, error) {
	return f.Select(c.selected...)
}

// eliminationStage runs cross-validated recursive feature elimination.
type eliminationStage struct {
	opts selection.Options
}

type eliminationFit struct {
	result *selection.Result
}

func (eliminationStage) Name() string { return "elimination" }

func (s eliminationStage) Fit(ctx context.Context, f *frame.Frame, target []int) (Fitted, error) {
	res, err := selection.RFECV(ctx, f, target, s.opts)
	if err != nil {
		return nil, err
	}
	return &eliminationFit{result: res}, nil
}

func (e *eliminationFit) Apply(f *frame.Frame) (*frame.Frame, error) {
	return f.Select(e.result.Selected...)
}
