package pipeline

import (
	"context"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jnsofini/auto-scorecard/internal/binning"
	"github.com/jnsofini/auto-scorecard/internal/config"
	"github.com/jnsofini/auto-scorecard/internal/frame"
	"github.com/jnsofini/auto-scorecard/internal/model"
	"github.com/jnsofini/auto-scorecard/internal/selection"
	"github.com/jnsofini/auto-scorecard/internal/varclus"
)

// Reduction is the outcome of the variable reduction chain.
type Reduction struct {
	// Dropped lists the zero-variance features removed before binning.
	Dropped     []string
	Binning     *binning.Process
	IVTable     []model.IVRow
	Clusters    []model.ClusterRow
	NumClusters int
	Elimination *selection.Result

	// Selected are the raw feature names that survived every stage.
	Selected            []string
	SelectedCategorical []string
}

// tracker runs fn as a named phase. The default tracker only runs it.
type tracker func(name string, fn func() (*model.PhaseResult, error)) error

func untracked(_ string, fn func() (*model.PhaseResult, error)) error {
	_, err := fn()
	return err
}

// Reduce chains the variance, binning, clustering and elimination stages
// over f and reports which raw features survive.
func Reduce(ctx context.Context, sc config.Scorecard, f *frame.Frame, target []int) (*Reduction, error) {
	return reduce(ctx, sc, f, target, untracked)
}

func reduce(ctx context.Context, sc config.Scorecard, f *frame.Frame, target []int, track tracker) (*Reduction, error) {
	binOpts, err := BinningOptions(sc)
	if err != nil {
		return nil, err
	}
	cluster := &clusterStage{opts: varclus.Options{
		MaxEigen:    sc.Cluster.MaxEigen,
		MaxClusters: sc.Cluster.MaxClusters,
		MaxIter:     sc.Cluster.MaxIter,
	}}
	stages := []Stage{
		varianceStage{},
		binningStage{opts: binOpts},
		cluster,
		eliminationStage{opts: selection.Options{
			Folds:          sc.Selection.CVFolds,
			Workers:        sc.Selection.Workers,
			C:              sc.Selection.C,
			MaxIter:        sc.Selection.MaxIter,
			ScoreTolerance: sc.Selection.ScoreTolerance,
			MinFeatures:    sc.Selection.MinFeatures,
		}},
	}

	red := &Reduction{}
	cur := f
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrapf(err, "pipeline: cancelled before %s", st.Name())
		}
		in := cur
		err := track(st.Name(), func() (*model.PhaseResult, error) {
			fitted, err := st.Fit(ctx, in, target)
			if err != nil {
				return nil, eris.Wrapf(err, "pipeline: fit %s", st.Name())
			}
			switch fit := fitted.(type) {
			case *varianceFit:
				red.Dropped = fit.dropped
			case *binningFit:
				red.Binning = fit.proc
				red.IVTable = fit.proc.Summary()
				cluster.iv = fit.proc.IVs()
			case *clusterFit:
				red.Clusters = fit.rows
				red.NumClusters = fit.result.NumClusters()
			case *eliminationFit:
				red.Elimination = fit.result
			}
			out, err := fitted.Apply(in)
			if err != nil {
				return nil, eris.Wrapf(err, "pipeline: apply %s", st.Name())
			}
			cur = out
			return &model.PhaseResult{FeaturesIn: in.Width(), FeaturesOut: out.Width()}, nil
		})
		if err != nil {
			return nil, err
		}
		if cur.Width() == 0 {
			return nil, eris.Errorf("pipeline: no feature survived the %s stage", st.Name())
		}
	}

	red.Selected = cur.Names()
	categorical := f.CategoricalNames()
	for _, name := range red.Selected {
		if slices.Contains(categorical, name) {
			red.SelectedCategorical = append(red.SelectedCategorical, name)
		}
	}

	zap.L().Info("pipeline: reduction complete",
		zap.Int("features_in", f.Width()),
		zap.Int("clusters", red.NumClusters),
		zap.Strings("selected", red.Selected),
		zap.Strings("selected_categorical", red.SelectedCategorical),
	)
	return red, nil
}

// BinningOptions maps the binning settings onto binning.ProcessOptions.
func BinningOptions(sc config.Scorecard) (binning.ProcessOptions, error) {
	trend, err := binning.ParseTrend(sc.Binning.DefaultTrend)
	if err != nil {
		return binning.ProcessOptions{}, err
	}
	params := make(map[string]binning.Trend, len(sc.Binning.Params))
	for name, p := range sc.Binning.Params {
		if p.MonotonicTrend == "" {
			continue
		}
		t, err := binning.ParseTrend(p.MonotonicTrend)
		if err != nil {
			return binning.ProcessOptions{}, eris.Wrapf(err, "pipeline: binning params for %s", name)
		}
		params[name] = t
	}
	return binning.ProcessOptions{
		Options: binning.Options{
			SpecialCodes:  sc.Binning.SpecialCodes,
			MissingCodes:  sc.Binning.MissingCodes,
			MinPrebinSize: sc.Binning.MinPrebinSize,
			MaxNPrebins:   sc.Binning.MaxNPrebins,
			MaxNBins:      sc.Binning.MaxNBins,
			Trend:         trend,
		},
		Params: params,
		MinIV:  sc.Binning.MinIV,
	}, nil
}
