// Package pipeline chains variable reduction, scorecard fitting and artifact
// writing, and records each run in the run registry.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jnsofini/auto-scorecard/internal/config"
	"github.com/jnsofini/auto-scorecard/internal/frame"
	"github.com/jnsofini/auto-scorecard/internal/model"
	"github.com/jnsofini/auto-scorecard/internal/scorecard"
	"github.com/jnsofini/auto-scorecard/internal/store"
)

// Phase names recorded in the run registry.
const (
	PhaseScorecard = "scorecard"
	PhaseArtifacts = "artifacts"
)

// Pipeline fits a scorecard end to end.
type Pipeline struct {
	sc    config.Scorecard
	out   config.OutputConfig
	store store.Store
}

// New creates a Pipeline. st may be nil, in which case nothing is recorded.
func New(sc config.Scorecard, out config.OutputConfig, st store.Store) *Pipeline {
	return &Pipeline{sc: sc, out: out, store: st}
}

// Result is what a completed run produced.
type Result struct {
	RunID     string
	Reduction *Reduction
	Model     *scorecard.Model
	Artifacts []string
	Phases    []model.PhaseResult
}

// Run validates the inputs, reduces the feature set, builds the scorecard on
// the surviving raw features and writes every artifact under the output dir.
// Registry failures are logged and never fail the run.
func (p *Pipeline) Run(ctx context.Context, input model.RunInput, f *frame.Frame, target []int) (*Result, error) {
	log := zap.L().With(zap.String("x_train", input.XTrain))
	result := &Result{}

	if input.Rows == 0 {
		input.Rows = f.Rows()
	}
	if input.Features == 0 {
		input.Features = f.Width()
	}

	var run *model.Run
	if p.store != nil {
		r, err := p.store.CreateRun(ctx, input)
		if err != nil {
			log.Warn("pipeline: failed to create run", zap.Error(err))
		} else {
			run = r
			result.RunID = r.ID
			log = log.With(zap.String("run_id", r.ID))
		}
	}
	log.Info("pipeline: starting fit", zap.Int("rows", input.Rows), zap.Int("features", input.Features))

	setStatus := func(status model.RunStatus) {
		if run == nil {
			return
		}
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}
	fail := func(err error) (*Result, error) {
		if run != nil {
			if failErr := p.store.FailRun(ctx, run.ID, err.Error()); failErr != nil {
				log.Warn("pipeline: failed to record failure", zap.Error(failErr))
			}
		}
		log.Error("pipeline: run failed", zap.Error(err))
		return result, err
	}

	var phasesMu sync.Mutex
	trackPhase := func(name string, fn func() (*model.PhaseResult, error)) error {
		var phase *model.RunPhase
		if run != nil {
			var phaseErr error
			phase, phaseErr = p.store.CreatePhase(ctx, run.ID, name)
			if phaseErr != nil {
				log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(phaseErr))
			}
		}

		start := time.Now()
		phaseResult, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if phaseResult == nil {
			phaseResult = &model.PhaseResult{}
		}
		phaseResult.Name = name
		phaseResult.Duration = duration

		if fnErr != nil {
			phaseResult.Status = model.PhaseStatusFailed
			phaseResult.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			phaseResult.Status = model.PhaseStatusComplete
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Int("features_in", phaseResult.FeaturesIn),
				zap.Int("features_out", phaseResult.FeaturesOut),
			)
		}

		if phase != nil {
			if err := p.store.CompletePhase(ctx, phase.ID, phaseResult); err != nil {
				log.Warn("pipeline: failed to complete phase", zap.String("phase", name), zap.Error(err))
			}
		}
		phasesMu.Lock()
		result.Phases = append(result.Phases, *phaseResult)
		phasesMu.Unlock()
		return fnErr
	}

	// ===== Schema =====
	setStatus(model.RunStatusLoading)
	schema := frame.Schema{Required: p.sc.Features, Categorical: p.sc.Categorical, Numeric: p.sc.Numeric}
	if err := schema.Validate(f, target); err != nil {
		return fail(err)
	}
	if len(p.sc.Features) > 0 {
		selected, err := f.Select(p.sc.Features...)
		if err != nil {
			return fail(err)
		}
		f = selected
	}

	// ===== Variable reduction =====
	setStatus(model.RunStatusReducing)
	red, err := reduce(ctx, p.sc, f, target, trackPhase)
	if err != nil {
		return fail(err)
	}
	result.Reduction = red

	// ===== Scorecard =====
	setStatus(model.RunStatusBuilding)
	err = trackPhase(PhaseScorecard, func() (*model.PhaseResult, error) {
		raw, err := f.Select(red.Selected...)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: select reduced features")
		}
		opts, err := p.scorecardOptions()
		if err != nil {
			return nil, err
		}
		m, err := scorecard.Build(ctx, raw, target, opts)
		if err != nil {
			return nil, err
		}
		result.Model = m
		return &model.PhaseResult{FeaturesIn: raw.Width(), FeaturesOut: len(m.Features)}, nil
	})
	if err != nil {
		return fail(err)
	}

	// ===== Artifacts =====
	setStatus(model.RunStatusWriting)
	err = trackPhase(PhaseArtifacts, func() (*model.PhaseResult, error) {
		paths, err := WriteArtifacts(p.out, red, result.Model)
		if err != nil {
			return nil, err
		}
		result.Artifacts = paths
		return &model.PhaseResult{FeaturesIn: len(result.Model.Features), FeaturesOut: len(result.Model.Features)}, nil
	})
	if err != nil {
		return fail(err)
	}

	if run != nil {
		cvScore := 0.0
		if red.Elimination != nil {
			cvScore = red.Elimination.BestScore
		}
		runResult := &model.RunResult{
			SelectedFeatures: result.Model.Names(),
			ClusterCount:     red.NumClusters,
			CVScore:          cvScore,
			BasePoints:       result.Model.BasePoints,
			ArtifactDir:      p.out.Dir,
			Phases:           result.Phases,
		}
		if saveErr := p.store.CompleteRun(ctx, run.ID, runResult); saveErr != nil {
			log.Warn("pipeline: failed to save run result", zap.Error(saveErr))
		}
	}

	log.Info("pipeline: fit complete",
		zap.Strings("features", result.Model.Names()),
		zap.Int("base_points", result.Model.BasePoints),
		zap.Strings("artifacts", result.Artifacts),
	)
	return result, nil
}

func (p *Pipeline) scorecardOptions() (scorecard.Options, error) {
	binOpts, err := BinningOptions(p.sc)
	if err != nil {
		return scorecard.Options{}, err
	}
	return scorecard.Options{
		Binning: binOpts,
		C:       p.sc.Selection.C,
		MaxIter: p.sc.Selection.MaxIter,
		Scaling: scorecard.Scaling{
			PDO:            p.sc.Scaling.PDO,
			Odds:           p.sc.Scaling.Odds,
			Points:         p.sc.Scaling.Points,
			InterceptBased: p.sc.Scaling.InterceptBased,
		},
	}, nil
}
