package binning

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jnsofini/auto-scorecard/internal/frame"
	"github.com/jnsofini/auto-scorecard/internal/model"
)

// ProcessOptions configures the binning of a whole frame.
type ProcessOptions struct {
	Options
	// Params overrides the trend per feature name.
	Params map[string]Trend
	// MinIV is the information value gate; features below it are inactive.
	MinIV float64
}

// Process is the fitted binning of every input column together with the
// set of columns that passed the IV gate.
type Process struct {
	Features []*Feature
	MinIV    float64
	Active   []string

	index  map[string]int
	active map[string]bool
}

// FitProcess bins every column of f. Features below the IV gate and
// features that land in a single bin are kept in the summary but dropped
// from transforms.
func FitProcess(ctx context.Context, f *frame.Frame, y []int, opts ProcessOptions) (*Process, error) {
	if err := frame.ValidateTarget(y, f.Rows()); err != nil {
		return nil, err
	}

	p := &Process{
		MinIV:  opts.MinIV,
		index:  make(map[string]int, f.Width()),
		active: make(map[string]bool, f.Width()),
	}
	for _, c := range f.Columns() {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "binning: fit cancelled")
		}

		fo := opts.Options
		if trend, ok := opts.Params[c.Name]; ok && trend != "" {
			fo.Trend = trend
		}
		feat, err := Fit(c, y, fo)
		if err != nil {
			return nil, eris.Wrapf(err, "binning: fit %s", c.Name)
		}

		p.index[c.Name] = len(p.Features)
		p.Features = append(p.Features, feat)

		switch {
		case feat.Constant:
			zap.L().Warn("binning: zero-variance feature dropped",
				zap.String("feature", c.Name),
			)
		case feat.IV < opts.MinIV:
			zap.L().Warn("binning: feature dropped at IV gate",
				zap.String("feature", c.Name),
				zap.Float64("iv", feat.IV),
				zap.Float64("min_iv", opts.MinIV),
			)
		default:
			p.active[c.Name] = true
			p.Active = append(p.Active, c.Name)
		}
	}

	zap.L().Info("binning: process fitted",
		zap.Int("features", len(p.Features)),
		zap.Int("active", len(p.Active)),
	)
	return p, nil
}

// Feature returns the fitted binning for name.
func (p *Process) Feature(name string) (*Feature, bool) {
	i, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return p.Features[i], true
}

// IsActive reports whether name passed the IV gate.
func (p *Process) IsActive(name string) bool {
	return p.active[name]
}

// Transform encodes the active features of f. The output holds one numeric
// column per active feature, in fit order, under the same name.
func (p *Process) Transform(f *frame.Frame, metric Metric) (*frame.Frame, error) {
	cols := make([]*frame.Column, 0, len(p.Active))
	for _, name := range p.Active {
		c, ok := f.Column(name)
		if !ok {
			return nil, &frame.SchemaError{Feature: name, Reason: "required feature missing from input"}
		}
		feat, _ := p.Feature(name)
		vals, err := feat.Transform(c, metric)
		if err != nil {
			return nil, err
		}
		cols = append(cols, frame.NewNumeric(name, vals))
	}
	return frame.New(cols...)
}

// Summary returns the IV table, one row per fitted feature.
func (p *Process) Summary() []model.IVRow {
	rows := make([]model.IVRow, 0, len(p.Features))
	for _, feat := range p.Features {
		rows = append(rows, model.IVRow{
			Name:     feat.Name,
			Dtype:    feat.Kind.String(),
			NBins:    len(feat.Bins),
			IV:       feat.IV,
			Gini:     feat.Gini,
			Selected: p.active[feat.Name],
		})
	}
	return rows
}

// IVs maps each fitted feature to its information value.
func (p *Process) IVs() map[string]float64 {
	out := make(map[string]float64, len(p.Features))
	for _, feat := range p.Features {
		out[feat.Name] = feat.IV
	}
	return out
}

// Detail returns the per-bin table of every fitted feature.
func (p *Process) Detail() []model.BinRow {
	var rows []model.BinRow
	for _, feat := range p.Features {
		rows = append(rows, DetailRows(feat)...)
	}
	return rows
}

// DetailRows returns the per-bin rows of one feature.
func DetailRows(feat *Feature) []model.BinRow {
	var total int
	for _, b := range feat.Bins {
		total += b.Count
	}
	rows := make([]model.BinRow, 0, len(feat.Bins))
	for _, b := range feat.Bins {
		var pct float64
		if total > 0 {
			pct = float64(b.Count) / float64(total)
		}
		rows = append(rows, model.BinRow{
			Name:      feat.Name,
			Bin:       b.Label,
			Count:     b.Count,
			CountPct:  pct,
			NonEvent:  b.NonEvent,
			Event:     b.Event,
			EventRate: b.EventRate,
			WoE:       b.WoE,
			IV:        b.IV,
		})
	}
	return rows
}
