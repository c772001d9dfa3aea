// Package server exposes a fitted scorecard over HTTP.
package server

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/jnsofini/auto-scorecard/internal/fetcher"
	"github.com/jnsofini/auto-scorecard/internal/frame"
	"github.com/jnsofini/auto-scorecard/internal/scorecard"
)

// Event is one scoring request: a customer id and the raw feature record.
type Event struct {
	CustID any            `json:"cust_id"`
	Cust   map[string]any `json:"cust"`
}

// Prediction is the scored customer.
type Prediction struct {
	CustScore int `json:"cust_score"`
	CustID    any `json:"cust_id"`
}

// PredictionEvent is emitted once per scored event.
type PredictionEvent struct {
	Model      string     `json:"model"`
	Version    string     `json:"version"`
	Prediction Prediction `json:"prediction"`
}

// Response is the body returned by the predict endpoint.
type Response struct {
	Predictions []PredictionEvent `json:"predictions"`
}

// Callback receives every prediction event after it is produced.
type Callback func(PredictionEvent)

// ModelService scores raw records with a loaded scorecard.
type ModelService struct {
	model     *scorecard.Model
	name      string
	version   string
	callbacks []Callback
}

// NewModelService wraps m. Callbacks run synchronously in order.
func NewModelService(m *scorecard.Model, name, version string, callbacks ...Callback) *ModelService {
	return &ModelService{model: m, name: name, version: version, callbacks: callbacks}
}

// PrepareFeatures turns one raw record into a single-row frame holding
// exactly the model's columns. Null values are missing; unknown keys are
// ignored.
func (s *ModelService) PrepareFeatures(record map[string]any) (*frame.Frame, error) {
	cols := make([]*frame.Column, 0, len(s.model.Features))
	for _, feat := range s.model.Features {
		raw, ok := record[feat.Name]
		if !ok {
			return nil, &frame.SchemaError{Feature: feat.Name, Reason: "required feature missing from input"}
		}
		if feat.Kind == frame.Categorical {
			level, err := toLevel(raw)
			if err != nil {
				return nil, &frame.SchemaError{Feature: feat.Name, Reason: err.Error()}
			}
			cols = append(cols, frame.NewCategorical(feat.Name, []string{level}))
			continue
		}
		v, err := toNumber(raw)
		if err != nil {
			return nil, &frame.SchemaError{Feature: feat.Name, Reason: err.Error()}
		}
		cols = append(cols, frame.NewNumeric(feat.Name, []float64{v}))
	}
	return frame.New(cols...)
}

// Predict scores a single-row frame.
func (s *ModelService) Predict(f *frame.Frame) (int, error) {
	return s.model.ScoreOne(f)
}

// ScoreEvents scores one event and wraps the result in the prediction
// envelope.
func (s *ModelService) ScoreEvents(ev Event) (Response, error) {
	f, err := s.PrepareFeatures(ev.Cust)
	if err != nil {
		return Response{}, err
	}
	score, err := s.Predict(f)
	if err != nil {
		return Response{}, eris.Wrap(err, "server: score")
	}

	pe := PredictionEvent{
		Model:   s.name,
		Version: s.version,
		Prediction: Prediction{
			CustScore: score,
			CustID:    ev.CustID,
		},
	}
	for _, cb := range s.callbacks {
		cb(pe)
	}

	zap.L().Debug("server: scored event",
		zap.Any("cust_id", ev.CustID),
		zap.Int("cust_score", score),
	)
	return Response{Predictions: []PredictionEvent{pe}}, nil
}

func toNumber(raw any) (float64, error) {
	switch v := raw.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return math.NaN(), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("expected a number, got %q", v)
		}
		return f, nil
	}
	return 0, fmt.Errorf("expected a number, got %T", raw)
}

func toLevel(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return fetcher.NormalizeLevel(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	return "", fmt.Errorf("expected a string level, got %T", raw)
}
