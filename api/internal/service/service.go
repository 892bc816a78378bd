// Package service runs the descriptor -> vector -> prediction pipeline.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"pkm2-predict/api/internal/apperr"
	"pkm2-predict/api/internal/descriptor"
	"pkm2-predict/api/internal/features"
	"pkm2-predict/api/internal/predict"
)

// Outcome is a successful pipeline run.
type Outcome struct {
	Prediction any
	Vector     []float64
	Missing    []string
}

// Record is what gets logged per request when a Recorder is configured.
type Record struct {
	Compound   string
	Provider   string
	Prediction any
	Missing    []string
	ErrCode    apperr.Code
	ErrText    string
	Duration   time.Duration
}

type Recorder interface {
	RecordPrediction(ctx context.Context, rec Record) error
}

type Service struct {
	Provider  descriptor.Provider
	Predictor predict.Predictor
	Required  []string
	Recorder  Recorder
	Log       *zap.Logger
}

func New(provider descriptor.Provider, predictor predict.Predictor, required []string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		Provider:  provider,
		Predictor: predictor,
		Required:  required,
		Log:       log,
	}
}

// Predict computes descriptors for compound, assembles the feature vector and
// returns the first prediction. Every failure is an *apperr.Error.
func (s *Service) Predict(ctx context.Context, compound string) (Outcome, error) {
	start := time.Now()
	out, err := s.run(ctx, compound)
	s.record(ctx, compound, out, err, time.Since(start))
	return out, err
}

func (s *Service) run(ctx context.Context, compound string) (Outcome, error) {
	m, err := s.Provider.Compute(ctx, compound)
	if err != nil {
		return Outcome{}, coded(apperr.CodeDescriptorUnavailable, err)
	}

	vec := features.Assemble(m, s.Required)
	missing := features.Missing(m, s.Required)
	if len(missing) > 0 {
		s.Log.Warn("required descriptors missing, filled with default",
			zap.String("compound", compound),
			zap.Strings("missing", missing),
			zap.Float64("default", features.DefaultValue))
	}

	preds, err := s.Predictor.Predict(ctx, [][]float64{vec})
	if err != nil {
		return Outcome{}, coded(apperr.CodePredictFailed, err)
	}
	if len(preds) == 0 {
		return Outcome{}, apperr.ErrEmptyPrediction
	}
	return Outcome{Prediction: preds[0], Vector: vec, Missing: missing}, nil
}

func (s *Service) record(ctx context.Context, compound string, out Outcome, err error, d time.Duration) {
	if s.Recorder == nil {
		return
	}
	rec := Record{
		Compound:   compound,
		Provider:   s.Provider.Name(),
		Prediction: out.Prediction,
		Missing:    out.Missing,
		Duration:   d,
	}
	if err != nil {
		rec.ErrCode = apperr.CodeOf(err)
		rec.ErrText = err.Error()
	}
	// the request may already be cancelled; the log write should still land
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if rerr := s.Recorder.RecordPrediction(ctx, rec); rerr != nil {
		s.Log.Warn("record prediction failed", zap.Error(rerr))
	}
}

// coded leaves *apperr.Error values alone and tags anything else with code.
func coded(code apperr.Code, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Wrap(code, "", err)
}
