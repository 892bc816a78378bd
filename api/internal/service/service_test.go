package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkm2-predict/api/internal/apperr"
	"pkm2-predict/api/internal/descriptor"
)

type stubProvider struct {
	byCompound map[string]descriptor.Mapping
}

func (p stubProvider) Name() string { return "stub" }

func (p stubProvider) Compute(_ context.Context, smiles string) (descriptor.Mapping, error) {
	m, ok := p.byCompound[smiles]
	if !ok {
		return nil, apperr.New(apperr.CodeInvalidStructure, "cannot parse SMILES "+smiles)
	}
	return m, nil
}

// sumPredictor returns the row sum; it checks the row width like a real model.
type sumPredictor struct {
	width int
	calls [][]float64
	mu    sync.Mutex
	out   []any
	err   error
}

func (p *sumPredictor) Predict(_ context.Context, X [][]float64) ([]any, error) {
	p.mu.Lock()
	p.calls = append(p.calls, X[0])
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	if p.out != nil {
		return p.out, nil
	}
	if len(X[0]) != p.width {
		return nil, apperr.New(apperr.CodeSchemaMismatch, "wrong width")
	}
	var s float64
	for _, v := range X[0] {
		s += v
	}
	return []any{s}, nil
}

type memRecorder struct {
	recs []Record
	err  error
}

func (r *memRecorder) RecordPrediction(_ context.Context, rec Record) error {
	r.recs = append(r.recs, rec)
	return r.err
}

var required = []string{"nN", "nX"}

func TestPredictSuccess(t *testing.T) {
	p := &sumPredictor{width: 2}
	s := New(stubProvider{map[string]descriptor.Mapping{"CCO": {"nN": 3, "nX": 1}}}, p, required, nil)

	out, err := s.Predict(context.Background(), "CCO")
	require.NoError(t, err)
	assert.Equal(t, 4.0, out.Prediction)
	assert.Equal(t, []float64{3, 1}, out.Vector)
	assert.Empty(t, out.Missing)
}

func TestPredictDefaultsMissingDescriptors(t *testing.T) {
	p := &sumPredictor{width: 2}
	s := New(stubProvider{map[string]descriptor.Mapping{"CCO": {"nN": 3}}}, p, required, nil)

	out, err := s.Predict(context.Background(), "CCO")
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 0}, out.Vector)
	assert.Equal(t, []string{"nX"}, out.Missing)
	assert.Equal(t, [][]float64{{3, 0}}, p.calls)
}

func TestPredictIsIdempotent(t *testing.T) {
	p := &sumPredictor{width: 2}
	s := New(stubProvider{map[string]descriptor.Mapping{"CCO": {"nN": 3, "nX": 1}}}, p, required, nil)

	first, err := s.Predict(context.Background(), "CCO")
	require.NoError(t, err)
	second, err := s.Predict(context.Background(), "CCO")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, p.calls[0], p.calls[1])
}

func TestPredictInvalidStructure(t *testing.T) {
	p := &sumPredictor{width: 2}
	s := New(stubProvider{}, p, required, nil)

	_, err := s.Predict(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrInvalidStructure)
	assert.Empty(t, p.calls, "predictor must not run without descriptors")
}

func TestPredictSchemaMismatch(t *testing.T) {
	p := &sumPredictor{width: 28}
	s := New(stubProvider{map[string]descriptor.Mapping{"CCO": {"nN": 3}}}, p, required, nil)

	_, err := s.Predict(context.Background(), "CCO")
	assert.ErrorIs(t, err, apperr.ErrSchemaMismatch)
}

func TestPredictUncodedErrorsAreTagged(t *testing.T) {
	p := &sumPredictor{err: errors.New("segfault in model")}
	s := New(stubProvider{map[string]descriptor.Mapping{"CCO": {}}}, p, required, nil)

	_, err := s.Predict(context.Background(), "CCO")
	require.Error(t, err)
	assert.Equal(t, apperr.CodePredictFailed, apperr.CodeOf(err))
	assert.Equal(t, "segfault in model", err.Error())
}

func TestPredictEmptyPrediction(t *testing.T) {
	p := &sumPredictor{out: []any{}}
	s := New(stubProvider{map[string]descriptor.Mapping{"CCO": {}}}, p, required, nil)

	_, err := s.Predict(context.Background(), "CCO")
	assert.ErrorIs(t, err, apperr.ErrEmptyPrediction)
}

func TestPredictRecords(t *testing.T) {
	rec := &memRecorder{err: errors.New("db down")}
	s := New(stubProvider{map[string]descriptor.Mapping{"CCO": {"nN": 1}}}, &sumPredictor{width: 2}, required, nil)
	s.Recorder = rec

	_, err := s.Predict(context.Background(), "CCO")
	require.NoError(t, err, "recorder failures never fail the request")
	_, err = s.Predict(context.Background(), "bad")
	require.Error(t, err)

	require.Len(t, rec.recs, 2)
	assert.Equal(t, "CCO", rec.recs[0].Compound)
	assert.Equal(t, "stub", rec.recs[0].Provider)
	assert.Equal(t, 1.0, rec.recs[0].Prediction)
	assert.Equal(t, []string{"nX"}, rec.recs[0].Missing)
	assert.Empty(t, rec.recs[0].ErrCode)

	assert.Equal(t, apperr.CodeInvalidStructure, rec.recs[1].ErrCode)
	assert.Equal(t, "cannot parse SMILES bad", rec.recs[1].ErrText)
}
