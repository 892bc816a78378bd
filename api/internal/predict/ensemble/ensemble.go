package ensemble

import (
	"context"
	"fmt"
	"math"

	"pkm2-predict/api/internal/apperr"
)

// Model is an immutable voting classifier. It is safe for concurrent use.
type Model struct {
	voting       string
	weights      []float64
	classes      []any
	featureNames []string
	nFeatures    int
	estimators   []Estimator
	// trees are evaluated in float32, so larger magnitudes overflow
	float32Input bool
}

func newModel(a Artifact) *Model {
	voting := a.Voting
	if voting == "" {
		voting = "hard"
	}
	weights := a.Weights
	if len(weights) == 0 {
		weights = make([]float64, len(a.Estimators))
		for i := range weights {
			weights[i] = 1
		}
	}
	float32Input := false
	for _, e := range a.Estimators {
		if e.Kind == "tree" || e.Kind == "forest" {
			float32Input = true
		}
	}
	return &Model{
		float32Input: float32Input,
		voting:       voting,
		weights:      weights,
		classes:      a.Classes,
		featureNames: a.FeatureNames,
		nFeatures:    a.NFeatures,
		estimators:   a.Estimators,
	}
}

func (m *Model) Voting() string { return m.voting }

// FeatureNames returns a copy of the training-time column names, nil if unknown.
func (m *Model) FeatureNames() []string {
	if m.featureNames == nil {
		return nil
	}
	return append([]string(nil), m.featureNames...)
}

func (m *Model) NFeatures() int { return m.nFeatures }

func (m *Model) Classes() []any { return append([]any(nil), m.classes...) }

func (m *Model) NEstimators() int { return len(m.estimators) }

// Predict returns one class label per row.
func (m *Model) Predict(ctx context.Context, X [][]float64) ([]any, error) {
	out := make([]any, len(X))
	for i, x := range X {
		if err := ctx.Err(); err != nil {
			return nil, apperr.Wrap(apperr.CodePredictFailed, "", err)
		}
		if err := m.checkRow(x); err != nil {
			return nil, err
		}
		out[i] = m.classes[m.predictOne(x)]
	}
	return out, nil
}

// PredictProba returns the soft-voting distribution per row, aligned with Classes.
func (m *Model) PredictProba(ctx context.Context, X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, x := range X {
		if err := ctx.Err(); err != nil {
			return nil, apperr.Wrap(apperr.CodePredictFailed, "", err)
		}
		if err := m.checkRow(x); err != nil {
			return nil, err
		}
		out[i] = m.softVote(x)
	}
	return out, nil
}

// checkRow rejects rows of the wrong width or with non-finite values.
func (m *Model) checkRow(x []float64) error {
	if len(x) != m.nFeatures {
		return apperr.New(apperr.CodeSchemaMismatch,
			fmt.Sprintf("X has %d features, but VotingClassifier is expecting %d features as input.", len(x), m.nFeatures))
	}
	for _, v := range x {
		if math.IsNaN(v) {
			return apperr.New(apperr.CodePredictFailed, "Input X contains NaN.")
		}
		if math.IsInf(v, 0) {
			return apperr.New(apperr.CodePredictFailed, "Input X contains infinity.")
		}
		if m.float32Input && math.Abs(v) > math.MaxFloat32 {
			return apperr.New(apperr.CodePredictFailed, "Input X contains infinity or a value too large for dtype('float32').")
		}
	}
	return nil
}

func (m *Model) predictOne(x []float64) int {
	if m.voting == "soft" {
		return argmax(m.softVote(x))
	}
	return argmax(m.hardVote(x))
}

// hardVote accumulates weighted ballots; ties go to the lower class index.
func (m *Model) hardVote(x []float64) []float64 {
	k := len(m.classes)
	ballots := make([]float64, k)
	for i := range m.estimators {
		c := argmax(m.estimators[i].proba(x, k))
		ballots[c] += m.weights[i]
	}
	return ballots
}

func (m *Model) softVote(x []float64) []float64 {
	k := len(m.classes)
	avg := make([]float64, k)
	var total float64
	for i := range m.estimators {
		w := m.weights[i]
		for c, p := range m.estimators[i].proba(x, k) {
			avg[c] += w * p
		}
		total += w
	}
	if total > 0 {
		for c := range avg {
			avg[c] /= total
		}
	}
	return avg
}
