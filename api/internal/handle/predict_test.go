package handle

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkm2-predict/api/internal/apperr"
	"pkm2-predict/api/internal/descriptor"
	"pkm2-predict/api/internal/features"
	"pkm2-predict/api/internal/predict/ensemble"
	"pkm2-predict/api/internal/service"
)

// smilesProvider accepts only the compounds it knows.
type smilesProvider map[string]descriptor.Mapping

func (p smilesProvider) Name() string { return "stub" }

func (p smilesProvider) Compute(_ context.Context, smiles string) (descriptor.Mapping, error) {
	if smiles == "" {
		return nil, apperr.New(apperr.CodeInvalidStructure, "empty SMILES string")
	}
	m, ok := p[smiles]
	if !ok {
		return nil, apperr.New(apperr.CodeInvalidStructure, "PaDEL-Descriptor failed on SMILES \""+smiles+"\"")
	}
	return m, nil
}

type constPredictor struct {
	width int
	value any
}

func (p constPredictor) Predict(_ context.Context, X [][]float64) ([]any, error) {
	if len(X[0]) != p.width {
		return nil, apperr.New(apperr.CodeSchemaMismatch, "X has 28 features, but VotingClassifier is expecting 30 features as input.")
	}
	return []any{p.value}, nil
}

func newTestHandle(width int) *Handle {
	provider := smilesProvider{"CCO": {"nN": 0, "nX": 0, "AATS2i": 153.2}}
	svc := service.New(provider, constPredictor{width: width, value: 1}, features.Required, nil)
	return New(svc, features.Required, nil)
}

func doPredict(t *testing.T, h *Handle, method, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/api/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Predict(rec, req)
	return rec
}

func TestPredictSuccess(t *testing.T) {
	rec := doPredict(t, newTestHandle(28), http.MethodPost, `{"compound":"CCO"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"prediction":1}`, rec.Body.String())
}

func TestPredictSameCompoundTwice(t *testing.T) {
	h := newTestHandle(28)
	first := doPredict(t, h, http.MethodPost, `{"compound":"CCO"}`)
	second := doPredict(t, h, http.MethodPost, `{"compound":"CCO"}`)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestPredictInvalidIdentifiers(t *testing.T) {
	cases := map[string]string{
		"empty compound":   `{"compound":""}`,
		"missing compound": `{}`,
		"null compound":    `{"compound":null}`,
		"wrong type":       `{"compound":42}`,
		"syntax error":     `{"compound":"C1CC("}`,
		"empty body":       ``,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := doPredict(t, newTestHandle(28), http.MethodPost, body)
			require.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error":`)
			assert.NotContains(t, rec.Body.String(), `"prediction"`)
		})
	}
}

func TestPredictSchemaMismatch(t *testing.T) {
	rec := doPredict(t, newTestHandle(30), http.MethodPost, `{"compound":"CCO"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"X has 28 features, but VotingClassifier is expecting 30 features as input."}`, rec.Body.String())
}

func TestPredictBadJSON(t *testing.T) {
	rec := doPredict(t, newTestHandle(28), http.MethodPost, `{"compound":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "bad json")

	rec = doPredict(t, newTestHandle(28), http.MethodPost, `["CCO"]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictMethodNotAllowed(t *testing.T) {
	rec := doPredict(t, newTestHandle(28), http.MethodGet, "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
	assert.JSONEq(t, `{"error":"POST only"}`, rec.Body.String())
}

func TestCompoundString(t *testing.T) {
	assert.Equal(t, "CCO", PredictRequest{Compound: []byte(`"CCO"`)}.CompoundString())
	assert.Equal(t, "", PredictRequest{Compound: []byte(`42`)}.CompoundString())
	assert.Equal(t, "", PredictRequest{}.CompoundString())
}

func TestDescriptors(t *testing.T) {
	h := newTestHandle(28)
	rec := httptest.NewRecorder()
	h.Descriptors(rec, httptest.NewRequest(http.MethodGet, "/api/descriptors", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":28`)
	assert.Contains(t, rec.Body.String(), `"ETA_dAlpha_B"`)

	rec = httptest.NewRecorder()
	h.Descriptors(rec, httptest.NewRequest(http.MethodPost, "/api/descriptors", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPredictNonFiniteDescriptorIsError(t *testing.T) {
	coef := make([]float64, len(features.Required))
	coef[0] = 1
	m, err := ensemble.New(ensemble.Artifact{
		Classes:      []any{"Activator", "Inhibitor"},
		FeatureNames: features.Required,
		Estimators:   []ensemble.Estimator{{Kind: "logistic", Coef: [][]float64{coef}, Intercept: []float64{0}}},
	})
	require.NoError(t, err)

	provider := smilesProvider{
		"nan": {"nN": math.NaN()},
		"inf": {"MDEN-23": math.Inf(1)},
	}
	h := New(service.New(provider, m, features.Required, nil), features.Required, nil)

	rec := doPredict(t, h, http.MethodPost, `{"compound":"nan"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Input X contains NaN."}`, rec.Body.String())

	rec = doPredict(t, h, http.MethodPost, `{"compound":"inf"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Input X contains infinity."}`, rec.Body.String())
}
