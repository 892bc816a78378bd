// Package remote calls an external model server over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"pkm2-predict/api/internal/apperr"
	"pkm2-predict/api/internal/util"
)

type Predictor struct {
	BaseURL string
	httpc   *http.Client
}

func New(baseURL string, timeout time.Duration) *Predictor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Predictor{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type predictRequest struct {
	Instances [][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions []any  `json:"predictions"`
	Error       string `json:"error,omitempty"`
}

// Predict posts {"instances": X} to {BaseURL}/predict. A 4xx answer is
// treated as a schema mismatch since the server rejected the rows themselves.
func (p *Predictor) Predict(ctx context.Context, X [][]float64) ([]any, error) {
	payload, err := json.Marshal(predictRequest{Instances: X})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePredictFailed, "", fmt.Errorf("predict: encode: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/predict", bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePredictFailed, "", fmt.Errorf("predict: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePredictFailed, "", fmt.Errorf("predict: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePredictFailed, "", fmt.Errorf("predict: read body: %w", err))
	}
	var out predictResponse
	_ = json.Unmarshal(body, &out)

	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = util.FirstLine(string(body))
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, apperr.New(apperr.CodeSchemaMismatch, msg)
		}
		return nil, apperr.New(apperr.CodePredictFailed, fmt.Sprintf("predict %d: %s", resp.StatusCode, msg))
	}
	if len(out.Predictions) != len(X) {
		return nil, apperr.New(apperr.CodePredictFailed,
			fmt.Sprintf("predict: got %d predictions for %d rows", len(out.Predictions), len(X)))
	}
	return out.Predictions, nil
}
