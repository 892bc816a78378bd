// Package remote calls a descriptor sidecar over HTTP.
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
	"pkm2-predict/api/internal/descriptor"
	"pkm2-predict/api/internal/util"
)

type Provider struct {
	BaseURL string
	httpc   *http.Client
}

func New(baseURL string, timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Provider{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpc: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (p *Provider) Name() string { return "remote" }

type computeRequest struct {
	SMILES string `json:"smiles"`
}

type computeResponse struct {
	Descriptors map[string]*float64 `json:"descriptors"`
	Error       string              `json:"error,omitempty"`
}

// Compute posts {"smiles": ...} to {BaseURL}/descriptors. A 4xx answer means
// the sidecar rejected the identifier; anything else non-200 means it is unavailable.
func (p *Provider) Compute(ctx context.Context, smiles string) (descriptor.Mapping, error) {
	payload, _ := json.Marshal(computeRequest{SMILES: smiles})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/descriptors", bytes.NewReader(payload))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDescriptorUnavailable, "", fmt.Errorf("descriptors: build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDescriptorUnavailable, "", fmt.Errorf("descriptors: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDescriptorUnavailable, "", fmt.Errorf("descriptors: read body: %w", err))
	}

	var out computeResponse
	_ = json.Unmarshal(body, &out)

	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = util.FirstLine(string(body))
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, apperr.New(apperr.CodeInvalidStructure, msg)
		}
		return nil, apperr.New(apperr.CodeDescriptorUnavailable, fmt.Sprintf("descriptors %d: %s", resp.StatusCode, msg))
	}
	if out.Descriptors == nil {
		return nil, apperr.New(apperr.CodeDescriptorUnavailable, "descriptors: response has no descriptors field")
	}

	m := make(descriptor.Mapping, len(out.Descriptors))
	for name, v := range out.Descriptors {
		if v != nil {
			m[name] = *v
		}
	}
	return m, nil
}
