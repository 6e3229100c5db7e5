// Package provider implements the verification providers: one HTTP client per
// identity method plus the revalidate provider backed by stored identities.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

var _ ports.VerificationProvider = (*HTTPProvider)(nil)

type submitRequest struct {
	VerificationID string `json:"verification_id"`
	Identifier     string `json:"identifier"`
}

type submitResponse struct {
	Result string `json:"result"`
}

// HTTPProvider calls an external identity provider's submit endpoint.
type HTTPProvider struct {
	method  domain.VerificationMethod
	baseURL string
	token   string
	client  *http.Client
	log     zerolog.Logger
}

// NewHTTPProvider creates a provider for method served at baseURL.
// The per-call deadline comes from the caller's context.
func NewHTTPProvider(method domain.VerificationMethod, baseURL, token string, client *http.Client, log zerolog.Logger) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{
		method:  method,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
		log:     log.With().Str("provider", string(method)).Logger(),
	}
}

func (p *HTTPProvider) Method() domain.VerificationMethod { return p.method }

// Submit posts the identifier and maps the provider's verdict.
// Anything other than an explicit SUCCESS or FAILURE is an error.
func (p *HTTPProvider) Submit(ctx context.Context, req ports.ProviderRequest) (domain.VerificationResult, error) {
	body, err := json.Marshal(submitRequest{
		VerificationID: req.VerificationID.String(),
		Identifier:     req.Identifier,
	})
	if err != nil {
		return "", fmt.Errorf("marshal submit request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/submit", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if p.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s submit: %w", p.method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%s returned status %d: %s", p.method, resp.StatusCode, string(snippet))
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%s decode response: %w", p.method, err)
	}

	switch domain.VerificationResult(strings.ToUpper(out.Result)) {
	case domain.VerificationResultSuccess:
		return domain.VerificationResultSuccess, nil
	case domain.VerificationResultFailure:
		return domain.VerificationResultFailure, nil
	}
	p.log.Warn().Str("result", out.Result).Msg("Unrecognized provider verdict")
	return "", fmt.Errorf("%s returned unknown result %q", p.method, out.Result)
}
