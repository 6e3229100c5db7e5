// Package bankfeed queries the bank statement feed for incoming deposits.
package bankfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"age-verification-gateway/config"
	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var _ ports.BankFeed = (*Client)(nil)

// Client implements ports.BankFeed over HTTP JSON.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewClient creates a bank feed client. requestsPerSecond <= 0 disables client-side throttling.
func NewClient(cfg config.BankFeedConfig, requestsPerSecond float64, log zerolog.Logger) *Client {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		log:        log.With().Str("component", "bankfeed").Logger(),
	}
}

// Query returns every deposit the feed reports for reference.
// Transport failures, timeouts and 5xx responses wrap ports.ErrFeedUnavailable.
func (c *Client) Query(ctx context.Context, reference string) ([]domain.BankDeposit, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", ports.ErrFeedUnavailable, err)
	}

	endpoint := c.baseURL + "/v1/deposits?reference=" + url.QueryEscape(reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrFeedUnavailable, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.log.Warn().Err(closeErr).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: server error (HTTP %d)", ports.ErrFeedUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("bank feed client error (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var deposits []domain.BankDeposit
	if err := json.NewDecoder(resp.Body).Decode(&deposits); err != nil {
		return nil, fmt.Errorf("decode deposits: %w", err)
	}

	c.log.Debug().Str("reference", reference).Int("deposits", len(deposits)).Msg("Bank feed queried")
	return deposits, nil
}
