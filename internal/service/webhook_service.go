package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// webhookRetryIntervals are the waits between delivery attempts.
var webhookRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
}

// EventVerificationFinalized is sent once a verification reached a terminal state.
const EventVerificationFinalized = "VERIFICATION_FINALIZED"

// Webhook headers. The signature is HMAC-SHA256(shop API key, TIMESTAMP.BODY).
const (
	HeaderWebhookSignature = "X-Webhook-Signature"
	HeaderWebhookTimestamp = "X-Webhook-Timestamp"
)

// WebhookPayload is the JSON body sent to the shop's webhook URL.
type WebhookPayload struct {
	EventType      string  `json:"eventType"`
	VerificationID string  `json:"verificationId"`
	ShopID         string  `json:"shopId"`
	Method         string  `json:"method"`
	Status         string  `json:"status"`
	Result         *string `json:"result"`
	Timestamp      int64   `json:"timestamp"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookNotifier implements ports.NotificationService.
// Deliveries run in the background; Close stops pending retries and waits for in-flight attempts.
type WebhookNotifier struct {
	shopRepo    ports.ShopRepository
	webhookRepo ports.WebhookRepository
	signer      ports.WebhookSigner
	httpClient  HTTPClient
	clock       ports.Clock
	intervals   []time.Duration
	log         zerolog.Logger

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(
	shopRepo ports.ShopRepository,
	webhookRepo ports.WebhookRepository,
	signer ports.WebhookSigner,
	httpClient HTTPClient,
	clock ports.Clock,
	log zerolog.Logger,
) *WebhookNotifier {
	return &WebhookNotifier{
		shopRepo:    shopRepo,
		webhookRepo: webhookRepo,
		signer:      signer,
		httpClient:  httpClient,
		clock:       clock,
		intervals:   webhookRetryIntervals,
		log:         log,
		stop:        make(chan struct{}),
	}
}

// VerificationFinalized signs and enqueues a webhook for the verification's shop.
func (n *WebhookNotifier) VerificationFinalized(ctx context.Context, v *domain.Verification) {
	shop, err := n.shopRepo.GetByID(ctx, v.ShopID)
	if err != nil {
		n.log.Error().Err(err).Str("shop_id", v.ShopID.String()).Msg("webhook: failed to fetch shop")
		return
	}
	if shop == nil || shop.WebhookURL == nil || *shop.WebhookURL == "" {
		n.log.Debug().Str("shop_id", v.ShopID.String()).Msg("webhook: no webhook URL configured, skipping")
		return
	}

	var result *string
	if v.Result != nil {
		r := string(*v.Result)
		result = &r
	}
	timestamp := n.clock.Now().Unix()
	body, err := json.Marshal(WebhookPayload{
		EventType:      EventVerificationFinalized,
		VerificationID: v.ID.String(),
		ShopID:         v.ShopID.String(),
		Method:         string(v.Method),
		Status:         string(v.Status),
		Result:         result,
		Timestamp:      timestamp,
	})
	if err != nil {
		n.log.Error().Err(err).Str("verification_id", v.ID.String()).Msg("webhook: failed to marshal payload")
		return
	}
	signature := n.signer.Sign(shop.APIKey, timestamp, body)

	select {
	case <-n.stop:
		n.log.Warn().Str("verification_id", v.ID.String()).Msg("webhook: notifier closed, dropping delivery")
		return
	default:
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.deliverWithRetries(*shop.WebhookURL, body, signature, timestamp, v)
	}()
}

// Close aborts pending retries and waits for running deliveries.
func (n *WebhookNotifier) Close() {
	n.stopOnce.Do(func() { close(n.stop) })
	n.wg.Wait()
}

func (n *WebhookNotifier) deliverWithRetries(url string, body []byte, signature string, timestamp int64, v *domain.Verification) {
	for attempt := 1; attempt <= len(n.intervals)+1; attempt++ {
		if attempt > 1 {
			select {
			case <-n.stop:
				n.log.Warn().Str("verification_id", v.ID.String()).Int("attempt", attempt).Msg("webhook: retries aborted on shutdown")
				return
			case <-time.After(n.intervals[attempt-2]):
			}
		}

		status, err := n.deliver(url, body, signature, timestamp)
		n.record(url, body, v, attempt, status, err)
		if err == nil {
			n.log.Info().Str("verification_id", v.ID.String()).Int("attempt", attempt).Int("status", status).Msg("webhook: delivered successfully")
			return
		}
		n.log.Warn().Err(err).Str("verification_id", v.ID.String()).Int("attempt", attempt).Msg("webhook: delivery failed")
	}

	n.log.Error().Str("verification_id", v.ID.String()).Msg("webhook: all retry attempts exhausted")
}

func (n *WebhookNotifier) deliver(url string, body []byte, signature string, timestamp int64) (int, error) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderWebhookSignature, signature)
	req.Header.Set(HeaderWebhookTimestamp, strconv.FormatInt(timestamp, 10))

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func (n *WebhookNotifier) record(url string, body []byte, v *domain.Verification, attempt, status int, deliveryErr error) {
	entry := &domain.WebhookDeliveryLog{
		ID:             uuid.New(),
		VerificationID: v.ID,
		ShopID:         v.ShopID,
		WebhookURL:     url,
		Payload:        string(body),
		Attempt:        attempt,
		Status:         domain.WebhookStatusDelivered,
		CreatedAt:      n.clock.Now(),
	}
	if status != 0 {
		entry.HTTPStatus = &status
	}
	if deliveryErr != nil {
		msg := deliveryErr.Error()
		entry.LastError = &msg
		entry.Status = domain.WebhookStatusFailed
		if attempt <= len(n.intervals) {
			entry.Status = domain.WebhookStatusPending
		}
	}

	if err := n.webhookRepo.Create(context.Background(), entry); err != nil {
		n.log.Warn().Err(err).Str("verification_id", v.ID.String()).Msg("webhook: failed to persist delivery log")
	}
}
