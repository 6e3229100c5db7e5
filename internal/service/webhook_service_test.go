package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func finalizedVerification(shopID uuid.UUID) *domain.Verification {
	result := domain.VerificationResultSuccess
	return &domain.Verification{
		ID:     uuid.New(),
		ShopID: shopID,
		Method: domain.MethodBankID,
		Status: domain.VerificationStatusCompleted,
		Result: &result,
	}
}

func TestWebhookNotifier_DeliversSignedPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	shopRepo := mocks.NewMockShopRepository(ctrl)
	webhookRepo := mocks.NewMockWebhookRepository(ctrl)
	clock := newFakeClock()

	type captured struct {
		body      []byte
		signature string
		timestamp string
	}
	received := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- captured{body, r.Header.Get(HeaderWebhookSignature), r.Header.Get(HeaderWebhookTimestamp)}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	signer := NewHMACWebhookSigner()
	n := NewWebhookNotifier(shopRepo, webhookRepo, signer, srv.Client(), clock, newTestLogger())

	shopID := uuid.New()
	url := srv.URL
	shopRepo.EXPECT().GetByID(gomock.Any(), shopID).Return(&domain.Shop{
		ID: shopID, APIKey: "shop-key", WebhookURL: &url,
	}, nil)

	logged := make(chan *domain.WebhookDeliveryLog, 1)
	webhookRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, l *domain.WebhookDeliveryLog) error {
			logged <- l
			return nil
		})

	v := finalizedVerification(shopID)
	n.VerificationFinalized(context.Background(), v)
	n.Close()

	var got captured
	select {
	case got = <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("webhook delivery timed out")
	}

	assert.Equal(t, strconv.FormatInt(clock.Now().Unix(), 10), got.timestamp)
	assert.True(t, signer.Verify("shop-key", clock.Now().Unix(), got.body, got.signature))

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal(got.body, &payload))
	assert.Equal(t, EventVerificationFinalized, payload.EventType)
	assert.Equal(t, v.ID.String(), payload.VerificationID)
	assert.Equal(t, "COMPLETED", payload.Status)
	require.NotNil(t, payload.Result)
	assert.Equal(t, "SUCCESS", *payload.Result)

	entry := <-logged
	assert.Equal(t, domain.WebhookStatusDelivered, entry.Status)
	assert.Equal(t, 1, entry.Attempt)
	require.NotNil(t, entry.HTTPStatus)
	assert.Equal(t, http.StatusOK, *entry.HTTPStatus)
}

func TestWebhookNotifier_RetriesUntilExhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	shopRepo := mocks.NewMockShopRepository(ctrl)
	webhookRepo := mocks.NewMockWebhookRepository(ctrl)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(shopRepo, webhookRepo, NewHMACWebhookSigner(), srv.Client(), newFakeClock(), newTestLogger())
	n.intervals = []time.Duration{time.Millisecond, time.Millisecond}

	shopID := uuid.New()
	url := srv.URL
	shopRepo.EXPECT().GetByID(gomock.Any(), shopID).Return(&domain.Shop{ID: shopID, APIKey: "k", WebhookURL: &url}, nil)

	var statuses []domain.WebhookStatus
	webhookRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Times(3).DoAndReturn(
		func(_ context.Context, l *domain.WebhookDeliveryLog) error {
			statuses = append(statuses, l.Status)
			return nil
		})

	n.VerificationFinalized(context.Background(), finalizedVerification(shopID))

	require.Eventually(t, func() bool { return calls.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	n.Close()

	assert.Equal(t, []domain.WebhookStatus{
		domain.WebhookStatusPending, domain.WebhookStatusPending, domain.WebhookStatusFailed,
	}, statuses)
}

func TestWebhookNotifier_NoWebhookURL(t *testing.T) {
	ctrl := gomock.NewController(t)
	shopRepo := mocks.NewMockShopRepository(ctrl)
	webhookRepo := mocks.NewMockWebhookRepository(ctrl)

	n := NewWebhookNotifier(shopRepo, webhookRepo, NewHMACWebhookSigner(), http.DefaultClient, newFakeClock(), newTestLogger())

	shopID := uuid.New()
	shopRepo.EXPECT().GetByID(gomock.Any(), shopID).Return(&domain.Shop{ID: shopID}, nil)

	n.VerificationFinalized(context.Background(), finalizedVerification(shopID))
	n.Close()
}

func TestWebhookNotifier_ShopLookupFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	shopRepo := mocks.NewMockShopRepository(ctrl)
	webhookRepo := mocks.NewMockWebhookRepository(ctrl)

	n := NewWebhookNotifier(shopRepo, webhookRepo, NewHMACWebhookSigner(), http.DefaultClient, newFakeClock(), newTestLogger())

	shopID := uuid.New()
	shopRepo.EXPECT().GetByID(gomock.Any(), shopID).Return(nil, errors.New("db error"))

	n.VerificationFinalized(context.Background(), finalizedVerification(shopID))
	n.Close()
}

func TestWebhookNotifier_ClosedDropsDelivery(t *testing.T) {
	ctrl := gomock.NewController(t)
	shopRepo := mocks.NewMockShopRepository(ctrl)
	webhookRepo := mocks.NewMockWebhookRepository(ctrl)

	n := NewWebhookNotifier(shopRepo, webhookRepo, NewHMACWebhookSigner(), http.DefaultClient, newFakeClock(), newTestLogger())
	n.Close()

	shopID := uuid.New()
	url := "http://127.0.0.1:1/hook"
	shopRepo.EXPECT().GetByID(gomock.Any(), shopID).Return(&domain.Shop{ID: shopID, APIKey: "k", WebhookURL: &url}, nil)

	n.VerificationFinalized(context.Background(), finalizedVerification(shopID))
	n.Close()
}
