package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"
	"age-verification-gateway/internal/core/ports/mocks"
	"age-verification-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestGetStats(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockReportingService(ctrl)
	h := NewDashboardHandler(svc)
	companyID := uuid.New()

	svc.EXPECT().GetDashboardStats(gomock.Any(), companyID, "week").Return(&ports.VerificationStats{
		Total: 10, Pending: 1, Successful: 6, Failed: 3, Refunded: 3, Spent: decimal.NewFromInt(95),
	}, nil)

	w := serve(t, h.GetStats, testRequest{method: http.MethodGet, target: "/api/v1/dashboard/stats?period=week", companyID: &companyID})

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.EqualValues(t, 10, data["total"])
	assert.EqualValues(t, 6, data["successful"])
	assert.EqualValues(t, 3, data["refunded"])
	assert.Equal(t, "95", data["spent"])
}

func TestGetStats_DefaultPeriod(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockReportingService(ctrl)
	h := NewDashboardHandler(svc)
	companyID := uuid.New()

	svc.EXPECT().GetDashboardStats(gomock.Any(), companyID, "all").Return(&ports.VerificationStats{}, nil)

	w := serve(t, h.GetStats, testRequest{method: http.MethodGet, target: "/", companyID: &companyID})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetStats_InvalidPeriod(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockReportingService(ctrl)
	h := NewDashboardHandler(svc)
	companyID := uuid.New()

	svc.EXPECT().GetDashboardStats(gomock.Any(), companyID, "1y").Return(nil, apperror.Validation("invalid period"))

	w := serve(t, h.GetStats, testRequest{method: http.MethodGet, target: "/?period=1y", companyID: &companyID})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListVerifications_Filters(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockReportingService(ctrl)
	h := NewDashboardHandler(svc)
	companyID := uuid.New()
	shopID := uuid.New()
	completed := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	result := domain.VerificationResultFailure
	items := []domain.Verification{{
		ID:          uuid.New(),
		ShopID:      shopID,
		CompanyID:   companyID,
		Method:      domain.MethodOCR,
		Status:      domain.VerificationStatusFailed,
		Result:      &result,
		Price:       decimal.NewFromInt(10),
		CreatedAt:   completed.Add(-time.Minute),
		CompletedAt: &completed,
		RefundedAt:  &completed,
	}}

	svc.EXPECT().ListVerifications(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p ports.VerificationListParams) ([]domain.Verification, int64, error) {
			assert.Equal(t, companyID, p.CompanyID)
			require.NotNil(t, p.Status)
			assert.Equal(t, domain.VerificationStatusFailed, *p.Status)
			require.NotNil(t, p.Method)
			assert.Equal(t, domain.MethodOCR, *p.Method)
			require.NotNil(t, p.ShopID)
			assert.Equal(t, shopID, *p.ShopID)
			assert.Equal(t, 2, p.Page)
			assert.Equal(t, 10, p.PageSize)
			return items, 21, nil
		})

	w := serve(t, h.ListVerifications, testRequest{
		method:    http.MethodGet,
		target:    "/api/v1/verifications?status=FAILED&method=ocr&shopId=" + shopID.String() + "&page=2&page_size=10",
		companyID: &companyID,
	})

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.EqualValues(t, 21, data["total"])
	assert.EqualValues(t, 3, data["totalPages"])
	list := data["items"].([]any)
	require.Len(t, list, 1)
	row := list[0].(map[string]any)
	assert.Equal(t, "FAILURE", row["result"])
	assert.Equal(t, "2026-02-02T10:00:00Z", row["refundedAt"])
}

func TestListVerifications_PagingDefaults(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockReportingService(ctrl)
	h := NewDashboardHandler(svc)
	companyID := uuid.New()

	svc.EXPECT().ListVerifications(gomock.Any(), ports.VerificationListParams{
		CompanyID: companyID, Page: 1, PageSize: 20,
	}).Return(nil, int64(0), nil)

	w := serve(t, h.ListVerifications, testRequest{
		method: http.MethodGet, target: "/?page=-3&page_size=5000", companyID: &companyID,
	})

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Empty(t, data["items"])
	assert.EqualValues(t, 0, data["totalPages"])
}

func TestListVerifications_BadShopID(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewDashboardHandler(mocks.NewMockReportingService(ctrl))
	companyID := uuid.New()

	w := serve(t, h.ListVerifications, testRequest{method: http.MethodGet, target: "/?shopId=zzz", companyID: &companyID})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
