package handler

import (
	"time"

	"age-verification-gateway/internal/adapter/http/dto"
	"age-verification-gateway/internal/adapter/http/middleware"
	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/pkg/apperror"
	"age-verification-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// companyFromContext reads the company set by the auth middleware and writes
// the error response when it is missing.
func companyFromContext(c *gin.Context) (uuid.UUID, bool) {
	companyID, ok := middleware.CompanyID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return companyID, true
}

// uuidParam parses a path or query value, writing a validation error on failure.
func uuidParam(c *gin.Context, name, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		response.Error(c, apperror.Validation("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func toVerificationResponse(v *domain.Verification) dto.VerificationResponse {
	return dto.VerificationResponse{
		ID:          v.ID.String(),
		ShopID:      v.ShopID.String(),
		Method:      string(v.Method),
		Status:      string(v.Status),
		Result:      resultString(v.Result),
		Price:       v.Price,
		CreatedAt:   formatTime(v.CreatedAt),
		CompletedAt: formatTimePtr(v.CompletedAt),
		RefundedAt:  formatTimePtr(v.RefundedAt),
	}
}

func resultString(r *domain.VerificationResult) *string {
	if r == nil {
		return nil
	}
	s := string(*r)
	return &s
}

func toTransactionResponse(wt *domain.WalletTransaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:             wt.ID.String(),
		Reference:      wt.ExternalReference,
		Amount:         wt.Amount,
		CreditedAmount: wt.CreditedAmount,
		Status:         string(wt.Status),
		CreatedAt:      formatTime(wt.CreatedAt),
		ProcessedAt:    formatTimePtr(wt.ProcessedAt),
	}
}

func toShopResponse(s *domain.Shop) dto.ShopResponse {
	methods := make([]string, 0, len(s.AllowedMethods))
	for _, m := range s.AllowedMethods {
		methods = append(methods, string(m))
	}
	return dto.ShopResponse{
		ID:             s.ID.String(),
		Name:           s.Name,
		Status:         string(s.Status),
		AllowedMethods: methods,
		WebhookURL:     s.WebhookURL,
		CreatedAt:      formatTime(s.CreatedAt),
		UpdatedAt:      formatTime(s.UpdatedAt),
	}
}
