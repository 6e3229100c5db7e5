package dto

import (
	"github.com/shopspring/decimal"
)

// InitializeRequest is the widget request starting a billed verification.
type InitializeRequest struct {
	ShopID             string  `json:"shopId" binding:"required,uuid"`
	VerificationMethod string  `json:"verificationMethod" binding:"required,max=32"`
	RedirectURL        *string `json:"redirectUrl,omitempty" binding:"omitempty,max=2048,webhook_url"`
	Identifier         *string `json:"identifier,omitempty" binding:"omitempty,max=256"`
}

// InitializeResponse is returned once the verification is settled.
type InitializeResponse struct {
	VerificationID string `json:"verificationId"`
	Status         string `json:"status"`
}

// VerificationStatusResponse is the response for a status poll.
type VerificationStatusResponse struct {
	VerificationID string  `json:"verificationId"`
	Status         string  `json:"status"`
	Result         *string `json:"result"`
	Method         string  `json:"method"`
}

// RevalidateRequest asks whether an identifier already passed method.
type RevalidateRequest struct {
	ShopID     string `json:"shopId" binding:"required,uuid"`
	Identifier string `json:"identifier" binding:"required,max=256"`
	Method     string `json:"method" binding:"required,max=32"`
}

type RevalidateResponse struct {
	Success        bool   `json:"success"`
	VerificationID string `json:"verificationId"`
	IsVerified     bool   `json:"isVerified"`
}

// TopupRequest is the request body for a wallet top-up.
type TopupRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// TopupResponse carries the variable symbol the customer must use on the transfer.
type TopupResponse struct {
	TransactionID string          `json:"transactionId"`
	Reference     string          `json:"reference"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
}

// WalletBalanceResponse is the response for balance query.
type WalletBalanceResponse struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency,omitempty"`
}

// PaymentCheckRequest triggers reconciliation of one top-up.
type PaymentCheckRequest struct {
	TransactionReference string `json:"transactionReference" binding:"required,variable_symbol"`
}

type PaymentCheckResponse struct {
	Status string `json:"status"`
}

// TransactionResponse is the response body for a wallet transaction.
type TransactionResponse struct {
	ID             string           `json:"id"`
	Reference      string           `json:"reference"`
	Amount         decimal.Decimal  `json:"amount"`
	CreditedAmount *decimal.Decimal `json:"creditedAmount,omitempty"`
	Status         string           `json:"status"`
	CreatedAt      string           `json:"createdAt"`
	ProcessedAt    *string          `json:"processedAt,omitempty"`
}

// VerificationResponse is one row of the verification list.
type VerificationResponse struct {
	ID          string          `json:"id"`
	ShopID      string          `json:"shopId"`
	Method      string          `json:"method"`
	Status      string          `json:"status"`
	Result      *string         `json:"result"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   string          `json:"createdAt"`
	CompletedAt *string         `json:"completedAt,omitempty"`
	RefundedAt  *string         `json:"refundedAt,omitempty"`
}

// VerificationListResponse wraps a paginated verification list.
type VerificationListResponse struct {
	Items      []VerificationResponse `json:"items"`
	Total      int64                  `json:"total"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"pageSize"`
	TotalPages int                    `json:"totalPages"`
}

// DashboardStatsResponse is the response for dashboard statistics.
type DashboardStatsResponse struct {
	Total      int64           `json:"total"`
	Pending    int64           `json:"pending"`
	Successful int64           `json:"successful"`
	Failed     int64           `json:"failed"`
	Refunded   int64           `json:"refunded"`
	Spent      decimal.Decimal `json:"spent"`
}

// ShopResponse is a shop as seen by its owning company. The API key is never echoed.
type ShopResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Status         string   `json:"status"`
	AllowedMethods []string `json:"allowedMethods"`
	WebhookURL     *string  `json:"webhookUrl,omitempty"`
	CreatedAt      string   `json:"createdAt"`
	UpdatedAt      string   `json:"updatedAt"`
}

type UpdateShopRequest struct {
	Name   *string `json:"name,omitempty" binding:"omitempty,min=1,max=100"`
	Active *bool   `json:"active,omitempty"`
}

type UpdateMethodsRequest struct {
	Methods []string `json:"methods" binding:"required,min=1,max=8,dive,identity_method"`
}

// UpdateWebhookRequest sets or, with a null/empty URL, clears the shop webhook.
type UpdateWebhookRequest struct {
	WebhookURL *string `json:"webhookUrl" binding:"omitempty,max=2048,webhook_url"`
}

// RotateKeyResponse returns the new shop API key exactly once.
type RotateKeyResponse struct {
	APIKey string `json:"apiKey"`
}
