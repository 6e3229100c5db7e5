package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Error codes. Handlers and tests compare against these rather than messages.
const (
	CodeValidation          = "VAL_001"
	CodePayloadTooLarge     = "VAL_002"
	CodeNotFound            = "NF_001"
	CodeShopInactive        = "STATE_001"
	CodeMethodNotAllowed    = "STATE_002"
	CodeInvalidTransition   = "STATE_003"
	CodeInsufficientCredit  = "PAY_001"
	CodeProvider            = "PROV_001"
	CodeFeedUnavailable     = "FEED_001"
	CodeConcurrencyConflict = "CONC_001"
	CodeInvalidCredential   = "AUTH_001"
	CodeInvalidToken        = "AUTH_002"
	CodeRateLimited         = "RATE_001"
	CodeInternal            = "SYS_001"
)

// ---- Input (VAL) ----

// Validation returns a malformed-input error. No side effect has happened.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

func ErrPayloadTooLarge(limit int64) *AppError {
	return New(CodePayloadTooLarge, fmt.Sprintf("Request body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
}

func ErrInvalidAmount() *AppError {
	return Validation("Invalid amount")
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- State (STATE) ----

func ErrShopInactive() *AppError {
	return New(CodeShopInactive, "Shop is inactive", http.StatusForbidden)
}

func ErrMethodNotAllowed(method string) *AppError {
	return New(CodeMethodNotAllowed, fmt.Sprintf("Verification method %q is not allowed for this shop", method), http.StatusBadRequest)
}

func ErrInvalidTransition(entity, from string) *AppError {
	return New(CodeInvalidTransition, fmt.Sprintf("%s is already %s", entity, from), http.StatusConflict)
}

// ---- Billing (PAY) ----

func ErrInsufficientCredit() *AppError {
	return New(CodeInsufficientCredit, "Insufficient credit in wallet", http.StatusPaymentRequired)
}

// ---- Collaborators (PROV / FEED) ----

// ErrProvider marks a failed downstream verification call. It triggers the refund path.
func ErrProvider(err error) *AppError {
	return Wrap(CodeProvider, "Verification provider failed", http.StatusBadGateway, err)
}

// ErrFeedUnavailable marks an unreachable bank statement feed. Retryable, nothing was mutated.
func ErrFeedUnavailable(err error) *AppError {
	return Wrap(CodeFeedUnavailable, "Bank statement feed unavailable", http.StatusInternalServerError, err)
}

// ErrConcurrencyConflict marks a lost race on a row lock. Retryable.
func ErrConcurrencyConflict(err error) *AppError {
	return Wrap(CodeConcurrencyConflict, "Concurrent update conflict", http.StatusConflict, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredential() *AppError {
	return New(CodeInvalidCredential, "Invalid credential", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System (SYS) ----

// InternalError wraps a storage or infrastructure failure. The in-flight request is aborted.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// CodeOf returns the AppError code carried by err, or "" when err is not an AppError.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is reports whether err carries the given AppError code.
func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryable reports whether err may be retried automatically.
// Only feed outages and lost lock races qualify; insufficient credit never does.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeFeedUnavailable, CodeConcurrencyConflict:
		return true
	}
	return false
}

// IsTransient reports whether a client may repeat the request later.
// It widens IsRetryable with rate limiting, which the caller must wait out.
func IsTransient(err error) bool {
	return IsRetryable(err) || CodeOf(err) == CodeRateLimited
}
