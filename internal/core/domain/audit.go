package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditActionInitialize    AuditAction = "VERIFICATION_INITIALIZE"
	AuditActionRevalidate    AuditAction = "VERIFICATION_REVALIDATE"
	AuditActionTopup         AuditAction = "WALLET_TOPUP"
	AuditActionPaymentCheck  AuditAction = "PAYMENT_CHECK"
	AuditActionUpdateShop    AuditAction = "UPDATE_SHOP"
	AuditActionUpdateMethods AuditAction = "UPDATE_METHODS"
	AuditActionUpdateWebhook AuditAction = "UPDATE_WEBHOOK"
	AuditActionRotateKey     AuditAction = "ROTATE_KEY"
)

// AuditActor says which credential performed an action.
type AuditActor string

const (
	AuditActorShop     AuditActor = "shop"     // widget call with a shop API key
	AuditActorOperator AuditActor = "operator" // company dashboard call with a JWT
)

// AuditLog is one successful write made through the API.
type AuditLog struct {
	ID           uuid.UUID
	Actor        AuditActor
	CompanyID    *uuid.UUID
	ShopID       *uuid.UUID // set for shop actors
	Action       AuditAction
	ResourceType string
	ResourceID   string
	Details      string // JSON
	IPAddress    string
	CreatedAt    time.Time
}
