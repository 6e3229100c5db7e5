package app

import (
	"context"
	"fmt"
	"time"

	"age-verification-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DemoTenant is the company and shop seeded for local in-memory runs.
type DemoTenant struct {
	CompanyID   uuid.UUID
	ShopID      uuid.UUID
	ShopAPIKey  string
	Token       string
	TokenExpiry time.Time
}

// SeedDemo creates one company with an empty wallet and one active shop allowing
// every identity method, then mints an operator token for the company.
func (a *App) SeedDemo(ctx context.Context) (*DemoTenant, error) {
	now := time.Now().UTC()

	company := &domain.Company{
		ID:        uuid.New(),
		Name:      "Demo Company",
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.Repos.Companies.Create(ctx, company); err != nil {
		return nil, fmt.Errorf("seed company: %w", err)
	}

	shop := &domain.Shop{
		ID:             uuid.New(),
		CompanyID:      company.ID,
		Name:           "Demo Shop",
		APIKey:         uuid.NewString(),
		Status:         domain.ShopStatusActive,
		AllowedMethods: append([]domain.VerificationMethod(nil), domain.IdentityMethods...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.Repos.Shops.Create(ctx, shop); err != nil {
		return nil, fmt.Errorf("seed shop: %w", err)
	}
	apiKey, err := a.Shops.RotateKey(ctx, company.ID, shop.ID)
	if err != nil {
		return nil, fmt.Errorf("seed shop key: %w", err)
	}

	token, expiry, err := a.Tokens.Generate(company.ID)
	if err != nil {
		return nil, fmt.Errorf("seed token: %w", err)
	}

	return &DemoTenant{
		CompanyID:   company.ID,
		ShopID:      shop.ID,
		ShopAPIKey:  apiKey,
		Token:       token,
		TokenExpiry: expiry,
	}, nil
}
