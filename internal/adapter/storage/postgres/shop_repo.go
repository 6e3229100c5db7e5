package postgres

import (
	"context"
	"errors"
	"fmt"

	"age-verification-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const shopColumns = `id, company_id, name, api_key, status, allowed_methods, webhook_url, created_at, updated_at`

// ShopRepo implements ports.ShopRepository.
type ShopRepo struct {
	pool Pool
}

// NewShopRepo creates a new ShopRepo.
func NewShopRepo(pool Pool) *ShopRepo {
	return &ShopRepo{pool: pool}
}

// Create inserts a new shop.
func (r *ShopRepo) Create(ctx context.Context, s *domain.Shop) error {
	query := `INSERT INTO shops (` + shopColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.CompanyID, s.Name, s.APIKey, s.Status,
		methodsToStrings(s.AllowedMethods), s.WebhookURL, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert shop: %w", mapError(err))
	}
	return nil
}

// GetByID fetches a shop by UUID.
func (r *ShopRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Shop, error) {
	query := `SELECT ` + shopColumns + ` FROM shops WHERE id = $1`
	return scanShop(r.pool.QueryRow(ctx, query, id))
}

// GetByAPIKey resolves a widget bearer key. api_key is unique so at most one row matches.
func (r *ShopRepo) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Shop, error) {
	query := `SELECT ` + shopColumns + ` FROM shops WHERE api_key = $1`
	return scanShop(r.pool.QueryRow(ctx, query, apiKey))
}

// Update persists every mutable shop attribute.
func (r *ShopRepo) Update(ctx context.Context, s *domain.Shop) error {
	query := `UPDATE shops SET name = $1, api_key = $2, status = $3, allowed_methods = $4,
		webhook_url = $5, updated_at = $6 WHERE id = $7`

	tag, err := r.pool.Exec(ctx, query,
		s.Name, s.APIKey, s.Status, methodsToStrings(s.AllowedMethods),
		s.WebhookURL, s.UpdatedAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("update shop: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("shop not found: %s", s.ID)
	}
	return nil
}

func scanShop(row pgx.Row) (*domain.Shop, error) {
	s := &domain.Shop{}
	var methods []string
	err := row.Scan(
		&s.ID, &s.CompanyID, &s.Name, &s.APIKey, &s.Status,
		&methods, &s.WebhookURL, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan shop: %w", err)
	}
	s.AllowedMethods = stringsToMethods(methods)
	return s, nil
}

func methodsToStrings(methods []domain.VerificationMethod) []string {
	out := make([]string, len(methods))
	for i, m := range methods {
		out[i] = string(m)
	}
	return out
}

func stringsToMethods(values []string) []domain.VerificationMethod {
	out := make([]domain.VerificationMethod, len(values))
	for i, v := range values {
		out[i] = domain.VerificationMethod(v)
	}
	return out
}
