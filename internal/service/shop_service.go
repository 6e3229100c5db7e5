package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"
	"age-verification-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const apiKeyPrefix = "shk_"

type shopService struct {
	shopRepo ports.ShopRepository
	clock    ports.Clock
	log      zerolog.Logger
}

// NewShopService creates a new shop management service.
func NewShopService(shopRepo ports.ShopRepository, clock ports.Clock, log zerolog.Logger) ports.ShopService {
	return &shopService{shopRepo: shopRepo, clock: clock, log: log}
}

// Authenticate resolves a widget bearer key to its shop.
func (s *shopService) Authenticate(ctx context.Context, apiKey string) (*domain.Shop, error) {
	if apiKey == "" {
		return nil, apperror.ErrInvalidCredential()
	}
	shop, err := s.shopRepo.GetByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if shop == nil {
		return nil, apperror.ErrInvalidCredential()
	}
	if !shop.IsActive() {
		return nil, apperror.ErrShopInactive()
	}
	return shop, nil
}

func (s *shopService) Get(ctx context.Context, companyID uuid.UUID, shopID uuid.UUID) (*domain.Shop, error) {
	return s.owned(ctx, companyID, shopID)
}

func (s *shopService) Update(ctx context.Context, companyID uuid.UUID, shopID uuid.UUID, req ports.UpdateShopRequest) (*domain.Shop, error) {
	shop, err := s.owned(ctx, companyID, shopID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperror.Validation("name must not be empty")
		}
		shop.Name = name
	}
	if req.Active != nil {
		shop.Status = domain.ShopStatusInactive
		if *req.Active {
			shop.Status = domain.ShopStatusActive
		}
	}

	return shop, s.save(ctx, shop)
}

// UpdateMethods replaces the allowed verification methods. Revalidate is always available and cannot be listed.
func (s *shopService) UpdateMethods(ctx context.Context, companyID uuid.UUID, shopID uuid.UUID, methods []string) (*domain.Shop, error) {
	if len(methods) == 0 {
		return nil, apperror.Validation("at least one verification method is required")
	}

	allowed := make([]domain.VerificationMethod, 0, len(methods))
	seen := make(map[domain.VerificationMethod]bool, len(methods))
	for _, raw := range methods {
		m, err := domain.ParseVerificationMethod(raw)
		if err != nil || !m.IsIdentityMethod() {
			return nil, apperror.Validation(fmt.Sprintf("invalid verification method %q", raw))
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		allowed = append(allowed, m)
	}

	shop, err := s.owned(ctx, companyID, shopID)
	if err != nil {
		return nil, err
	}
	shop.AllowedMethods = allowed

	return shop, s.save(ctx, shop)
}

func (s *shopService) UpdateWebhookURL(ctx context.Context, companyID uuid.UUID, shopID uuid.UUID, webhookURL *string) error {
	if webhookURL != nil && *webhookURL == "" {
		webhookURL = nil
	}
	if webhookURL != nil {
		u, err := url.Parse(*webhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return apperror.Validation("webhook_url must be an absolute http(s) URL")
		}
	}

	shop, err := s.owned(ctx, companyID, shopID)
	if err != nil {
		return err
	}
	shop.WebhookURL = webhookURL

	return s.save(ctx, shop)
}

// RotateKey issues a new API key. The old key stops working immediately.
func (s *shopService) RotateKey(ctx context.Context, companyID uuid.UUID, shopID uuid.UUID) (string, error) {
	shop, err := s.owned(ctx, companyID, shopID)
	if err != nil {
		return "", err
	}

	newKey, err := generateKey(apiKeyPrefix, 24)
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("generate api key: %w", err))
	}
	shop.APIKey = newKey

	if err := s.save(ctx, shop); err != nil {
		return "", err
	}

	s.log.Info().Str("shop_id", shop.ID.String()).Msg("shop api key rotated successfully")
	return newKey, nil
}

// owned loads a shop and hides shops of other companies behind NotFound.
func (s *shopService) owned(ctx context.Context, companyID, shopID uuid.UUID) (*domain.Shop, error) {
	shop, err := s.shopRepo.GetByID(ctx, shopID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if shop == nil || shop.CompanyID != companyID {
		return nil, apperror.ErrNotFound("shop")
	}
	return shop, nil
}

func (s *shopService) save(ctx context.Context, shop *domain.Shop) error {
	shop.UpdatedAt = s.clock.Now()
	if err := s.shopRepo.Update(ctx, shop); err != nil {
		return apperror.InternalError(err)
	}
	return nil
}

func generateKey(prefix string, length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(b), nil
}
