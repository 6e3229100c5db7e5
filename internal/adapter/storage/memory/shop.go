package memory

import (
	"context"
	"fmt"
	"slices"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"

	"github.com/google/uuid"
)

// ShopRepo implements ports.ShopRepository.
type ShopRepo struct {
	store *Store
}

// NewShopRepo creates a new ShopRepo.
func NewShopRepo(store *Store) *ShopRepo {
	return &ShopRepo{store: store}
}

func (r *ShopRepo) Create(_ context.Context, shop *domain.Shop) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.shops[shop.ID]; ok {
		return fmt.Errorf("insert shop: %w", ports.ErrDuplicateKey)
	}
	if _, ok := r.store.shopKeys[shop.APIKey]; ok {
		return fmt.Errorf("insert shop: api key: %w", ports.ErrDuplicateKey)
	}
	r.store.shops[shop.ID] = cloneShop(*shop)
	r.store.shopKeys[shop.APIKey] = shop.ID
	return nil
}

func (r *ShopRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Shop, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	s, ok := r.store.shops[id]
	if !ok {
		return nil, nil
	}
	s = cloneShop(s)
	return &s, nil
}

func (r *ShopRepo) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Shop, error) {
	r.store.mu.Lock()
	id, ok := r.store.shopKeys[apiKey]
	r.store.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *ShopRepo) Update(_ context.Context, shop *domain.Shop) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	prev, ok := r.store.shops[shop.ID]
	if !ok {
		return fmt.Errorf("shop not found: %s", shop.ID)
	}
	if prev.APIKey != shop.APIKey {
		if _, taken := r.store.shopKeys[shop.APIKey]; taken {
			return fmt.Errorf("update shop: api key: %w", ports.ErrDuplicateKey)
		}
		delete(r.store.shopKeys, prev.APIKey)
		r.store.shopKeys[shop.APIKey] = shop.ID
	}
	r.store.shops[shop.ID] = cloneShop(*shop)
	return nil
}

func cloneShop(s domain.Shop) domain.Shop {
	s.AllowedMethods = slices.Clone(s.AllowedMethods)
	if s.WebhookURL != nil {
		u := *s.WebhookURL
		s.WebhookURL = &u
	}
	return s
}
