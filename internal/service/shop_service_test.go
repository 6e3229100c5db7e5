package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"
	"age-verification-gateway/internal/core/ports/mocks"
	"age-verification-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type shopTestDeps struct {
	svc      ports.ShopService
	shopRepo *mocks.MockShopRepository
	clock    *fakeClock
}

func setupShopService(t *testing.T) *shopTestDeps {
	ctrl := gomock.NewController(t)
	d := &shopTestDeps{
		shopRepo: mocks.NewMockShopRepository(ctrl),
		clock:    newFakeClock(),
	}
	d.svc = NewShopService(d.shopRepo, d.clock, newTestLogger())
	return d
}

func testShop(companyID uuid.UUID) *domain.Shop {
	return &domain.Shop{
		ID:             uuid.New(),
		CompanyID:      companyID,
		Name:           "Vape Shop",
		APIKey:         "shk_existing",
		Status:         domain.ShopStatusActive,
		AllowedMethods: []domain.VerificationMethod{domain.MethodBankID},
	}
}

func TestShopService_Authenticate(t *testing.T) {
	active := testShop(uuid.New())
	inactive := testShop(uuid.New())
	inactive.Status = domain.ShopStatusInactive

	tests := []struct {
		name     string
		key      string
		shop     *domain.Shop
		repoErr  error
		wantCode string
	}{
		{"active shop", "k1", active, nil, ""},
		{"unknown key", "k2", nil, nil, apperror.CodeInvalidCredential},
		{"inactive shop", "k3", inactive, nil, apperror.CodeShopInactive},
		{"storage error", "k4", nil, errors.New("db down"), apperror.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupShopService(t)
			d.shopRepo.EXPECT().GetByAPIKey(gomock.Any(), tt.key).Return(tt.shop, tt.repoErr)

			shop, err := d.svc.Authenticate(context.Background(), tt.key)
			if tt.wantCode != "" {
				assertAppError(t, err, tt.wantCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.shop.ID, shop.ID)
		})
	}
}

func TestShopService_Authenticate_EmptyKey(t *testing.T) {
	d := setupShopService(t)
	_, err := d.svc.Authenticate(context.Background(), "")
	assertAppError(t, err, apperror.CodeInvalidCredential)
}

func TestShopService_Get_OtherCompanyIsNotFound(t *testing.T) {
	d := setupShopService(t)
	shop := testShop(uuid.New())
	d.shopRepo.EXPECT().GetByID(gomock.Any(), shop.ID).Return(shop, nil)

	_, err := d.svc.Get(context.Background(), uuid.New(), shop.ID)
	assertAppError(t, err, apperror.CodeNotFound)
}

func TestShopService_Update(t *testing.T) {
	d := setupShopService(t)
	companyID := uuid.New()
	shop := testShop(companyID)

	d.shopRepo.EXPECT().GetByID(gomock.Any(), shop.ID).Return(shop, nil)
	d.shopRepo.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, s *domain.Shop) error {
		assert.Equal(t, "Renamed", s.Name)
		assert.Equal(t, domain.ShopStatusInactive, s.Status)
		assert.Equal(t, d.clock.Now(), s.UpdatedAt)
		return nil
	})

	name := "  Renamed "
	active := false
	updated, err := d.svc.Update(context.Background(), companyID, shop.ID, ports.UpdateShopRequest{Name: &name, Active: &active})
	require.NoError(t, err)
	assert.False(t, updated.IsActive())
}

func TestShopService_Update_BlankName(t *testing.T) {
	d := setupShopService(t)
	companyID := uuid.New()
	shop := testShop(companyID)
	d.shopRepo.EXPECT().GetByID(gomock.Any(), shop.ID).Return(shop, nil)

	blank := "   "
	_, err := d.svc.Update(context.Background(), companyID, shop.ID, ports.UpdateShopRequest{Name: &blank})
	assertAppError(t, err, apperror.CodeValidation)
}

func TestShopService_UpdateMethods(t *testing.T) {
	d := setupShopService(t)
	companyID := uuid.New()
	shop := testShop(companyID)

	d.shopRepo.EXPECT().GetByID(gomock.Any(), shop.ID).Return(shop, nil)
	d.shopRepo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)

	updated, err := d.svc.UpdateMethods(context.Background(), companyID, shop.ID, []string{"OCR", "bankid", "ocr"})
	require.NoError(t, err)
	assert.Equal(t, []domain.VerificationMethod{domain.MethodOCR, domain.MethodBankID}, updated.AllowedMethods)
}

func TestShopService_UpdateMethods_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		methods []string
	}{
		{"empty", nil},
		{"unknown", []string{"passport"}},
		{"revalidate", []string{"revalidate"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupShopService(t)
			_, err := d.svc.UpdateMethods(context.Background(), uuid.New(), uuid.New(), tt.methods)
			assertAppError(t, err, apperror.CodeValidation)
		})
	}
}

func TestShopService_UpdateWebhookURL(t *testing.T) {
	d := setupShopService(t)
	companyID := uuid.New()
	shop := testShop(companyID)

	d.shopRepo.EXPECT().GetByID(gomock.Any(), shop.ID).Return(shop, nil)
	d.shopRepo.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, s *domain.Shop) error {
		require.NotNil(t, s.WebhookURL)
		assert.Equal(t, "https://shop.example.com/hook", *s.WebhookURL)
		return nil
	})

	u := "https://shop.example.com/hook"
	require.NoError(t, d.svc.UpdateWebhookURL(context.Background(), companyID, shop.ID, &u))
}

func TestShopService_UpdateWebhookURL_Clear(t *testing.T) {
	d := setupShopService(t)
	companyID := uuid.New()
	shop := testShop(companyID)
	existing := "https://old.example.com"
	shop.WebhookURL = &existing

	d.shopRepo.EXPECT().GetByID(gomock.Any(), shop.ID).Return(shop, nil)
	d.shopRepo.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, s *domain.Shop) error {
		assert.Nil(t, s.WebhookURL)
		return nil
	})

	empty := ""
	require.NoError(t, d.svc.UpdateWebhookURL(context.Background(), companyID, shop.ID, &empty))
}

func TestShopService_UpdateWebhookURL_Invalid(t *testing.T) {
	d := setupShopService(t)
	for _, raw := range []string{"ftp://x.example.com", "not a url", "/relative"} {
		u := raw
		err := d.svc.UpdateWebhookURL(context.Background(), uuid.New(), uuid.New(), &u)
		assertAppError(t, err, apperror.CodeValidation)
	}
}

func TestShopService_RotateKey(t *testing.T) {
	d := setupShopService(t)
	companyID := uuid.New()
	shop := testShop(companyID)

	d.shopRepo.EXPECT().GetByID(gomock.Any(), shop.ID).Return(shop, nil)
	d.shopRepo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)

	key, err := d.svc.RotateKey(context.Background(), companyID, shop.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, apiKeyPrefix))
	assert.Len(t, key, len(apiKeyPrefix)+48)
	assert.NotEqual(t, "shk_existing", key)
}

func TestShopService_RotateKey_StorageError(t *testing.T) {
	d := setupShopService(t)
	companyID := uuid.New()
	shop := testShop(companyID)

	d.shopRepo.EXPECT().GetByID(gomock.Any(), shop.ID).Return(shop, nil)
	d.shopRepo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(errors.New("db error"))

	_, err := d.svc.RotateKey(context.Background(), companyID, shop.ID)
	assertAppError(t, err, apperror.CodeInternal)
}
