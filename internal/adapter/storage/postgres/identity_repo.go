package postgres

import (
	"context"
	"errors"
	"fmt"

	"age-verification-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// IdentityRepo implements ports.IdentityRepository.
type IdentityRepo struct {
	pool Pool
}

// NewIdentityRepo creates a new IdentityRepo.
func NewIdentityRepo(pool Pool) *IdentityRepo {
	return &IdentityRepo{pool: pool}
}

// Create stores an identity that passed a full verification.
func (r *IdentityRepo) Create(ctx context.Context, identity *domain.VerifiedIdentity) error {
	query := `INSERT INTO verified_identities (id, company_id, method, fingerprint, identifier_enc,
		verification_id, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		identity.ID, identity.CompanyID, identity.Method, identity.Fingerprint, identity.IdentifierEnc,
		identity.VerificationID, identity.VerifiedAt,
	)
	if err != nil {
		return fmt.Errorf("insert verified identity: %w", mapError(err))
	}
	return nil
}

// FindByFingerprint returns the most recent matching identity, or nil.
func (r *IdentityRepo) FindByFingerprint(ctx context.Context, companyID uuid.UUID, method domain.VerificationMethod, fingerprint string) (*domain.VerifiedIdentity, error) {
	query := `SELECT id, company_id, method, fingerprint, identifier_enc, verification_id, verified_at
		FROM verified_identities
		WHERE company_id = $1 AND method = $2 AND fingerprint = $3
		ORDER BY verified_at DESC LIMIT 1`

	vi := &domain.VerifiedIdentity{}
	err := r.pool.QueryRow(ctx, query, companyID, method, fingerprint).Scan(
		&vi.ID, &vi.CompanyID, &vi.Method, &vi.Fingerprint, &vi.IdentifierEnc,
		&vi.VerificationID, &vi.VerifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find verified identity: %w", err)
	}
	return vi, nil
}
