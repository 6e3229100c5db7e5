package provider

import (
	"context"
	"fmt"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"
)

var _ ports.VerificationProvider = (*RevalidateProvider)(nil)

// RevalidateProvider answers from identities that already passed a full check
// for the same company and original method.
type RevalidateProvider struct {
	identities    ports.IdentityRepository
	fingerprinter ports.Fingerprinter
}

// NewRevalidateProvider creates a RevalidateProvider.
func NewRevalidateProvider(identities ports.IdentityRepository, fingerprinter ports.Fingerprinter) *RevalidateProvider {
	return &RevalidateProvider{identities: identities, fingerprinter: fingerprinter}
}

func (p *RevalidateProvider) Method() domain.VerificationMethod { return domain.MethodRevalidate }

func (p *RevalidateProvider) Submit(ctx context.Context, req ports.ProviderRequest) (domain.VerificationResult, error) {
	if !req.OriginalMethod.IsIdentityMethod() {
		return "", fmt.Errorf("revalidate: %q is not an identity method", req.OriginalMethod)
	}

	vi, err := p.identities.FindByFingerprint(ctx, req.CompanyID, req.OriginalMethod, p.fingerprinter.Fingerprint(req.Identifier))
	if err != nil {
		return "", fmt.Errorf("revalidate lookup: %w", err)
	}
	if vi == nil {
		return domain.VerificationResultFailure, nil
	}
	return domain.VerificationResultSuccess, nil
}
