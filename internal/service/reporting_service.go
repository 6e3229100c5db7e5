package service

import (
	"context"
	"time"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"
	"age-verification-gateway/pkg/apperror"

	"github.com/google/uuid"
)

const maxPageSize = 100

// reportingService implements ports.ReportingService.
type reportingService struct {
	verificationRepo ports.VerificationRepository
	clock            ports.Clock
}

// NewReportingService creates a new reporting service.
func NewReportingService(verificationRepo ports.VerificationRepository, clock ports.Clock) ports.ReportingService {
	return &reportingService{verificationRepo: verificationRepo, clock: clock}
}

// GetDashboardStats returns aggregated verification stats for the company.
func (s *reportingService) GetDashboardStats(ctx context.Context, companyID uuid.UUID, period string) (*ports.VerificationStats, error) {
	var since *time.Time
	now := s.clock.Now()

	switch period {
	case "day":
		t := now.AddDate(0, 0, -1)
		since = &t
	case "week":
		t := now.AddDate(0, 0, -7)
		since = &t
	case "month":
		t := now.AddDate(0, -1, 0)
		since = &t
	case "all", "":
		// No time filter
	default:
		return nil, apperror.Validation("invalid period: must be day, week, month, or all")
	}

	stats, err := s.verificationRepo.GetStats(ctx, companyID, since)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	return stats, nil
}

// ListVerifications returns a paginated list of verifications.
func (s *reportingService) ListVerifications(ctx context.Context, params ports.VerificationListParams) ([]domain.Verification, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = 20
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}

	verifications, total, err := s.verificationRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return verifications, total, nil
}
