package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"age-verification-gateway/internal/core/ports"
	"age-verification-gateway/internal/core/ports/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSweeper_Run(t *testing.T) {
	ctrl := gomock.NewController(t)
	lease := mocks.NewMockLeaseLock(ctrl)
	verifications := mocks.NewMockVerificationService(ctrl)
	reconciliation := mocks.NewMockReconciliationService(ctrl)
	cfg := SweepConfig{LeaseTTL: time.Minute, StaleVerification: 10 * time.Minute, ExpireAfter: 72 * time.Hour}
	sweeper := NewSweeper(lease, verifications, reconciliation, cfg, newTestLogger())

	gomock.InOrder(
		lease.EXPECT().Acquire(gomock.Any(), SweepLease, gomock.Any(), time.Minute).Return(true, nil),
		verifications.EXPECT().ExpireStale(gomock.Any(), 10*time.Minute).Return(2, nil),
		reconciliation.EXPECT().CheckAll(gomock.Any()).Return(&ports.CheckAllResult{Completed: 3, Pending: 1}, nil),
		reconciliation.EXPECT().Expire(gomock.Any(), 72*time.Hour).Return(1, nil),
		lease.EXPECT().Release(gomock.Any(), SweepLease, gomock.Any()).Return(nil),
	)

	report, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &SweepReport{
		StaleRefunded:       2,
		Reconciliation:      ports.CheckAllResult{Completed: 3, Pending: 1},
		ExpiredTransactions: 1,
	}, report)
}

func TestSweeper_Run_LeaseHeldElsewhere(t *testing.T) {
	ctrl := gomock.NewController(t)
	lease := mocks.NewMockLeaseLock(ctrl)
	sweeper := NewSweeper(lease, mocks.NewMockVerificationService(ctrl), mocks.NewMockReconciliationService(ctrl), SweepConfig{LeaseTTL: time.Minute}, newTestLogger())

	lease.EXPECT().Acquire(gomock.Any(), SweepLease, gomock.Any(), time.Minute).Return(false, nil)

	report, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
}

func TestSweeper_Run_WithoutLeaseAndOptionalStepsDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	reconciliation := mocks.NewMockReconciliationService(ctrl)
	sweeper := NewSweeper(nil, mocks.NewMockVerificationService(ctrl), reconciliation, SweepConfig{}, newTestLogger())

	reconciliation.EXPECT().CheckAll(gomock.Any()).Return(&ports.CheckAllResult{Pending: 4}, nil)

	report, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Reconciliation.Pending)
}

func TestSweeper_Run_ReleasesLeaseOnError(t *testing.T) {
	ctrl := gomock.NewController(t)
	lease := mocks.NewMockLeaseLock(ctrl)
	reconciliation := mocks.NewMockReconciliationService(ctrl)
	sweeper := NewSweeper(lease, mocks.NewMockVerificationService(ctrl), reconciliation, SweepConfig{LeaseTTL: time.Minute}, newTestLogger())

	lease.EXPECT().Acquire(gomock.Any(), SweepLease, gomock.Any(), gomock.Any()).Return(true, nil)
	reconciliation.EXPECT().CheckAll(gomock.Any()).Return(nil, errors.New("db down"))
	lease.EXPECT().Release(gomock.Any(), SweepLease, gomock.Any()).Return(nil)

	_, err := sweeper.Run(context.Background())
	assert.Error(t, err)
}

func TestSweeper_Run_AcquireError(t *testing.T) {
	ctrl := gomock.NewController(t)
	lease := mocks.NewMockLeaseLock(ctrl)
	sweeper := NewSweeper(lease, mocks.NewMockVerificationService(ctrl), mocks.NewMockReconciliationService(ctrl), SweepConfig{}, newTestLogger())

	lease.EXPECT().Acquire(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))

	_, err := sweeper.Run(context.Background())
	assert.Error(t, err)
}
