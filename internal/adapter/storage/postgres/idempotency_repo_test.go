package postgres

import (
	"context"
	"testing"
	"time"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var replayColumns = []string{"key", "company_id", "wallet_transaction_id", "response", "created_at"}

func newReplay() *domain.TopupReplay {
	companyID := uuid.New()
	return &domain.TopupReplay{
		Key:                 domain.BuildTopupIdempotencyKey(companyID, "order-42"),
		CompanyID:           companyID,
		WalletTransactionID: uuid.New(),
		Response:            []byte(`{"id":"x","status":"PENDING"}`),
		CreatedAt:           time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestIdempotencyRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	replay := newReplay()
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO topup_replays .+ ON CONFLICT \\(key\\) DO NOTHING").
		WithArgs(replay.Key, replay.CompanyID, replay.WalletTransactionID, replay.Response, replay.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, NewIdempotencyRepo(mock).Create(context.Background(), tx, replay))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepo_Create_KeyTaken(t *testing.T) {
	tests := []struct {
		name   string
		result func(e *pgxmock.ExpectedExec)
	}{
		{"conflict skipped", func(e *pgxmock.ExpectedExec) { e.WillReturnResult(pgxmock.NewResult("INSERT", 0)) }},
		{"unique violation", func(e *pgxmock.ExpectedExec) { e.WillReturnError(&pgconn.PgError{Code: "23505"}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			mock.ExpectBegin()
			tt.result(mock.ExpectExec("INSERT INTO topup_replays"))

			tx, err := mock.Begin(context.Background())
			require.NoError(t, err)

			err = NewIdempotencyRepo(mock).Create(context.Background(), tx, newReplay())
			assert.ErrorIs(t, err, ports.ErrDuplicateKey)
		})
	}
}

func TestIdempotencyRepo_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := newReplay()
	mock.ExpectQuery("SELECT .+ FROM topup_replays").
		WithArgs(want.Key).
		WillReturnRows(pgxmock.NewRows(replayColumns).
			AddRow(want.Key, want.CompanyID, want.WalletTransactionID, want.Response, want.CreatedAt))

	got, err := NewIdempotencyRepo(mock).Get(context.Background(), want.Key)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepo_Get_Missing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM topup_replays").
		WithArgs("absent").
		WillReturnRows(pgxmock.NewRows(replayColumns))

	got, err := NewIdempotencyRepo(mock).Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
