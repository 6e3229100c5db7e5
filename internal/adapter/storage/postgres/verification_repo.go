package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const verificationColumns = `id, shop_id, company_id, method, status, result, price, redirect_url,
		refunded_at, created_at, completed_at`

// VerificationRepo implements ports.VerificationRepository.
type VerificationRepo struct {
	pool Pool
}

// NewVerificationRepo creates a new VerificationRepo.
func NewVerificationRepo(pool Pool) *VerificationRepo {
	return &VerificationRepo{pool: pool}
}

// Create inserts a verification within the debit transaction.
func (r *VerificationRepo) Create(ctx context.Context, tx pgx.Tx, v *domain.Verification) error {
	query := `INSERT INTO verifications (` + verificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := tx.Exec(ctx, query,
		v.ID, v.ShopID, v.CompanyID, v.Method, v.Status, v.Result, v.Price,
		v.RedirectURL, v.RefundedAt, v.CreatedAt, v.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert verification: %w", mapError(err))
	}
	return nil
}

// GetByID fetches a verification by UUID.
func (r *VerificationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Verification, error) {
	query := `SELECT ` + verificationColumns + ` FROM verifications WHERE id = $1`
	return scanVerification(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a verification with a row lock held until tx ends.
func (r *VerificationRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Verification, error) {
	query := `SELECT ` + verificationColumns + ` FROM verifications WHERE id = $1 FOR UPDATE`
	return scanVerification(tx.QueryRow(ctx, query, id))
}

// Complete is a guarded PENDING -> COMPLETED/SUCCESS update.
func (r *VerificationRepo) Complete(ctx context.Context, id uuid.UUID, completedAt time.Time) (bool, error) {
	query := `UPDATE verifications SET status = 'COMPLETED', result = 'SUCCESS', completed_at = $1
		WHERE id = $2 AND status = 'PENDING' AND refunded_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, completedAt, id)
	if err != nil {
		return false, fmt.Errorf("complete verification: %w", mapError(err))
	}
	return tag.RowsAffected() == 1, nil
}

// MarkRefunded settles a verification as FAILED/FAILURE within the refund transaction.
func (r *VerificationRepo) MarkRefunded(ctx context.Context, tx pgx.Tx, id uuid.UUID, refundedAt time.Time) error {
	query := `UPDATE verifications SET status = 'FAILED', result = 'FAILURE', refunded_at = $1, completed_at = $1
		WHERE id = $2 AND refunded_at IS NULL`

	tag, err := tx.Exec(ctx, query, refundedAt, id)
	if err != nil {
		return fmt.Errorf("mark verification refunded: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("verification not refundable: %s", id)
	}
	return nil
}

// ListStalePending returns the oldest verifications still PENDING before the cutoff.
func (r *VerificationRepo) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Verification, error) {
	query := `SELECT ` + verificationColumns + ` FROM verifications
		WHERE status = 'PENDING' AND created_at < $1 ORDER BY created_at LIMIT $2`

	rows, err := r.pool.Query(ctx, query, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale verifications: %w", err)
	}
	return collectVerifications(rows)
}

// List fetches verifications with filtering and pagination.
func (r *VerificationRepo) List(ctx context.Context, params ports.VerificationListParams) ([]domain.Verification, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("company_id = $%d", argIdx))
	args = append(args, params.CompanyID)
	argIdx++

	if params.ShopID != nil {
		conditions = append(conditions, fmt.Sprintf("shop_id = $%d", argIdx))
		args = append(args, *params.ShopID)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.Method != nil {
		conditions = append(conditions, fmt.Sprintf("method = $%d", argIdx))
		args = append(args, *params.Method)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM verifications %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count verifications: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM verifications %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		verificationColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list verifications: %w", err)
	}
	items, err := collectVerifications(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// GetStats aggregates verification outcomes for a company.
func (r *VerificationRepo) GetStats(ctx context.Context, companyID uuid.UUID, since *time.Time) (*ports.VerificationStats, error) {
	args := []any{companyID}
	condition := "company_id = $1"
	if since != nil {
		condition += " AND created_at >= $2"
		args = append(args, *since)
	}

	query := fmt.Sprintf(`SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'PENDING') AS pending,
		COUNT(*) FILTER (WHERE status = 'COMPLETED' AND result = 'SUCCESS') AS successful,
		COUNT(*) FILTER (WHERE status = 'FAILED') AS failed,
		COUNT(*) FILTER (WHERE refunded_at IS NOT NULL) AS refunded,
		COALESCE(SUM(price) FILTER (WHERE refunded_at IS NULL), 0) AS spent
		FROM verifications WHERE %s`, condition)

	stats := &ports.VerificationStats{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&stats.Total, &stats.Pending, &stats.Successful, &stats.Failed, &stats.Refunded, &stats.Spent,
	)
	if err != nil {
		return nil, fmt.Errorf("get verification stats: %w", err)
	}
	return stats, nil
}

func scanVerification(row pgx.Row) (*domain.Verification, error) {
	v := &domain.Verification{}
	err := row.Scan(
		&v.ID, &v.ShopID, &v.CompanyID, &v.Method, &v.Status, &v.Result, &v.Price,
		&v.RedirectURL, &v.RefundedAt, &v.CreatedAt, &v.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan verification: %w", mapError(err))
	}
	return v, nil
}

func collectVerifications(rows pgx.Rows) ([]domain.Verification, error) {
	defer rows.Close()

	var items []domain.Verification
	for rows.Next() {
		v := domain.Verification{}
		if err := rows.Scan(
			&v.ID, &v.ShopID, &v.CompanyID, &v.Method, &v.Status, &v.Result, &v.Price,
			&v.RedirectURL, &v.RefundedAt, &v.CreatedAt, &v.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan verification row: %w", err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification rows: %w", err)
	}
	return items, nil
}
