package postgres

import (
	"context"
	"errors"
	"fmt"
)

// HealthCheck passes only when the database answers and the ledger schema is
// installed. A reachable but unmigrated database reports unhealthy.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Name() string { return "postgresql" }

func (h *HealthCheck) Ping(ctx context.Context) error {
	var migrated bool
	err := h.pool.QueryRow(ctx, `SELECT to_regclass('public.ledger_entries') IS NOT NULL`).Scan(&migrated)
	if err != nil {
		return fmt.Errorf("query postgres: %w", err)
	}
	if !migrated {
		return errors.New("ledger schema missing, run migrations")
	}
	return nil
}
