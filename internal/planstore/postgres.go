package planstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// The table holds a single row keyed by cacheRowID.
const cacheRowID = 1

const (
	selectPlanQuery = `SELECT plan_id FROM plan_cache WHERE id = $1`
	upsertPlanQuery = `INSERT INTO plan_cache (id, plan_id, updated_at) VALUES ($1, $2, now())
ON CONFLICT (id) DO UPDATE SET plan_id = EXCLUDED.plan_id, updated_at = EXCLUDED.updated_at`
	deletePlanQuery = `DELETE FROM plan_cache WHERE id = $1`
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context) (string, bool, error) {
	var planID string
	err := s.pool.QueryRow(ctx, selectPlanQuery, cacheRowID).Scan(&planID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to load plan id: %w", err)
	}
	return planID, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, planID string) error {
	if _, err := s.pool.Exec(ctx, upsertPlanQuery, cacheRowID, planID); err != nil {
		return fmt.Errorf("failed to store plan id: %w", err)
	}
	slog.Debug("Plan id cached", "plan_id", planID)
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	tag, err := s.pool.Exec(ctx, deletePlanQuery, cacheRowID)
	if err != nil {
		return fmt.Errorf("failed to clear plan id: %w", err)
	}
	slog.Debug("Plan cache cleared", "rows", tag.RowsAffected())
	return nil
}
