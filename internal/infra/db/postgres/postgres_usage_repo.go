package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"learnhub-billing/internal/domain/model"
	"learnhub-billing/internal/domain/ports/repository"
)

var _ repository.UsageCounter = (*usageRepo)(nil)

// usageRepo keeps one ai_usage row per (user, civil date, type).
type usageRepo struct{ pool *pgxpool.Pool }

func NewUsageRepo(pool *pgxpool.Pool) *usageRepo {
	return &usageRepo{pool: pool}
}

// IncrementIfBelow relies on the conflict-update predicate: a row already at
// limit is left untouched and RETURNING yields nothing. resetAt is implied
// by the date key.
func (r *usageRepo) IncrementIfBelow(ctx context.Context, userID, dateKey string, usageType model.UsageType, limit int, resetAt time.Time) (int, bool, error) {
	if limit <= 0 {
		n, err := r.Get(ctx, userID, dateKey, usageType)
		return n, false, err
	}
	const q = `
INSERT INTO ai_usage (user_id, usage_date, usage_type, count, updated_at)
VALUES ($1, $2::date, $3, 1, NOW())
ON CONFLICT (user_id, usage_date, usage_type) DO UPDATE
  SET count = ai_usage.count + 1, updated_at = NOW()
  WHERE ai_usage.count < $4
RETURNING count;`
	row, err := pickRow(ctx, r.pool, nil, q, userID, dateKey, string(usageType), limit)
	if err != nil {
		return 0, false, err
	}
	var count int
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			n, err := r.Get(ctx, userID, dateKey, usageType)
			return n, false, err
		}
		return 0, false, mapScanErr("usage.increment", err)
	}
	return count, true, nil
}

func (r *usageRepo) Get(ctx context.Context, userID, dateKey string, usageType model.UsageType) (int, error) {
	const q = `SELECT COALESCE((SELECT count FROM ai_usage WHERE user_id=$1 AND usage_date=$2::date AND usage_type=$3), 0);`
	row, err := pickRow(ctx, r.pool, nil, q, userID, dateKey, string(usageType))
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapScanErr("usage.get", err)
	}
	return n, nil
}

// PurgeBefore deletes counters for days before dateKey.
func (r *usageRepo) PurgeBefore(ctx context.Context, dateKey string) (int64, error) {
	const q = `DELETE FROM ai_usage WHERE usage_date < $1::date;`
	tag, err := execSQL(ctx, r.pool, nil, q, dateKey)
	if err != nil {
		return 0, mapErr("usage.purge", err)
	}
	return tag.RowsAffected(), nil
}
