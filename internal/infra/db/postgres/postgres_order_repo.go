package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"learnhub-billing/internal/domain"
	"learnhub-billing/internal/domain/model"
	"learnhub-billing/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderColumns = `id, user_id, course_id, plan_id, amount::text, currency, status, tran_id, session_key, created_at, updated_at, paid_at`

func (r *orderRepo) Create(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `
INSERT INTO orders (id, user_id, course_id, plan_id, amount, currency, status, tran_id, session_key, created_at, updated_at, paid_at)
VALUES ($1,$2,$3,$4,$5::numeric,$6,$7,$8,$9,$10,$11,$12);`
	_, err := execSQL(ctx, r.pool, tx, q,
		o.ID, o.UserID, o.CourseID, o.PlanID, o.Amount.String(), o.Currency, string(o.Status), o.TranID, o.SessionKey, o.CreatedAt, o.UpdatedAt, o.PaidAt)
	return mapErr("order.create", err)
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	q := lockClause(`SELECT `+orderColumns+` FROM orders WHERE id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *orderRepo) FindByTranID(ctx context.Context, tx repository.Tx, tranID string) (*model.Order, error) {
	q := lockClause(`SELECT `+orderColumns+` FROM orders WHERE tran_id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, tranID)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *orderRepo) SetSessionKey(ctx context.Context, tx repository.Tx, id, sessionKey string) error {
	const q = `UPDATE orders SET session_key=$2, updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, sessionKey)
	if err != nil {
		return mapErr("order.set_session", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateStatusIfPending is the single place an order leaves pending. The
// status predicate makes concurrent callbacks race safely.
func (r *orderRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus, paidAt *time.Time) (bool, error) {
	if !model.CanTransition(model.OrderStatusPending, status) {
		return false, domain.ErrInvalidTransition
	}
	const q = `UPDATE orders SET status=$2, paid_at=COALESCE($3, paid_at), updated_at=NOW() WHERE id=$1 AND status='pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, id, string(status), paidAt)
	if err != nil {
		return false, mapErr("order.update_status", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *orderRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, mapErr("order.list_pending", err)
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("order.list_pending", err)
	}
	return out, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o      model.Order
		amount string
		status string
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.CourseID, &o.PlanID, &amount, &o.Currency, &status, &o.TranID, &o.SessionKey, &o.CreatedAt, &o.UpdatedAt, &o.PaidAt); err != nil {
		return nil, mapScanErr("order.scan", err)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	o.Amount = d
	o.Status = model.OrderStatus(status)
	return &o, nil
}
