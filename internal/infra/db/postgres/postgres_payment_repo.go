package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"learnhub-billing/internal/domain"
	"learnhub-billing/internal/domain/model"
	"learnhub-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, order_id, tran_id, val_id, amount::text, currency, card_type, bank_tran_id, gateway_status, raw_response, created_at, updated_at`

// UpsertByTranID keeps the original id and created_at on conflict.
func (r *paymentRepo) UpsertByTranID(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (id, order_id, tran_id, val_id, amount, currency, card_type, bank_tran_id, gateway_status, raw_response, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5::numeric,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (tran_id) DO UPDATE SET
  val_id=EXCLUDED.val_id, amount=EXCLUDED.amount, currency=EXCLUDED.currency, card_type=EXCLUDED.card_type,
  bank_tran_id=EXCLUDED.bank_tran_id, gateway_status=EXCLUDED.gateway_status, raw_response=EXCLUDED.raw_response,
  updated_at=EXCLUDED.updated_at;`
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.OrderID, p.TranID, p.ValID, p.Amount.String(), p.Currency, p.CardType, p.BankTranID, p.GatewayStatus, p.RawResponse, p.CreatedAt, p.UpdatedAt)
	return mapErr("payment.upsert", err)
}

func (r *paymentRepo) FindByTranID(ctx context.Context, tx repository.Tx, tranID string) (*model.Payment, error) {
	q := lockClause(`SELECT `+paymentColumns+` FROM payments WHERE tran_id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, tranID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) ListByOrder(ctx context.Context, tx repository.Tx, orderID string) ([]*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE order_id=$1 ORDER BY created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, mapErr("payment.list", err)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("payment.list", err)
	}
	return out, nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var (
		p      model.Payment
		amount string
	)
	if err := row.Scan(&p.ID, &p.OrderID, &p.TranID, &p.ValID, &amount, &p.Currency, &p.CardType, &p.BankTranID, &p.GatewayStatus, &p.RawResponse, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapScanErr("payment.scan", err)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	p.Amount = d
	return &p, nil
}
