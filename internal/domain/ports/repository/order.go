package repository

import (
	"context"
	"time"

	"learnhub-billing/internal/domain/model"
)

// -----------------------------
// Orders
// -----------------------------

type OrderRepository interface {
	Create(ctx context.Context, tx Tx, o *model.Order) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Order, error)
	FindByTranID(ctx context.Context, tx Tx, tranID string) (*model.Order, error)
	SetSessionKey(ctx context.Context, tx Tx, id, sessionKey string) error
	// UpdateStatusIfPending moves a pending order to status and reports
	// whether this call performed the transition.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.OrderStatus, paidAt *time.Time) (bool, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Order, error)
}

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	// UpsertByTranID inserts or refreshes the validated transaction keyed by tran_id.
	UpsertByTranID(ctx context.Context, tx Tx, p *model.Payment) error
	FindByTranID(ctx context.Context, tx Tx, tranID string) (*model.Payment, error)
	ListByOrder(ctx context.Context, tx Tx, orderID string) ([]*model.Payment, error)
}
