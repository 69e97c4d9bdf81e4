package adapter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Event types published after state changes are committed.
const (
	EventOrderPaid   = "order.paid"
	EventOrderFailed = "order.failed"
)

// Event is a domain event for downstream consumers (analytics, CRM).
type Event struct {
	Type       string          `json:"type"`
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	CourseID   string          `json:"course_id"`
	PlanID     string          `json:"plan_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// EventPublisher delivers domain events; delivery is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Receipt is what the payer is e-mailed after a successful payment.
type Receipt struct {
	To          string
	Name        string
	OrderID     string
	TranID      string
	CourseTitle string
	Amount      decimal.Decimal
	Currency    string
	PaidAt      time.Time
}

// ReceiptSender delivers payment receipts.
type ReceiptSender interface {
	SendReceipt(ctx context.Context, r Receipt) error
}

// AuditArchiver stores raw gateway responses for later dispute handling.
type AuditArchiver interface {
	Archive(ctx context.Context, key string, body []byte) error
}
