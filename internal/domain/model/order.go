package model

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"learnhub-billing/internal/domain"
)

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending" // created, awaiting gateway callback
	OrderStatusPaid    OrderStatus = "paid"    // validated by gateway; terminal
	OrderStatusFailed  OrderStatus = "failed"  // gateway refused or validation failed; terminal
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending: {OrderStatusPaid: true, OrderStatusFailed: true},
	OrderStatusPaid:    {},
	OrderStatusFailed:  {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

func (s OrderStatus) Terminal() bool { return s == OrderStatusPaid || s == OrderStatusFailed }

// TranIDPrefix marks merchant transaction ids generated by this service.
const TranIDPrefix = "TXN"

// MaxTranIDLen is the longest tran_id the gateway accepts.
const MaxTranIDLen = 30

// Order is one purchase attempt of a course.
type Order struct {
	ID         string // ULID
	UserID     string
	CourseID   string
	PlanID     string // empty when the amount came from the caller or the catalog
	Amount     decimal.Decimal
	Currency   string
	Status     OrderStatus
	TranID     string  // merchant transaction id sent to the gateway
	SessionKey *string // gateway session, set after a successful init
	CreatedAt  time.Time
	UpdatedAt  time.Time
	PaidAt     *time.Time
}

// NewOrder validates and constructs a pending order with fresh ids.
func NewOrder(userID, courseID, planID string, amount decimal.Decimal, currency string, now time.Time) (*Order, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(courseID) == "" || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	// Gateway and storage both carry two decimal places.
	if !amount.Equal(amount.Round(2)) || !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	amount = amount.Round(2)
	id := ulid.Make().String()
	return &Order{
		ID:        id,
		UserID:    userID,
		CourseID:  courseID,
		PlanID:    planID,
		Amount:    amount,
		Currency:  strings.ToUpper(currency),
		Status:    OrderStatusPending,
		TranID:    TranIDFor(id),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// TranIDFor derives the merchant transaction id of an order.
func TranIDFor(orderID string) string {
	return TranIDPrefix + orderID
}

// AmountMatches reports whether a gateway-reported amount and currency
// settle this order exactly.
func (o *Order) AmountMatches(amount decimal.Decimal, currency string) bool {
	return o.Amount.Equal(amount) && strings.EqualFold(o.Currency, strings.TrimSpace(currency))
}
