package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Gateway statuses that confirm a captured payment.
const (
	GatewayStatusValid     = "VALID"
	GatewayStatusValidated = "VALIDATED" // already validated once; still a success
)

// IsConfirmedStatus reports whether a gateway validation status means success.
func IsConfirmedStatus(status string) bool {
	s := strings.ToUpper(strings.TrimSpace(status))
	return s == GatewayStatusValid || s == GatewayStatusValidated
}

// Payment is the validated gateway transaction behind a paid order.
// It is written only after server-side validation succeeded.
type Payment struct {
	ID            string // UUID
	OrderID       string
	TranID        string // unique; upsert key
	ValID         string
	Amount        decimal.Decimal
	Currency      string
	CardType      string
	BankTranID    string
	GatewayStatus string
	RawResponse   string // encrypted validation response
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CallbackEntry names the endpoint a callback arrived on.
type CallbackEntry string

const (
	CallbackSuccess CallbackEntry = "success"
	CallbackFail    CallbackEntry = "fail"
	CallbackCancel  CallbackEntry = "cancel"
	CallbackIPN     CallbackEntry = "ipn"
	CallbackSweep   CallbackEntry = "sweep" // stale-order sweeper, not an HTTP entry
)

// CallbackPayload carries the fields the gateway posts to the callback
// endpoints. Only ValID is trusted, and only after validation.
type CallbackPayload struct {
	TranID         string
	ValID          string
	Amount         string // as reported; empty when absent
	Currency       string
	CurrencyAmount string // amount in the session currency when it is not BDT
	CurrencyType   string
	Status         string
	OrderID        string // value_a
	UserID         string // value_b
	VerifySign     string
	VerifyKey      string
	Fields         map[string]string // every posted field, for signature checks
}

// ReportedAmount returns the amount and currency the callback claims for the
// order, preferring currency_amount/currency_type. ok is false when absent or
// unparseable.
func (p CallbackPayload) ReportedAmount() (decimal.Decimal, string, bool) {
	raw, cur := strings.TrimSpace(p.Amount), strings.TrimSpace(p.Currency)
	if ca, ct := strings.TrimSpace(p.CurrencyAmount), strings.TrimSpace(p.CurrencyType); ca != "" && ct != "" {
		raw, cur = ca, ct
	}
	if raw == "" {
		return decimal.Zero, "", false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, "", false
	}
	return d, strings.ToUpper(cur), true
}

// ReconcileOutcome is what a reconciliation settled on.
type ReconcileOutcome struct {
	OrderID     string
	Status      OrderStatus
	AlreadyPaid bool
}

func (o ReconcileOutcome) Paid() bool { return o.Status == OrderStatusPaid }
