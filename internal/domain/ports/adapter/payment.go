package adapter

import (
	"context"

	"github.com/shopspring/decimal"
)

// Customer is the payer information the gateway requires.
type Customer struct {
	Name  string
	Email string
	Phone string // digits only, already sanitized
}

// SessionRequest opens a hosted checkout session.
type SessionRequest struct {
	TranID      string
	Amount      decimal.Decimal
	Currency    string
	ProductName string
	SuccessURL  string
	FailURL     string
	CancelURL   string
	IPNURL      string
	Customer    Customer
	// Pass-through values echoed back on every callback (value_a..value_d).
	OrderID  string
	UserID   string
	CourseID string
	PlanID   string
}

// Session is a gateway checkout session the browser is redirected to.
type Session struct {
	SessionKey  string
	RedirectURL string
}

// Validation is the gateway's authoritative record of a transaction.
type Validation struct {
	Status     string // VALID | VALIDATED | INVALID_TRANSACTION | ...
	TranID     string
	ValID      string
	Amount     decimal.Decimal
	Currency   string
	CardType   string
	BankTranID string
	Raw        []byte // full response body
}

// Transaction is one record returned by a lookup by tran_id.
type Transaction struct {
	Status string
	TranID string
	ValID  string
	Amount decimal.Decimal
}

// PaymentGateway is the hex port for hosted-checkout payment providers.
type PaymentGateway interface {
	Name() string

	// InitSession registers a transaction and returns where to send the payer.
	// A provider-side refusal is reported as an error.
	InitSession(ctx context.Context, req SessionRequest) (*Session, error)
	// Validate fetches the authoritative record for a validation id.
	// Transport, HTTP-status and decoding problems are errors; a negative
	// verdict is a Validation whose Status is not VALID/VALIDATED.
	Validate(ctx context.Context, valID string) (*Validation, error)
	// QueryByTranID lists what the gateway knows about a merchant transaction.
	QueryByTranID(ctx context.Context, tranID string) ([]Transaction, error)
	// VerifyCallback checks the signature carried by a callback payload.
	VerifyCallback(fields map[string]string) bool
}
