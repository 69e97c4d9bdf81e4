package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"learnhub-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for local runs and tests.
// Every session it opens validates as paid in full under val id "VAL-<tran_id>".
type NoopPaymentGateway struct {
	mu       sync.Mutex
	sessions map[string]adapter.SessionRequest // tran id -> request
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{sessions: make(map[string]adapter.SessionRequest)}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) InitSession(ctx context.Context, req adapter.SessionRequest) (*adapter.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[req.TranID] = req
	return &adapter.Session{
		SessionKey:  "noop-" + req.TranID,
		RedirectURL: "https://example.test/pay/" + req.TranID,
	}, nil
}

func (g *NoopPaymentGateway) Validate(ctx context.Context, valID string) (*adapter.Validation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	tranID := strings.TrimPrefix(valID, "VAL-")
	req, ok := g.sessions[tranID]
	if !ok {
		return &adapter.Validation{Status: "INVALID_TRANSACTION", ValID: valID, Raw: []byte(`{"status":"INVALID_TRANSACTION"}`)}, nil
	}
	raw := fmt.Sprintf(`{"status":"VALID","tran_id":%q,"val_id":%q,"amount":%q,"currency":%q}`, tranID, valID, req.Amount.StringFixed(2), req.Currency)
	return &adapter.Validation{
		Status:   "VALID",
		TranID:   tranID,
		ValID:    valID,
		Amount:   req.Amount,
		Currency: req.Currency,
		CardType: "NOOP",
		Raw:      []byte(raw),
	}, nil
}

func (g *NoopPaymentGateway) QueryByTranID(ctx context.Context, tranID string) ([]adapter.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.sessions[tranID]
	if !ok {
		return nil, nil
	}
	return []adapter.Transaction{{Status: "VALID", TranID: tranID, ValID: "VAL-" + tranID, Amount: req.Amount}}, nil
}

func (g *NoopPaymentGateway) VerifyCallback(fields map[string]string) bool { return true }
