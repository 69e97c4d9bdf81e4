// File: internal/usecase/reconcile_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"learnhub-billing/internal/domain"
	"learnhub-billing/internal/domain/model"
	"learnhub-billing/internal/domain/ports/adapter"
	"learnhub-billing/internal/domain/ports/repository"
	"learnhub-billing/internal/infra/logging"
	"learnhub-billing/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

type ReconcileUseCase interface {
	// Reconcile settles the order named by a gateway callback. The same
	// algorithm serves the success, fail, cancel and IPN entries.
	Reconcile(ctx context.Context, entry model.CallbackEntry, p model.CallbackPayload) (model.ReconcileOutcome, error)
	// ReconcilePending asks the gateway about a pending order nobody called
	// back for; it is failed once created before abandonBefore with no record.
	ReconcilePending(ctx context.Context, o *model.Order, abandonBefore time.Time) (model.ReconcileOutcome, error)
}

// Sealer encrypts data at rest.
type Sealer interface {
	Encrypt(plaintext string) (string, error)
}

// Submitter runs work off the request path.
type Submitter interface {
	Submit(task func(ctx context.Context) error) error
}

// PostPayment bundles the best-effort side effects of a settled payment.
// Nil members are skipped.
type PostPayment struct {
	Events   adapter.EventPublisher
	Receipts adapter.ReceiptSender
	Archive  adapter.AuditArchiver
	Users    repository.UserRepository
	Catalog  repository.CatalogRepository
	Async    Submitter
}

type reconcileUC struct {
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	ents     repository.EntitlementRepository
	tm       repository.TransactionManager
	gateway  adapter.PaymentGateway
	prices   model.PriceTable
	sealer   Sealer
	post     PostPayment
	timeout  time.Duration
	now      func() time.Time
	log      *zerolog.Logger
}

func NewReconcileUseCase(
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	ents repository.EntitlementRepository,
	tm repository.TransactionManager,
	gateway adapter.PaymentGateway,
	prices model.PriceTable,
	sealer Sealer,
	post PostPayment,
	gatewayTimeout time.Duration,
	logger *zerolog.Logger,
) *reconcileUC {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 15 * time.Second
	}
	l := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{
		orders:   orders,
		payments: payments,
		ents:     ents,
		tm:       tm,
		gateway:  gateway,
		prices:   prices,
		sealer:   sealer,
		post:     post,
		timeout:  gatewayTimeout,
		now:      time.Now,
		log:      &l,
	}
}

func (u *reconcileUC) Reconcile(ctx context.Context, entry model.CallbackEntry, p model.CallbackPayload) (model.ReconcileOutcome, error) {
	l := logging.With(ctx, u.log).With().Str("entry", string(entry)).Str("tran_id", p.TranID).Logger()
	out := model.ReconcileOutcome{OrderID: p.OrderID, Status: model.OrderStatusFailed}

	if p.VerifySign != "" && len(p.Fields) > 0 && !u.gateway.VerifyCallback(p.Fields) {
		metrics.IncCallbackSignature("mismatch")
		l.Warn().Msg("callback signature mismatch; relying on server-side validation")
	}

	if strings.TrimSpace(p.ValID) == "" {
		metrics.IncReconcile(string(entry), "missing_val_id")
		return out, domain.ErrMissingValidationID
	}

	order, err := u.findOrder(ctx, p)
	if err != nil {
		metrics.IncReconcile(string(entry), "unknown_order")
		return out, err
	}
	out.OrderID = order.ID
	l = l.With().Str("order_id", order.ID).Logger()

	switch order.Status {
	case model.OrderStatusPaid:
		metrics.IncReconcile(string(entry), "already_paid")
		return model.ReconcileOutcome{OrderID: order.ID, Status: model.OrderStatusPaid, AlreadyPaid: true}, nil
	case model.OrderStatusFailed:
		metrics.IncReconcile(string(entry), "already_failed")
		l.Info().Msg("callback for a failed order ignored")
		return out, domain.ErrPaymentNotValidated
	}

	vctx, cancel := context.WithTimeout(ctx, u.timeout)
	start := time.Now()
	v, err := u.gateway.Validate(vctx, p.ValID)
	cancel()
	if err != nil {
		metrics.ObserveGatewayCall("validate", "error", time.Since(start))
		metrics.IncReconcile(string(entry), "gateway_error")
		l.Error().Err(err).Msg("gateway validation unavailable; order left pending")
		out.Status = model.OrderStatusPending
		return out, fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
	}
	metrics.ObserveGatewayCall("validate", "ok", time.Since(start))

	if !model.IsConfirmedStatus(v.Status) {
		l.Warn().Str("gateway_status", v.Status).Msg("gateway did not confirm payment")
		return u.fail(ctx, entry, order, domain.ErrPaymentNotValidated)
	}
	if !amountMatches(order, v, p) {
		l.Warn().
			Str("expected", order.Amount.String()+" "+order.Currency).
			Str("validated", v.Amount.String()+" "+v.Currency).
			Str("reported", p.Amount).
			Str("validated_tran_id", v.TranID).
			Msg("validated transaction does not match order")
		return u.fail(ctx, entry, order, domain.ErrAmountMismatch)
	}

	paidAt := u.now()
	settled, err := u.settle(ctx, order, v, paidAt)
	if err != nil {
		metrics.IncReconcile(string(entry), "error")
		l.Error().Err(err).Msg("settlement failed; order left pending")
		out.Status = model.OrderStatusPending
		return out, err
	}
	if !settled {
		// another callback moved the order first
		return u.current(ctx, entry, order.ID)
	}

	metrics.IncReconcile(string(entry), "paid")
	metrics.IncPayment("paid")
	metrics.AddPaymentRevenue(order.Currency, order.Amount.InexactFloat64())
	l.Info().Str("val_id", v.ValID).Msg("order paid")

	order.Status = model.OrderStatusPaid
	order.PaidAt = &paidAt
	u.afterPaid(ctx, order, v)
	return model.ReconcileOutcome{OrderID: order.ID, Status: model.OrderStatusPaid}, nil
}

func (u *reconcileUC) ReconcilePending(ctx context.Context, o *model.Order, abandonBefore time.Time) (model.ReconcileOutcome, error) {
	out := model.ReconcileOutcome{OrderID: o.ID, Status: o.Status}
	if o.Status != model.OrderStatusPending {
		return out, nil
	}
	qctx, cancel := context.WithTimeout(ctx, u.timeout)
	start := time.Now()
	txs, err := u.gateway.QueryByTranID(qctx, o.TranID)
	cancel()
	if err != nil {
		metrics.ObserveGatewayCall("query", "error", time.Since(start))
		return out, fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
	}
	metrics.ObserveGatewayCall("query", "ok", time.Since(start))

	for _, t := range txs {
		if model.IsConfirmedStatus(t.Status) && t.ValID != "" {
			return u.Reconcile(ctx, model.CallbackSweep, model.CallbackPayload{
				TranID:  o.TranID,
				ValID:   t.ValID,
				OrderID: o.ID,
			})
		}
	}
	if o.CreatedAt.Before(abandonBefore) {
		logging.With(ctx, u.log).Info().Str("order_id", o.ID).Int("gateway_records", len(txs)).Msg("abandoned checkout failed")
		return u.fail(ctx, model.CallbackSweep, o, nil)
	}
	return out, nil
}

func (u *reconcileUC) findOrder(ctx context.Context, p model.CallbackPayload) (*model.Order, error) {
	if p.OrderID != "" {
		o, err := u.orders.FindByID(ctx, nil, p.OrderID)
		if err == nil || !errors.Is(err, domain.ErrNotFound) || p.TranID == "" {
			return o, err
		}
	}
	if p.TranID == "" {
		return nil, fmt.Errorf("%w: callback names no order", domain.ErrNotFound)
	}
	return u.orders.FindByTranID(ctx, nil, p.TranID)
}

// amountMatches requires the validated record to settle this exact order:
// same tran_id, same amount and currency, and no contradicting reported amount.
// A reported amount in another currency is a conversion and is not compared.
func amountMatches(o *model.Order, v *adapter.Validation, p model.CallbackPayload) bool {
	if v.TranID != "" && v.TranID != o.TranID {
		return false
	}
	if !o.AmountMatches(v.Amount, v.Currency) {
		return false
	}
	reported, cur, ok := p.ReportedAmount()
	if ok && (cur == "" || strings.EqualFold(cur, o.Currency)) && !reported.Equal(o.Amount) {
		return false
	}
	return true
}

// fail moves a pending order to failed. cause is returned to the caller as-is.
func (u *reconcileUC) fail(ctx context.Context, entry model.CallbackEntry, o *model.Order, cause error) (model.ReconcileOutcome, error) {
	moved, err := u.orders.UpdateStatusIfPending(ctx, nil, o.ID, model.OrderStatusFailed, nil)
	if err != nil {
		metrics.IncReconcile(string(entry), "error")
		return model.ReconcileOutcome{OrderID: o.ID, Status: model.OrderStatusPending}, err
	}
	if !moved {
		return u.current(ctx, entry, o.ID)
	}
	metrics.IncReconcile(string(entry), "failed")
	metrics.IncPayment("failed")
	u.publish(ctx, adapter.EventOrderFailed, o)
	return model.ReconcileOutcome{OrderID: o.ID, Status: model.OrderStatusFailed}, cause
}

// current reports an order whose status another caller already settled.
func (u *reconcileUC) current(ctx context.Context, entry model.CallbackEntry, orderID string) (model.ReconcileOutcome, error) {
	o, err := u.orders.FindByID(ctx, nil, orderID)
	if err != nil {
		return model.ReconcileOutcome{OrderID: orderID, Status: model.OrderStatusPending}, err
	}
	out := model.ReconcileOutcome{OrderID: o.ID, Status: o.Status}
	switch o.Status {
	case model.OrderStatusPaid:
		out.AlreadyPaid = true
		metrics.IncReconcile(string(entry), "already_paid")
		return out, nil
	case model.OrderStatusFailed:
		return out, domain.ErrPaymentNotValidated
	}
	return out, fmt.Errorf("%w: order %s still pending", domain.ErrOperationFailed, o.ID)
}

// settle marks the order paid and records payment and entitlement in one
// transaction. It returns false when the order was no longer pending.
func (u *reconcileUC) settle(ctx context.Context, o *model.Order, v *adapter.Validation, paidAt time.Time) (bool, error) {
	raw, err := u.sealer.Encrypt(string(v.Raw))
	if err != nil {
		return false, fmt.Errorf("seal gateway response: %w", err)
	}
	plan, _ := u.prices.Lookup(o.PlanID)

	settled := false
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := u.orders.UpdateStatusIfPending(ctx, tx, o.ID, model.OrderStatusPaid, &paidAt)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		pay := &model.Payment{
			ID:            uuid.NewString(),
			OrderID:       o.ID,
			TranID:        o.TranID,
			ValID:         v.ValID,
			Amount:        v.Amount,
			Currency:      strings.ToUpper(v.Currency),
			CardType:      v.CardType,
			BankTranID:    v.BankTranID,
			GatewayStatus: strings.ToUpper(v.Status),
			RawResponse:   raw,
			CreatedAt:     paidAt,
			UpdatedAt:     paidAt,
		}
		if err := u.payments.UpsertByTranID(ctx, tx, pay); err != nil {
			return err
		}
		ent := &model.CourseEntitlement{
			UserID:      o.UserID,
			CourseID:    o.CourseID,
			PlanID:      o.PlanID,
			OrderID:     o.ID,
			PurchasedAt: paidAt,
			ExpiresAt:   plan.ExpiryFrom(paidAt),
		}
		if err := u.ents.GrantCourseEntitlement(ctx, tx, ent); err != nil {
			return err
		}
		settled = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return settled, nil
}

func (u *reconcileUC) afterPaid(ctx context.Context, o *model.Order, v *adapter.Validation) {
	u.publish(ctx, adapter.EventOrderPaid, o)
	if u.post.Archive != nil && len(v.Raw) > 0 {
		key := fmt.Sprintf("%s/%s.json", o.PaidAt.UTC().Format("2006/01/02"), o.TranID)
		body := v.Raw
		u.run(ctx, "archive", func(ctx context.Context) error {
			return u.post.Archive.Archive(ctx, key, body)
		})
	}
	if u.post.Receipts != nil && u.post.Users != nil {
		order := *o
		u.run(ctx, "receipt", func(ctx context.Context) error {
			return u.sendReceipt(ctx, &order)
		})
	}
}

func (u *reconcileUC) sendReceipt(ctx context.Context, o *model.Order) error {
	prof, err := u.post.Users.FindProfile(ctx, nil, o.UserID)
	if err != nil {
		return err
	}
	if prof.Email == "" {
		return nil
	}
	title := o.CourseID
	if u.post.Catalog != nil {
		if c, err := u.post.Catalog.FindCourse(ctx, nil, o.CourseID); err == nil {
			title = c.Title
		}
	}
	return u.post.Receipts.SendReceipt(ctx, adapter.Receipt{
		To:          prof.Email,
		Name:        prof.FullName,
		OrderID:     o.ID,
		TranID:      o.TranID,
		CourseTitle: title,
		Amount:      o.Amount,
		Currency:    o.Currency,
		PaidAt:      *o.PaidAt,
	})
}

func (u *reconcileUC) publish(ctx context.Context, typ string, o *model.Order) {
	if u.post.Events == nil {
		return
	}
	ev := adapter.Event{
		Type:       typ,
		OrderID:    o.ID,
		UserID:     o.UserID,
		CourseID:   o.CourseID,
		PlanID:     o.PlanID,
		Amount:     o.Amount,
		Currency:   o.Currency,
		OccurredAt: u.now().UTC(),
	}
	u.run(ctx, "event", func(ctx context.Context) error {
		return u.post.Events.Publish(ctx, ev)
	})
}

// run executes a side effect on the pool, or inline when no pool is wired.
// Failures are logged and never affect the reconciliation outcome.
func (u *reconcileUC) run(ctx context.Context, name string, fn func(ctx context.Context) error) {
	l := logging.With(ctx, u.log)
	task := func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			metrics.IncSideEffect(name, "error")
			l.Warn().Err(err).Str("side_effect", name).Msg("post-payment side effect failed")
			return err
		}
		metrics.IncSideEffect(name, "ok")
		return nil
	}
	if u.post.Async == nil {
		_ = task(ctx)
		return
	}
	if err := u.post.Async.Submit(task); err != nil {
		metrics.IncSideEffect(name, "dropped")
		l.Warn().Err(err).Str("side_effect", name).Msg("post-payment side effect dropped")
	}
}
