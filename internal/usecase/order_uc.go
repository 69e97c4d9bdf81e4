// File: internal/usecase/order_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"learnhub-billing/internal/domain"
	"learnhub-billing/internal/domain/model"
	"learnhub-billing/internal/domain/ports/adapter"
	"learnhub-billing/internal/domain/ports/repository"
	"learnhub-billing/internal/infra/logging"
	"learnhub-billing/internal/infra/metrics"
)

// Compile-time check
var _ OrderUseCase = (*orderUC)(nil)

type CheckoutRequest struct {
	UserID   string
	CourseID string
	PlanID   string
	Amount   *decimal.Decimal // used only when PlanID is not a known plan
}

type CheckoutResult struct {
	OrderID     string `json:"order_id"`
	TranID      string `json:"tran_id"`
	RedirectURL string `json:"redirect_url"`
}

// CallbackURLs are the reconciler endpoints handed to the gateway.
type CallbackURLs struct {
	Success string
	Fail    string
	Cancel  string
	IPN     string
}

type OrderConfig struct {
	Currency         string
	PlaceholderPhone string
	PlaceholderEmail string
	GatewayTimeout   time.Duration
	Callbacks        CallbackURLs
}

type OrderUseCase interface {
	// CreateOrder records a pending order and opens a gateway session for it.
	CreateOrder(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	// GetOrder returns an order owned by userID.
	GetOrder(ctx context.Context, userID, orderID string) (*model.Order, error)
}

type orderUC struct {
	orders  repository.OrderRepository
	catalog repository.CatalogRepository
	users   repository.UserRepository
	gateway adapter.PaymentGateway
	prices  model.PriceTable
	cfg     OrderConfig
	now     func() time.Time
	log     *zerolog.Logger
}

func NewOrderUseCase(
	orders repository.OrderRepository,
	catalog repository.CatalogRepository,
	users repository.UserRepository,
	gateway adapter.PaymentGateway,
	prices model.PriceTable,
	cfg OrderConfig,
	logger *zerolog.Logger,
) *orderUC {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 15 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "BDT"
	}
	l := logger.With().Str("component", "OrderUC").Logger()
	return &orderUC{
		orders:  orders,
		catalog: catalog,
		users:   users,
		gateway: gateway,
		prices:  prices,
		cfg:     cfg,
		now:     time.Now,
		log:     &l,
	}
}

func (u *orderUC) CreateOrder(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if req.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if strings.TrimSpace(req.CourseID) == "" {
		return nil, fmt.Errorf("%w: course id required", domain.ErrInvalidArgument)
	}
	l := logging.With(ctx, u.log)

	course, err := u.catalog.FindCourse(ctx, nil, req.CourseID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("course %s: %w", req.CourseID, domain.ErrNotFound)
		}
		return nil, err
	}

	amount, currency := u.resolvePrice(req, course)
	order, err := model.NewOrder(req.UserID, course.ID, req.PlanID, amount, currency, u.now())
	if err != nil {
		return nil, err
	}
	if err := u.orders.Create(ctx, nil, order); err != nil {
		return nil, err
	}
	l = logging.WithOrder(l, order.ID)

	sreq := adapter.SessionRequest{
		TranID:      order.TranID,
		Amount:      order.Amount,
		Currency:    order.Currency,
		ProductName: course.Title,
		SuccessURL:  u.cfg.Callbacks.Success,
		FailURL:     u.cfg.Callbacks.Fail,
		CancelURL:   u.cfg.Callbacks.Cancel,
		IPNURL:      u.cfg.Callbacks.IPN,
		Customer:    u.customer(ctx, req.UserID),
		OrderID:     order.ID,
		UserID:      order.UserID,
		CourseID:    order.CourseID,
		PlanID:      order.PlanID,
	}

	gctx, cancel := context.WithTimeout(ctx, u.cfg.GatewayTimeout)
	sess, gwErr := u.gateway.InitSession(gctx, sreq)
	cancel()
	if gwErr != nil {
		if _, err := u.orders.UpdateStatusIfPending(ctx, nil, order.ID, model.OrderStatusFailed, nil); err != nil {
			l.Error().Err(err).Msg("could not mark order failed after gateway refusal")
		}
		metrics.IncPayment("init_failed")
		l.Warn().Err(gwErr).Str("gateway", u.gateway.Name()).Msg("gateway session init failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrGatewayFailure, gwErr)
	}

	if sess.SessionKey != "" {
		if err := u.orders.SetSessionKey(ctx, nil, order.ID, sess.SessionKey); err != nil {
			// the callback path does not need the session key
			l.Warn().Err(err).Msg("could not store gateway session key")
		}
	}
	metrics.IncPayment("initiated")
	l.Info().Str("tran_id", order.TranID).Str("amount", order.Amount.String()).Msg("checkout session opened")

	return &CheckoutResult{OrderID: order.ID, TranID: order.TranID, RedirectURL: sess.RedirectURL}, nil
}

// resolvePrice picks the plan price, then the caller's amount, then the catalog price.
func (u *orderUC) resolvePrice(req CheckoutRequest, course *model.Course) (decimal.Decimal, string) {
	if p, ok := u.prices.Lookup(req.PlanID); ok {
		return p.Price, p.Currency
	}
	if req.Amount != nil {
		return *req.Amount, u.cfg.Currency
	}
	currency := course.Currency
	if currency == "" {
		currency = u.cfg.Currency
	}
	return course.Price, currency
}

func (u *orderUC) customer(ctx context.Context, userID string) adapter.Customer {
	c := adapter.Customer{Name: "Customer", Email: u.cfg.PlaceholderEmail}
	prof, err := u.users.FindProfile(ctx, nil, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logging.With(ctx, u.log).Warn().Err(err).Msg("profile lookup failed; using placeholders")
		}
		c.Phone = u.cfg.PlaceholderPhone
		return c
	}
	if n := strings.TrimSpace(prof.FullName); n != "" {
		c.Name = n
	}
	if e := strings.TrimSpace(prof.Email); e != "" {
		c.Email = e
	}
	c.Phone = model.SanitizePhone(prof.Phone, u.cfg.PlaceholderPhone)
	return c
}

func (u *orderUC) GetOrder(ctx context.Context, userID, orderID string) (*model.Order, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	o, err := u.orders.FindByID(ctx, nil, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return o, nil
}
