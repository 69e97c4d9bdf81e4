// Package apiv1 implements the /api/v1 surface described in api/openapi.yaml.
package apiv1

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/oapi-codegen/runtime"
	"github.com/rs/zerolog"

	"learnhub-billing/internal/domain"
	"learnhub-billing/internal/domain/model"
	"learnhub-billing/internal/infra/logging"
	"learnhub-billing/internal/usecase"
)

const maxBodyBytes = 64 << 10

// RateLimiter is satisfied by redis.RateLimiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Deps struct {
	Orders       usecase.OrderUseCase
	Access       usecase.AccessUseCase
	Quota        usecase.QuotaUseCase
	Entitlements usecase.EntitlementUseCase
	Assistant    usecase.AssistantUseCase
	Reconcile    usecase.ReconcileUseCase

	// Limiter caps checkouts per user; nil disables it.
	Limiter           RateLimiter
	LimitKey          func(userID string) string
	CheckoutPerMinute int

	SiteURL string // browsers land on {SiteURL}/payment/success|failed
}

type Server struct {
	d        Deps
	validate *validator.Validate
	log      *zerolog.Logger
}

func NewServer(d Deps, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "apiv1").Logger()
	if d.LimitKey == nil {
		d.LimitKey = func(userID string) string { return "rate_limit:checkout:" + userID }
	}
	return &Server{d: d, validate: validator.New(), log: &l}
}

// RegisterAPIV1 mounts every /api/v1 route. authn guards the user-facing
// routes; gateway callbacks are public and re-validated server-side.
func RegisterAPIV1(r chi.Router, s *Server, authn func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Post("/checkout", s.Checkout)
			r.Get("/orders/{id}", s.GetOrder)
			r.Post("/access/check", s.CheckAccess)
			r.Post("/quota/consume", s.ConsumeQuota)
			r.Get("/me/usage", s.GetUsage)
			r.Get("/me/entitlements", s.GetEntitlements)
			r.Post("/assistant/ask", s.Ask)
		})
		r.Route("/payment", func(r chi.Router) {
			r.Post("/success", s.browserCallback(model.CallbackSuccess))
			r.Post("/fail", s.browserCallback(model.CallbackFail))
			r.Post("/cancel", s.browserCallback(model.CallbackCancel))
			r.Post("/ipn", s.IPN)
		})
	})
}

func (s *Server) logger(r *http.Request) *zerolog.Logger { return logging.With(r.Context(), s.log) }

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed body: %v", domain.ErrInvalidArgument, err)
	}
	if err := s.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

func (s *Server) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := logging.UserID(r.Context())
	var req CheckoutRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.d.Limiter != nil && s.d.CheckoutPerMinute > 0 {
		ok, err := s.d.Limiter.Allow(r.Context(), s.d.LimitKey(userID), s.d.CheckoutPerMinute, time.Minute)
		switch {
		case err != nil:
			s.logger(r).Warn().Err(err).Msg("checkout rate limiter unavailable; allowing")
		case !ok:
			s.writeError(w, r, errRateLimited)
			return
		}
	}

	res, err := s.d.Orders.CreateOrder(r.Context(), usecase.CheckoutRequest{
		UserID:   userID,
		CourseID: req.CourseID,
		PlanID:   req.PlanID,
		Amount:   req.Amount,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CheckoutResponse{OrderID: res.OrderID, RedirectURL: res.RedirectURL})
}

func (s *Server) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.d.Orders.GetOrder(r.Context(), logging.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Order{
		ID:        o.ID,
		CourseID:  o.CourseID,
		PlanID:    o.PlanID,
		Amount:    o.Amount,
		Currency:  o.Currency,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
		PaidAt:    o.PaidAt,
	})
}

func (s *Server) CheckAccess(w http.ResponseWriter, r *http.Request) {
	var req AccessCheckRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc, err := s.d.Access.Authorize(r.Context(), logging.UserID(r.Context()), req.ChapterID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AccessCheckResponse{
		ChapterID: req.ChapterID,
		Unlocked:  acc.Decision.Unlocked,
		Reason:    string(acc.Decision.Reason),
	})
}

func (s *Server) ConsumeQuota(w http.ResponseWriter, r *http.Request) {
	var req QuotaConsumeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	t := model.UsageType(req.UsageType)
	res, err := s.d.Quota.CheckAndIncrement(r.Context(), logging.UserID(r.Context()), t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quotaResponse(t, res))
}

func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	var typ string
	if err := runtime.BindQueryParameter("form", true, true, "type", r.URL.Query(), &typ); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err))
		return
	}
	t, err := model.ParseUsageType(typ)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: unknown usage type %q", err, typ))
		return
	}
	res, err := s.d.Quota.Status(r.Context(), logging.UserID(r.Context()), t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quotaResponse(t, res))
}

func (s *Server) GetEntitlements(w http.ResponseWriter, r *http.Request) {
	sum, err := s.d.Entitlements.Summary(r.Context(), logging.UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ans, err := s.d.Assistant.Ask(r.Context(), usecase.AskRequest{
		UserID:    logging.UserID(r.Context()),
		ChapterID: req.ChapterID,
		Mode:      usecase.AssistantMode(req.Mode),
		Question:  req.Question,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	t, _ := usecase.AssistantMode(req.Mode).UsageType()
	writeJSON(w, http.StatusOK, AskResponse{Answer: ans.Text, Model: ans.Model, Quota: quotaResponse(t, ans.Quota)})
}

func quotaResponse(t model.UsageType, q model.QuotaResult) QuotaResponse {
	return QuotaResponse{
		UsageType: string(t),
		Allowed:   q.Allowed,
		Premium:   q.Premium,
		Count:     q.Count,
		Limit:     q.Limit,
		Remaining: q.Remaining(),
	}
}
