// File: internal/usecase/quota_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"learnhub-billing/internal/domain"
	"learnhub-billing/internal/domain/model"
	"learnhub-billing/internal/domain/ports/repository"
	"learnhub-billing/internal/infra/logging"
	"learnhub-billing/internal/infra/metrics"
)

// Compile-time check
var _ QuotaUseCase = (*quotaUC)(nil)

// DefaultDailyLimit applies when no limit is configured.
const DefaultDailyLimit = 3

type QuotaUseCase interface {
	// CheckAndIncrement consumes one unit of the user's daily quota for t.
	// Premium users bypass the counter. A denied call returns ErrQuotaExceeded;
	// a storage failure denies as well and returns the underlying error.
	CheckAndIncrement(ctx context.Context, userID string, t model.UsageType) (model.QuotaResult, error)
	// Status reports today's usage without consuming any.
	Status(ctx context.Context, userID string, t model.UsageType) (model.QuotaResult, error)
}

type quotaUC struct {
	counter repository.UsageCounter
	ents    repository.EntitlementRepository
	limit   int
	loc     *time.Location
	now     func() time.Time
	log     *zerolog.Logger
}

func NewQuotaUseCase(counter repository.UsageCounter, ents repository.EntitlementRepository, dailyLimit int, loc *time.Location, logger *zerolog.Logger) *quotaUC {
	if dailyLimit <= 0 {
		dailyLimit = DefaultDailyLimit
	}
	if loc == nil {
		loc = time.UTC
	}
	l := logger.With().Str("component", "QuotaUC").Logger()
	return &quotaUC{counter: counter, ents: ents, limit: dailyLimit, loc: loc, now: time.Now, log: &l}
}

func (u *quotaUC) CheckAndIncrement(ctx context.Context, userID string, t model.UsageType) (model.QuotaResult, error) {
	denied := model.QuotaResult{Limit: u.limit}
	if userID == "" {
		return denied, domain.ErrUnauthenticated
	}
	if !t.Valid() {
		return denied, fmt.Errorf("%w: usage type %q", domain.ErrInvalidArgument, t)
	}
	l := logging.With(ctx, u.log)
	now := u.now()

	premium, err := u.ents.HasAnyActive(ctx, nil, userID, now)
	if err != nil {
		metrics.IncQuotaDecision(string(t), "error")
		l.Error().Err(err).Msg("premium lookup failed; denying")
		return denied, fmt.Errorf("quota premium check: %w", err)
	}
	if premium {
		metrics.IncQuotaDecision(string(t), "premium")
		return model.QuotaResult{Allowed: true, Premium: true, Limit: u.limit}, nil
	}

	count, ok, err := u.counter.IncrementIfBelow(ctx, userID, model.DateKey(now, u.loc), t, u.limit, model.EndOfDay(now, u.loc))
	if err != nil {
		metrics.IncQuotaDecision(string(t), "error")
		l.Error().Err(err).Str("usage_type", string(t)).Msg("usage counter unavailable; denying")
		return denied, fmt.Errorf("quota increment: %w", err)
	}
	res := model.QuotaResult{Allowed: ok, Count: count, Limit: u.limit}
	if !ok {
		metrics.IncQuotaDecision(string(t), "blocked")
		return res, domain.ErrQuotaExceeded
	}
	metrics.IncQuotaDecision(string(t), "allowed")
	return res, nil
}

func (u *quotaUC) Status(ctx context.Context, userID string, t model.UsageType) (model.QuotaResult, error) {
	res := model.QuotaResult{Limit: u.limit}
	if userID == "" {
		return res, domain.ErrUnauthenticated
	}
	if !t.Valid() {
		return res, fmt.Errorf("%w: usage type %q", domain.ErrInvalidArgument, t)
	}
	now := u.now()
	premium, err := u.ents.HasAnyActive(ctx, nil, userID, now)
	if err != nil {
		return res, err
	}
	if premium {
		return model.QuotaResult{Allowed: true, Premium: true, Limit: u.limit}, nil
	}
	count, err := u.counter.Get(ctx, userID, model.DateKey(now, u.loc), t)
	if err != nil {
		return res, err
	}
	res.Count = count
	res.Allowed = count < u.limit
	return res, nil
}
