package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"learnhub-billing/internal/domain"
	"learnhub-billing/internal/domain/model"
	"learnhub-billing/internal/domain/ports/repository"
	"learnhub-billing/internal/infra/metrics"
	"learnhub-billing/internal/infra/redis"
	"learnhub-billing/internal/usecase"
)

const sweepLockKey = "lock:payment-sweeper"

// Submitter hands work to the worker pool.
type Submitter interface {
	Submit(task func(ctx context.Context) error) error
}

// UsagePurger drops usage counters of past days.
type UsagePurger interface {
	PurgeBefore(ctx context.Context, dateKey string) (int64, error)
}

type ReconcilerConfig struct {
	Interval    time.Duration // how often to scan
	StaleAfter  time.Duration // how old a pending order must be to query the gateway
	ExpireAfter time.Duration // pending orders older than this with no gateway record are failed
	BatchSize   int

	// Usage counters older than UsageRetentionDays civil days in Location are purged
	// once per sweep; zero disables it.
	UsageRetentionDays int
	Location           *time.Location
}

// PaymentReconciler periodically picks up pending orders whose callbacks never
// arrived and settles them from the gateway's transaction record.
// Only one instance sweeps at a time when a Locker is provided.
type PaymentReconciler struct {
	uc     usecase.ReconcileUseCase
	orders repository.OrderRepository
	locker redis.Locker
	pool   Submitter
	usage  UsagePurger
	cfg    ReconcilerConfig
	now    func() time.Time
	log    *zerolog.Logger
}

func NewPaymentReconciler(
	uc usecase.ReconcileUseCase,
	orders repository.OrderRepository,
	locker redis.Locker,
	pool Submitter,
	usage UsagePurger,
	cfg ReconcilerConfig,
	logger *zerolog.Logger,
) *PaymentReconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	if cfg.ExpireAfter < cfg.StaleAfter {
		cfg.ExpireAfter = 24 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{
		uc: uc, orders: orders, locker: locker, pool: pool, usage: usage,
		cfg: cfg, now: time.Now, log: &l,
	}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.cfg.Interval).Msg("Starting payment reconciler")
	t := time.NewTicker(w.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. It returns the number of orders handed off.
func (w *PaymentReconciler) Sweep(ctx context.Context) int {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, sweepLockKey, w.cfg.Interval)
		if err != nil {
			if errors.Is(err, domain.ErrLockNotAcquired) {
				metrics.IncSweepRun("skipped")
				w.log.Debug().Msg("another instance holds the sweep lock")
			} else {
				metrics.IncSweepRun("error")
				w.log.Error().Err(err).Msg("sweep lock failed")
			}
			return 0
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx), sweepLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("sweep unlock failed")
			}
		}()
	}

	now := w.now()
	pending, err := w.orders.ListPendingOlderThan(ctx, nil, now.Add(-w.cfg.StaleAfter), w.cfg.BatchSize)
	if err != nil {
		metrics.IncSweepRun("error")
		w.log.Error().Err(err).Msg("list pending orders failed")
		return 0
	}
	abandonBefore := now.Add(-w.cfg.ExpireAfter)

	handed := 0
	for _, o := range pending {
		order := o
		task := func(ctx context.Context) error { return w.reconcile(ctx, order, abandonBefore) }
		if w.pool == nil {
			_ = task(ctx)
			handed++
			continue
		}
		if err := w.pool.Submit(task); err != nil {
			w.log.Warn().Err(err).Str("order_id", order.ID).Msg("sweep task dropped; next run retries")
			continue
		}
		handed++
	}

	w.purgeUsage(ctx, now)
	metrics.IncSweepRun("ok")
	if handed > 0 {
		w.log.Info().Int("orders", handed).Msg("stale pending orders queued")
	}
	return handed
}

func (w *PaymentReconciler) reconcile(ctx context.Context, o *model.Order, abandonBefore time.Time) error {
	out, err := w.uc.ReconcilePending(ctx, o, abandonBefore)
	if err != nil {
		w.log.Warn().Err(err).Str("order_id", o.ID).Str("tran_id", o.TranID).Msg("sweep reconcile failed")
		return err
	}
	if out.Status != model.OrderStatusPending {
		w.log.Info().Str("order_id", o.ID).Str("status", string(out.Status)).Msg("swept order settled")
	}
	return nil
}

func (w *PaymentReconciler) purgeUsage(ctx context.Context, now time.Time) {
	if w.usage == nil || w.cfg.UsageRetentionDays <= 0 {
		return
	}
	cutoff := model.DateKey(now.AddDate(0, 0, -w.cfg.UsageRetentionDays), w.cfg.Location)
	n, err := w.usage.PurgeBefore(ctx, cutoff)
	if err != nil {
		w.log.Warn().Err(err).Msg("usage purge failed")
		return
	}
	if n > 0 {
		w.log.Info().Int64("rows", n).Str("before", cutoff).Msg("old usage counters purged")
	}
}
