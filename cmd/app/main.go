// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"learnhub-billing/internal/config"
	"learnhub-billing/internal/domain/model"
	"learnhub-billing/internal/domain/ports/adapter"
	"learnhub-billing/internal/domain/ports/repository"
	aiAdapters "learnhub-billing/internal/infra/adapters/ai"
	"learnhub-billing/internal/infra/adapters/archive"
	"learnhub-billing/internal/infra/adapters/events"
	"learnhub-billing/internal/infra/adapters/mail"
	payAdapters "learnhub-billing/internal/infra/adapters/payment"
	"learnhub-billing/internal/infra/api"
	"learnhub-billing/internal/infra/api/apiv1"
	pg "learnhub-billing/internal/infra/db/postgres"
	"learnhub-billing/internal/infra/logging"
	"learnhub-billing/internal/infra/metrics"
	red "learnhub-billing/internal/infra/redis"
	"learnhub-billing/internal/infra/sched"
	"learnhub-billing/internal/infra/security"
	"learnhub-billing/internal/infra/worker"
	"learnhub-billing/internal/usecase"
)

// set via -ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop gateway and sealer allowed)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("service stopped")
	}
	logger.Info().Msg("bye")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	loc, err := time.LoadLocation(cfg.Quota.Timezone)
	if err != nil {
		return fmt.Errorf("quota timezone: %w", err)
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	health := map[string]api.HealthFunc{
		"postgres": func(ctx context.Context) error { return pool.Ping(ctx) },
	}

	// ---- Redis (optional) ----
	var redisClient *red.Client
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
		health["redis"] = redisClient.Ping
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	orderRepo := pg.NewOrderRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	entRepo := pg.NewEntitlementRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	usageRepo := pg.NewUsageRepo(pool)

	var catalog repository.CatalogRepository = pg.NewCatalogRepo(pool)
	if redisClient != nil {
		catalog = pg.NewCatalogRepoCacheDecorator(catalog, redisClient, cfg.Redis.TTL, logger)
	}

	var counter repository.UsageCounter = usageRepo
	if cfg.Quota.Backend == config.QuotaBackendRedis {
		counter = red.NewQuotaCounter(redisClient)
		logger.Info().Msg("quota counters in redis")
	}

	// ---- Prices ----
	plans := make([]*model.Plan, 0, len(cfg.Plans))
	for _, p := range cfg.Plans {
		plan, err := model.NewPlan(p.ID, p.Price, p.Currency, p.DurationDays)
		if err != nil {
			return fmt.Errorf("plan %q: %w", p.ID, err)
		}
		plans = append(plans, plan)
	}
	prices := model.NewPriceTable(plans...)

	// ---- Sealer ----
	var sealer usecase.Sealer
	if cfg.Security.EncryptionKey == "" {
		if !cfg.Runtime.Dev {
			return errors.New("security.encryption_key is required outside developer mode")
		}
		logger.Warn().Msg("security.encryption_key not set; gateway payloads stored unsealed (dev only)")
		sealer = security.PlainSealer{}
	} else {
		s, err := security.NewAESSealer(cfg.Security.EncryptionKey)
		if err != nil {
			return fmt.Errorf("encryption: %w", err)
		}
		sealer = s
	}

	// ---- Payment gateway ----
	gateway, err := newGateway(cfg)
	if err != nil {
		return err
	}
	logger.Info().Str("gateway", gateway.Name()).Bool("sandbox", cfg.Payment.SSLCommerz.Sandbox).Msg("payment gateway ready")

	// ---- AI ----
	ai, err := newAI(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info().Str("provider", ai.Name()).Str("model", cfg.AI.DefaultModel).Msg("AI adapter ready")

	// ---- Side effects ----
	var publisher adapter.EventPublisher = events.NoopPublisher{}
	if len(cfg.Events.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic, logger)
		if err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		publisher = kp
	}
	defer publisher.Close()

	var receipts adapter.ReceiptSender = mail.NoopReceiptSender{}
	if cfg.Mail.Host != "" {
		rs, err := mail.NewSMTPReceiptSender(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From)
		if err != nil {
			return fmt.Errorf("smtp: %w", err)
		}
		receipts = rs
	}

	var archiver adapter.AuditArchiver = archive.NoopArchiver{}
	if cfg.Audit.Bucket != "" {
		a, err := archive.NewS3Archiver(ctx, archive.Options{
			Bucket:    cfg.Audit.Bucket,
			Region:    cfg.Audit.Region,
			Endpoint:  cfg.Audit.Endpoint,
			AccessKey: cfg.Audit.AccessKey,
			SecretKey: cfg.Audit.SecretKey,
			Prefix:    cfg.Audit.Prefix,
		})
		if err != nil {
			return fmt.Errorf("s3 archive: %w", err)
		}
		archiver = a
	}

	// ---- Worker pool ----
	wp := worker.NewPool(cfg.Worker.Size, logger)
	wp.Start(ctx)
	defer wp.Stop()

	// ---- Use cases ----
	base := strings.TrimRight(cfg.Payment.CallbackBaseURL, "/") + "/api/v1/payment"
	orderUC := usecase.NewOrderUseCase(orderRepo, catalog, userRepo, gateway, prices, usecase.OrderConfig{
		Currency:         cfg.Payment.Currency,
		PlaceholderPhone: cfg.Payment.PlaceholderPhone,
		PlaceholderEmail: cfg.Payment.PlaceholderEmail,
		GatewayTimeout:   cfg.Payment.Timeout,
		Callbacks: usecase.CallbackURLs{
			Success: base + "/success",
			Fail:    base + "/fail",
			Cancel:  base + "/cancel",
			IPN:     base + "/ipn",
		},
	}, logger)
	reconcileUC := usecase.NewReconcileUseCase(orderRepo, paymentRepo, entRepo, tm, gateway, prices, sealer, usecase.PostPayment{
		Events:   publisher,
		Receipts: receipts,
		Archive:  archiver,
		Users:    userRepo,
		Catalog:  catalog,
		Async:    wp,
	}, cfg.Payment.Timeout, logger)
	accessUC := usecase.NewAccessUseCase(catalog, entRepo, logger)
	quotaUC := usecase.NewQuotaUseCase(counter, entRepo, cfg.Quota.DailyLimit, loc, logger)
	entUC := usecase.NewEntitlementUseCase(entRepo)
	assistantUC := usecase.NewAssistantUseCase(accessUC, quotaUC, ai, aiAdapters.NewTiktokenCounter(logger), usecase.AssistantConfig{
		Model:           cfg.AI.DefaultModel,
		MaxPromptTokens: cfg.AI.MaxPromptTokens,
	}, logger)

	// ---- Stale order sweeper ----
	var locker red.Locker
	if redisClient != nil {
		locker = red.NewLocker(redisClient)
	}
	var purger sched.UsagePurger = usageRepo
	if cfg.Quota.Backend == config.QuotaBackendRedis {
		purger = nil // redis counters expire on their own
	}
	sweeper := sched.NewPaymentReconciler(reconcileUC, orderRepo, locker, wp, purger, sched.ReconcilerConfig{
		Interval:           cfg.Payment.SweepInterval,
		StaleAfter:         cfg.Payment.StaleAfter,
		ExpireAfter:        cfg.Payment.ExpireAfter,
		UsageRetentionDays: cfg.Quota.RetentionDays,
		Location:           loc,
	}, logger)
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("payment sweeper stopped")
		}
	}()

	// ---- HTTP ----
	deps := apiv1.Deps{
		Orders:            orderUC,
		Access:            accessUC,
		Quota:             quotaUC,
		Entitlements:      entUC,
		Assistant:         assistantUC,
		Reconcile:         reconcileUC,
		CheckoutPerMinute: cfg.Server.CheckoutPerMinute,
		SiteURL:           cfg.Payment.SiteURL,
	}
	if redisClient != nil {
		deps.Limiter = red.NewRateLimiter(redisClient)
		deps.LimitKey = red.CheckoutKey
	}
	sessions := api.NewJWTSessions(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience)
	router := api.NewRouter(cfg.Server, apiv1.NewServer(deps, logger), sessions, health, logger)
	server := api.NewHTTPServer(cfg.Server, router)

	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Str("version", version).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// ---- Graceful shutdown ----
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newGateway(cfg *config.Config) (adapter.PaymentGateway, error) {
	switch strings.ToLower(cfg.Payment.Provider) {
	case "noop":
		if !cfg.Runtime.Dev {
			return nil, errors.New("payment.provider=noop is only allowed in developer mode")
		}
		return payAdapters.NewNoopPaymentGateway(), nil
	default:
		sc := cfg.Payment.SSLCommerz
		return payAdapters.NewSSLCommerzGateway(sc.StoreID, sc.StorePassword, sc.Sandbox, cfg.Payment.Timeout)
	}
}

// newAI registers every provider with credentials; noop is always available
// so a missing key degrades to canned answers instead of a failed boot.
func newAI(ctx context.Context, cfg *config.Config) (adapter.AIServiceAdapter, error) {
	providers := map[string]adapter.AIServiceAdapter{
		"noop": aiAdapters.NewNoopAIAdapter(),
	}
	if cfg.AI.OpenAIKey != "" {
		a, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.DefaultModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			return nil, fmt.Errorf("openai adapter: %w", err)
		}
		providers["openai"] = a
	}
	if cfg.AI.GeminiKey != "" {
		a, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel, cfg.AI.MaxOutputTokens)
		if err != nil {
			return nil, fmt.Errorf("gemini adapter: %w", err)
		}
		providers["gemini"] = a
	}
	multi := aiAdapters.NewMultiAIAdapter(cfg.AI.Provider, providers, nil)
	return aiAdapters.NewLimitedAI(multi, cfg.AI.ConcurrentLimit), nil
}
