package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/groomdesk/libs/config"
	"github.com/md-rashed-zaman/groomdesk/libs/db"
	"github.com/md-rashed-zaman/groomdesk/libs/grpcx"
	"github.com/md-rashed-zaman/groomdesk/libs/httpx"
	"github.com/md-rashed-zaman/groomdesk/libs/kafkax"
	otelx "github.com/md-rashed-zaman/groomdesk/libs/otel"
	"github.com/md-rashed-zaman/groomdesk/libs/runtime"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/billing"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/reminders"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/storage/memory"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/storage/postgres"
	"github.com/md-rashed-zaman/groomdesk/services/booking-service/internal/tenant"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelCfg, err := otelx.ConfigFromEnv(service)
	if err != nil {
		panic(err)
	}
	otelShutdown, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	var checks []runtime.ReadyCheck
	store, closeStore, storeChecks, err := openStore(ctx, logger)
	if err != nil {
		logger.Error("store init failed", "err", err)
		panic(err)
	}
	defer closeStore()
	checks = append(checks, storeChecks...)

	rules, err := rulesFromEnv()
	if err != nil {
		panic(err)
	}
	m := metrics.New()

	bookingSvc := booking.NewService(store, rules, logger, booking.WithMetrics(m))
	lifecycleSvc := lifecycle.NewService(store, rules, logger, lifecycle.WithMetrics(m))
	billingSvc := billing.NewService(store, logger, m)

	if brokers := kafkax.SplitBrokers(config.String("KAFKA_BROKERS", "")); len(brokers) > 0 {
		writer := outbox.NewKafkaWriter(brokers)
		defer func() { _ = writer.Close() }()
		publisher := outbox.NewPublisher(store, writer, logger, m, outbox.PublisherConfig{
			PollEvery: config.Duration("OUTBOX_POLL_INTERVAL_MS", 2000, time.Millisecond),
			BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
		})
		go publisher.Run(ctx)
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	} else {
		logger.Warn("KAFKA_BROKERS not set; outbox events stay unpublished")
	}

	dispatcher := reminders.NewDispatcher(store, logger, m, reminders.DispatcherConfig{
		Interval:  config.Duration("REMINDER_DISPATCH_INTERVAL_SECONDS", 30, time.Second),
		BatchSize: config.Int("REMINDER_DISPATCH_BATCH_SIZE", 50),
	})
	go dispatcher.Run(ctx)

	limitMW, rdb := rateLimiter(logger)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	resolver := tenant.NewResolver(config.String("JWT_SECRET", ""), config.Bool("TRUST_GATEWAY_HEADERS", false), logger)
	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("GET /metrics", m.Handler())
	handlers.Routes{
		Appointments: handlers.NewAppointmentHandler(bookingSvc, lifecycleSvc, logger),
		Invoices:     handlers.NewInvoiceHandler(billingSvc, logger),
		Stripe: handlers.NewStripeWebhookHandler(billingSvc,
			config.String("STRIPE_WEBHOOK_SECRET", ""),
			config.Duration("STRIPE_WEBHOOK_TOLERANCE_SECONDS", 300, time.Second),
			logger,
		),
		Tenant: resolver.Middleware(),
		Limit:  limitMW,
	}.Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT_SECONDS", 10, time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpcx.NewServer(logger)
	health := grpcx.RegisterHealth(grpcServer, service, checks)
	go health.Watch(ctx, 10*time.Second)
	go func() {
		if err := grpcx.Serve(ctx, grpcServer, ":"+grpcPort, logger); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	runtime.Serve(ctx, srv, logger, 10*time.Second)
}

// openStore connects the configured storage backend. STORE=memory runs
// without a database and seeds one demo business.
func openStore(ctx context.Context, logger *slog.Logger) (storage.Store, func(), []runtime.ReadyCheck, error) {
	switch kind := strings.ToLower(config.String("STORE", "postgres")); kind {
	case "memory":
		store := memory.New()
		demo := store.SeedDemo(config.String("DEMO_BUSINESS_ID", "0b9d7d3e-5f0a-4c1e-9d52-7a3f1c2e8b01"))
		logger.Warn("using in-memory store; data is lost on exit",
			"business_id", demo.BusinessID,
			"client_id", demo.ClientID,
			"subject_id", demo.SubjectID,
			"service_id", demo.ServiceID,
		)
		return store, func() {}, nil, nil
	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			return nil, nil, nil, err
		}
		pool, err := db.Open(ctx, dbURL, db.PoolConfig{
			MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
		})
		if err != nil {
			return nil, nil, nil, err
		}
		checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
		return postgres.New(pool), pool.Close, checks, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown STORE %q", kind)
	}
}

func rulesFromEnv() (policy.Provider, error) {
	tax, err := config.Decimal("TAX_RATE_PERCENT", policy.DefaultRules().TaxRatePercent)
	if err != nil {
		return nil, err
	}
	return policy.NewStaticProvider(policy.Rules{
		ReminderLead:        config.Duration("REMINDER_LEAD_MINUTES", 1440, time.Minute),
		LateCancelThreshold: config.Duration("LATE_CANCEL_THRESHOLD_HOURS", 24, time.Hour),
		TaxRatePercent:      tax,
		InvoiceDueIn:        config.Duration("INVOICE_DUE_DAYS", 30, 24*time.Hour),
	}), nil
}

// rateLimiter prefers a shared Redis window and falls back to a per-process one.
func rateLimiter(logger *slog.Logger) (httpx.Middleware, *redis.Client) {
	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "booking-rl"), tenant.LimitKey)
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
		return rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true)), rdb
	}
	rl := httpx.NewRateLimiter(limitPerMinute, time.Minute, tenant.LimitKey)
	logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	return rl.Middleware(), nil
}
