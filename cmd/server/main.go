package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tradegate/internal/checkout"
	checkouthandler "tradegate/internal/checkout/handler"
	"tradegate/internal/checkout/ledger"
	checkoutmetrics "tradegate/internal/checkout/metrics"
	checkoutstore "tradegate/internal/checkout/store"
	"tradegate/internal/fees"
	feehandler "tradegate/internal/fees/handler"
	feemetrics "tradegate/internal/fees/metrics"
	httpapi "tradegate/internal/http"
	jwttoken "tradegate/internal/jwt_token"
	"tradegate/internal/platform/config"
	"tradegate/internal/platform/httpserver"
	"tradegate/internal/platform/logger"
	"tradegate/internal/platform/metrics"
	"tradegate/internal/platform/postgres"
	"tradegate/internal/platform/redis"
	"tradegate/internal/verification"
	verificationhandler "tradegate/internal/verification/handler"
	verificationmetrics "tradegate/internal/verification/metrics"
	verificationstore "tradegate/internal/verification/store"
	"tradegate/pkg/platform/audit"
	"tradegate/pkg/platform/audit/outbox"
	"tradegate/pkg/platform/audit/publisher"
	auditmemory "tradegate/pkg/platform/audit/store/memory"
	auditpg "tradegate/pkg/platform/audit/store/postgres"
	"tradegate/pkg/platform/kafka"
)

const startupTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("tradegate stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	schedule := fees.DefaultSchedule()
	if cfg.Fees.ScheduleFile != "" {
		loaded, err := fees.LoadSchedule(cfg.Fees.ScheduleFile)
		if err != nil {
			return err
		}
		schedule = loaded
	}
	engine, err := fees.NewEngine(schedule)
	if err != nil {
		return err
	}

	var healthChecks []httpapi.HealthCheck

	// Stores: Redis when configured, process memory otherwise.
	var (
		sessions verification.Store  = verificationstore.NewInMemoryStore()
		authLog  checkout.Ledger     = ledger.NewInMemoryLedger()
		orders   checkout.OrderStore = checkoutstore.NewInMemoryStore()
		auditLog audit.Store         = auditmemory.NewInMemoryStore()
	)
	rc, err := redis.New(startupCtx, cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		defer rc.Close()
		sessions = verificationstore.NewRedis(rc.Client, cfg.Redis.SessionTTL)
		authLog = ledger.NewRedis(rc.Client, cfg.Redis.AuthorizationTTL)
		healthChecks = append(healthChecks, httpapi.HealthCheck{Name: "redis", Check: rc.Health})
		log.Info("using redis for sessions and authorization ledger")
	}

	pool, err := postgres.New(startupCtx, cfg.Postgres)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
		if err := postgres.ApplySchema(startupCtx, pool, auditpg.Schema); err != nil {
			return err
		}
		auditLog = auditpg.New(pool)
		healthChecks = append(healthChecks, httpapi.HealthCheck{Name: "postgres", Check: pool.Ping})
		log.Info("using postgres audit store")
	}
	auditPublisher := publisher.NewPublisher(auditLog,
		publisher.WithLogger(log),
		publisher.WithAsyncBuffer(1024),
	)
	defer auditPublisher.Close()

	verificationOpts := []verification.Option{
		verification.WithLogger(log),
		verification.WithAuditPublisher(auditPublisher),
		verification.WithMetrics(verificationmetrics.New()),
	}
	feeMetrics := feemetrics.New()
	checkoutOpts := []checkout.Option{
		checkout.WithLogger(log),
		checkout.WithAuditPublisher(auditPublisher),
		checkout.WithMetrics(checkoutmetrics.New()),
		checkout.WithFeeMetrics(feeMetrics),
	}

	var relay *outbox.Relay
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers,
			kafka.WithLogger(log),
			kafka.WithClientID(cfg.Kafka.ClientID),
		)
		if err != nil {
			return err
		}
		defer producer.Close()
		if err := producer.EnsureTopics(startupCtx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor,
			cfg.Kafka.SessionCompleteTopic, cfg.Kafka.OrderAuthorizedTopic, cfg.Kafka.AuditTopic); err != nil {
			return err
		}
		if pool != nil {
			relay = outbox.NewRelay(pool, producer, cfg.Kafka.AuditTopic,
				outbox.WithLogger(log),
				outbox.WithInterval(cfg.Kafka.OutboxPollInterval),
			)
		}

		completed := kafka.NewTopic(producer, cfg.Kafka.SessionCompleteTopic,
			func(e verification.SessionCompleted) string { return e.UserID.String() })
		authorized := kafka.NewTopic(producer, cfg.Kafka.OrderAuthorizedTopic,
			func(e checkout.OrderAuthorized) string { return e.OrderID.String() })
		verificationOpts = append(verificationOpts, verification.WithEventPublisher(completed))
		checkoutOpts = append(checkoutOpts, checkout.WithEventPublisher(authorized))
		healthChecks = append(healthChecks, httpapi.HealthCheck{Name: "kafka", Check: producer.Health})
		log.Info("publishing domain events to kafka", "brokers", cfg.Kafka.Brokers)
	}

	verifier := verification.NewService(sessions, verificationOpts...)
	orderService := checkout.NewService(orders, engine, verifier, authLog, checkoutOpts...)

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer)
	router := httpapi.NewRouter(httpapi.Dependencies{
		Logger:       log,
		Validator:    jwttoken.NewJWTServiceAdapter(jwtService),
		HTTPMetrics:  metrics.NewHTTP(),
		HealthChecks: healthChecks,
		Fees:         feehandler.New(engine, log, feeMetrics),
		Verification: verificationhandler.New(verifier, log),
		Checkout:     checkouthandler.New(orderService, log),

		PaymentCallbackSecret: cfg.Server.PaymentCallbackSecret,
	})
	if cfg.Server.PaymentCallbackSecret == "" {
		log.Warn("PAYMENT_CALLBACK_SECRET not set, payment confirmations will be rejected")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	srv := httpserver.New(gctx, cfg.Server.Addr, router, log)
	g.Go(func() error {
		log.Info("starting tradegate", "addr", cfg.Server.Addr, "environment", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, stopping server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if relay != nil {
		g.Go(func() error {
			log.Info("relaying audit outbox", "topic", cfg.Kafka.AuditTopic)
			return relay.Run(gctx)
		})
	}
	return g.Wait()
}
