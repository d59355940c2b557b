package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	billingdedupe "streak/internal/billing/dedupe"
	billinghandler "streak/internal/billing/handler"
	billingmetrics "streak/internal/billing/metrics"
	billingservice "streak/internal/billing/service"
	challengehandler "streak/internal/challenge/handler"
	challengemetrics "streak/internal/challenge/metrics"
	challengeservice "streak/internal/challenge/service"
	identityhandler "streak/internal/identity/handler"
	identitymetrics "streak/internal/identity/metrics"
	identityservice "streak/internal/identity/service"
	offerhandler "streak/internal/offer/handler"
	offerservice "streak/internal/offer/service"
	"streak/internal/platform/config"
	"streak/internal/platform/database"
	"streak/internal/platform/health"
	"streak/internal/platform/kafka/producer"
	"streak/internal/platform/logger"
	"streak/internal/platform/redis"
	"streak/internal/platformauth"
	httptransport "streak/internal/transport/http"
	"streak/pkg/platform/middleware/request"
	outboxmetrics "streak/pkg/platform/outbox/metrics"
	"streak/pkg/platform/outbox/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.Environment)
	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing streak",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"database", cfg.Database.URL != "",
		"redis", cfg.Redis.URL != "",
		"kafka", cfg.Kafka.Enabled(),
	)

	healthHandler := health.New(cfg.Environment, health.WithLogger(log))

	pool, err := database.New(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close() //nolint:errcheck // process exit
	st := newInMemoryStores()
	if pool != nil {
		st = newPostgresStores(pool.DB())
		healthHandler.RegisterCheck("database", pool.Health)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}

	identitySvc := identityservice.New(st.tenants, st.identities, st.tx,
		identityservice.WithLogger(log),
		identityservice.WithMetrics(identitymetrics.New()),
		identityservice.WithOutbox(st.outbox),
	)
	challengeSvc := challengeservice.New(st.challenges, st.enrollments, st.proofs, st.winners, st.tx,
		challengeservice.WithLogger(log),
		challengeservice.WithMetrics(challengemetrics.New()),
		challengeservice.WithOutbox(st.outbox),
		challengeservice.WithDependents(st.offers),
	)
	offerSvc := offerservice.New(st.offers, challengeSvc, offerservice.WithLogger(log))

	billingMetrics := billingmetrics.New()
	billingOpts := []billingservice.Option{
		billingservice.WithLogger(log),
		billingservice.WithMetrics(billingMetrics),
		billingservice.WithOutbox(st.outbox),
		billingservice.WithPlatformFee(cfg.Billing.PlatformFeeBPS),
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck // process exit
		healthHandler.RegisterCheck("redis", redisClient.Health)
		billingOpts = append(billingOpts, billingservice.WithDeduper(billingdedupe.NewRedis(redisClient, cfg.Billing.DedupeTTL)))
	}
	billingSvc := billingservice.New(st.billing, challengeSvc, offerSvc, st.tx, billingOpts...)
	if cfg.Billing.WebhookSecret == "" {
		log.Warn("WEBHOOK_SIGNING_SECRET not set, payment webhooks will be rejected")
	}
	billingHTTP := billinghandler.New(billingSvc, cfg.Billing.WebhookSecret, log, billingMetrics)

	verifierOpts := []platformauth.Option{}
	if cfg.Auth.TokenIssuer != "" {
		verifierOpts = append(verifierOpts, platformauth.WithIssuer(cfg.Auth.TokenIssuer))
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		RequestTimeout: cfg.RequestTimeout,
		Metrics:        request.NewMetrics(),
		Health:         healthHandler,
		Verifier:       platformauth.NewVerifier(cfg.Auth.TokenSecret, verifierOpts...),
		Resolver:       identitySvc,
		Public:         []httptransport.Registrar{httptransport.RegistrarFunc(billingHTTP.RegisterWebhook)},
		Tenant: []httptransport.Registrar{
			identityhandler.New(identitySvc, log),
			challengehandler.New(challengeSvc, log),
			offerhandler.New(offerSvc, log),
			billingHTTP,
		},
	})

	publisher, closePublisher, err := newPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer closePublisher()
	outboxWorker := worker.New(st.outbox, publisher,
		worker.WithTopic(cfg.Kafka.EventsTopic),
		worker.WithMetrics(outboxmetrics.New()),
		worker.WithLogger(log),
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return outboxWorker.Run(gctx)
	})
	if pool != nil {
		g.Go(func() error {
			pool.ReportStats(gctx, cfg.Database.StatsInterval)
			return nil
		})
	}
	if redisClient != nil {
		g.Go(func() error {
			redisClient.ReportPoolStats(gctx, 15*time.Second)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server stopped")
	return nil
}

func newPublisher(cfg config.Server, log *slog.Logger) (worker.Publisher, func(), error) {
	if !cfg.Kafka.Enabled() {
		return producer.NewLogProducer(log), func() {}, nil
	}
	p, err := producer.New(producer.DefaultConfig(strings.Join(cfg.Kafka.Brokers, ",")), log)
	if err != nil {
		return nil, nil, err
	}
	return p, func() { _ = p.Close() }, nil //nolint:errcheck // flush errors are logged by Close
}
