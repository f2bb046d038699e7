package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cargolink/api/internal/email"
	"github.com/cargolink/api/internal/handlers"
	"github.com/cargolink/api/internal/payments"
	"github.com/cargolink/api/internal/platform/auth"
	"github.com/cargolink/api/internal/platform/config"
	"github.com/cargolink/api/internal/platform/metrics"
	"github.com/cargolink/api/internal/platform/observability"
	platformstorage "github.com/cargolink/api/internal/platform/storage"
	"github.com/cargolink/api/internal/repositories/postgres"
	"github.com/cargolink/api/internal/repositories/redisstore"
	"github.com/cargolink/api/internal/services"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN())
	if err != nil {
		logger.Fatal("failed to initialise postgres pool", zap.Error(err))
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close error", zap.Error(err))
		}
	}()

	m := metrics.New()

	rateRepo := postgres.NewRateRuleRepository(pool)
	exchangeRepo := postgres.NewExchangeRateRepository(pool)
	warehouseRepo := postgres.NewWarehouseRepository(pool)
	shipmentRepo := postgres.NewShipmentRepository(pool)
	remoteDraftRepo := postgres.NewDraftRepository(pool)
	pgHealth := postgres.NewHealthRepository(pool)

	localDraftStore, err := redisstore.NewDraftStore(redisClient)
	if err != nil {
		logger.Fatal("failed to initialise draft store", zap.Error(err))
	}

	pricingEngine, err := services.NewPricingEngine(services.PricingEngineDeps{
		Rates:                  rateRepo,
		VolumetricDivisor:      cfg.Pricing.VolumetricDivisor,
		AddOnUnitPrice:         cfg.Pricing.AddOnUnitPrice,
		CourierChargeBasisPts:  cfg.Pricing.CourierChargeBasisPts,
		HandlingChargeBasisPts: cfg.Pricing.HandlingChargeBasisPts,
		Logger:                 observability.EventLogger(logger.Named("pricing")),
	})
	if err != nil {
		logger.Fatal("failed to initialise pricing engine", zap.Error(err))
	}

	currencyService, err := services.NewCurrencyService(services.CurrencyServiceDeps{
		Rates:  exchangeRepo,
		Logger: observability.EventLogger(logger.Named("currency")),
	})
	if err != nil {
		logger.Fatal("failed to initialise currency service", zap.Error(err))
	}

	draftService, err := services.NewDraftService(services.DraftServiceDeps{
		Local:       localDraftStore,
		Remote:      remoteDraftRepo,
		Clock:       time.Now,
		Logger:      observability.EventLogger(logger.Named("drafts")),
		SyncFailure: m.DraftSyncFailures.Inc,
	})
	if err != nil {
		logger.Fatal("failed to initialise draft service", zap.Error(err))
	}

	stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey: cfg.Gateway.StripeAPIKey,
		Logger: observability.EventLogger(logger.Named("payments")),
		Clock:  time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise stripe provider", zap.Error(err))
	}
	paymentManager, err := payments.NewManager(map[string]payments.Provider{
		"stripe": stripeProvider,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment manager", zap.Error(err))
	}

	var emailSender email.Sender
	if strings.TrimSpace(cfg.Email.APIKey) != "" {
		emailSender, err = email.NewHTTPSender(email.HTTPSenderConfig{
			BaseURL:  cfg.Email.APIBaseURL,
			APIKey:   cfg.Email.APIKey,
			FromName: cfg.Email.FromName,
			FromAddr: cfg.Email.FromAddr,
		})
		if err != nil {
			logger.Fatal("failed to initialise email sender", zap.Error(err))
		}
	} else {
		logger.Warn("email api key not configured; confirmation emails disabled")
	}

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Shipments:         shipmentRepo,
		Drafts:            remoteDraftRepo,
		Pricer:            pricingEngine,
		Gateway:           paymentManager,
		Email:             emailSender,
		Clock:             time.Now,
		Logger:            observability.EventLogger(logger.Named("checkout")),
		OnlineSurchargeBP: cfg.Pricing.OnlineSurchargeBP,
		PaymentInitiated: func(mode string) {
			m.PaymentsInitiated.WithLabelValues(mode).Inc()
		},
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	quoteHandlers := handlers.NewQuoteHandlers(handlers.QuoteHandlersDeps{
		Pricer: pricingEngine,
		Quoted: func(courier string) {
			m.QuotesTotal.WithLabelValues(courier).Inc()
		},
		Unserviceable: func(origin, dest string) {
			m.UnserviceableTotal.WithLabelValues(origin, dest).Inc()
		},
	})
	publicHandlers := handlers.NewPublicHandlers(warehouseRepo, currencyService)
	draftHandlers := handlers.NewDraftHandlers(draftService)
	checkoutHandlers := handlers.NewCheckoutHandlers(checkoutService)
	webhookHandlers := handlers.NewWebhookHandlers(handlers.WebhookHandlersDeps{
		Checkout: checkoutService,
		Logger:   observability.EventLogger(logger.Named("webhooks")),
		Rejected: func(reason string) {
			m.WebhookRejections.WithLabelValues(reason).Inc()
		},
	})

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithReadinessCheck("postgres", pgHealth.Ping),
		handlers.WithReadinessCheck("redis", localDraftStore.Ping),
	)

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
		m.RequestDurationMiddleware(),
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) != "" {
		verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		if err != nil {
			logger.Fatal("failed to initialise token verifier", zap.Error(err))
		}
		middlewares = append(middlewares, verifier.Middleware())
	} else {
		logger.Warn("jwt secret not configured; all requests treated as anonymous")
	}

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithMetricsHandler(m.Handler()),
		handlers.WithPublicRoutes(publicHandlers.Routes),
		handlers.WithQuoteRoutes(quoteHandlers.Routes),
		handlers.WithDraftRoutes(draftHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
	}
	if strings.TrimSpace(cfg.Gateway.WebhookSecret) != "" {
		opts = append(opts, handlers.WithWebhookMiddlewares(
			auth.WebhookSignatureMiddleware(cfg.Gateway.WebhookSecret, func(reason string) {
				m.WebhookRejections.WithLabelValues(reason).Inc()
			}),
		))
	} else {
		logger.Warn("webhook secret not configured; payment webhooks will be rejected")
		opts = append(opts, handlers.WithWebhookMiddlewares(rejectAllWebhooks()))
	}

	if signerKeyFile := strings.TrimSpace(cfg.Storage.SignerKeyFile); signerKeyFile != "" {
		signer, err := platformstorage.NewServiceAccountSignerFromFile(signerKeyFile)
		if err != nil {
			logger.Fatal("failed to parse storage signer key", zap.Error(err))
		}
		signedURLClient, err := platformstorage.NewClient(signer)
		if err != nil {
			logger.Fatal("failed to initialise signed url client", zap.Error(err))
		}
		uploadHandlers := handlers.NewUploadHandlers(handlers.UploadHandlersDeps{
			Client: signedURLClient,
			Bucket: cfg.Storage.UploadsBucket,
			TTL:    cfg.Storage.SignedURLTTL,
			Clock:  time.Now,
		})
		opts = append(opts, handlers.WithUploadRoutes(uploadHandlers.Routes))
	} else {
		logger.Warn("storage signer not configured; upload endpoints disabled")
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("cargolink api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// rejectAllWebhooks stands in for the signature middleware when no secret is
// configured, so unverified deliveries can never reach the handlers.
func rejectAllWebhooks() func(http.Handler) http.Handler {
	return func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "webhook verification is not configured", http.StatusServiceUnavailable)
		})
	}
}
