package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/worksheetlab/server/internal"
	"github.com/worksheetlab/server/internal/ai"
	"github.com/worksheetlab/server/internal/ai/anthropic"
	"github.com/worksheetlab/server/internal/ai/mock"
	"github.com/worksheetlab/server/internal/auth"
	"github.com/worksheetlab/server/internal/billing"
	"github.com/worksheetlab/server/internal/cache"
	"github.com/worksheetlab/server/internal/domain"
	"github.com/worksheetlab/server/internal/handler"
	"github.com/worksheetlab/server/internal/metrics"
	"github.com/worksheetlab/server/internal/middleware"
	"github.com/worksheetlab/server/internal/render"
	"github.com/worksheetlab/server/internal/repository"
	"github.com/worksheetlab/server/internal/service"
	"github.com/worksheetlab/server/internal/storage"
	"github.com/worksheetlab/server/internal/worker"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Run migrations over a plain database/sql handle
	migrateDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	if err := internal.RunMigrations(migrateDB); err != nil {
		migrateDB.Close()
		return fmt.Errorf("migration failed: %w", err)
	}
	migrateDB.Close()

	// Pool used by the application
	db, err := repository.Connect(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database pool failed: %w", err)
	}
	defer db.Close()
	logger.Info("Database ready")

	// Redis holds generated-but-unsaved worksheets
	redis, err := cache.NewRedis(cfg.RedisUrl)
	if err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	defer redis.Close()
	logger.Info("Redis ready")

	// Initialize repositories
	accounts := repository.NewAccountRepository(db)
	usage := repository.NewUsageRepository(db)
	worksheets := repository.NewWorksheetRepository(db)
	debitQueue := repository.NewReconcileRepository(db)

	// File storage for rendered PDFs
	var files storage.Store
	switch cfg.StorageProvider {
	case "r2":
		files, err = storage.NewR2(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	default:
		files, err = storage.NewLocal(cfg.LocalStoragePath, cfg.LocalStorageURL, logger)
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// AI provider
	var provider ai.TextProvider
	switch cfg.AIProvider {
	case "anthropic":
		provider, err = anthropic.New(anthropic.Config{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AnthropicModel,
			ProviderConfig: ai.ProviderConfig{
				MaxRetries:     cfg.AIMaxRetries,
				RetryBaseDelay: cfg.AIRetryBaseDelay,
			},
		}, logger)
		if err != nil {
			return fmt.Errorf("anthropic provider failed: %w", err)
		}
	default:
		provider = mock.New()
		logger.Warn("using mock AI provider; set AI_PROVIDER=anthropic for real generations")
	}

	// Plan catalog maps configured Stripe prices onto plan allowances
	catalog := domain.NewPlanCatalog(map[string]domain.Plan{
		cfg.StripeStarterMonthlyPriceID: domain.PlanStarter,
		cfg.StripeStarterYearlyPriceID:  domain.PlanStarter,
		cfg.StripeProMonthlyPriceID:     domain.PlanPro,
		cfg.StripeProYearlyPriceID:      domain.PlanPro,
	})

	// Billing is optional in development
	var billingService billing.Service
	if cfg.StripeSecretKey != "" {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
			StarterMonthlyPriceID: cfg.StripeStarterMonthlyPriceID,
			StarterYearlyPriceID:  cfg.StripeStarterYearlyPriceID,
			ProMonthlyPriceID:     cfg.StripeProMonthlyPriceID,
			ProYearlyPriceID:      cfg.StripeProYearlyPriceID,
		})
	}

	// Initialize services
	recorder := metrics.Recorder{}
	quotaService := service.NewQuotaService(accounts, usage, debitQueue, catalog, recorder, logger)
	worksheetService := service.NewWorksheetService(
		quotaService,
		provider,
		cache.NewPendingStore(redis),
		worksheets,
		files,
		render.NewPDFRenderer(),
		recorder,
		logger,
	)

	// Background bonus-debit reconciler
	if cfg.ReconcilerEnabled {
		reconciler := worker.NewReconciler(debitQueue, accounts, worker.Config{
			PollInterval: cfg.ReconcilerPollInterval,
			BatchSize:    cfg.ReconcilerBatchSize,
		}, logger)
		reconciler.Start(ctx)
		defer reconciler.Stop()
	}

	// Initialize middleware
	isSecure := cfg.Env != "development"
	verifier := auth.NewVerifier([]byte(cfg.JWTSecret))
	logging := middleware.NewRequestLoggingMiddleware(logger)
	security := middleware.NewSecurityHeadersMiddleware(isSecure)

	// Initialize handlers
	worksheetHandler := handler.NewWorksheetHandler(worksheetService, logger)
	usageHandler := handler.NewUsageHandler(quotaService, logger)
	billingHandler := handler.NewBillingHandler(billingService, accounts, logger)
	webhookHandler := handler.NewWebhookHandler(billingService, accounts, logger)

	// Router
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("db unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Stripe calls this directly; signature verification is the auth
	webhookHandler.RegisterRoutes(mux)

	// Authenticated API
	api := http.NewServeMux()
	worksheetHandler.RegisterRoutes(api)
	usageHandler.RegisterRoutes(api)
	billingHandler.RegisterRoutes(api)
	mux.Handle("/api/", verifier.RequireAuth(api))

	root := security.Handler(metrics.Middleware(logging.Handler(mux)))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
