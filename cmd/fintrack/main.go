package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/analytics"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat).WithComponent(log.ComponentApp)

	result := cli.OpenBackend(context.Background(), logger, cfg, false)

	resolver := analytics.NewPeriodResolver()

	// Summary and chart views are memoised only when a TTL is configured.
	cacheManager := cache.NewManager()
	var viewCache cache.Cache[any]
	var viewSizer apphttp.Sizer
	if cfg.AnalyticsCacheTTL > 0 {
		lru := cache.NewLRUCache[any](cfg.AnalyticsCacheSize, cfg.AnalyticsCacheTTL)
		cacheManager.Register(lru)
		cacheManager.StartCleanup(cfg.AnalyticsCacheTTL)
		viewCache, viewSizer = lru, lru
	}

	evalOpts := []services.EvaluatorOption{
		services.WithDedupWindow(cfg.AlertDedupWindow),
		services.WithSerializedEvaluations(cfg.SerializeEvaluations),
	}
	if result.AMQP != nil {
		evalOpts = append(evalOpts, services.WithAlertPublisher(result.AMQP))
	}
	evaluator := services.NewBudgetEvaluator(result.Store, evalOpts...)

	reports := services.NewReportService(result.Store, resolver, viewCache)
	deps := apphttp.Dependencies{
		Users:        services.NewUserService(result.Store, auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)),
		Categories:   services.NewCategoryService(result.Store),
		Budgets:      services.NewBudgetService(result.Store, evaluator, resolver),
		Transactions: services.NewTransactionService(result.Store, evaluator, reports),
		Reports:      reports,
		Store:        result.Store,
		ViewCache:    viewSizer,
		Logger:       logger,
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps, apphttp.Options{
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"alert_events", result.AMQP != nil,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
