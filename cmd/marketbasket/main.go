package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/market-basket/market-basket/cmd/marketbasket/cli"
	"github.com/market-basket/market-basket/internal/analytics"
	analytichttp "github.com/market-basket/market-basket/internal/analytics/http"
	"github.com/market-basket/market-basket/internal/app"
	"github.com/market-basket/market-basket/internal/basket"
	"github.com/market-basket/market-basket/internal/observability"
	"github.com/market-basket/market-basket/internal/orders"
	"github.com/market-basket/market-basket/internal/platform/cache"
	"github.com/market-basket/market-basket/internal/platform/db"
	"github.com/market-basket/market-basket/internal/products"
	"github.com/market-basket/market-basket/internal/recommend"
	"github.com/market-basket/market-basket/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 {
		if err := runCommand(ctx, cfg, logger, os.Args[1:]); err != nil {
			logger.Error("command failed", slog.String("command", os.Args[1]), slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, stop, cfg, logger); err != nil {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	switch args[0] {
	case "migrate":
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 2})
		if err != nil {
			return err
		}
		defer pool.Close()
		applied, err := db.Migrate(ctx, pool)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", slog.Any("files", applied))
		return nil
	case "jobs":
		jobsCLI := cli.NewJobsCLI(redisOpt(cfg))
		defer func() { _ = jobsCLI.Close() }()
		return jobsCLI.Run(ctx, os.Stdout, args[1:])
	default:
		return fmt.Errorf("unknown command %q (expected migrate or jobs)", args[0])
	}
}

func redisOpt(cfg *app.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if cfg.DBAutoMigrate {
		applied, err := db.Migrate(ctx, pool)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", slog.Any("files", applied))
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unavailable, caching and server-side baskets disabled", slog.Any("error", err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	priceMode, _ := analytics.ParsePriceMode(cfg.AnalyticsPriceMode)
	analyticsCache := analytics.NewCache(redisClient, cfg.AnalyticsCacheTTL)
	analyticsService := analytics.NewService(analytics.NewRepository(pool), analyticsCache, priceMode, logger)
	if err := analyticsCache.ListenForInvalidation(ctx, func(ver int64) {
		logger.Debug("analytics cache version bumped", slog.Int64("version", ver))
	}); err != nil {
		logger.Warn("analytics invalidation listener", slog.Any("error", err))
	}

	productService := products.NewService(products.NewRepository(pool), analyticsService, logger)

	upstream := recommend.NewClient(cfg.RecommendURL, cfg.RecommendTimeout, recommend.WithObserver(metrics))
	recommendService := recommend.NewService(upstream, productService, analyticsService, logger)

	var notifier orders.Notifier
	var jobHandler *jobs.Handler
	var detached *recommend.DetachedNotifier
	if redisClient != nil && cfg.JobsEnabled {
		jobClient := jobs.NewClient(redisOpt(cfg), logger)
		defer func() { _ = jobClient.Close() }()
		inspector := asynq.NewInspector(redisOpt(cfg))
		defer func() { _ = inspector.Close() }()
		notifier = jobClient
		jobHandler = jobs.NewHandler(inspector, logger)
	} else {
		detached = recommend.NewDetachedNotifier(upstream, cfg.RecommendTimeout, logger)
		notifier = detached
		jobHandler = jobs.NewHandler(nil, logger)
	}

	orderService := orders.NewService(orders.NewRepository(pool), logger,
		orders.WithNotifier(notifier),
		orders.WithInvalidator(analyticsService),
		orders.WithObserver(metrics),
	)

	var basketHandler *basket.Handler
	if redisClient != nil {
		basketHandler = basket.NewHandler(logger,
			basket.NewRedisStorage(redisClient, cfg.BasketTTL),
			productService,
			orderService.Submit,
			recommendService,
			basket.HandlerConfig{CookieName: cfg.BasketCookie, TTL: cfg.BasketTTL, Secure: cfg.IsProduction()},
		)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		DB:               pool,
		ProductHandler:   products.NewHandler(logger, productService),
		OrderHandler:     orders.NewHandler(logger, orderService),
		RecommendHandler: recommend.NewHandler(logger, recommendService),
		BasketHandler:    basketHandler,
		AnalyticsHandler: analytichttp.NewHandler(logger, analyticsService),
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("price_mode", string(priceMode)))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	if detached != nil {
		detached.Wait()
	}
	return nil
}
