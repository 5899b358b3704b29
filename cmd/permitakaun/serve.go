package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/webdevsha/permitakaun/internal/cache"
	"github.com/webdevsha/permitakaun/internal/di"
	"github.com/webdevsha/permitakaun/internal/domain"
	"github.com/webdevsha/permitakaun/internal/gateway"
	"github.com/webdevsha/permitakaun/internal/handler"
	"github.com/webdevsha/permitakaun/internal/notify"
	"github.com/webdevsha/permitakaun/internal/repository"
	"github.com/webdevsha/permitakaun/internal/service"
	"github.com/webdevsha/permitakaun/pkg/config"
	"github.com/webdevsha/permitakaun/pkg/database"
	"github.com/webdevsha/permitakaun/pkg/kafka"
	"github.com/webdevsha/permitakaun/pkg/logger"
	"github.com/webdevsha/permitakaun/pkg/middleware"
	pkgredis "github.com/webdevsha/permitakaun/pkg/redis"
	"github.com/webdevsha/permitakaun/pkg/telemetry"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API.

The database driver, cache backend and notification broker are chosen from
configuration: DATABASE_DRIVER=memory runs without PostgreSQL, CACHE_BACKEND=redis
shares the listing cache and rate limits, KAFKA_ENABLED=true publishes receipts.

Examples:
  permitakaun serve
  DATABASE_DRIVER=memory permitakaun serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if err := logger.Init(&logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
		OutputPath:  "stdout",
	}); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
	}); err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	// Storage
	var (
		db        *database.PostgresDB
		repos     di.Repositories
		auditSink middleware.AuditSink
	)
	switch cfg.Database.Driver {
	case "postgres":
		var err error
		db, err = database.NewPostgres(ctx, database.FromConfig(cfg.Database))
		if err != nil {
			return err
		}
		defer db.Close()
		repos = di.PostgresRepositories(db.Pool())
		auditSink = middleware.NewPostgresAuditSink(db.Pool())
	default:
		log.Warn("using in-memory store, data is lost on restart")
		repos = di.MemoryRepositories(repository.NewMemoryStore())
		auditSink = middleware.NewMemoryAuditSink()
	}

	// Cache and rate limits
	var (
		rdb        *pkgredis.Client
		cacheStore cache.Store
	)
	limits := middleware.DefaultRateLimitConfig()
	if cfg.Cache.Backend == "redis" {
		var err error
		rdb, err = pkgredis.NewClient(ctx, pkgredis.FromConfig(cfg.Redis))
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		cacheStore = cache.NewRedisStore(rdb, "permitakaun:cache:")
		limits.RedisClient = rdb
	} else {
		cacheStore = cache.NewMemoryStore(time.Now)
	}
	limiter, err := middleware.NewRateLimiter(ctx, limits)
	if err != nil {
		return err
	}
	listingCache := cache.NewLocationCache(cacheStore, cfg.Cache.TTL, time.Now, log)

	// Notifications
	var (
		producer *kafka.Producer
		notifier notify.Notifier
	)
	if cfg.Kafka.Enabled {
		var err error
		producer, err = kafka.NewProducer(ctx, kafka.FromConfig(cfg.Kafka))
		if err != nil {
			return err
		}
		defer producer.Close()
		notifier = notify.NewKafkaNotifier(producer, cfg.Kafka.NotificationTopic, cfg.Admin.NotificationEmail)
	} else {
		notifier = notify.NewLogNotifier(log, cfg.Admin.NotificationEmail)
	}

	// Gateways
	billplz := gateway.NewBillplzProvider(gateway.BillplzConfig{
		BaseURL:        cfg.Payment.BillplzBaseURL,
		APIKey:         cfg.Payment.BillplzAPIKey,
		CollectionID:   cfg.Payment.BillplzCollectionID,
		XSignatureKey:  cfg.Payment.BillplzXSignatureKey,
		RequestTimeout: cfg.Payment.GatewayTimeout,
	})
	var (
		live     gateway.Provider
		webhooks handler.WebhookParser
	)
	if cfg.Payment.StripeSecretKey != "" {
		stripe := gateway.NewStripeProvider(gateway.StripeConfig{
			SecretKey:     cfg.Payment.StripeSecretKey,
			WebhookSecret: cfg.Payment.StripeWebhookSecret,
			Currency:      cfg.Payment.Currency,
		})
		live = stripe
		if cfg.Payment.StripeWebhookSecret != "" {
			webhooks = stripe
		}
	} else {
		log.Warn("no live gateway configured, live mode falls back to sandbox")
	}

	audit := middleware.NewAuditLogger(middleware.DefaultAuditConfig(auditSink))
	defer func() { _ = audit.Close() }()

	container := di.NewContainer(&di.ContainerConfig{
		DB:           db,
		Redis:        rdb,
		Producer:     producer,
		Repos:        repos,
		Gateway:      gateway.NewAdapter(billplz, live, cfg.Payment.GatewayTimeout),
		Callbacks:    billplz,
		Webhooks:     webhooks,
		Notifier:     notifier,
		ListingCache: listingCache,
		DefaultSettings: domain.SystemSettings{
			PaymentMode:     domain.PaymentMode(cfg.Payment.Mode),
			TrialPeriodDays: cfg.Subscription.TrialPeriodDays,
		},
		SettingsCacheTTL: cfg.Subscription.SettingsCacheTTL,
		TermDays:         cfg.Subscription.TermDays,
		Payment: service.PaymentConfig{
			PublicBaseURL: cfg.Server.PublicBaseURL,
			PlanPrices:    cfg.Subscription.PlanPrices,
		},
		Deps: service.Deps{
			Clock: time.Now,
			Timeouts: service.Timeouts{
				Database: cfg.Database.QueryTimeout,
				Gateway:  cfg.Payment.GatewayTimeout,
				Notify:   cfg.Payment.NotifyTimeout,
			},
			Logger: log,
		},
		JWT: &middleware.JWTConfig{
			Secret:      cfg.JWT.Secret,
			Issuer:      cfg.JWT.Issuer,
			AdminEmails: cfg.Admin.Emails,
		},
		AllowOrigins: cfg.Server.AllowOrigins,
		Limiter:      limiter,
		Metrics:      middleware.NewHTTPMetrics(),
		Audit:        audit,
	})

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      container.Router.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", server.Addr), zap.String("driver", cfg.Database.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
