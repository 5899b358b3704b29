package di

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/webdevsha/permitakaun/internal/cache"
	"github.com/webdevsha/permitakaun/internal/domain"
	"github.com/webdevsha/permitakaun/internal/handler"
	"github.com/webdevsha/permitakaun/internal/notify"
	"github.com/webdevsha/permitakaun/internal/repository"
	"github.com/webdevsha/permitakaun/internal/service"
	"github.com/webdevsha/permitakaun/pkg/database"
	"github.com/webdevsha/permitakaun/pkg/kafka"
	"github.com/webdevsha/permitakaun/pkg/middleware"
	pkgredis "github.com/webdevsha/permitakaun/pkg/redis"
)

// Repositories groups the storage ports the services depend on
type Repositories struct {
	Profiles      repository.ProfileRepository
	Tenants       repository.TenantRepository
	Organizers    repository.OrganizerRepository
	Links         repository.LinkRepository
	Locations     repository.LocationRepository
	Rentals       repository.RentalRepository
	Transactions  repository.TransactionRepository
	Subscriptions repository.SubscriptionRepository
	Settings      repository.SettingsRepository
}

// PostgresRepositories builds every repository on one pool
func PostgresRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Profiles:      repository.NewPostgresProfileRepository(pool),
		Tenants:       repository.NewPostgresTenantRepository(pool),
		Organizers:    repository.NewPostgresOrganizerRepository(pool),
		Links:         repository.NewPostgresLinkRepository(pool),
		Locations:     repository.NewPostgresLocationRepository(pool),
		Rentals:       repository.NewPostgresRentalRepository(pool),
		Transactions:  repository.NewPostgresTransactionRepository(pool),
		Subscriptions: repository.NewPostgresSubscriptionRepository(pool),
		Settings:      repository.NewPostgresSettingsRepository(pool),
	}
}

// MemoryRepositories exposes an in-process store through the same ports
func MemoryRepositories(store *repository.MemoryStore) Repositories {
	return Repositories{
		Profiles:      store.Profiles(),
		Tenants:       store.Tenants(),
		Organizers:    store.Organizers(),
		Links:         store.LinkRepo(),
		Locations:     store.Locations(),
		Rentals:       store.Rentals(),
		Transactions:  store.TransactionRepo(),
		Subscriptions: store.SubscriptionRepo(),
		Settings:      store.Settings(),
	}
}

// Container holds all dependencies for the permitakaun API
type Container struct {
	// Infrastructure
	DB       *database.PostgresDB
	Redis    *pkgredis.Client
	Producer *kafka.Producer

	// Repositories
	Repos Repositories

	// Services
	SettingsService       service.SettingsService
	SubscriptionService   service.SubscriptionService
	LinkService           service.LinkService
	RentalService         service.RentalService
	LocationService       service.LocationService
	PaymentService        service.PaymentService
	ReconciliationService service.ReconciliationService

	// Handlers
	HealthHandler  *handler.HealthHandler
	LinkHandler    *handler.LinkHandler
	RentalHandler  *handler.RentalHandler
	PaymentHandler *handler.PaymentHandler
	Router         *handler.Router
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	// Optional infrastructure, checked by /ready when set
	DB       *database.PostgresDB
	Redis    *pkgredis.Client
	Producer *kafka.Producer

	Repos        Repositories
	Gateway      service.PaymentInitiator
	Callbacks    handler.CallbackParser
	Webhooks     handler.WebhookParser
	Notifier     notify.Notifier
	ListingCache *cache.LocationCache

	DefaultSettings  domain.SystemSettings
	SettingsCacheTTL time.Duration
	TermDays         int
	Payment          service.PaymentConfig
	Deps             service.Deps

	JWT          *middleware.JWTConfig
	AllowOrigins []string
	Limiter      middleware.RateLimiter
	Metrics      *middleware.HTTPMetrics
	Audit        *middleware.AuditLogger
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:       cfg.DB,
		Redis:    cfg.Redis,
		Producer: cfg.Producer,
		Repos:    cfg.Repos,
	}
	r := c.Repos

	// Initialize services
	c.SettingsService = service.NewSettingsService(r.Settings, cfg.DefaultSettings, cfg.SettingsCacheTTL, cfg.Deps)
	c.SubscriptionService = service.NewSubscriptionService(
		r.Profiles, r.Tenants, r.Organizers, r.Subscriptions,
		c.SettingsService, cfg.TermDays, cfg.Deps,
	)
	c.LinkService = service.NewLinkService(r.Tenants, r.Organizers, r.Links, cfg.Deps)
	c.RentalService = service.NewRentalService(r.Tenants, r.Organizers, r.Links, r.Locations, r.Rentals, cfg.Deps)
	c.LocationService = service.NewLocationService(r.Locations, cfg.ListingCache, cfg.Deps)
	c.PaymentService = service.NewPaymentService(
		r.Tenants, r.Organizers, r.Locations, r.Rentals, r.Transactions,
		cfg.Gateway, c.SettingsService, cfg.Payment, cfg.Deps,
	)
	c.ReconciliationService = service.NewReconciliationService(
		r.Profiles, r.Tenants, r.Organizers, r.Transactions,
		c.SubscriptionService, cfg.Notifier, cfg.Deps,
	)

	// Initialize handlers
	checks := map[string]handler.HealthChecker{}
	if c.DB != nil {
		checks["postgres"] = c.DB
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis
	}
	if c.Producer != nil {
		checks["kafka"] = c.Producer
	}
	c.HealthHandler = handler.NewHealthHandler(checks)
	c.LinkHandler = handler.NewLinkHandler(c.LinkService)
	c.RentalHandler = handler.NewRentalHandler(c.RentalService, c.LocationService)
	c.PaymentHandler = handler.NewPaymentHandler(
		c.PaymentService, c.ReconciliationService, c.SubscriptionService,
		cfg.Callbacks, cfg.Webhooks,
	)

	c.Router = handler.NewRouter(&handler.RouterConfig{
		JWT:          cfg.JWT,
		AllowOrigins: cfg.AllowOrigins,
		Limiter:      cfg.Limiter,
		Metrics:      cfg.Metrics,
		Audit:        cfg.Audit,
		Health:       c.HealthHandler,
		Links:        c.LinkHandler,
		Rentals:      c.RentalHandler,
		Payment:      c.PaymentHandler,
	})

	return c
}
