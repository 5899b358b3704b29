package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/webdevsha/permitakaun/internal/domain"
	pkgmiddleware "github.com/webdevsha/permitakaun/pkg/middleware"
)

// RouterConfig holds the handlers and cross-cutting middleware mounted by the router
type RouterConfig struct {
	JWT          *pkgmiddleware.JWTConfig
	AllowOrigins []string
	// Limiter throttles organizer lookups and unauthenticated endpoints; nil disables throttling
	Limiter pkgmiddleware.RateLimiter
	Metrics *pkgmiddleware.HTTPMetrics
	Audit   *pkgmiddleware.AuditLogger

	Health  *HealthHandler
	Links   *LinkHandler
	Rentals *RentalHandler
	Payment *PaymentHandler
}

// Router registers every permitakaun route on a gin engine
type Router struct {
	config *RouterConfig
}

// NewRouter creates a new router
func NewRouter(config *RouterConfig) *Router {
	return &Router{config: config}
}

// Engine builds a gin engine with middleware and routes installed
func (r *Router) Engine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), pkgmiddleware.RequestID(), pkgmiddleware.CORS(r.config.AllowOrigins))
	if r.config.Metrics != nil {
		engine.Use(r.config.Metrics.Middleware())
	}
	r.SetupRoutes(engine)
	return engine
}

// SetupRoutes configures public and protected routes on the given engine
func (r *Router) SetupRoutes(engine *gin.Engine) {
	if r.config.Health != nil {
		engine.GET("/health", r.config.Health.Health)
		engine.GET("/ready", r.config.Health.Ready)
	}
	if r.config.Metrics != nil {
		engine.GET("/metrics", r.config.Metrics.Handler())
	}

	api := engine.Group("/api/v1")
	if r.config.Audit != nil {
		api.Use(pkgmiddleware.AuditMiddleware(r.config.Audit))
	}

	r.setupPublicRoutes(api)
	r.setupProtectedRoutes(api)
}

// setupPublicRoutes registers routes reachable without a token
func (r *Router) setupPublicRoutes(api *gin.RouterGroup) {
	public := api.Group("/public")
	if r.config.Limiter != nil {
		public.Use(pkgmiddleware.RateLimit(r.config.Limiter))
	}

	public.GET("/locations", r.config.Rentals.PublicLocations)
	public.POST("/payments", r.config.Payment.InitiatePublic)

	// Callbacks are never throttled
	api.POST("/payments/callback", r.config.Payment.Callback)
	api.POST("/payments/webhook/stripe", r.config.Payment.StripeWebhook)
}

// setupProtectedRoutes registers routes behind the JWT middleware
func (r *Router) setupProtectedRoutes(api *gin.RouterGroup) {
	protected := api.Group("")
	protected.Use(pkgmiddleware.JWTMiddleware(r.config.JWT))

	protected.GET("/organizers/validate", r.throttled(r.config.Links.ValidateOrganizer)...)
	protected.POST("/tenants/:id/links", r.config.Links.RequestLink)
	protected.GET("/tenants/:id/links", r.config.Links.ListTenantLinks)
	protected.GET("/links/pending", r.config.Links.PendingRequests)
	protected.POST("/links/:id/process", r.config.Links.ProcessRequest)
	protected.GET("/links/:id/history", r.config.Links.History)

	protected.GET("/tenants/:id/available-locations", r.config.Rentals.AvailableLocations)
	protected.POST("/tenants/:id/locations", r.config.Rentals.AddLocations)

	protected.POST("/payments/rent", r.config.Payment.InitiateRent)
	protected.POST("/payments/subscription", r.config.Payment.InitiateSubscription)
	protected.POST("/transactions", r.config.Payment.RecordManual)
	protected.GET("/access", r.config.Payment.Access)

	admin := protected.Group("/admin")
	admin.Use(pkgmiddleware.RequireRole(string(domain.RoleAdmin), string(domain.RoleSuperAdmin)))
	admin.POST("/transactions/:id/review", r.config.Payment.Review)
}

// throttled prefixes a handler with the rate limiter when one is configured
func (r *Router) throttled(h gin.HandlerFunc) []gin.HandlerFunc {
	if r.config.Limiter == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{pkgmiddleware.RateLimit(r.config.Limiter), h}
}
