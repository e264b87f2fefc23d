package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/layer-3/signon/adapters/metrics"
	"github.com/layer-3/signon/ports"
	"github.com/layer-3/signon/service"
)

// RouterConfig wires the router's collaborators
type RouterConfig struct {
	AuthService    *service.AuthService
	Limiter        ports.RateLimiter
	Metrics        *metrics.Metrics
	Handler        HandlerConfig
	AllowedOrigins []string
	// TrustedProxies lists proxy IPs or CIDRs whose forwarding headers set the
	// client IP; empty means the peer address is always used
	TrustedProxies []string
	// Health reports readiness of backing stores; nil means always healthy
	Health func(c *gin.Context) error
}

// SetupRouter sets up the Gin router
func SetupRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Error().Err(err).Strs("trusted_proxies", cfg.TrustedProxies).Msg("invalid trusted proxies, trusting none")
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(RequestID(), RequestLogger(), Recovery())

	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", headerRequestID},
			ExposeHeaders:    []string{"Retry-After", headerRequestID},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	handlers := NewAuthHandlers(cfg.AuthService, cfg.Metrics, cfg.Handler)
	requireAuth := RequireAuth(cfg.AuthService, cfg.Metrics)

	router.GET("/healthz", func(c *gin.Context) {
		if cfg.Health != nil {
			if err := cfg.Health(c); err != nil {
				requestLogger(c).Error().Err(err).Msg("health check failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.GET("/login", RateLimit(cfg.Limiter, "challenge", cfg.Metrics), handlers.Challenge)
		auth.POST("/login", RateLimit(cfg.Limiter, "login", cfg.Metrics), handlers.Login)
		auth.POST("/register", requireAuth, handlers.Register)
		auth.GET("/status", OptionalAuth(cfg.AuthService), handlers.Status)
		auth.POST("/logout", OptionalAuth(cfg.AuthService), handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(requireAuth)
	{
		api.GET("/me", handlers.Me)
		api.GET("/users/:address", RequireOwnership("address"), handlers.User)
	}

	return router
}
