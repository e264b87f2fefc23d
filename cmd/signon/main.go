package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/layer-3/signon/adapters/events"
	"github.com/layer-3/signon/adapters/identity"
	"github.com/layer-3/signon/adapters/metrics"
	"github.com/layer-3/signon/adapters/notify"
	"github.com/layer-3/signon/adapters/ratelimit"
	"github.com/layer-3/signon/adapters/store"
	"github.com/layer-3/signon/adapters/tokenizer"
	"github.com/layer-3/signon/config"
	"github.com/layer-3/signon/logger"
	"github.com/layer-3/signon/ports"
	"github.com/layer-3/signon/service"
	transporthttp "github.com/layer-3/signon/transport/http"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Init("signon", cfg.Debug, cfg.IsDevelopment())
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	signKey := loadSigningKey(cfg)

	// Redis backs every shared structure when configured
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to parse Redis URL")
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
	}

	var (
		revocations ports.Store
		ledger      ports.NonceLedger
		limiter     ports.RateLimiter
	)
	if redisClient != nil {
		revocations = store.NewRedisStore(redisClient)
		ledger = store.NewRedisNonceLedger(redisClient)
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.RateLimitMaxAttempts, cfg.RateLimitWindow)
	} else {
		log.Warn().Msg("REDIS_URL not set, using in-memory state; do not run more than one instance")
		revocations = store.NewMemoryStore()
		ledger = store.NewMemoryNonceLedger(nil)
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitMaxAttempts, cfg.RateLimitWindow, nil)
	}

	var (
		identities ports.IdentityStore
		pool       *pgxpool.Pool
	)
	if cfg.DatabaseURL != "" {
		if cfg.DBAutoMigrate {
			if err := identity.Migrate(cfg.DatabaseURL); err != nil {
				log.Fatal().Err(err).Msg("Failed to migrate database")
			}
		}
		pool, err = identity.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Postgres")
		}
		defer pool.Close()
		identities = identity.NewPostgresStore(pool)
	} else {
		log.Warn().Msg("DATABASE_URL not set, identities are kept in memory")
		identities = identity.NewMemoryStore()
	}

	// Events and notifications
	wmLogger := events.NewZerologAdapter(log.Logger)
	publisher, subscriber, err := events.NewPubSub(redisClient, wmLogger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create event bus")
	}
	defer publisher.Close()

	var notifier ports.Notifier = notify.NewLogNotifier(log.Logger)
	if cfg.SMTP.Host != "" {
		notifier = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:        cfg.SMTP.Host,
			Port:        cfg.SMTP.Port,
			Username:    cfg.SMTP.Username,
			Password:    cfg.SMTP.Password,
			FromAddress: cfg.SMTP.FromAddress,
			FromName:    cfg.SMTP.FromName,
			Encryption:  cfg.SMTP.Encryption,
		})
	}

	notifications, err := events.NewNotificationRouter(subscriber, notifier, wmLogger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create notification router")
	}
	go func() {
		if err := notifications.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Notification router stopped")
		}
	}()

	authService := service.NewAuthService(
		service.Config{
			Domain:               cfg.AuthDomain,
			URI:                  cfg.AuthURI,
			Statement:            cfg.AuthStatement,
			Resources:            cfg.AuthResources,
			ChallengeTTL:         cfg.ChallengeTTL,
			SessionTTL:           cfg.SessionTTL,
			IdentityStoreTimeout: cfg.IdentityStoreTimeout,
			RevokeOnLogout:       cfg.RevokeOnLogout,
		},
		tokenizer.NewJWTTokenizer(signKey),
		revocations,
		ledger,
		identities,
		events.NewWatermillPublisher(publisher),
	)

	// Setup Gin router
	router := transporthttp.SetupRouter(transporthttp.RouterConfig{
		AuthService: authService,
		Limiter:     limiter,
		Metrics:     metrics.New(),
		Handler: transporthttp.HandlerConfig{
			Development:  cfg.IsDevelopment(),
			SecureCookie: cfg.IsProduction(),
		},
		AllowedOrigins: cfg.CORSAllowedOrigins,
		TrustedProxies: cfg.TrustedProxies,
		Health: func(c *gin.Context) error {
			if redisClient != nil {
				if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
					return err
				}
			}
			if pool != nil {
				return identity.Ping(c.Request.Context(), pool)
			}
			return nil
		},
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("domain", cfg.AuthDomain).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	authService.Wait()
	if err := notifications.Close(); err != nil {
		log.Error().Err(err).Msg("Notification router close failed")
	}
}

func loadSigningKey(cfg *config.Config) *ecdsa.PrivateKey {
	if cfg.JWTPrivateKeyPath != "" {
		key, err := tokenizer.LoadSigningKey(cfg.JWTPrivateKeyPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load signing key")
		}
		return key
	}

	if cfg.IsProduction() {
		log.Fatal().Msg("JWT_PRIVATE_KEY_PATH is required in production")
	}
	log.Warn().Msg("JWT_PRIVATE_KEY_PATH not set, sessions will not survive a restart")
	key, err := tokenizer.GenerateSigningKey()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate signing key")
	}
	return key
}
