package http

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/layer-3/signon/adapters/metrics"
	"github.com/layer-3/signon/core"
	"github.com/layer-3/signon/ports"
	"github.com/layer-3/signon/service"
)

const (
	// CookieName carries the session token for browser clients
	CookieName = "jwt"

	headerRequestID = "X-Request-ID"
	bearerPrefix    = "Bearer "
)

// RequestID propagates or assigns a request id and attaches a logger carrying it
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}

		c.Header(headerRequestID, requestID)
		logger := log.With().Str("request_id", requestID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Next()
	}
}

// RequestLogger writes one line per request
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		status := c.Writer.Status()
		event := requestLogger(c).Info()
		if status >= http.StatusInternalServerError {
			event = requestLogger(c).Error()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

// Recovery turns panics into a 500 without leaking the panic value
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		requestLogger(c).Error().
			Interface("panic", recovered).
			Str("stack", string(debug.Stack())).
			Str("path", c.Request.URL.Path).
			Msg("panic recovered")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
	})
}

// RequireAuth rejects requests without a valid, unrevoked session token
func RequireAuth(authService *service.AuthService, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := authService.ValidateToken(c.Request.Context(), tokenFromRequest(c))
		if err != nil {
			reason := tokenRejection(err)
			if m != nil {
				m.TokenRejections.WithLabelValues(reason).Inc()
			}
			requestLogger(c).Debug().Err(err).Str("reason", reason).Msg("authentication failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
			return
		}

		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), newSessionIdentity(session)))
		c.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is present and never aborts
func OptionalAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if token != "" {
			if session, err := authService.ValidateToken(c.Request.Context(), token); err == nil {
				c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), newSessionIdentity(session)))
			}
		}
		c.Next()
	}
}

// RequireOwnership allows the request only when the path parameter names the caller's address.
// It must run after RequireAuth.
func RequireOwnership(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
			return
		}

		target := c.Param(param)
		if target == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": core.ErrMissingPathAddr.Error()})
			return
		}

		if !core.SameAddress(identity.Address, target) {
			requestLogger(c).Info().
				Str("address", identity.Address).
				Str("target", target).
				Msg("ownership check failed")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": msgForbidden})
			return
		}

		c.Next()
	}
}

// RateLimit counts every request against the client IP within scope.
// A limiter backend failure lets the request through.
func RateLimit(limiter ports.RateLimiter, scope string, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := limiter.Check(c.Request.Context(), scope+":"+c.ClientIP())
		if err == nil {
			c.Next()
			return
		}

		var rateErr *core.RateLimitError
		if errors.As(err, &rateErr) {
			if m != nil {
				m.RateLimited.WithLabelValues(scope).Inc()
			}
			requestLogger(c).Warn().
				Str("scope", scope).
				Str("client_ip", c.ClientIP()).
				Int("retry_after", rateErr.RetryAfterSeconds()).
				Msg("rate limit exceeded")
			writeRateLimited(c, rateErr)
			return
		}

		requestLogger(c).Error().Err(err).Str("scope", scope).Msg("rate limiter unavailable")
		c.Next()
	}
}

// tokenFromRequest prefers the session cookie over the Authorization header
func tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie
	}

	auth := c.GetHeader("Authorization")
	if len(auth) > len(bearerPrefix) && strings.EqualFold(auth[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(auth[len(bearerPrefix):])
	}
	return ""
}

func requestLogger(c *gin.Context) *zerolog.Logger {
	logger := zerolog.Ctx(c.Request.Context())
	if logger.GetLevel() == zerolog.Disabled {
		return &log.Logger
	}
	return logger
}
