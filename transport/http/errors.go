package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/signon/adapters/metrics"
	"github.com/layer-3/signon/core"
)

// Client-facing messages. Verification failures share one message so callers
// cannot tell which check rejected them.
const (
	msgInvalidAuthPayload = "Invalid authentication payload"
	msgUnauthorized       = "Unauthorized"
	msgForbidden          = "Forbidden"
	msgTooManyRequests    = "Too many requests"
	msgNotFound           = "Not found"
	msgUnavailable        = "Service temporarily unavailable"
	msgInternal           = "Internal server error"
)

// writeError maps err to a status and a safe body, logging the detail server side
func (h *AuthHandlers) writeError(c *gin.Context, err error) {
	var rateErr *core.RateLimitError
	switch {
	case errors.As(err, &rateErr):
		writeRateLimited(c, rateErr)
	case errors.Is(err, core.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case core.IsSignatureError(err):
		requestLogger(c).Info().Err(err).Msg("login rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgInvalidAuthPayload})
	case core.IsTokenError(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
	case errors.Is(err, core.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": msgForbidden})
	case errors.Is(err, core.ErrIdentityNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": msgNotFound})
	case errors.Is(err, core.ErrIdentityStore):
		requestLogger(c).Error().Err(err).Msg("identity store failure")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": msgUnavailable})
	default:
		requestLogger(c).Error().Err(err).Msg("request failed")
		body := gin.H{"error": msgInternal}
		if h.cfg.Development {
			body["detail"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, body)
	}
}

func writeRateLimited(c *gin.Context, err *core.RateLimitError) {
	retryAfter := err.RetryAfterSeconds()
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":      msgTooManyRequests,
		"retryAfter": retryAfter,
	})
}

// loginOutcome labels a login error for metrics
func loginOutcome(err error) string {
	var rateErr *core.RateLimitError
	switch {
	case errors.As(err, &rateErr):
		return metrics.OutcomeRateLimited
	case errors.Is(err, core.ErrValidation):
		return metrics.OutcomeBadRequest
	case core.IsSignatureError(err):
		return metrics.OutcomeInvalid
	case errors.Is(err, core.ErrIdentityStore):
		return metrics.OutcomeUnavailable
	default:
		return metrics.OutcomeInternalError
	}
}

// tokenRejection labels a token failure for metrics
func tokenRejection(err error) string {
	switch {
	case errors.Is(err, core.ErrMissingToken):
		return "missing"
	case errors.Is(err, core.ErrTokenExpired):
		return "expired"
	case errors.Is(err, core.ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, core.ErrTokenInvalid):
		return "invalid"
	default:
		return "error"
	}
}
