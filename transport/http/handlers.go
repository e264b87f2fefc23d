package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/signon/adapters/metrics"
	"github.com/layer-3/signon/core"
	"github.com/layer-3/signon/service"
)

// HandlerConfig controls environment-dependent response details
type HandlerConfig struct {
	Development  bool // include error details in 500 responses
	SecureCookie bool // set the Secure attribute on the session cookie
	CookieDomain string
}

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	metrics     *metrics.Metrics
	cfg         HandlerConfig
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, m *metrics.Metrics, cfg HandlerConfig) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		metrics:     m,
		cfg:         cfg,
	}
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Payload   *core.LoginPayload `json:"payload" binding:"required"`
	Signature string             `json:"signature" binding:"required"`
}

// LoginResponse is returned after a successful login
type LoginResponse struct {
	Success   bool           `json:"success"`
	Token     string         `json:"token"`
	Address   string         `json:"address"`
	User      *core.Identity `json:"user"`
	IsNewUser bool           `json:"isNewUser"`
}

// StatusResponse is returned by GET /auth/status
type StatusResponse struct {
	IsAuthenticated bool    `json:"isAuthenticated"`
	Address         string  `json:"address,omitempty"`
	ChainID         *uint64 `json:"chainId,omitempty"`
}

// RegisterRequest carries the optional profile fields of POST /auth/register
type RegisterRequest struct {
	DisplayName *string `json:"displayName" binding:"omitempty,min=1,max=64"`
	Email       *string `json:"email" binding:"omitempty,email,max=254"`
	AvatarURL   *string `json:"avatarUrl" binding:"omitempty,url,max=2048"`
	Bio         *string `json:"bio" binding:"omitempty,max=500"`
}

// Challenge issues a login payload for the address in the query string
func (h *AuthHandlers) Challenge(c *gin.Context) {
	chainID, err := core.ParseChainID(c.Query("chainId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	payload, err := h.authService.Challenge(c.Request.Context(), c.Query("address"), chainID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.metrics.ChallengesIssued.Inc()
	c.JSON(http.StatusOK, payload)
}

// Login verifies a signed payload and starts a session
func (h *AuthHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.Logins.WithLabelValues(metrics.OutcomeBadRequest).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Payload, req.Signature)
	if err != nil {
		h.metrics.Logins.WithLabelValues(loginOutcome(err)).Inc()
		h.writeError(c, err)
		return
	}

	h.metrics.Logins.WithLabelValues(metrics.OutcomeSuccess).Inc()
	if result.IsNewUser {
		h.metrics.IdentitiesCreated.Inc()
	}
	requestLogger(c).Info().
		Str("address", result.Session.Address).
		Bool("new_user", result.IsNewUser).
		Msg("login succeeded")

	h.setSessionCookie(c, result.Token, int(h.authService.SessionTTL().Seconds()))
	c.JSON(http.StatusOK, LoginResponse{
		Success:   true,
		Token:     result.Token,
		Address:   result.Session.Address,
		User:      result.Identity,
		IsNewUser: result.IsNewUser,
	})
}

// Register stores optional profile fields for the authenticated address
func (h *AuthHandlers) Register(c *gin.Context) {
	identity, ok := CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
		return
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(c, core.ErrInvalidProfile)
		return
	}

	user, err := h.authService.Register(c.Request.Context(), identity.Address, core.Profile{
		DisplayName: req.DisplayName,
		Email:       req.Email,
		AvatarURL:   req.AvatarURL,
		Bio:         req.Bio,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// Status reports whether the caller holds a valid session
func (h *AuthHandlers) Status(c *gin.Context) {
	identity, ok := CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusOK, StatusResponse{IsAuthenticated: false})
		return
	}

	c.JSON(http.StatusOK, StatusResponse{
		IsAuthenticated: true,
		Address:         identity.Address,
		ChainID:         identity.ChainID,
	})
}

// Logout clears the session cookie and revokes the presented token
func (h *AuthHandlers) Logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)

	if err := h.authService.Logout(c.Request.Context(), tokenFromRequest(c)); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me returns the identity of the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	h.identityFor(c, func(identity *SessionIdentity) string { return identity.Address })
}

// User returns the identity named in the path; RequireOwnership limits it to the caller
func (h *AuthHandlers) User(c *gin.Context) {
	h.identityFor(c, func(*SessionIdentity) string { return c.Param("address") })
}

func (h *AuthHandlers) identityFor(c *gin.Context, address func(*SessionIdentity) string) {
	identity, ok := CurrentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
		return
	}

	user, err := h.authService.Identity(c.Request.Context(), address(identity))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *AuthHandlers) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, token, maxAge, "/", h.cfg.CookieDomain, h.cfg.SecureCookie, true)
}
