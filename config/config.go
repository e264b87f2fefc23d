// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is read once at startup and passed to constructors
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Debug       bool   `env:"DEBUG" envDefault:"false"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	// Login payload contents
	AuthDomain    string   `env:"AUTH_DOMAIN" envDefault:"localhost:8080"`
	AuthURI       string   `env:"AUTH_URI" envDefault:"http://localhost:8080"`
	AuthStatement string   `env:"AUTH_STATEMENT" envDefault:"Sign in with Ethereum to authenticate."`
	AuthResources []string `env:"AUTH_RESOURCES" envSeparator:","`

	ChallengeTTL time.Duration `env:"CHALLENGE_TTL" envDefault:"10m"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// Empty means an ephemeral key generated at startup
	JWTPrivateKeyPath string `env:"JWT_PRIVATE_KEY_PATH"`

	RateLimitMaxAttempts int           `env:"RATE_LIMIT_MAX_ATTEMPTS" envDefault:"5"`
	RateLimitWindow      time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	// Empty selects the in-memory nonce ledger, limiter, revocation set and event bus
	RedisURL string `env:"REDIS_URL"`

	// Empty selects the in-memory identity store
	DatabaseURL          string        `env:"DATABASE_URL"`
	DBAutoMigrate        bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	IdentityStoreTimeout time.Duration `env:"IDENTITY_STORE_TIMEOUT" envDefault:"3s"`

	RevokeOnLogout     bool     `env:"REVOKE_ON_LOGOUT" envDefault:"true"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// Proxy IPs or CIDRs allowed to set X-Forwarded-For; empty trusts none
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	SMTP SMTPConfig `envPrefix:"SMTP_"`
}

// SMTPConfig configures outgoing mail; an empty host logs notifications instead
type SMTPConfig struct {
	Host        string `env:"HOST"`
	Port        int    `env:"PORT" envDefault:"587"`
	Username    string `env:"USERNAME"`
	Password    string `env:"PASSWORD"`
	FromAddress string `env:"FROM_ADDRESS" envDefault:"noreply@localhost"`
	FromName    string `env:"FROM_NAME" envDefault:"Signon"`
	Encryption  string `env:"ENCRYPTION" envDefault:"starttls"`
}

// Load reads .env when present, then parses and validates the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current environment only
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	switch {
	case c.AuthDomain == "":
		return errors.New("config: AUTH_DOMAIN must not be empty")
	case c.AuthURI == "":
		return errors.New("config: AUTH_URI must not be empty")
	case c.ChallengeTTL <= 0:
		return errors.New("config: CHALLENGE_TTL must be positive")
	case c.SessionTTL <= 0:
		return errors.New("config: SESSION_TTL must be positive")
	case c.RateLimitMaxAttempts <= 0:
		return errors.New("config: RATE_LIMIT_MAX_ATTEMPTS must be positive")
	case c.RateLimitWindow <= 0:
		return errors.New("config: RATE_LIMIT_WINDOW must be positive")
	case c.IdentityStoreTimeout <= 0:
		return errors.New("config: IDENTITY_STORE_TIMEOUT must be positive")
	}

	for _, proxy := range c.TrustedProxies {
		if !validProxy(proxy) {
			return fmt.Errorf("config: invalid TRUSTED_PROXIES entry %q", proxy)
		}
	}

	switch c.SMTP.Encryption {
	case "starttls", "ssl", "none":
	default:
		return fmt.Errorf("config: unknown SMTP_ENCRYPTION %q", c.SMTP.Encryption)
	}
	return nil
}

func validProxy(s string) bool {
	if strings.Contains(s, "/") {
		_, _, err := net.ParseCIDR(s)
		return err == nil
	}
	return net.ParseIP(s) != nil
}

// IsDevelopment reports whether error details may be shown to clients
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the session cookie must be Secure
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
