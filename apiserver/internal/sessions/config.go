package sessions

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const envconfigPrefix = "SESSIONS"

const (
	// CacheBackendRedis selects the Redis-backed session cache shared by all
	// API server instances.
	CacheBackendRedis = "redis"
	// CacheBackendMemory selects an in-process session cache that each API
	// server instance keeps in step with the others by way of the event bus.
	CacheBackendMemory = "memory"
)

const minSigningSecretLength = 32

// Config represents configuration for the session subsystem.
type Config struct {
	// SigningSecret is the symmetric key used to sign access and refresh tokens.
	SigningSecret string `envconfig:"SIGNING_SECRET" required:"true"`
	// AccessTokenTTL is the lifetime of an access token.
	AccessTokenTTL time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"15m"`
	// RefreshTokenTTL is the lifetime of a refresh token and, therefore, of a
	// session that is never refreshed.
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"168h"`
	// RotateRefreshTokens, when true, causes every refresh to also replace the
	// session's refresh token.
	RotateRefreshTokens bool `envconfig:"ROTATE_REFRESH_TOKENS"`
	// EventsChannel is the pub/sub channel token events are broadcast on.
	EventsChannel string `envconfig:"EVENTS_CHANNEL" default:"TOKEN_EVENTS"`
	// CacheBackend is one of CacheBackendRedis or CacheBackendMemory.
	CacheBackend string `envconfig:"CACHE_BACKEND" default:"redis"`
	// LedgerSingleSession, when true, keys the session ledger by user alone so
	// that a new login replaces every earlier session for the same user.
	LedgerSingleSession bool `envconfig:"LEDGER_SINGLE_SESSION"`
}

// NewConfigWithDefaults returns a Config with default values already applied.
// Callers must still supply a SigningSecret.
func NewConfigWithDefaults() Config {
	return Config{
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		EventsChannel:   "TOKEN_EVENTS",
		CacheBackend:    CacheBackendRedis,
	}
}

// GetConfigFromEnvironment returns configuration derived from environment
// variables
func GetConfigFromEnvironment() (Config, error) {
	c := NewConfigWithDefaults()
	if err := envconfig.Process(envconfigPrefix, &c); err != nil {
		return c, errors.Wrap(
			err,
			"error getting session configuration from environment",
		)
	}
	return c, c.Validate()
}

// Validate returns an error if the Config violates any of the session
// subsystem's invariants.
func (c Config) Validate() error {
	if len(c.SigningSecret) < minSigningSecretLength {
		return errors.Errorf(
			"the SIGNING_SECRET must be at least %d bytes long",
			minSigningSecretLength,
		)
	}
	if c.AccessTokenTTL <= 0 {
		return errors.New("the ACCESS_TOKEN_TTL must be positive")
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return errors.Errorf(
			"the ACCESS_TOKEN_TTL (%s) must be shorter than the "+
				"REFRESH_TOKEN_TTL (%s)",
			c.AccessTokenTTL,
			c.RefreshTokenTTL,
		)
	}
	if c.EventsChannel == "" {
		return errors.New("the EVENTS_CHANNEL must not be empty")
	}
	switch c.CacheBackend {
	case CacheBackendRedis, CacheBackendMemory:
	default:
		return errors.Errorf(
			"unrecognized CACHE_BACKEND %q; supported values are %q and %q",
			c.CacheBackend,
			CacheBackendRedis,
			CacheBackendMemory,
		)
	}
	return nil
}
