package restmachinery

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/krancour/identity/apiserver/internal/lib/crypto"
	"github.com/pkg/errors"
)

const envconfigPrefix = "API_SERVER"

// Config is an exported interface that governs access to API server
// configuration because the underlying struct has fields we don't want to
// expose.
type Config interface {
	Port() int
	HashedIssuerToken() string
	TLSEnabled() bool
	TLSCertPath() string
	TLSKeyPath() string
}

type config struct {
	PortAttr              int    `envconfig:"PORT"`
	IssuerTokenAttr       string `envconfig:"ISSUER_TOKEN" required:"true"`
	HashedIssuerTokenAttr string
	TLSEnabledAttr        bool   `envconfig:"TLS_ENABLED"`
	TLSCertPathAttr       string `envconfig:"TLS_CERT_PATH"`
	TLSKeyPathAttr        string `envconfig:"TLS_KEY_PATH"`
}

// NewConfigWithDefaults returns a Config object with default values already
// applied.
func NewConfigWithDefaults() Config {
	return &config{PortAttr: 8080}
}

// GetConfigFromEnvironment returns configuration derived from environment
// variables
func GetConfigFromEnvironment() (Config, error) {
	c := NewConfigWithDefaults().(*config)
	if err := envconfig.Process(envconfigPrefix, c); err != nil {
		return c, errors.Wrap(
			err,
			"error getting API server configuration from environment",
		)
	}

	if c.IssuerTokenAttr == "" {
		return c, errors.New(
			"a value is required for the ISSUER_TOKEN environment variable",
		)
	}

	if c.TLSEnabledAttr {
		if c.TLSCertPathAttr == "" {
			return c, errors.New(
				"with TLS enabled, a value is required for the " +
					"TLS_CERT_PATH environment variable",
			)
		}
		if c.TLSKeyPathAttr == "" {
			return c, errors.New(
				"with TLS enabled, a value is required for the " +
					"TLS_KEY_PATH environment variable",
			)
		}
	}

	c.HashedIssuerTokenAttr = crypto.ShortSHA("", c.IssuerTokenAttr)
	// Don't let the unencrypted token float around in memory!
	c.IssuerTokenAttr = ""

	return c, nil
}

func (c *config) Port() int {
	return c.PortAttr
}

func (c *config) HashedIssuerToken() string {
	return c.HashedIssuerTokenAttr
}

func (c *config) TLSEnabled() bool {
	return c.TLSEnabledAttr
}

func (c *config) TLSCertPath() string {
	return c.TLSCertPathAttr
}

func (c *config) TLSKeyPath() string {
	return c.TLSKeyPathAttr
}
