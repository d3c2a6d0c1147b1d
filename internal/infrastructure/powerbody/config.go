package powerbody

import (
	"errors"
	"time"
)

// Default tuning values for the PowerBody client
const (
	defaultTimeoutSeconds   = 60
	defaultMaxRetries       = 3
	defaultSessionLifetime  = 10 * time.Minute
	defaultRetryBackoffBase = time.Second
)

var (
	// ErrConfigMissingEndpoint indicates the SOAP endpoint is not set
	ErrConfigMissingEndpoint = errors.New("powerbody: endpoint is required")
	// ErrConfigMissingCredentials indicates username or API key is not set
	ErrConfigMissingCredentials = errors.New("powerbody: username and api key are required")
)

// Config holds the connection settings for the PowerBody SOAP API
type Config struct {
	// Endpoint is the SOAP endpoint URL
	Endpoint string
	// Username is the API account name
	Username string
	// APIKey is the API account key
	APIKey string
	// TimeoutSeconds is the HTTP client timeout
	TimeoutSeconds int
	// MaxRetries is the number of attempts for a single call
	MaxRetries int
	// SessionLifetime is how long a login token is trusted before
	// re-authenticating
	SessionLifetime time.Duration
	// RetryBackoffBase is the base delay for exponential retry backoff
	RetryBackoffBase time.Duration
}

// Validate checks required fields and applies defaults
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return ErrConfigMissingEndpoint
	}
	if c.Username == "" || c.APIKey == "" {
		return ErrConfigMissingCredentials
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.SessionLifetime <= 0 {
		c.SessionLifetime = defaultSessionLifetime
	}
	if c.RetryBackoffBase <= 0 {
		c.RetryBackoffBase = defaultRetryBackoffBase
	}
	return nil
}
