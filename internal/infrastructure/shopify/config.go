package shopify

import (
	"errors"
	"fmt"
	"time"
)

// Default tuning values for the Shopify client
const (
	defaultAPIVersion     = "2024-01"
	defaultTimeoutSeconds = 30
	defaultMaxRetries     = 3
	defaultMinCallSpacing = 100 * time.Millisecond
)

var (
	// ErrConfigMissingShopDomain indicates the shop domain is not set
	ErrConfigMissingShopDomain = errors.New("shopify: shop domain is required")
	// ErrConfigMissingAccessToken indicates the access token is not set
	ErrConfigMissingAccessToken = errors.New("shopify: access token is required")
)

// Config holds the connection settings for one Shopify store
type Config struct {
	// ShopDomain is the myshopify domain, e.g. "my-store.myshopify.com"
	ShopDomain string
	// AccessToken is the Admin API access token
	AccessToken string
	// APIVersion is the Admin API version, e.g. "2024-01"
	APIVersion string
	// TimeoutSeconds is the HTTP client timeout
	TimeoutSeconds int
	// MaxRetries is the number of attempts for a single request
	MaxRetries int
	// MinCallSpacing is the minimum pause between any two calls,
	// enforced regardless of quota state
	MinCallSpacing time.Duration
}

// Validate checks required fields and applies defaults
func (c *Config) Validate() error {
	if c.ShopDomain == "" {
		return ErrConfigMissingShopDomain
	}
	if c.AccessToken == "" {
		return ErrConfigMissingAccessToken
	}
	if c.APIVersion == "" {
		c.APIVersion = defaultAPIVersion
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.MinCallSpacing <= 0 {
		c.MinCallSpacing = defaultMinCallSpacing
	}
	return nil
}

// BaseURL returns the Admin API base URL for this store
func (c *Config) BaseURL() string {
	return fmt.Sprintf("https://%s/admin/api/%s", c.ShopDomain, c.APIVersion)
}
