package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Shopify     ShopifyConfig
	PowerBody   PowerBodyConfig
	State       StateConfig
	Cache       CacheConfig
	DeadLetter  DeadLetterConfig
	OrderSync   OrderSyncConfig
	ProductSync ProductSyncConfig
	Log         LogConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// ShopifyConfig holds Shopify REST API settings
type ShopifyConfig struct {
	ShopDomain     string // e.g. "my-store.myshopify.com"
	AccessToken    string
	APIVersion     string // e.g. "2024-01"
	TimeoutSeconds int
	MaxRetries     int
	// MinCallSpacing is the minimum pause between any two calls
	MinCallSpacing time.Duration
}

// PowerBodyConfig holds PowerBody SOAP API settings
type PowerBodyConfig struct {
	Endpoint       string // SOAP endpoint URL
	Username       string
	APIKey         string
	TimeoutSeconds int
	MaxRetries     int
	// SessionLifetime is how long a login token stays valid
	SessionLifetime time.Duration
	// RetryBackoffBase is the base delay for exponential retry backoff
	RetryBackoffBase time.Duration
}

// StateConfig holds the local mapping/state database settings
type StateConfig struct {
	// Path is the SQLite database file path
	Path string
}

// CacheConfig holds product cache settings
type CacheConfig struct {
	// Dir is the directory holding cache entry files
	Dir string
	// TTL is how long a cache entry stays valid
	TTL time.Duration
}

// DeadLetterConfig holds dead-letter queue settings
type DeadLetterConfig struct {
	// Dir is the directory holding dead-letter record files
	Dir string
}

// OrderSyncConfig holds order synchronization settings
type OrderSyncConfig struct {
	// OrderBatchFile is an optional pre-fetched batch of Shopify orders as
	// JSON. When absent or unreadable, orders are pulled from the API.
	OrderBatchFile string
	// SyncTag is the tag applied to Shopify orders after submission so they
	// are not picked up again
	SyncTag string
}

// ProductSyncConfig holds catalog synchronization settings
type ProductSyncConfig struct {
	// MarkupPercent is the price markup applied when pushing to Shopify,
	// e.g. "22" turns 10.00 into 12.20
	MarkupPercent string
	// TitleCleanupPatterns are regular expressions removed from titles
	TitleCleanupPatterns []string
	// BatchSize is how many products one batch processes
	BatchSize int
	// StartBatch allows resuming from a batch index after interruption
	StartBatch int
	// ChunkSize is how many products one bulk API call carries
	ChunkSize int
	// PublishZeroInventory publishes zero-stock products instead of
	// keeping them as drafts
	PublishZeroInventory bool
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

var (
	// ErrMissingShopifyDomain indicates the Shopify shop domain is not set
	ErrMissingShopifyDomain = errors.New("config: shopify shop domain is required")
	// ErrMissingShopifyToken indicates the Shopify access token is not set
	ErrMissingShopifyToken = errors.New("config: shopify access token is required")
	// ErrMissingPowerBodyEndpoint indicates the PowerBody endpoint is not set
	ErrMissingPowerBodyEndpoint = errors.New("config: powerbody endpoint is required")
	// ErrMissingPowerBodyCredentials indicates PowerBody credentials are not set
	ErrMissingPowerBodyCredentials = errors.New("config: powerbody username and api key are required")
)

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with SYNC_ prefix (e.g. SYNC_SHOPIFY_ACCESSTOKEN)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return load("")
}

// LoadFrom loads configuration from an explicit file path plus environment
// variables. Used by tests and the retry tool.
func LoadFrom(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/dropsync")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Shopify: ShopifyConfig{
			ShopDomain:     v.GetString("shopify.shop_domain"),
			AccessToken:    v.GetString("shopify.access_token"),
			APIVersion:     v.GetString("shopify.api_version"),
			TimeoutSeconds: v.GetInt("shopify.timeout_seconds"),
			MaxRetries:     v.GetInt("shopify.max_retries"),
			MinCallSpacing: v.GetDuration("shopify.min_call_spacing"),
		},
		PowerBody: PowerBodyConfig{
			Endpoint:         v.GetString("powerbody.endpoint"),
			Username:         v.GetString("powerbody.username"),
			APIKey:           v.GetString("powerbody.api_key"),
			TimeoutSeconds:   v.GetInt("powerbody.timeout_seconds"),
			MaxRetries:       v.GetInt("powerbody.max_retries"),
			SessionLifetime:  v.GetDuration("powerbody.session_lifetime"),
			RetryBackoffBase: v.GetDuration("powerbody.retry_backoff_base"),
		},
		State: StateConfig{
			Path: v.GetString("state.path"),
		},
		Cache: CacheConfig{
			Dir: v.GetString("cache.dir"),
			TTL: v.GetDuration("cache.ttl"),
		},
		DeadLetter: DeadLetterConfig{
			Dir: v.GetString("deadletter.dir"),
		},
		OrderSync: OrderSyncConfig{
			OrderBatchFile: v.GetString("ordersync.order_batch_file"),
			SyncTag:        v.GetString("ordersync.sync_tag"),
		},
		ProductSync: ProductSyncConfig{
			MarkupPercent:        v.GetString("productsync.markup_percent"),
			TitleCleanupPatterns: v.GetStringSlice("productsync.title_cleanup_patterns"),
			BatchSize:            v.GetInt("productsync.batch_size"),
			StartBatch:           v.GetInt("productsync.start_batch"),
			ChunkSize:            v.GetInt("productsync.chunk_size"),
			PublishZeroInventory: v.GetBool("productsync.publish_zero_inventory"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults sets built-in default values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dropsync")
	v.SetDefault("app.env", "development")

	v.SetDefault("shopify.api_version", "2024-01")
	v.SetDefault("shopify.timeout_seconds", 30)
	v.SetDefault("shopify.max_retries", 3)
	v.SetDefault("shopify.min_call_spacing", 100*time.Millisecond)

	v.SetDefault("powerbody.timeout_seconds", 60)
	v.SetDefault("powerbody.max_retries", 3)
	v.SetDefault("powerbody.session_lifetime", 10*time.Minute)
	v.SetDefault("powerbody.retry_backoff_base", time.Second)

	v.SetDefault("state.path", "dropsync.db")

	v.SetDefault("cache.dir", "var/cache/products")
	v.SetDefault("cache.ttl", 7*24*time.Hour)

	v.SetDefault("deadletter.dir", "var/deadletter")

	v.SetDefault("ordersync.sync_tag", "pb-synced")

	v.SetDefault("productsync.markup_percent", "0")
	v.SetDefault("productsync.batch_size", 100)
	v.SetDefault("productsync.start_batch", 0)
	v.SetDefault("productsync.chunk_size", 5)
	v.SetDefault("productsync.publish_zero_inventory", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
}

// Validate checks that required credentials are present
func (c *Config) Validate() error {
	if c.Shopify.ShopDomain == "" {
		return ErrMissingShopifyDomain
	}
	if c.Shopify.AccessToken == "" {
		return ErrMissingShopifyToken
	}
	if c.PowerBody.Endpoint == "" {
		return ErrMissingPowerBodyEndpoint
	}
	if c.PowerBody.Username == "" || c.PowerBody.APIKey == "" {
		return ErrMissingPowerBodyCredentials
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
