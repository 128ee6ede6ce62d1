package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Square    SquareConfig    `json:"square"`
	Catalog   CatalogConfig   `json:"catalog"`
	Cache     CacheConfig     `json:"cache"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Mocks     MockConfig      `json:"mocks"`
}

type SquareConfig struct {
	AccessToken string   `json:"access_token"`
	BaseURL     string   `json:"base_url"`
	Version     string   `json:"version"` // Square-Version header
	LocationIDs []string `json:"location_ids"`
	RetryMax    int      `json:"retry_max"`

	HTTPClient *http.Client `json:"-"` // tests only
}

// UnknownInventoryPolicy decides the status of an item the inventory
// endpoint never reported on.
type UnknownInventoryPolicy string

const (
	UnknownInventoryUnavailable UnknownInventoryPolicy = "unavailable"
	UnknownInventoryAvailable   UnknownInventoryPolicy = "available"
)

type CatalogConfig struct {
	PageSize             int                    `json:"page_size"`
	DefaultGroup         string                 `json:"default_group"`
	UnknownInventory     UnknownInventoryPolicy `json:"unknown_inventory"`
	StrictStockFilter    bool                   `json:"strict_stock_filter"`
	InventoryBatchSize   int                    `json:"inventory_batch_size"`
	InventoryConcurrency int                    `json:"inventory_concurrency"`
	SiteURL              string                 `json:"site_url"` // public storefront origin for sitemaps
}

type CacheConfig struct {
	Dir              string `json:"dir"`
	RedisAddr        string `json:"redis_addr"`
	RedisPassword    string `json:"redis_password"`
	AzureAccountName string `json:"azure_account_name"`
	AzureAccountKey  string `json:"azure_account_key"`
	AzureContainer   string `json:"azure_container"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `json:"otlp_endpoint"`
	ServiceName  string `json:"service_name"`
	LogLevel     string `json:"log_level"`

	// Append-blob log sink, enabled when LogContainer is set.
	LogContainer   string `json:"log_container"`
	LogAccountName string `json:"log_account_name"`
	LogAccountKey  string `json:"log_account_key"`
}

type MockConfig struct {
	Enable bool `json:"enable"`
}

const (
	DefaultSquareBaseURL = "https://connect.squareup.com"
	DefaultSquareVersion = "2024-07-17"
	DefaultSiteURL       = "https://mavcollectibles.com"
)

func Load() (*Config, error) {
	config := &Config{
		Square: SquareConfig{
			AccessToken: os.Getenv("SQUARE_ACCESS_TOKEN"),
			BaseURL:     getEnvOrDefault("SQUARE_BASE_URL", DefaultSquareBaseURL),
			Version:     getEnvOrDefault("SQUARE_VERSION", DefaultSquareVersion),
			LocationIDs: splitList(os.Getenv("SQUARE_LOCATION_IDS")),
		},
		Catalog: CatalogConfig{
			DefaultGroup:     getEnvOrDefault("CATALOG_DEFAULT_GROUP", "general"),
			SiteURL:          strings.TrimRight(getEnvOrDefault("SITE_URL", DefaultSiteURL), "/"),
			UnknownInventory: UnknownInventoryPolicy(strings.ToLower(getEnvOrDefault("CATALOG_UNKNOWN_INVENTORY", string(UnknownInventoryUnavailable)))),
		},
		Cache: CacheConfig{
			Dir:              getEnvOrDefault("CACHE_DIR", "cache"),
			RedisAddr:        os.Getenv("REDIS_ADDR"),
			RedisPassword:    os.Getenv("REDIS_PASS"),
			AzureAccountName: os.Getenv("AZURE_STORAGE_ACCOUNT_NAME"),
			AzureAccountKey:  os.Getenv("AZURE_STORAGE_PRIMARY_ACCOUNT_KEY"),
			AzureContainer:   getEnvOrDefault("AZURE_STORAGE_CONTAINER", "catalog"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:  getEnvOrDefault("OTEL_SERVICE_NAME", "mavshop"),
			LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),

			LogContainer:   os.Getenv("LOG_BLOB_CONTAINER"),
			LogAccountName: os.Getenv("AZURE_STORAGE_ACCOUNT_NAME"),
			LogAccountKey:  os.Getenv("AZURE_STORAGE_PRIMARY_ACCOUNT_KEY"),
		},
	}

	var err error
	if config.Square.RetryMax, err = getIntOrDefault("SQUARE_RETRY_MAX", 3); err != nil {
		return nil, err
	}
	if config.Catalog.PageSize, err = getIntOrDefault("CATALOG_PAGE_SIZE", 100); err != nil {
		return nil, err
	}
	if config.Catalog.InventoryBatchSize, err = getIntOrDefault("CATALOG_INVENTORY_BATCH_SIZE", 100); err != nil {
		return nil, err
	}
	if config.Catalog.InventoryConcurrency, err = getIntOrDefault("CATALOG_INVENTORY_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if config.Catalog.StrictStockFilter, err = getBoolOrDefault("CATALOG_STRICT_STOCK_FILTER", false); err != nil {
		return nil, err
	}
	if config.Mocks.Enable, err = getBoolOrDefault("MOCKS_ENABLE", false); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks settings that would otherwise fail on the first request.
func (c *Config) Validate() error {
	var errs []error
	if !c.Mocks.Enable && strings.TrimSpace(c.Square.AccessToken) == "" {
		errs = append(errs, errors.New("SQUARE_ACCESS_TOKEN is required unless MOCKS_ENABLE=true"))
	}
	// Square caps search pages at 1000 objects.
	if c.Catalog.PageSize < 1 || c.Catalog.PageSize > 1000 {
		errs = append(errs, fmt.Errorf("catalog page size must be between 1 and 1000, got %d", c.Catalog.PageSize))
	}
	if c.Catalog.InventoryBatchSize < 1 || c.Catalog.InventoryBatchSize > 1000 {
		errs = append(errs, fmt.Errorf("inventory batch size must be between 1 and 1000, got %d", c.Catalog.InventoryBatchSize))
	}
	if c.Catalog.InventoryConcurrency < 1 {
		errs = append(errs, fmt.Errorf("inventory concurrency must be positive, got %d", c.Catalog.InventoryConcurrency))
	}
	switch c.Catalog.UnknownInventory {
	case UnknownInventoryAvailable, UnknownInventoryUnavailable:
	default:
		errs = append(errs, fmt.Errorf("unknown inventory policy %q, want %q or %q", c.Catalog.UnknownInventory, UnknownInventoryUnavailable, UnknownInventoryAvailable))
	}
	if c.Square.RetryMax < 0 {
		errs = append(errs, fmt.Errorf("square retry max must not be negative, got %d", c.Square.RetryMax))
	}
	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getBoolOrDefault(key string, defaultValue bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
