// Package config provides configuration loading and validation for the generative
// media BFF.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RouteFamily identifies a rate-limited ingress group (spec.md §4.2).
type RouteFamily string

const (
	FamilyImageSync  RouteFamily = "image_sync"
	Family3DRefine   RouteFamily = "3d_refine"
	Family3DOther    RouteFamily = "3d_other"
	FamilyUpscale    RouteFamily = "upscale"
	FamilyDownscale  RouteFamily = "downscale"
)

// RateLimitRule is one row of the route-family rate limit table.
type RateLimitRule struct {
	Capacity     int
	RefillPerSec float64
}

// QueueName identifies a named broker queue (spec.md §4.6).
type QueueName string

const (
	QueueDefault     QueueName = "default"
	QueueAsyncOther  QueueName = "async_other"
	QueueAsyncRefine QueueName = "async_refine"
)

// Config holds all configuration values for the BFF.
type Config struct {
	AppEnv string
	Port   string

	DatabaseURL string
	BrokerURL   string

	ObjectStoreBucket   string
	ObjectStoreRegion   string
	ObjectStoreEndpoint string
	ObjectStorePrefix   string

	RegistrationSecret string
	StorefrontSuffix   string

	TestAssetsMode bool

	// QueueConcurrency maps queue name to worker pool size.
	QueueConcurrency map[QueueName]int

	// RateLimits maps route family to its token-bucket parameters.
	RateLimits map[RouteFamily]RateLimitRule

	// ProviderTimeouts maps a provider id to its sync-call / poll timeout.
	ProviderTimeouts map[string]time.Duration

	// ProviderCredentials maps a provider id to its API credential, read
	// from PROVIDER_<ID>_API_KEY.
	ProviderCredentials map[string]string

	// PollDeadlineByFamily maps an async family name to the task-level
	// poll-to-completion deadline (spec.md §5 "Cancellation & timeouts").
	PollDeadlineByFamily map[string]time.Duration

	LogLevel string
}

var knownProviders = []string{
	"provider_a", "provider_b", "provider_c", "provider_d", "provider_e", "provider_f",
}

// Load reads configuration from environment variables, applying the same
// required-var / default pattern the rest of this codebase uses.
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BrokerURL = getEnvOrDefault("BROKER_URL", "redis://localhost:6379/0")

	cfg.ObjectStoreBucket = os.Getenv("OBJECT_STORE_BUCKET")
	if cfg.ObjectStoreBucket == "" {
		missing = append(missing, "OBJECT_STORE_BUCKET")
	}

	cfg.RegistrationSecret = os.Getenv("REGISTRATION_SECRET")
	if cfg.RegistrationSecret == "" {
		missing = append(missing, "REGISTRATION_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	cfg.AppEnv = getEnvOrDefault("APP_ENV", "development")
	cfg.Port = getEnvOrDefault("PORT", "8080")

	cfg.ObjectStoreRegion = getEnvOrDefault("OBJECT_STORE_REGION", "us-east-1")
	cfg.ObjectStoreEndpoint = os.Getenv("OBJECT_STORE_ENDPOINT")
	cfg.ObjectStorePrefix = getEnvOrDefault("OBJECT_STORE_PREFIX", "")

	cfg.StorefrontSuffix = getEnvOrDefault("STOREFRONT_SUFFIX", ".storefronts.example")

	cfg.TestAssetsMode = getEnvOrDefaultBool("TEST_ASSETS_MODE", false)

	cfg.QueueConcurrency = map[QueueName]int{
		QueueDefault:     getEnvOrDefaultInt("QUEUE_CONCURRENCY_DEFAULT", 2),
		QueueAsyncOther:  getEnvOrDefaultInt("QUEUE_CONCURRENCY_ASYNC_OTHER", 10),
		QueueAsyncRefine: getEnvOrDefaultInt("QUEUE_CONCURRENCY_ASYNC_REFINE", 5),
	}

	cfg.RateLimits = map[RouteFamily]RateLimitRule{
		FamilyImageSync: {
			Capacity:     getEnvOrDefaultInt("RATE_LIMIT_IMAGE_SYNC_CAPACITY", 20),
			RefillPerSec: getEnvOrDefaultFloat("RATE_LIMIT_IMAGE_SYNC_REFILL", 2),
		},
		Family3DRefine: {
			Capacity:     getEnvOrDefaultInt("RATE_LIMIT_3D_REFINE_CAPACITY", 5),
			RefillPerSec: getEnvOrDefaultFloat("RATE_LIMIT_3D_REFINE_REFILL", 0.5),
		},
		Family3DOther: {
			Capacity:     getEnvOrDefaultInt("RATE_LIMIT_3D_OTHER_CAPACITY", 10),
			RefillPerSec: getEnvOrDefaultFloat("RATE_LIMIT_3D_OTHER_REFILL", 1),
		},
		FamilyUpscale: {
			Capacity:     getEnvOrDefaultInt("RATE_LIMIT_UPSCALE_CAPACITY", 15),
			RefillPerSec: getEnvOrDefaultFloat("RATE_LIMIT_UPSCALE_REFILL", 1.5),
		},
		FamilyDownscale: {
			Capacity:     getEnvOrDefaultInt("RATE_LIMIT_DOWNSCALE_CAPACITY", 30),
			RefillPerSec: getEnvOrDefaultFloat("RATE_LIMIT_DOWNSCALE_REFILL", 5),
		},
	}

	cfg.ProviderCredentials = map[string]string{}
	for _, p := range knownProviders {
		envKey := "PROVIDER_" + strings.ToUpper(p) + "_API_KEY"
		if v := os.Getenv(envKey); v != "" {
			cfg.ProviderCredentials[p] = v
		}
	}

	cfg.ProviderTimeouts = map[string]time.Duration{}
	for _, p := range knownProviders {
		envKey := "PROVIDER_" + strings.ToUpper(p) + "_TIMEOUT_SECONDS"
		seconds := getEnvOrDefaultInt(envKey, 30)
		cfg.ProviderTimeouts[p] = time.Duration(seconds) * time.Second
	}

	cfg.PollDeadlineByFamily = map[string]time.Duration{
		string(Family3DOther):  time.Duration(getEnvOrDefaultInt("POLL_DEADLINE_3D_OTHER_SECONDS", 600)) * time.Second,
		string(Family3DRefine): time.Duration(getEnvOrDefaultInt("POLL_DEADLINE_3D_REFINE_SECONDS", 300)) * time.Second,
	}

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
