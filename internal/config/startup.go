// Package config provides configuration loading and startup logging for the
// generative media BFF.
package config

import (
	"log/slog"
)

// LogStartupConfig logs the server configuration at startup.
// Provider credentials are never logged, only how many are configured; the
// registration secret is not logged at all.
func LogStartupConfig(logger *slog.Logger, cfg *Config, dbConnected, brokerConnected bool) {
	env := "unknown"
	if cfg != nil && cfg.AppEnv != "" {
		env = cfg.AppEnv
	}

	dbStatus := "not connected"
	if dbConnected {
		dbStatus = "connected"
	}

	brokerStatus := "not connected"
	if brokerConnected {
		brokerStatus = "connected"
	}

	logger.Info("bff configuration",
		"environment", env,
		"database", dbStatus,
		"broker", brokerStatus,
		"test_assets_mode", cfg != nil && cfg.TestAssetsMode,
	)

	if cfg != nil {
		configuredProviders := 0
		for range cfg.ProviderCredentials {
			configuredProviders++
		}
		logger.Info("provider credentials", "configured_count", configuredProviders)

		logger.Info("queue concurrency",
			"default", cfg.QueueConcurrency[QueueDefault],
			"async_other", cfg.QueueConcurrency[QueueAsyncOther],
			"async_refine", cfg.QueueConcurrency[QueueAsyncRefine],
		)
	}
}
