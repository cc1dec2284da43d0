package config

import "go.uber.org/fx"

// Module exposes the config sections to the packages that only need one of them.
var Module = fx.Module("config",
	fx.Provide(
		func(c *Config) *ServerConfig { return &c.Server },
		func(c *Config) *LoggingConfig { return &c.Logging },
		func(c *Config) *LinkedInConfig { return &c.LinkedIn },
		func(c *Config) *AuthConfig { return &c.Auth },
		func(c *Config) *StateConfig { return &c.State },
		func(c *Config) *StorageConfig { return &c.Storage },
		func(c *Config) *TelemetryConfig { return &c.Telemetry },
	),
)
