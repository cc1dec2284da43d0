package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("linkedin-link version %s, commit %s, built at %s", version, commit, date)
}

// EnvPrefix is the prefix for every environment variable read by Load.
const EnvPrefix = "LINKEDIN_LINK"

type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	LinkedIn  LinkedInConfig  `mapstructure:"linkedin" yaml:"linkedin"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	State     StateConfig     `mapstructure:"state" yaml:"state"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" yaml:"port"`
	Host            string        `mapstructure:"host" yaml:"host"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	AllowOrigins    []string      `mapstructure:"allow_origins" yaml:"allow_origins"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggingConfig struct {
	Level             string `mapstructure:"level" yaml:"level"`
	Format            string `mapstructure:"format" yaml:"format"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace" yaml:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path" yaml:"output_path"`
	AppendToFile      bool   `mapstructure:"append_to_file" yaml:"append_to_file"`
	DisableConsole    bool   `mapstructure:"disable_console" yaml:"disable_console"`
}

// LinkedInConfig holds the OAuth client registration and the provider endpoints.
type LinkedInConfig struct {
	ClientID       string            `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret   string            `mapstructure:"client_secret" yaml:"client_secret"`
	RedirectURI    string            `mapstructure:"redirect_uri" yaml:"redirect_uri"`
	Scopes         []string          `mapstructure:"scopes" yaml:"scopes"`
	AuthURL        string            `mapstructure:"auth_url" yaml:"auth_url"`
	TokenURL       string            `mapstructure:"token_url" yaml:"token_url"`
	APIBaseURL     string            `mapstructure:"api_base_url" yaml:"api_base_url"`
	PostsCount     int               `mapstructure:"posts_count" yaml:"posts_count"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout" yaml:"request_timeout"`
	Headers        map[string]string `mapstructure:"headers" yaml:"headers"`
}

// VerifierType selects how bearer credentials on inbound requests are checked.
type VerifierType string

const (
	VerifierJWT  VerifierType = "jwt"
	VerifierOIDC VerifierType = "oidc"
)

type AuthConfig struct {
	Verifier  VerifierType `mapstructure:"verifier" yaml:"verifier"`
	JWTSecret string       `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	Issuer    string       `mapstructure:"issuer" yaml:"issuer"`
	Audience  string       `mapstructure:"audience" yaml:"audience"`
}

type StateBackend string

const (
	StateBackendMemory StateBackend = "memory"
	StateBackendRedis  StateBackend = "redis"
)

type StateConfig struct {
	Backend       StateBackend  `mapstructure:"backend" yaml:"backend"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" yaml:"redis_db"`
	KeyPrefix     string        `mapstructure:"key_prefix" yaml:"key_prefix"`
}

type StorageBackend string

const (
	StorageBackendBolt     StorageBackend = "bolt"
	StorageBackendSQLite   StorageBackend = "sqlite"
	StorageBackendPostgres StorageBackend = "postgres"
)

type StorageConfig struct {
	Backend  StorageBackend `mapstructure:"backend" yaml:"backend"`
	Path     string         `mapstructure:"path" yaml:"path"`
	DSN      string         `mapstructure:"dsn" yaml:"dsn"`
	MaxConns int32          `mapstructure:"max_conns" yaml:"max_conns"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" yaml:"service_name"`
}

// InitFlags initializes command line flags (without parsing)
func InitFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to a config file (defaults to ./config.yaml)")
	flags.Int("server.port", 0, "Port to listen on")
	flags.String("storage.backend", "", "Storage backend (bolt|sqlite|postgres)")
	flags.String("logging.level", "", "Log level (debug|info|warn|error)")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.allow_origins", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.disable_stacktrace", false)
	v.SetDefault("logging.output_path", "")
	v.SetDefault("logging.append_to_file", false)
	v.SetDefault("logging.disable_console", false)

	v.SetDefault("linkedin.client_id", "")
	v.SetDefault("linkedin.client_secret", "")
	v.SetDefault("linkedin.redirect_uri", "")
	v.SetDefault("linkedin.scopes", []string{"openid", "profile", "email"})
	v.SetDefault("linkedin.auth_url", "https://www.linkedin.com/oauth/v2/authorization")
	v.SetDefault("linkedin.token_url", "https://www.linkedin.com/oauth/v2/accessToken")
	v.SetDefault("linkedin.api_base_url", "https://api.linkedin.com")
	v.SetDefault("linkedin.posts_count", 10)
	v.SetDefault("linkedin.request_timeout", 10*time.Second)
	v.SetDefault("linkedin.headers", map[string]string{"X-Restli-Protocol-Version": "2.0.0"})

	v.SetDefault("auth.verifier", string(VerifierJWT))
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")

	v.SetDefault("state.backend", string(StateBackendMemory))
	v.SetDefault("state.ttl", 10*time.Minute)
	v.SetDefault("state.redis_addr", "localhost:6379")
	v.SetDefault("state.redis_password", "")
	v.SetDefault("state.redis_db", 0)
	v.SetDefault("state.key_prefix", "linkedin-link:state:")

	v.SetDefault("storage.backend", string(StorageBackendBolt))
	v.SetDefault("storage.path", "linkedin-link.db")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.max_conns", 0)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "linkedin-link")
}

// Load reads configuration from the optional config file, the environment
// and any flags already parsed into flags (which may be nil).
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			// Unset flags must not shadow file or env values with zero values.
			if bindErr != nil || !f.Changed || f.Name == "config" {
				return
			}
			bindErr = v.BindPFlag(f.Name, f)
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	configFile := ""
	if flags != nil {
		if f := flags.Lookup("config"); f != nil {
			configFile = f.Value.String()
		}
	}
	if configFile == "" {
		configFile = os.Getenv(EnvPrefix + "_CONFIG")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/linkedin-link")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// The config file is optional unless it was named explicitly
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the fields that have no usable default.
func (c *Config) Validate() error {
	if c.LinkedIn.ClientID == "" {
		return fmt.Errorf("linkedin.client_id is required, please adjust the config or set %s_LINKEDIN_CLIENT_ID", EnvPrefix)
	}
	if c.LinkedIn.ClientSecret == "" {
		return fmt.Errorf("linkedin.client_secret is required, please adjust the config or set %s_LINKEDIN_CLIENT_SECRET", EnvPrefix)
	}
	if c.LinkedIn.RedirectURI == "" {
		return fmt.Errorf("linkedin.redirect_uri is required, please adjust the config or set %s_LINKEDIN_REDIRECT_URI", EnvPrefix)
	}
	if c.LinkedIn.RequestTimeout <= 0 {
		return fmt.Errorf("linkedin.request_timeout must be positive")
	}

	switch c.Auth.Verifier {
	case VerifierJWT:
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is required for the jwt verifier")
		}
	case VerifierOIDC:
		if c.Auth.Issuer == "" || c.Auth.Audience == "" {
			return fmt.Errorf("auth.issuer and auth.audience are required for the oidc verifier")
		}
	default:
		return fmt.Errorf("unsupported auth.verifier: %q", c.Auth.Verifier)
	}

	switch c.State.Backend {
	case StateBackendMemory, StateBackendRedis:
	default:
		return fmt.Errorf("unsupported state.backend: %q", c.State.Backend)
	}
	if c.State.TTL <= 0 {
		return fmt.Errorf("state.ttl must be positive")
	}

	switch c.Storage.Backend {
	case StorageBackendBolt, StorageBackendSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the %s backend", c.Storage.Backend)
		}
	case StorageBackendPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unsupported storage.backend: %q", c.Storage.Backend)
	}

	return nil
}

const redacted = "<redacted>"

// Redacted returns a copy with every secret replaced, safe to print.
func (c Config) Redacted() Config {
	if c.LinkedIn.ClientSecret != "" {
		c.LinkedIn.ClientSecret = redacted
	}
	if c.Auth.JWTSecret != "" {
		c.Auth.JWTSecret = redacted
	}
	if c.State.RedisPassword != "" {
		c.State.RedisPassword = redacted
	}
	if c.Storage.DSN != "" {
		c.Storage.DSN = redacted
	}
	return c
}
