// Package config provides configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "KMLSVC"

// Config represents the service configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Converter ConverterConfig `mapstructure:"converter"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	StoreSize       int           `mapstructure:"store_size"` // Recent conversions kept in memory
	AllowedSchemes  []string      `mapstructure:"allowed_schemes"` // URI schemes the API may fetch; empty allows uploads only
}

// SourceSchemes lists the URI schemes a resolver can serve.
var SourceSchemes = []string{"file", "s3", "azblob", "http", "https"}

// ConverterConfig holds conversion pipeline settings.
type ConverterConfig struct {
	MaxPoints int `mapstructure:"max_points"`
}

// SourcesConfig holds settings for fetching documents from remote locations.
type SourcesConfig struct {
	MaxBytes int64       `mapstructure:"max_bytes"`
	S3       S3Config    `mapstructure:"s3"`
	Azure    AzureConfig `mapstructure:"azure"`
	HTTP     HTTPConfig  `mapstructure:"http"`
}

// S3Config represents S3/R2 connection settings
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"` // Empty uses the AWS default
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Region          string `mapstructure:"region"`
}

// AzureConfig holds Azure Blob Storage credentials.
type AzureConfig struct {
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
}

// Configured reports whether any Azure credential is set.
func (c *AzureConfig) Configured() bool {
	return c.ConnectionString != "" || c.AccountName != ""
}

// HTTPConfig holds HTTP download settings.
type HTTPConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Dir       string        `mapstructure:"dir"`
	OutputDir string        `mapstructure:"output_dir"` // Empty writes next to the input
	Debounce  time.Duration `mapstructure:"debounce"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json
}

// Defaults sets the default configuration values on v.
func Defaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 64<<20)
	v.SetDefault("server.store_size", 100)
	v.SetDefault("server.allowed_schemes", []string{})

	v.SetDefault("converter.max_points", 1000)

	v.SetDefault("sources.max_bytes", 256<<20)
	v.SetDefault("sources.s3.region", "us-east-1")
	v.SetDefault("sources.http.timeout", 2*time.Minute)

	v.SetDefault("watch.dir", ".")
	v.SetDefault("watch.debounce", 500*time.Millisecond)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "kmlsvc")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Load reads configuration into the global viper instance, which is where the
// CLI binds its flags.
func Load(configPath string) (*Config, error) {
	return LoadFrom(viper.GetViper(), configPath)
}

// LoadFrom reads configuration from defaults, an optional config file and the
// environment. A path ending in .env prefers a sibling .env.local when present.
func LoadFrom(v *viper.Viper, configPath string) (*Config, error) {
	Defaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(preferLocal(configPath))
		if strings.HasSuffix(configPath, ".env") {
			v.SetConfigType("env")
		}
	} else {
		v.SetConfigName("kml-service")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/kml-service")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// preferLocal returns path.local for .env files when it exists, so local
// development settings override shared ones.
func preferLocal(path string) string {
	if !strings.HasSuffix(path, ".env") {
		return path
	}
	local := path + ".local"
	if _, err := os.Stat(local); err == nil {
		return local
	}
	return path
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	if c.Server.StoreSize < 1 {
		return fmt.Errorf("server.store_size must be at least 1")
	}
	for _, scheme := range c.Server.AllowedSchemes {
		if !knownScheme(scheme) {
			return fmt.Errorf("server.allowed_schemes: unknown scheme %q", scheme)
		}
	}
	if c.Converter.MaxPoints < 2 {
		return fmt.Errorf("converter.max_points must be at least 2, got %d", c.Converter.MaxPoints)
	}
	if c.Sources.MaxBytes <= 0 {
		return fmt.Errorf("sources.max_bytes must be positive")
	}
	if c.Sources.S3.AccessKeyID != "" && c.Sources.S3.SecretAccessKey == "" {
		return fmt.Errorf("sources.s3.secret_access_key is required when an access key id is set")
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format: %s", c.Logging.Format)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.Logging.Level)
	}

	return nil
}

func knownScheme(scheme string) bool {
	for _, s := range SourceSchemes {
		if strings.EqualFold(s, scheme) {
			return true
		}
	}
	return false
}

// Address returns the server listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
