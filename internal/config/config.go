// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// MONITOR_SERVICE_MONITOR_FLUSH_INTERVAL=16ms
const EnvPrefix = "MONITOR_SERVICE"

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Database DatabaseConfig `mapstructure:"database"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Client   ClientConfig   `mapstructure:"client"`
	App      AppConfig      `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host" validate:"required"`
	Port         string        `mapstructure:"port" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLS          TLSConfig     `mapstructure:"tls"`
}

// TLSConfig represents TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// StreamConfig configures the websocket that carries serial data. Port 0
// lets the system assign one.
type StreamConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	SendBuffer int    `mapstructure:"send_buffer"`
}

// MonitorConfig represents monitor connection behaviour
type MonitorConfig struct {
	LineEnding       string        `mapstructure:"line_ending"`
	FlushInterval    time.Duration `mapstructure:"flush_interval"`
	MaxBatchBytes    int           `mapstructure:"max_batch_bytes"`
	MaxChars         int           `mapstructure:"max_chars"`
	AutoConnect      bool          `mapstructure:"auto_connect"`
	DefaultBaudRate  int           `mapstructure:"default_baud_rate"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	BackoffUnit      time.Duration `mapstructure:"backoff_unit"`
	MaxErrorHistory  int           `mapstructure:"max_error_history"`
	PortPollInterval time.Duration `mapstructure:"port_poll_interval"`
}

// DatabaseConfig represents database configuration. When disabled the event
// journal is kept in memory.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxLifetime     time.Duration `mapstructure:"max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" validate:"required"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// ClientConfig is used by the monitor command line client
type ClientConfig struct {
	ServerURL      string        `mapstructure:"server_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from the default locations and the environment
func Load() (*Config, error) {
	return LoadWith(viper.New(), "")
}

// LoadWith loads configuration into v. An explicit file must exist; without
// one the default search paths are tried and a missing file is not an error.
func LoadWith(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/monitor-service")
	}

	// Environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8084")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.tls.enabled", false)

	// Stream defaults
	v.SetDefault("stream.host", "127.0.0.1")
	v.SetDefault("stream.port", 0)
	v.SetDefault("stream.send_buffer", 256)

	// Monitor defaults
	v.SetDefault("monitor.line_ending", "\n")
	v.SetDefault("monitor.flush_interval", "32ms")
	v.SetDefault("monitor.max_batch_bytes", 4096)
	v.SetDefault("monitor.max_chars", 1_000_000)
	v.SetDefault("monitor.auto_connect", true)
	v.SetDefault("monitor.default_baud_rate", 9600)
	v.SetDefault("monitor.read_timeout", "50ms")
	v.SetDefault("monitor.backoff_unit", "1s")
	v.SetDefault("monitor.max_error_history", 10)
	v.SetDefault("monitor.port_poll_interval", "1s")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "monitor_service")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "migrations")
	v.SetDefault("database.retention", "720h")
	v.SetDefault("database.cleanup_interval", "1h")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Client defaults
	v.SetDefault("client.server_url", "http://127.0.0.1:8084")
	v.SetDefault("client.request_timeout", "10s")

	// App defaults
	v.SetDefault("app.name", "monitor-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.Stream.Port < 0 || config.Stream.Port > 65535 {
		return fmt.Errorf("stream.port out of range: %d", config.Stream.Port)
	}
	if config.Monitor.FlushInterval <= 0 {
		return fmt.Errorf("monitor.flush_interval must be positive")
	}
	if config.Monitor.MaxBatchBytes <= 0 {
		return fmt.Errorf("monitor.max_batch_bytes must be positive")
	}
	if config.Monitor.MaxChars < 0 {
		return fmt.Errorf("monitor.max_chars must not be negative")
	}
	if config.Monitor.MaxErrorHistory <= 0 {
		return fmt.Errorf("monitor.max_error_history must be positive")
	}
	if config.Monitor.PortPollInterval <= 0 {
		return fmt.Errorf("monitor.port_poll_interval must be positive")
	}
	if config.Database.Enabled && config.Database.Host == "" {
		return fmt.Errorf("database.host is required when the database is enabled")
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	if !slices.Contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !slices.Contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
