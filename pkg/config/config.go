package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Credential backends
const (
	CredentialBackendFile   = "file"
	CredentialBackendRedis  = "redis"
	CredentialBackendMemory = "memory"
)

// Journal backends
const (
	JournalBackendNone     = "none"
	JournalBackendMemory   = "memory"
	JournalBackendPostgres = "postgres"
)

// Config holds all client configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Credential CredentialConfig `mapstructure:"credential"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Journal    JournalConfig    `mapstructure:"journal"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Workflow   WorkflowConfig   `mapstructure:"workflow"`
	Log        LogConfig        `mapstructure:"log"`
	OTel       OTelConfig       `mapstructure:"otel"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	Debug       bool   `mapstructure:"debug"`
	Version     string `mapstructure:"version"`
}

// GatewayConfig holds remote service settings
type GatewayConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// CredentialConfig selects where the session credential is persisted
type CredentialConfig struct {
	Backend    string        `mapstructure:"backend"`
	File       string        `mapstructure:"file"`
	AgeKeyFile string        `mapstructure:"age_key_file"` // optional, seals the credential file
	RedisKey   string        `mapstructure:"redis_key"`
	TTL        time.Duration `mapstructure:"ttl"` // 0 = no expiry
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Addr returns the Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JournalConfig selects the submission journal store
type JournalConfig struct {
	Backend string `mapstructure:"backend"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// WorkflowConfig holds authoring workflow settings
type WorkflowConfig struct {
	UploadConcurrency int    `mapstructure:"upload_concurrency"` // 0 = all uploads at once
	Timezone          string `mapstructure:"timezone"`
}

// Location resolves the configured time zone
func (w *WorkflowConfig) Location() (*time.Location, error) {
	if w.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(w.Timezone)
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServiceName   string `mapstructure:"service_name"`
	CollectorAddr string `mapstructure:"collector_addr"`
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")

	// A missing .env is fine, environment variables still apply
	_ = v.ReadInConfig()

	return load(v)
}

// LoadWithPath loads configuration from a specific path
func LoadWithPath(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{}
	if err := bindConfig(v, cfg); err != nil {
		return nil, fmt.Errorf("failed to bind config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("APP_NAME", "event-studio")
	v.SetDefault("APP_ENVIRONMENT", "development")
	v.SetDefault("APP_DEBUG", false)
	v.SetDefault("APP_VERSION", "1.0.0")

	// Gateway defaults
	v.SetDefault("GATEWAY_BASE_URL", "http://localhost:5000/api")
	v.SetDefault("GATEWAY_TIMEOUT", "30s")
	v.SetDefault("GATEWAY_USER_AGENT", "event-studio")

	// Credential defaults
	v.SetDefault("CREDENTIAL_BACKEND", CredentialBackendFile)
	v.SetDefault("CREDENTIAL_FILE", defaultCredentialFile())
	v.SetDefault("CREDENTIAL_AGE_KEY_FILE", "")
	v.SetDefault("CREDENTIAL_REDIS_KEY", "event-studio:credential")
	v.SetDefault("CREDENTIAL_TTL", "0s")

	// Redis defaults
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")

	// Journal and database defaults
	v.SetDefault("JOURNAL_BACKEND", JournalBackendMemory)
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "postgres")
	v.SetDefault("DATABASE_DBNAME", "event_studio")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_CONNS", 4)

	// Workflow defaults
	v.SetDefault("WORKFLOW_UPLOAD_CONCURRENCY", 0)
	v.SetDefault("WORKFLOW_TIMEZONE", "UTC")

	// Log defaults
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_OUTPUT", "stderr")

	// OTel defaults
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "event-studio")
	v.SetDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")
}

func bindConfig(v *viper.Viper, cfg *Config) error {
	// App
	cfg.App.Name = v.GetString("APP_NAME")
	cfg.App.Environment = v.GetString("APP_ENVIRONMENT")
	cfg.App.Debug = v.GetBool("APP_DEBUG")
	cfg.App.Version = v.GetString("APP_VERSION")

	// Gateway
	cfg.Gateway.BaseURL = strings.TrimRight(v.GetString("GATEWAY_BASE_URL"), "/")
	cfg.Gateway.Timeout = v.GetDuration("GATEWAY_TIMEOUT")
	cfg.Gateway.UserAgent = v.GetString("GATEWAY_USER_AGENT")

	// Credential
	cfg.Credential.Backend = strings.ToLower(v.GetString("CREDENTIAL_BACKEND"))
	cfg.Credential.File = v.GetString("CREDENTIAL_FILE")
	cfg.Credential.AgeKeyFile = v.GetString("CREDENTIAL_AGE_KEY_FILE")
	cfg.Credential.RedisKey = v.GetString("CREDENTIAL_REDIS_KEY")
	cfg.Credential.TTL = v.GetDuration("CREDENTIAL_TTL")

	// Redis
	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetInt("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Redis.DialTimeout = v.GetDuration("REDIS_DIAL_TIMEOUT")

	// Journal / Database
	cfg.Journal.Backend = strings.ToLower(v.GetString("JOURNAL_BACKEND"))
	cfg.Database.Host = v.GetString("DATABASE_HOST")
	cfg.Database.Port = v.GetInt("DATABASE_PORT")
	cfg.Database.User = v.GetString("DATABASE_USER")
	cfg.Database.Password = v.GetString("DATABASE_PASSWORD")
	cfg.Database.DBName = v.GetString("DATABASE_DBNAME")
	cfg.Database.SSLMode = v.GetString("DATABASE_SSLMODE")
	cfg.Database.MaxConns = v.GetInt32("DATABASE_MAX_CONNS")

	// Workflow
	cfg.Workflow.UploadConcurrency = v.GetInt("WORKFLOW_UPLOAD_CONCURRENCY")
	cfg.Workflow.Timezone = v.GetString("WORKFLOW_TIMEZONE")

	// Log
	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Log.Output = v.GetString("LOG_OUTPUT")

	// OTel
	cfg.OTel.Enabled = v.GetBool("OTEL_ENABLED")
	cfg.OTel.ServiceName = v.GetString("OTEL_SERVICE_NAME")
	cfg.OTel.CollectorAddr = v.GetString("OTEL_COLLECTOR_ADDR")

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}

	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway base URL is required")
	}

	if c.Gateway.Timeout < 0 {
		return fmt.Errorf("invalid gateway timeout: %s", c.Gateway.Timeout)
	}

	switch c.Credential.Backend {
	case CredentialBackendFile:
		if c.Credential.File == "" {
			return fmt.Errorf("credential file is required for the file backend")
		}
	case CredentialBackendRedis:
		if c.Credential.RedisKey == "" {
			return fmt.Errorf("credential redis key is required for the redis backend")
		}
	case CredentialBackendMemory:
	default:
		return fmt.Errorf("unknown credential backend: %q", c.Credential.Backend)
	}

	switch c.Journal.Backend {
	case JournalBackendNone, JournalBackendMemory:
	case JournalBackendPostgres:
		if err := c.ValidateDatabase(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown journal backend: %q", c.Journal.Backend)
	}

	if c.Workflow.UploadConcurrency < 0 {
		return fmt.Errorf("invalid upload concurrency: %d", c.Workflow.UploadConcurrency)
	}

	if _, err := c.Workflow.Location(); err != nil {
		return fmt.Errorf("invalid workflow timezone: %w", err)
	}

	// Plain HTTP leaks the credential outside development
	if c.IsProduction() && strings.HasPrefix(c.Gateway.BaseURL, "http://") {
		return fmt.Errorf("gateway base URL must use https in production")
	}

	return nil
}

// ValidateDatabase validates the database settings used by the postgres journal
func (c *Config) ValidateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
