package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	OTel         OTelConfig         `mapstructure:"otel"`
	Payment      PaymentConfig      `mapstructure:"payment"`
	Subscription SubscriptionConfig `mapstructure:"subscription"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Admin        AdminConfig        `mapstructure:"admin"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	Debug       bool   `mapstructure:"debug"`
	Version     string `mapstructure:"version"`
	LogLevel    string `mapstructure:"log_level"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// PublicBaseURL is used to build gateway callback and redirect URLs
	PublicBaseURL string `mapstructure:"public_base_url"`
	// AllowOrigins for CORS, comma separated in env
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	// Driver is postgres, or memory for a throwaway in-process store
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	// QueryTimeout bounds every repository call
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// KafkaConfig holds Kafka/Redpanda connection settings
type KafkaConfig struct {
	Enabled           bool     `mapstructure:"enabled"`
	Brokers           []string `mapstructure:"brokers"`
	ClientID          string   `mapstructure:"client_id"`
	NotificationTopic string   `mapstructure:"notification_topic"`
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServiceName   string `mapstructure:"service_name"`
	CollectorAddr string `mapstructure:"collector_addr"`
}

// PaymentConfig holds gateway settings
type PaymentConfig struct {
	// Mode is the fallback payment mode when no system setting is stored: sandbox or live
	Mode           string        `mapstructure:"mode"`
	Currency       string        `mapstructure:"currency"`
	GatewayTimeout time.Duration `mapstructure:"gateway_timeout"`
	NotifyTimeout  time.Duration `mapstructure:"notify_timeout"`

	BillplzBaseURL      string `mapstructure:"billplz_base_url"`
	BillplzAPIKey       string `mapstructure:"billplz_api_key"`
	BillplzCollectionID string `mapstructure:"billplz_collection_id"`
	// BillplzXSignatureKey verifies callbacks when set
	BillplzXSignatureKey string `mapstructure:"billplz_x_signature_key"`

	StripeSecretKey     string `mapstructure:"stripe_secret_key"`
	StripeWebhookSecret string `mapstructure:"stripe_webhook_secret"`
}

// SubscriptionConfig holds plan and trial settings
type SubscriptionConfig struct {
	PlanPrices       map[string]decimal.Decimal `mapstructure:"plan_prices"`
	TermDays         int                        `mapstructure:"term_days"`
	TrialPeriodDays  int                        `mapstructure:"trial_period_days"`
	SettingsCacheTTL time.Duration              `mapstructure:"settings_cache_ttl"`
}

// CacheConfig holds public listing cache settings
type CacheConfig struct {
	Backend string        `mapstructure:"backend"` // memory or redis
	TTL     time.Duration `mapstructure:"ttl"`
}

// AdminConfig holds the admin allowlist and notification recipient
type AdminConfig struct {
	Emails            []string `mapstructure:"emails"`
	NotificationEmail string   `mapstructure:"notification_email"`
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")

	// .env is optional, environment variables may carry everything
	_ = v.ReadInConfig()

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

// LoadWithPath loads configuration from a specific path
func LoadWithPath(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

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
	v.SetDefault("APP_NAME", "permitakaun")
	v.SetDefault("APP_ENVIRONMENT", "development")
	v.SetDefault("APP_DEBUG", true)
	v.SetDefault("APP_VERSION", "1.0.0")
	v.SetDefault("APP_LOG_LEVEL", "info")

	// Server defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", "30s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "120s")
	v.SetDefault("SERVER_PUBLIC_BASE_URL", "http://localhost:8080")
	v.SetDefault("SERVER_ALLOW_ORIGINS", "*")

	// Database defaults
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "postgres")
	v.SetDefault("DATABASE_DBNAME", "permitakaun")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "1h")
	v.SetDefault("DATABASE_CONN_MAX_IDLE_TIME", "30m")
	v.SetDefault("DATABASE_QUERY_TIMEOUT", "5s")

	// Redis defaults
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 20)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("REDIS_READ_TIMEOUT", "3s")
	v.SetDefault("REDIS_WRITE_TIMEOUT", "3s")

	// Kafka defaults
	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_CLIENT_ID", "permitakaun")
	v.SetDefault("KAFKA_NOTIFICATION_TOPIC", "permitakaun.notifications")

	// JWT defaults
	v.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	v.SetDefault("JWT_ISSUER", "permitakaun")

	// OTel defaults
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "permitakaun")
	v.SetDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")

	// Payment defaults
	v.SetDefault("PAYMENT_MODE", "sandbox")
	v.SetDefault("PAYMENT_CURRENCY", "myr")
	v.SetDefault("PAYMENT_GATEWAY_TIMEOUT", "10s")
	v.SetDefault("PAYMENT_NOTIFY_TIMEOUT", "3s")
	v.SetDefault("PAYMENT_BILLPLZ_BASE_URL", "https://www.billplz-sandbox.com/api/v3")
	v.SetDefault("PAYMENT_BILLPLZ_API_KEY", "")
	v.SetDefault("PAYMENT_BILLPLZ_COLLECTION_ID", "")
	v.SetDefault("PAYMENT_BILLPLZ_X_SIGNATURE_KEY", "")
	v.SetDefault("PAYMENT_STRIPE_SECRET_KEY", "")
	v.SetDefault("PAYMENT_STRIPE_WEBHOOK_SECRET", "")

	// Subscription defaults
	v.SetDefault("SUBSCRIPTION_PLAN_PRICES", "basic:20.00,premium:50.00")
	v.SetDefault("SUBSCRIPTION_TERM_DAYS", 30)
	v.SetDefault("SUBSCRIPTION_TRIAL_PERIOD_DAYS", 14)
	v.SetDefault("SUBSCRIPTION_SETTINGS_CACHE_TTL", "0s")

	// Cache defaults
	v.SetDefault("CACHE_BACKEND", "memory")
	v.SetDefault("CACHE_TTL", "5m")

	// Admin defaults
	v.SetDefault("ADMIN_EMAILS", "")
	v.SetDefault("ADMIN_NOTIFICATION_EMAIL", "")
}

func bindConfig(v *viper.Viper, cfg *Config) error {
	// App
	cfg.App.Name = v.GetString("APP_NAME")
	cfg.App.Environment = v.GetString("APP_ENVIRONMENT")
	cfg.App.Debug = v.GetBool("APP_DEBUG")
	cfg.App.Version = v.GetString("APP_VERSION")
	cfg.App.LogLevel = v.GetString("APP_LOG_LEVEL")

	// Server
	cfg.Server.Host = v.GetString("SERVER_HOST")
	cfg.Server.Port = v.GetInt("SERVER_PORT")
	cfg.Server.ReadTimeout = v.GetDuration("SERVER_READ_TIMEOUT")
	cfg.Server.WriteTimeout = v.GetDuration("SERVER_WRITE_TIMEOUT")
	cfg.Server.IdleTimeout = v.GetDuration("SERVER_IDLE_TIMEOUT")
	cfg.Server.PublicBaseURL = strings.TrimRight(v.GetString("SERVER_PUBLIC_BASE_URL"), "/")
	cfg.Server.AllowOrigins = splitList(v.GetString("SERVER_ALLOW_ORIGINS"))

	// Database
	cfg.Database.Driver = strings.ToLower(v.GetString("DATABASE_DRIVER"))
	cfg.Database.Host = v.GetString("DATABASE_HOST")
	cfg.Database.Port = v.GetInt("DATABASE_PORT")
	cfg.Database.User = v.GetString("DATABASE_USER")
	cfg.Database.Password = v.GetString("DATABASE_PASSWORD")
	cfg.Database.DBName = v.GetString("DATABASE_DBNAME")
	cfg.Database.SSLMode = v.GetString("DATABASE_SSLMODE")
	cfg.Database.MaxOpenConns = v.GetInt("DATABASE_MAX_OPEN_CONNS")
	cfg.Database.MaxIdleConns = v.GetInt("DATABASE_MAX_IDLE_CONNS")
	cfg.Database.ConnMaxLifetime = v.GetDuration("DATABASE_CONN_MAX_LIFETIME")
	cfg.Database.ConnMaxIdleTime = v.GetDuration("DATABASE_CONN_MAX_IDLE_TIME")
	cfg.Database.QueryTimeout = v.GetDuration("DATABASE_QUERY_TIMEOUT")

	// Redis
	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetInt("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Redis.PoolSize = v.GetInt("REDIS_POOL_SIZE")
	cfg.Redis.MinIdleConns = v.GetInt("REDIS_MIN_IDLE_CONNS")
	cfg.Redis.DialTimeout = v.GetDuration("REDIS_DIAL_TIMEOUT")
	cfg.Redis.ReadTimeout = v.GetDuration("REDIS_READ_TIMEOUT")
	cfg.Redis.WriteTimeout = v.GetDuration("REDIS_WRITE_TIMEOUT")

	// Kafka
	cfg.Kafka.Enabled = v.GetBool("KAFKA_ENABLED")
	cfg.Kafka.Brokers = splitList(v.GetString("KAFKA_BROKERS"))
	cfg.Kafka.ClientID = v.GetString("KAFKA_CLIENT_ID")
	cfg.Kafka.NotificationTopic = v.GetString("KAFKA_NOTIFICATION_TOPIC")

	// JWT
	cfg.JWT.Secret = v.GetString("JWT_SECRET")
	cfg.JWT.Issuer = v.GetString("JWT_ISSUER")

	// OTel
	cfg.OTel.Enabled = v.GetBool("OTEL_ENABLED")
	cfg.OTel.ServiceName = v.GetString("OTEL_SERVICE_NAME")
	cfg.OTel.CollectorAddr = v.GetString("OTEL_COLLECTOR_ADDR")

	// Payment
	cfg.Payment.Mode = strings.ToLower(v.GetString("PAYMENT_MODE"))
	cfg.Payment.Currency = strings.ToLower(v.GetString("PAYMENT_CURRENCY"))
	cfg.Payment.GatewayTimeout = v.GetDuration("PAYMENT_GATEWAY_TIMEOUT")
	cfg.Payment.NotifyTimeout = v.GetDuration("PAYMENT_NOTIFY_TIMEOUT")
	cfg.Payment.BillplzBaseURL = strings.TrimRight(v.GetString("PAYMENT_BILLPLZ_BASE_URL"), "/")
	cfg.Payment.BillplzAPIKey = v.GetString("PAYMENT_BILLPLZ_API_KEY")
	cfg.Payment.BillplzCollectionID = v.GetString("PAYMENT_BILLPLZ_COLLECTION_ID")
	cfg.Payment.BillplzXSignatureKey = v.GetString("PAYMENT_BILLPLZ_X_SIGNATURE_KEY")
	cfg.Payment.StripeSecretKey = v.GetString("PAYMENT_STRIPE_SECRET_KEY")
	cfg.Payment.StripeWebhookSecret = v.GetString("PAYMENT_STRIPE_WEBHOOK_SECRET")

	// Subscription
	prices, err := parsePlanPrices(v.GetString("SUBSCRIPTION_PLAN_PRICES"))
	if err != nil {
		return err
	}
	cfg.Subscription.PlanPrices = prices
	cfg.Subscription.TermDays = v.GetInt("SUBSCRIPTION_TERM_DAYS")
	cfg.Subscription.TrialPeriodDays = v.GetInt("SUBSCRIPTION_TRIAL_PERIOD_DAYS")
	cfg.Subscription.SettingsCacheTTL = v.GetDuration("SUBSCRIPTION_SETTINGS_CACHE_TTL")

	// Cache
	cfg.Cache.Backend = strings.ToLower(v.GetString("CACHE_BACKEND"))
	cfg.Cache.TTL = v.GetDuration("CACHE_TTL")

	// Admin
	cfg.Admin.Emails = splitList(strings.ToLower(v.GetString("ADMIN_EMAILS")))
	cfg.Admin.NotificationEmail = v.GetString("ADMIN_NOTIFICATION_EMAIL")

	return nil
}

// splitList splits a comma separated env value, dropping blanks
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parsePlanPrices parses "basic:20.00,premium:50.00"
func parsePlanPrices(raw string) (map[string]decimal.Decimal, error) {
	prices := make(map[string]decimal.Decimal)
	for _, item := range splitList(raw) {
		name, price, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("invalid plan price entry %q", item)
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(price))
		if err != nil {
			return nil, fmt.Errorf("invalid price for plan %q: %w", name, err)
		}
		prices[strings.ToLower(strings.TrimSpace(name))] = amount
	}
	return prices, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "postgres" && c.Database.Driver != "memory" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if c.App.Environment == "production" && c.JWT.Secret == "your-secret-key-change-in-production" {
		return fmt.Errorf("JWT secret must be changed in production")
	}

	if c.Payment.Mode != "sandbox" && c.Payment.Mode != "live" {
		return fmt.Errorf("invalid payment mode: %s", c.Payment.Mode)
	}

	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("invalid cache backend: %s", c.Cache.Backend)
	}

	for name, price := range c.Subscription.PlanPrices {
		if !price.IsPositive() {
			return fmt.Errorf("plan %s must have a positive price", name)
		}
	}

	if c.Subscription.TermDays <= 0 {
		return fmt.Errorf("subscription term days must be positive")
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
