// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port" env:"PORT"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// CheckoutPerMinute caps checkout attempts per user; 0 disables it.
	CheckoutPerMinute int `yaml:"checkout_per_minute"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`   // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"LOG_FORMAT"` // json|console
	Sampling bool   `yaml:"sampling"`                // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" env:"REDIS_URL"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AuthConfig struct {
	// JWTSecret verifies access tokens issued by the identity provider.
	JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
}

type SSLCommerzConfig struct {
	StoreID       string `yaml:"store_id" env:"SSLCZ_STORE_ID"`
	StorePassword string `yaml:"store_password" env:"SSLCZ_STORE_PASSWORD"`
	Sandbox       bool   `yaml:"sandbox" env:"SSLCZ_SANDBOX"`
}

type PaymentConfig struct {
	Provider         string           `yaml:"provider"` // sslcommerz | noop
	SSLCommerz       SSLCommerzConfig `yaml:"sslcommerz"`
	Currency         string           `yaml:"currency"`
	Timeout          time.Duration    `yaml:"timeout"`
	SiteURL          string           `yaml:"site_url" env:"SITE_URL"`                   // where browsers land after payment
	CallbackBaseURL  string           `yaml:"callback_base_url" env:"CALLBACK_BASE_URL"` // public base of this service
	PlaceholderPhone string           `yaml:"placeholder_phone"`
	PlaceholderEmail string           `yaml:"placeholder_email"`
	SweepInterval    time.Duration    `yaml:"sweep_interval"`
	StaleAfter       time.Duration    `yaml:"stale_after"`
	ExpireAfter      time.Duration    `yaml:"expire_after"`
}

type PlanConfig struct {
	ID           string          `yaml:"id"`
	Price        decimal.Decimal `yaml:"price"`
	Currency     string          `yaml:"currency"`
	DurationDays int             `yaml:"duration_days"` // 0 = permanent
}

// Quota counter backends.
const (
	QuotaBackendPostgres = "postgres"
	QuotaBackendRedis    = "redis"
)

type QuotaConfig struct {
	DailyLimit int    `yaml:"daily_limit"`
	Timezone   string `yaml:"timezone"`
	Backend    string `yaml:"backend"` // postgres | redis
	// RetentionDays keeps usage counters this many days; older ones are purged by the sweeper.
	RetentionDays int `yaml:"retention_days"`
}

type AIConfig struct {
	Provider        string `yaml:"provider"` // openai | gemini | noop
	OpenAIKey       string `yaml:"openai_key" env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	GeminiKey       string `yaml:"gemini_key" env:"GEMINI_API_KEY"`
	GeminiURL       string `yaml:"gemini_url"`
	DefaultModel    string `yaml:"default_model"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	MaxPromptTokens int    `yaml:"max_prompt_tokens"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent AI calls
}

type EventsConfig struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `yaml:"topic"`
}

type MailConfig struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     int    `yaml:"port" env:"SMTP_PORT"`
	Username string `yaml:"username" env:"SMTP_USER"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from"`
}

type AuditConfig struct {
	Bucket    string `yaml:"bucket" env:"AUDIT_S3_BUCKET"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key" env:"AUDIT_S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"AUDIT_S3_SECRET_KEY"`
	Prefix    string `yaml:"prefix"`
}

type WorkerConfig struct {
	Size int `yaml:"size"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key" env:"ENCRYPTION_KEY"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Payment  PaymentConfig  `yaml:"payment"`
	Plans    []PlanConfig   `yaml:"plans"`
	Quota    QuotaConfig    `yaml:"quota"`
	AI       AIConfig       `yaml:"ai"`
	Events   EventsConfig   `yaml:"events"`
	Mail     MailConfig     `yaml:"mail"`
	Audit    AuditConfig    `yaml:"audit"`
	Worker   WorkerConfig   `yaml:"worker"`
	Security SecurityConfig `yaml:"security"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path (optional when every required value
// comes from the environment), then applies .env and environment overrides.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.Payment.Provider == "" {
		cfg.Payment.Provider = "sslcommerz"
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "BDT"
	}
	if cfg.Payment.Timeout <= 0 {
		cfg.Payment.Timeout = 15 * time.Second
	}
	if cfg.Payment.PlaceholderPhone == "" {
		cfg.Payment.PlaceholderPhone = "01700000000"
	}
	if cfg.Payment.PlaceholderEmail == "" {
		cfg.Payment.PlaceholderEmail = "customer@example.com"
	}
	if cfg.Payment.SweepInterval <= 0 {
		cfg.Payment.SweepInterval = 5 * time.Minute
	}
	if cfg.Payment.StaleAfter <= 0 {
		cfg.Payment.StaleAfter = 15 * time.Minute
	}
	if cfg.Payment.ExpireAfter <= 0 {
		cfg.Payment.ExpireAfter = 24 * time.Hour
	}
	for i := range cfg.Plans {
		if cfg.Plans[i].Currency == "" {
			cfg.Plans[i].Currency = cfg.Payment.Currency
		}
	}

	if cfg.Quota.DailyLimit <= 0 {
		cfg.Quota.DailyLimit = 3
	}
	if cfg.Quota.Timezone == "" {
		cfg.Quota.Timezone = "Asia/Dhaka"
	}
	cfg.Quota.Backend = strings.ToLower(strings.TrimSpace(cfg.Quota.Backend))
	if cfg.Quota.Backend == "" {
		cfg.Quota.Backend = QuotaBackendPostgres
	}
	if cfg.Quota.RetentionDays == 0 {
		cfg.Quota.RetentionDays = 90
	}

	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "noop"
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 1024
	}
	if cfg.AI.MaxPromptTokens <= 0 {
		cfg.AI.MaxPromptTokens = 3000
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}

	if cfg.Events.Topic == "" {
		cfg.Events.Topic = "billing.events"
	}
	if cfg.Mail.Port == 0 {
		cfg.Mail.Port = 587
	}
	if cfg.Audit.Region == "" {
		cfg.Audit.Region = "us-east-1"
	}
	if cfg.Audit.Prefix == "" {
		cfg.Audit.Prefix = "payments"
	}
	if cfg.Worker.Size <= 0 {
		cfg.Worker.Size = 4
	}
}

// Validate checks the values the service cannot start without.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	switch c.Quota.Backend {
	case QuotaBackendPostgres:
	case QuotaBackendRedis:
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for quota.backend=redis")
		}
	default:
		return fmt.Errorf("quota.backend %q: want postgres or redis", c.Quota.Backend)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Payment.SiteURL == "" || c.Payment.CallbackBaseURL == "" {
		return errors.New("payment.site_url and payment.callback_base_url are required")
	}
	switch strings.ToLower(c.Payment.Provider) {
	case "sslcommerz":
		if c.Payment.SSLCommerz.StoreID == "" || c.Payment.SSLCommerz.StorePassword == "" {
			return errors.New("payment.sslcommerz.store_id and store_password are required")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown payment.provider %q", c.Payment.Provider)
	}
	if _, err := time.LoadLocation(c.Quota.Timezone); err != nil {
		return fmt.Errorf("quota.timezone: %w", err)
	}
	seen := make(map[string]bool, len(c.Plans))
	for _, p := range c.Plans {
		if p.ID == "" || !p.Price.IsPositive() {
			return fmt.Errorf("plan %q: id and positive price are required", p.ID)
		}
		if seen[p.ID] {
			return fmt.Errorf("plan %q declared twice", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
