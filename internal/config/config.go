package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hostellite/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	API        APIConfig        `yaml:"api"`
	Session    SessionConfig    `yaml:"session"`
	Redis      RedisConfig      `yaml:"redis"`
	Payment    PaymentConfig    `yaml:"payment"`
	Booking    BookingConfig    `yaml:"booking"`
	Reconcile  ReconcileConfig  `yaml:"reconcile"`
	Events     EventsConfig     `yaml:"events"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type APIConfig struct {
	BaseURL   string             `yaml:"base_url"`
	Timeout   time.Duration      `yaml:"timeout"`
	UserAgent string             `yaml:"user_agent"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
	RoomsTTL  time.Duration      `yaml:"rooms_cache_ttl"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// SessionConfig selects where the bearer credential is persisted between runs.
type SessionConfig struct {
	Storage string        `yaml:"storage"` // file, redis, memory
	Path    string        `yaml:"path"`
	Profile string        `yaml:"profile"`
	TTL     time.Duration `yaml:"ttl"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type PaymentConfig struct {
	Currency     string       `yaml:"currency"`
	MerchantName string       `yaml:"merchant_name"`
	Presenter    string       `yaml:"presenter"` // stripe, prompt
	Stripe       StripeConfig `yaml:"stripe"`
}

type StripeConfig struct {
	Key           string `yaml:"key"`
	PaymentMethod string `yaml:"payment_method"`
	APIURL        string `yaml:"api_url"`
}

type BookingConfig struct {
	MinimumStayMonths int           `yaml:"minimum_stay_months"`
	StepTimeout       time.Duration `yaml:"step_timeout"`
	PaymentUITimeout  time.Duration `yaml:"payment_ui_timeout"`
}

type ReconcileConfig struct {
	DatabasePath string        `yaml:"database_path"`
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Backup       BackupConfig  `yaml:"backup"`
}

// BackupConfig controls periodic copies of the confirmation database.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
}

type EventsConfig struct {
	AMQPURL         string `yaml:"amqp_url"`
	EscalationQueue string `yaml:"escalation_queue"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional for a client install
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("api base_url is required")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("api base_url must be an http(s) URL: %q", c.API.BaseURL)
	}
	if c.Payment.Currency == "" {
		return errors.New("payment currency is required")
	}
	if c.Booking.MinimumStayMonths < 1 {
		return errors.New("booking minimum_stay_months must be at least 1")
	}

	switch c.Session.Storage {
	case "file":
		if c.Session.Path == "" {
			return errors.New("session.storage=file requires session.path")
		}
	case "redis":
		if c.Redis.Address == "" {
			return errors.New("session.storage=redis requires redis.address")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown session storage %q", c.Session.Storage)
	}

	switch c.Payment.Presenter {
	case "stripe", "prompt":
		if c.Payment.Stripe.Key == "" {
			return errors.New("payment.stripe.key is required")
		}
	default:
		return fmt.Errorf("unknown payment presenter %q", c.Payment.Presenter)
	}

	return nil
}

func (c *Config) applyDefaults() {
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.Timeout == 0 {
		c.API.Timeout = 15 * time.Second
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = "hostellite-cli"
	}
	if c.API.RoomsTTL == 0 {
		c.API.RoomsTTL = models.DefaultRoomsCacheTTL
	}

	if c.Session.Storage == "" {
		c.Session.Storage = "file"
	}
	if c.Session.Profile == "" {
		c.Session.Profile = "default"
	}
	if c.Session.Storage == "file" && c.Session.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Session.Path = filepath.Join(home, ".hostellite", "session.json")
		}
	}

	if c.Payment.Currency == "" {
		c.Payment.Currency = models.DefaultCurrency
	}
	c.Payment.Currency = strings.ToLower(c.Payment.Currency)
	if c.Payment.MerchantName == "" {
		c.Payment.MerchantName = "Hostellite"
	}
	if c.Payment.Presenter == "" {
		c.Payment.Presenter = "prompt"
	}
	if c.Payment.Stripe.PaymentMethod == "" {
		c.Payment.Stripe.PaymentMethod = "pm_card_visa"
	}

	if c.Booking.MinimumStayMonths == 0 {
		c.Booking.MinimumStayMonths = models.MinimumStayMonths
	}
	if c.Booking.StepTimeout == 0 {
		c.Booking.StepTimeout = 20 * time.Second
	}
	if c.Booking.PaymentUITimeout == 0 {
		c.Booking.PaymentUITimeout = 10 * time.Minute
	}

	if c.Reconcile.DatabasePath == "" {
		c.Reconcile.DatabasePath = "data/confirmations.db"
	}
	if c.Reconcile.PollInterval == 0 {
		c.Reconcile.PollInterval = 5 * time.Second
	}
	if c.Reconcile.BatchSize == 0 {
		c.Reconcile.BatchSize = 20
	}
	if c.Reconcile.MaxRetries == 0 {
		c.Reconcile.MaxRetries = 5
	}
	if c.Reconcile.InitialDelay == 0 {
		c.Reconcile.InitialDelay = 30 * time.Second
	}
	if c.Reconcile.MaxDelay == 0 {
		c.Reconcile.MaxDelay = 30 * time.Minute
	}
	if c.Reconcile.Backup.StoragePath == "" {
		c.Reconcile.Backup.StoragePath = filepath.Join(filepath.Dir(c.Reconcile.DatabasePath), "backups")
	}

	if c.Events.EscalationQueue == "" {
		c.Events.EscalationQueue = "booking.confirmation.escalated"
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
