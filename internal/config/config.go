// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"

	defaultReminderCron        = "*/15 * * * *"
	defaultReminderHoursBefore = 24
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type SchedulingConfig struct {
	// SlotStepMinutes is the start-time step for listed free slots; 0 uses
	// each court's granularity.
	SlotStepMinutes int    `yaml:"slot_step_minutes"`
	LockBackend     string `yaml:"lock_backend"`
	LockTTLSeconds  int    `yaml:"lock_ttl_seconds"`
	// BookingAttemptsPerMinute caps create calls per user; 0 disables it.
	BookingAttemptsPerMinute int `yaml:"booking_attempts_per_minute"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	Password  string `yaml:"-"` // Loaded from environment
}

type EmailConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Sender          string `yaml:"sender"`
	AccessKeyID     string `yaml:"-"`
	SecretAccessKey string `yaml:"-"`
}

type EventsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exchange string `yaml:"exchange"`
	URL      string `yaml:"-"` // Loaded from environment
}

type PaymentsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	PublicKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

type RemindersConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Cron        string `yaml:"cron"`
	HoursBefore int    `yaml:"hours_before"`
}

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Port        int    `yaml:"port"`
		BaseURL     string `yaml:"base_url"`
		// TrustProxyHeaders reads the client IP from X-Forwarded-For when
		// the request comes from a private network.
		TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
	} `yaml:"app"`

	Database   DatabaseConfig   `yaml:"database"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
	Redis      RedisConfig      `yaml:"redis"`
	Email      EmailConfig      `yaml:"email"`
	Events     EventsConfig     `yaml:"events"`
	Payments   PaymentsConfig   `yaml:"payments"`
	Reminders  RemindersConfig  `yaml:"reminders"`
}

// secrets never live in the YAML file.
type secrets struct {
	RedisPassword      string `envconfig:"REDIS_PASSWORD"`
	AWSAccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY"`
	AMQPURL            string `envconfig:"AMQP_URL"`
	OmisePublicKey     string `envconfig:"OMISE_PUBLIC_KEY"`
	OmiseSecretKey     string `envconfig:"OMISE_SECRET_KEY"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, overlays secrets from the environment,
// applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var env secrets
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}
	cfg.Redis.Password = env.RedisPassword
	cfg.Email.AccessKeyID = env.AWSAccessKeyID
	cfg.Email.SecretAccessKey = env.AWSSecretAccessKey
	cfg.Events.URL = env.AMQPURL
	cfg.Payments.PublicKey = env.OmisePublicKey
	cfg.Payments.SecretKey = env.OmiseSecretKey

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Scheduling.LockBackend == "" {
		c.Scheduling.LockBackend = LockBackendLocal
	}
	if c.Scheduling.LockTTLSeconds == 0 {
		c.Scheduling.LockTTLSeconds = 10
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "courtsched"
	}
	if c.Events.Exchange == "" {
		c.Events.Exchange = "reservation.events"
	}
	if c.Reminders.Cron == "" {
		c.Reminders.Cron = defaultReminderCron
	}
	if c.Reminders.HoursBefore == 0 {
		c.Reminders.HoursBefore = defaultReminderHoursBefore
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Scheduling.SlotStepMinutes < 0 {
		return fmt.Errorf("scheduling slot step must not be negative")
	}
	if c.Scheduling.BookingAttemptsPerMinute < 0 {
		return fmt.Errorf("scheduling booking attempts per minute must not be negative")
	}
	switch c.Scheduling.LockBackend {
	case LockBackendLocal:
	case LockBackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required for the redis lock backend")
		}
		if c.Scheduling.LockTTLSeconds < 0 {
			return fmt.Errorf("lock ttl must not be negative")
		}
	default:
		return fmt.Errorf("unsupported lock backend: %s", c.Scheduling.LockBackend)
	}

	if c.Email.Enabled {
		if c.Email.Region == "" || c.Email.Sender == "" {
			return fmt.Errorf("email region and sender are required when email is enabled")
		}
	}
	if c.Events.Enabled && c.Events.URL == "" {
		return fmt.Errorf("AMQP_URL is required when events are enabled")
	}
	if c.Payments.Enabled && (c.Payments.PublicKey == "" || c.Payments.SecretKey == "") {
		return fmt.Errorf("OMISE_PUBLIC_KEY and OMISE_SECRET_KEY are required when payments are enabled")
	}

	if c.Reminders.Enabled {
		if _, err := cron.ParseStandard(c.Reminders.Cron); err != nil {
			return fmt.Errorf("invalid reminders cron %q: %w", c.Reminders.Cron, err)
		}
		if c.Reminders.HoursBefore < 0 {
			return fmt.Errorf("reminder hours must not be negative")
		}
	}

	return nil
}
