package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Backend    BackendConfig    `validate:"required"`
	Postgres   PostgresConfig
	Supabase   SupabaseConfig
	Auth       AuthConfig    `validate:"required"`
	Cache      CacheConfig   `validate:"required"`
	Sentry     SentryConfig  `validate:"required"`
	Events     EventConfig   `validate:"required"`
	Kafka      KafkaConfig
	Scanner    ScannerConfig `validate:"required"`
	Tracking   TrackingConfig
	Webhook    WebhookConfig
	Profiling  ProfilingConfig
	Alerts     AlertsConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required"`
}

type BackendConfig struct {
	Type types.BackendType `mapstructure:"type" validate:"required,oneof=postgres supabase"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
}

type SupabaseConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	ServiceKey string `mapstructure:"service_key"`
}

type AuthConfig struct {
	Provider types.AuthProvider `mapstructure:"provider" validate:"required,oneof=supabase local"`
	Secret   string             `mapstructure:"secret" validate:"required"`
}

type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DefaultTTL      time.Duration `mapstructure:"default_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// EventConfig holds the pubsub and retry policy for trailing audit writes
type EventConfig struct {
	PubSub          types.PubSubType `mapstructure:"pubsub" validate:"omitempty,oneof=memory kafka"`
	MaxRetries      int              `mapstructure:"max_retries"`
	InitialInterval time.Duration    `mapstructure:"initial_interval"`
	MaxInterval     time.Duration    `mapstructure:"max_interval"`
	Multiplier      float64          `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration    `mapstructure:"max_elapsed_time"`
}

// KafkaConfig is read only when events.pubsub is kafka
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	ClientID      string   `mapstructure:"client_id"`
	TLS           bool     `mapstructure:"tls"`
	UseSASL       bool     `mapstructure:"use_sasl"`
	SASLMechanism string   `mapstructure:"sasl_mechanism"`
	SASLUser      string   `mapstructure:"sasl_user"`
	SASLPassword  string   `mapstructure:"sasl_password"`
}

// ScannerConfig tunes the scan session behaviour
type ScannerConfig struct {
	DebounceWindow    time.Duration `mapstructure:"debounce_window" validate:"required"`
	MinCodeLength     int           `mapstructure:"min_code_length" validate:"min=1"`
	BulkMinCodeLength int           `mapstructure:"bulk_min_code_length" validate:"min=1"`
	NoiseLiterals     []string      `mapstructure:"noise_literals"`
	HistoryLimit      int           `mapstructure:"history_limit" validate:"min=1"`
	SessionTTL        time.Duration `mapstructure:"session_ttl" validate:"required"`
	MaxFramesPerSec   float64       `mapstructure:"max_frames_per_second"`
	MaxNotifications  int           `mapstructure:"max_notifications"`
	MaxBulkResults    int           `mapstructure:"max_bulk_results"`
	LookupRetry       RetryConfig   `mapstructure:"lookup_retry"`
}

type RetryConfig struct {
	MaxRetries      uint64        `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type TrackingConfig struct {
	Origin string `mapstructure:"origin"`
}

// WebhookConfig controls outbound status-change notifications. Delivery goes
// to Svix when it is enabled and to the listed endpoints otherwise.
type WebhookConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the in-place retry count per endpoint; the message
	// router retries the whole event after that
	MaxRetries int               `mapstructure:"max_retries" validate:"min=0"`
	Endpoints  []WebhookEndpoint `mapstructure:"endpoints" validate:"dive"`
	Svix       SvixConfig        `mapstructure:"svix"`
}

type WebhookEndpoint struct {
	Name    string            `mapstructure:"name" validate:"required"`
	URL     string            `mapstructure:"url" validate:"required,url"`
	Headers map[string]string `mapstructure:"headers"`
	// Statuses limits delivery to changes into these statuses; empty means all
	Statuses []types.PackageStatus `mapstructure:"statuses"`
}

type SvixConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AuthToken string `mapstructure:"auth_token"`
	BaseURL   string `mapstructure:"base_url"`
	AppID     string `mapstructure:"app_id"`
}

type AlertsConfig struct {
	Email EmailAlertConfig `mapstructure:"email"`
}

// EmailAlertConfig sends an email through resend when a package moves into
// one of Statuses
type EmailAlertConfig struct {
	Enabled     bool                  `mapstructure:"enabled"`
	APIKey      string                `mapstructure:"api_key"`
	FromAddress string                `mapstructure:"from_address" validate:"omitempty,email"`
	ReplyTo     string                `mapstructure:"reply_to" validate:"omitempty,email"`
	Recipients  []string              `mapstructure:"recipients" validate:"dive,email"`
	Statuses    []types.PackageStatus `mapstructure:"statuses"`
}

// ProfilingConfig configures continuous profiling with pyroscope
type ProfilingConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	ApplicationName string   `mapstructure:"application_name"`
	ServerAddress   string   `mapstructure:"server_address"`
	BasicAuthUser   string   `mapstructure:"basic_auth_user"`
	BasicAuthPass   string   `mapstructure:"basic_auth_pass"`
	SampleRate      uint32   `mapstructure:"sample_rate"`
	ProfileTypes    []string `mapstructure:"profile_types"`
}

func NewConfig() (*Configuration, error) {
	// .env is optional and only fills variables that are not already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/parcelbase")

	v.SetEnvPrefix("PARCELBASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	defaults := GetDefaultConfig()
	v.SetDefault("deployment.mode", defaults.Deployment.Mode)
	v.SetDefault("server.address", defaults.Server.Address)
	v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("backend.type", defaults.Backend.Type)
	v.SetDefault("auth.provider", defaults.Auth.Provider)
	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("cache.default_ttl", defaults.Cache.DefaultTTL)
	v.SetDefault("cache.cleanup_interval", defaults.Cache.CleanupInterval)
	v.SetDefault("events.pubsub", defaults.Events.PubSub)
	v.SetDefault("events.max_retries", defaults.Events.MaxRetries)
	v.SetDefault("events.initial_interval", defaults.Events.InitialInterval)
	v.SetDefault("events.max_interval", defaults.Events.MaxInterval)
	v.SetDefault("events.multiplier", defaults.Events.Multiplier)
	v.SetDefault("events.max_elapsed_time", defaults.Events.MaxElapsedTime)
	v.SetDefault("kafka.consumer_group", defaults.Kafka.ConsumerGroup)
	v.SetDefault("kafka.client_id", defaults.Kafka.ClientID)
	v.SetDefault("kafka.sasl_mechanism", defaults.Kafka.SASLMechanism)
	v.SetDefault("scanner.debounce_window", defaults.Scanner.DebounceWindow)
	v.SetDefault("scanner.min_code_length", defaults.Scanner.MinCodeLength)
	v.SetDefault("scanner.bulk_min_code_length", defaults.Scanner.BulkMinCodeLength)
	v.SetDefault("scanner.noise_literals", defaults.Scanner.NoiseLiterals)
	v.SetDefault("scanner.history_limit", defaults.Scanner.HistoryLimit)
	v.SetDefault("scanner.session_ttl", defaults.Scanner.SessionTTL)
	v.SetDefault("scanner.max_frames_per_second", defaults.Scanner.MaxFramesPerSec)
	v.SetDefault("scanner.max_notifications", defaults.Scanner.MaxNotifications)
	v.SetDefault("scanner.max_bulk_results", defaults.Scanner.MaxBulkResults)
	v.SetDefault("scanner.lookup_retry.max_retries", defaults.Scanner.LookupRetry.MaxRetries)
	v.SetDefault("scanner.lookup_retry.initial_interval", defaults.Scanner.LookupRetry.InitialInterval)
	v.SetDefault("scanner.lookup_retry.max_elapsed_time", defaults.Scanner.LookupRetry.MaxElapsedTime)
	v.SetDefault("webhook.enabled", defaults.Webhook.Enabled)
	v.SetDefault("webhook.timeout", defaults.Webhook.Timeout)
	v.SetDefault("webhook.max_retries", defaults.Webhook.MaxRetries)
	v.SetDefault("webhook.svix.app_id", defaults.Webhook.Svix.AppID)
	v.SetDefault("alerts.email.statuses", defaults.Alerts.Email.Statuses)
	v.SetDefault("profiling.application_name", defaults.Profiling.ApplicationName)
	v.SetDefault("profiling.sample_rate", defaults.Profiling.SampleRate)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Webhook.Svix.Enabled && c.Webhook.Svix.AuthToken == "" {
		return fmt.Errorf("webhook.svix.auth_token is required when svix delivery is enabled")
	}
	if c.Alerts.Email.Enabled && (c.Alerts.Email.APIKey == "" || c.Alerts.Email.FromAddress == "") {
		return fmt.Errorf("alerts.email.api_key and alerts.email.from_address are required when email alerts are enabled")
	}
	if c.Profiling.Enabled && c.Profiling.ServerAddress == "" {
		return fmt.Errorf("profiling.server_address is required when profiling is enabled")
	}
	if c.Events.PubSub == types.KafkaPubSub && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when events.pubsub is kafka")
	}
	if c.Backend.Type == types.BackendSupabase && (c.Supabase.BaseURL == "" || c.Supabase.ServiceKey == "") {
		return fmt.Errorf("supabase.base_url and supabase.service_key are required for the supabase backend")
	}
	return nil
}

// GetDefaultConfig returns a configuration for local development and tests
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080", ShutdownTimeout: 10 * time.Second},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Backend:    BackendConfig{Type: types.BackendPostgres},
		Auth:       AuthConfig{Provider: types.AuthProviderLocal, Secret: "local-dev-secret"},
		Cache: CacheConfig{
			Enabled:         true,
			DefaultTTL:      5 * time.Minute,
			CleanupInterval: 10 * time.Minute,
		},
		Events: EventConfig{
			PubSub:          types.MemoryPubSub,
			MaxRetries:      5,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     30 * time.Second,
			Multiplier:      2,
			MaxElapsedTime:  5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "parcelbase",
			ClientID:      "parcelbase",
			SASLMechanism: "PLAIN",
		},
		Scanner: ScannerConfig{
			DebounceWindow:    300 * time.Millisecond,
			MinCodeLength:     3,
			BulkMinCodeLength: 2,
			NoiseLiterals:     []string{"null", "undefined", "nan", "[object object]"},
			HistoryLimit:      5,
			SessionTTL:        30 * time.Minute,
			MaxFramesPerSec:   15,
			MaxNotifications:  20,
			MaxBulkResults:    500,
			LookupRetry: RetryConfig{
				MaxRetries:      3,
				InitialInterval: 200 * time.Millisecond,
				MaxElapsedTime:  5 * time.Second,
			},
		},
		Tracking: TrackingConfig{Origin: "http://localhost:8080"},
		Webhook: WebhookConfig{
			Timeout:    10 * time.Second,
			MaxRetries: 2,
			Svix:       SvixConfig{AppID: "parcelbase"},
		},
		Alerts: AlertsConfig{
			Email: EmailAlertConfig{
				Statuses: []types.PackageStatus{types.PackageStatusReturned, types.PackageStatusCanceled},
			},
		},
		Profiling: ProfilingConfig{
			ApplicationName: "parcelbase",
			SampleRate:      100,
		},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
