package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// ServiceName identifies this process in logs, metrics and traces
const ServiceName = "booking-dashboard"

// Config is the portal configuration
type Config struct {
	ServerAddr              string        `mapstructure:"server_addr"`
	APIBaseURL              string        `mapstructure:"api_base_url"`
	RequestTimeout          time.Duration `mapstructure:"request_timeout"`
	AdminRecentLimit        int           `mapstructure:"admin_recent_limit"`
	CustomerRecentLimit     int           `mapstructure:"customer_recent_limit"`
	BookingCountConcurrency int           `mapstructure:"booking_count_concurrency"`
	DispatchRefreshLatency  time.Duration `mapstructure:"dispatch_refresh_latency"`
	DispatchFixture         string        `mapstructure:"dispatch_fixture"`
	LogLevel                string        `mapstructure:"log_level"`
	Environment             string        `mapstructure:"environment"`
	TracingEnabled          bool          `mapstructure:"tracing_enabled"`
	OTLPEndpoint            string        `mapstructure:"otel_exporter_otlp_endpoint"`
	APIToken                string        `mapstructure:"api_token"`
	CircuitBreakerEnabled   bool          `mapstructure:"circuit_breaker_enabled"`
	RetryMaxAttempts        int           `mapstructure:"retry_max_attempts"`
	ShutdownTimeout         time.Duration `mapstructure:"shutdown_timeout"`
	CORSAllowedOrigins      []string      `mapstructure:"cors_allowed_origins"`
}

// SetDefaults registers every key with its default so environment variables
// (SERVER_ADDR, API_BASE_URL, ...) are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server_addr", ":8021")
	v.SetDefault("api_base_url", "http://localhost:5000/api")
	v.SetDefault("request_timeout", 10*time.Second)
	v.SetDefault("admin_recent_limit", 5)
	v.SetDefault("customer_recent_limit", 3)
	v.SetDefault("booking_count_concurrency", 8)
	v.SetDefault("dispatch_refresh_latency", time.Second)
	v.SetDefault("dispatch_fixture", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("environment", "development")
	v.SetDefault("tracing_enabled", true)
	v.SetDefault("otel_exporter_otlp_endpoint", "localhost:4317")
	v.SetDefault("api_token", "")
	v.SetDefault("circuit_breaker_enabled", true)
	v.SetDefault("retry_max_attempts", 2)
	v.SetDefault("shutdown_timeout", 30*time.Second)
	v.SetDefault("cors_allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
}

// Load reads .env files, an optional config file and the environment into a
// Config. A missing cfgFile is an error; missing .env files are not.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	_ = godotenv.Load(".env.local", ".env")

	SetDefaults(v)
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	decoderOption := viper.DecoderConfigOption(func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			dc.DecodeHook,
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err := v.Unmarshal(&cfg, decoderOption); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api_base_url %q is not an absolute URL", c.APIBaseURL))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}
	if c.DispatchRefreshLatency < 0 {
		errs = append(errs, errors.New("dispatch_refresh_latency must not be negative"))
	}
	if c.BookingCountConcurrency < 1 {
		errs = append(errs, errors.New("booking_count_concurrency must be at least 1"))
	}
	if c.AdminRecentLimit < 0 || c.CustomerRecentLimit < 0 {
		errs = append(errs, errors.New("recent booking limits must not be negative"))
	}

	return errors.Join(errs...)
}
