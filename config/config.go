package config

import (
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"

	"github.com/KeoTheUndamaged/GraphQLGateway/internal/circuitbreaker"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type HealthCheckConfig struct {
	Interval string `mapstructure:"interval"`
}

type CircuitBreakerConfig struct {
	FailureThreshold     int    `mapstructure:"failure_threshold"`
	RecoveryTimeout      string `mapstructure:"recovery_timeout"`
	MonitoringPeriod     string `mapstructure:"monitoring_period"`
	HalfOpenMaxCalls     int    `mapstructure:"half_open_max_calls"`
	MinimumCallsRequired int    `mapstructure:"minimum_calls_required"`
}

type ClassifierConfig struct {
	DefaultInfrastructure bool `mapstructure:"default_infrastructure"`
}

type MetricsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

// BreakerOverridesConfig carries per-subgraph deviations from the process
// defaults. Zero values mean "inherit".
type BreakerOverridesConfig struct {
	FailureThreshold     int    `mapstructure:"failure_threshold"`
	RecoveryTimeout      string `mapstructure:"recovery_timeout"`
	HalfOpenMaxCalls     int    `mapstructure:"half_open_max_calls"`
	MinimumCallsRequired int    `mapstructure:"minimum_calls_required"`
}

type SubgraphConfig struct {
	Name           string                 `mapstructure:"name"`
	URL            string                 `mapstructure:"url"`
	Timeout        string                 `mapstructure:"timeout"`
	CircuitBreaker BreakerOverridesConfig `mapstructure:"circuit_breaker"`
}

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	HealthCheck    HealthCheckConfig    `mapstructure:"health_check"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Classifier     ClassifierConfig     `mapstructure:"classifier"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
	Subgraphs      []SubgraphConfig     `mapstructure:"subgraphs"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("logging.level", LogLevelInfo)
	viper.SetDefault("health_check.interval", "10s")
	viper.SetDefault("circuit_breaker.failure_threshold", 5)
	viper.SetDefault("circuit_breaker.recovery_timeout", "30s")
	viper.SetDefault("circuit_breaker.monitoring_period", "10s")
	viper.SetDefault("circuit_breaker.half_open_max_calls", 3)
	viper.SetDefault("circuit_breaker.minimum_calls_required", 10)
	viper.SetDefault("classifier.default_infrastructure", true)
	viper.SetDefault("metrics.buffer_size", 256)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.HealthCheck,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthCheckConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.CircuitBreaker,
			validation.Required,
			validation.By(func(value interface{}) error {
				bc, ok := value.(CircuitBreakerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a CircuitBreakerConfig")
				}
				return validation.ValidateStruct(&bc,
					validation.Field(&bc.FailureThreshold,
						validation.Required,
						validation.Min(1),
					),
					validation.Field(&bc.RecoveryTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&bc.MonitoringPeriod,
						validation.By(validateOptionalDuration),
					),
					validation.Field(&bc.HalfOpenMaxCalls,
						validation.Required,
						validation.Min(1),
					),
					validation.Field(&bc.MinimumCallsRequired,
						validation.Min(0),
					),
				)
			}),
		),
		validation.Field(&c.Metrics,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.BufferSize,
						validation.Required,
						validation.Min(1),
					),
				)
			}),
		),
		validation.Field(&c.Subgraphs,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validateSubgraphConfig)),
		),
	)
}

// BreakerDefaults converts the configured defaults into a breaker config.
func (c *Config) BreakerDefaults() (circuitbreaker.Config, error) {
	recovery, err := time.ParseDuration(c.CircuitBreaker.RecoveryTimeout)
	if err != nil {
		return circuitbreaker.Config{}, err
	}

	var monitoring time.Duration
	if c.CircuitBreaker.MonitoringPeriod != "" {
		monitoring, err = time.ParseDuration(c.CircuitBreaker.MonitoringPeriod)
		if err != nil {
			return circuitbreaker.Config{}, err
		}
	}

	return circuitbreaker.Config{
		FailureThreshold:     c.CircuitBreaker.FailureThreshold,
		RecoveryTimeout:      recovery,
		MonitoringPeriod:     monitoring,
		HalfOpenMaxCalls:     c.CircuitBreaker.HalfOpenMaxCalls,
		MinimumCallsRequired: c.CircuitBreaker.MinimumCallsRequired,
	}, nil
}

// HealthCheckInterval parses the monitoring interval. Validation already
// guarantees the string is well formed.
func (c *Config) HealthCheckInterval() (time.Duration, error) {
	return time.ParseDuration(c.HealthCheck.Interval)
}

// RequestTimeout parses the per-subgraph HTTP timeout, falling back to a
// sensible default when not configured.
func (s *SubgraphConfig) RequestTimeout() (time.Duration, error) {
	if s.Timeout == "" {
		return 10 * time.Second, nil
	}
	return time.ParseDuration(s.Timeout)
}

// BreakerOverrides converts the per-subgraph section into registry
// overrides. Nil means no deviation from the defaults.
func (s *SubgraphConfig) BreakerOverrides() (*circuitbreaker.ConfigOverrides, error) {
	o := &circuitbreaker.ConfigOverrides{}
	touched := false

	if s.CircuitBreaker.FailureThreshold > 0 {
		v := s.CircuitBreaker.FailureThreshold
		o.FailureThreshold = &v
		touched = true
	}
	if s.CircuitBreaker.RecoveryTimeout != "" {
		d, err := time.ParseDuration(s.CircuitBreaker.RecoveryTimeout)
		if err != nil {
			return nil, err
		}
		o.RecoveryTimeout = &d
		touched = true
	}
	if s.CircuitBreaker.HalfOpenMaxCalls > 0 {
		v := s.CircuitBreaker.HalfOpenMaxCalls
		o.HalfOpenMaxCalls = &v
		touched = true
	}
	if s.CircuitBreaker.MinimumCallsRequired > 0 {
		v := s.CircuitBreaker.MinimumCallsRequired
		o.MinimumCallsRequired = &v
		touched = true
	}

	if !touched {
		return nil, nil
	}
	return o, nil
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}

func validateOptionalDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if durationStr == "" {
		return nil
	}

	return validateDuration(durationStr)
}

func validateSubgraphConfig(value interface{}) error {
	sub, ok := value.(SubgraphConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a SubgraphConfig")
	}

	if sub.Name == "" {
		return validation.NewError("validation_empty_name", "subgraph name cannot be empty")
	}

	if sub.URL == "" {
		return validation.NewError("validation_empty_url", "subgraph URL cannot be empty")
	}

	parsedURL, err := url.Parse(sub.URL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	if sub.Timeout != "" {
		if err := validateDuration(sub.Timeout); err != nil {
			return err
		}
	}

	if sub.CircuitBreaker.RecoveryTimeout != "" {
		if err := validateDuration(sub.CircuitBreaker.RecoveryTimeout); err != nil {
			return err
		}
	}

	return nil
}
