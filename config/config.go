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

type CircuitBreakerConfig struct {
	FailureThreshold int     `mapstructure:"failure_threshold"`
	TimeoutSeconds   float64 `mapstructure:"timeout_seconds"`
	SuccessThreshold int     `mapstructure:"success_threshold"`
}

// Timeout converts the fractional-seconds setting into a duration.
func (c CircuitBreakerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

type BackpressureConfig struct {
	ThresholdMB  float64  `mapstructure:"threshold_mb"`
	Sources      []string `mapstructure:"sources"`
	PollInterval string   `mapstructure:"poll_interval"`
}

type PipelineConfig struct {
	BatchSize      int    `mapstructure:"batch_size"`
	CheckpointPath string `mapstructure:"checkpoint_path"`
}

type DependenciesConfig struct {
	VectorStoreURL     string `mapstructure:"vector_store_url"`
	RelationalStoreURL string `mapstructure:"relational_store_url"`
}

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	Backpressure   BackpressureConfig   `mapstructure:"backpressure"`
	Pipeline       PipelineConfig       `mapstructure:"pipeline"`
	Dependencies   DependenciesConfig   `mapstructure:"dependencies"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("logging.level", LogLevelInfo)
	viper.SetDefault("circuit_breaker.failure_threshold", 5)
	viper.SetDefault("circuit_breaker.timeout_seconds", 30.0)
	viper.SetDefault("circuit_breaker.success_threshold", 2)
	viper.SetDefault("rate_limit.max_requests", 60)
	viper.SetDefault("rate_limit.window_seconds", 60)
	viper.SetDefault("backpressure.threshold_mb", 100.0)
	viper.SetDefault("backpressure.poll_interval", "10s")
	viper.SetDefault("pipeline.batch_size", 200)
	viper.SetDefault("pipeline.checkpoint_path", "checkpoints.json")
	viper.SetDefault("dependencies.vector_store_url", "http://localhost:6333/collections/interactions/points")
	viper.SetDefault("dependencies.relational_store_url", "http://localhost:5000/api/events")

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
		slog.Info("config file not found, using defaults and environment variables")
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
		validation.Field(&c.CircuitBreaker,
			validation.Required,
			validation.By(func(value interface{}) error {
				cb, ok := value.(CircuitBreakerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a CircuitBreakerConfig")
				}
				return validation.ValidateStruct(&cb,
					validation.Field(&cb.FailureThreshold, validation.Required, validation.Min(1)),
					validation.Field(&cb.TimeoutSeconds, validation.Required, validation.Min(0.0)),
					validation.Field(&cb.SuccessThreshold, validation.Required, validation.Min(1)),
				)
			}),
		),
		validation.Field(&c.RateLimit,
			validation.Required,
			validation.By(func(value interface{}) error {
				rl, ok := value.(RateLimitConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a RateLimitConfig")
				}
				return validation.ValidateStruct(&rl,
					validation.Field(&rl.MaxRequests, validation.Required, validation.Min(1)),
					validation.Field(&rl.WindowSeconds, validation.Required, validation.Min(1)),
				)
			}),
		),
		validation.Field(&c.Backpressure,
			validation.Required,
			validation.By(func(value interface{}) error {
				bp, ok := value.(BackpressureConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a BackpressureConfig")
				}
				return validation.ValidateStruct(&bp,
					// No Required rule: an explicit 0 means pause on any backlog.
				validation.Field(&bp.ThresholdMB, validation.Min(0.0)),
					validation.Field(&bp.Sources, validation.Required, validation.Length(1, 0)),
					validation.Field(&bp.PollInterval, validation.Required, validation.By(validateDuration)),
				)
			}),
		),
		validation.Field(&c.Pipeline,
			validation.Required,
			validation.By(func(value interface{}) error {
				pc, ok := value.(PipelineConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a PipelineConfig")
				}
				return validation.ValidateStruct(&pc,
					validation.Field(&pc.BatchSize, validation.Required, validation.Min(1)),
					validation.Field(&pc.CheckpointPath, validation.Required),
				)
			}),
		),
		validation.Field(&c.Dependencies,
			validation.Required,
			validation.By(func(value interface{}) error {
				dc, ok := value.(DependenciesConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a DependenciesConfig")
				}
				return validation.ValidateStruct(&dc,
					validation.Field(&dc.VectorStoreURL, validation.Required, validation.By(validateServerURL)),
					validation.Field(&dc.RelationalStoreURL, validation.Required, validation.By(validateServerURL)),
				)
			}),
		),
	)
}

func validateServerURL(value interface{}) error {
	serverURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if serverURL == "" {
		return validation.NewError("validation_empty_url", "server URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
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
