package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port string `mapstructure:"PORT"`
	Env  string `mapstructure:"ENV"`

	// Logging
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// HTTP
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	// Data layout
	DataDir       string `mapstructure:"DATA_DIR"`
	CacheDir      string `mapstructure:"CACHE_DIR"`
	ReferenceFile string `mapstructure:"REFERENCE_FILE"`

	// Redis relation cache, optional
	RedisURL string `mapstructure:"REDIS_URL"`

	// Optimization
	RotationSize      int           `mapstructure:"ROTATION_SIZE"`
	Encoding          string        `mapstructure:"ENCODING"`
	Solver            string        `mapstructure:"SOLVER"`
	SolverMaxDuration time.Duration `mapstructure:"SOLVER_MAX_DURATION"`
	SolverMaxNodes    int           `mapstructure:"SOLVER_MAX_NODES"`
	SolverVerbose     bool          `mapstructure:"SOLVER_VERBOSE"`

	// External APIs
	FangraphsBaseURL         string        `mapstructure:"FANGRAPHS_BASE_URL"`
	FangraphsRequestInterval time.Duration `mapstructure:"FANGRAPHS_REQUEST_INTERVAL"`
	ExternalAPITimeout       time.Duration `mapstructure:"EXTERNAL_API_TIMEOUT"`
	CircuitBreakerThreshold  int           `mapstructure:"CIRCUIT_BREAKER_THRESHOLD"`
}

// LoadConfig reads .env files and the environment on top of the defaults
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")

	setDefaults(v)

	// Read from environment
	v.AutomaticEnv()

	// Read config file if exists
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("REQUEST_TIMEOUT", "90s")

	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("CACHE_DIR", "./data/cache")
	v.SetDefault("REFERENCE_FILE", "./reference/article.json")
	v.SetDefault("REDIS_URL", "")

	v.SetDefault("ROTATION_SIZE", 5)
	v.SetDefault("ENCODING", "pairwise")
	v.SetDefault("SOLVER", "branch-and-bound")
	v.SetDefault("SOLVER_MAX_DURATION", "60s")
	v.SetDefault("SOLVER_MAX_NODES", 0)
	v.SetDefault("SOLVER_VERBOSE", false)

	v.SetDefault("FANGRAPHS_BASE_URL", "https://cdn.fangraphs.com")
	v.SetDefault("FANGRAPHS_REQUEST_INTERVAL", "3s")
	v.SetDefault("EXTERNAL_API_TIMEOUT", "30s")
	v.SetDefault("CIRCUIT_BREAKER_THRESHOLD", 5)
}

// Validate rejects settings the optimizer cannot run with
func (c *Config) Validate() error {
	if c.RotationSize < 1 {
		return fmt.Errorf("ROTATION_SIZE must be positive, got %d", c.RotationSize)
	}
	switch c.Encoding {
	case "pairwise", "linearized":
	default:
		return fmt.Errorf("unknown ENCODING %q", c.Encoding)
	}
	switch c.Solver {
	case "branch-and-bound", "enumerate":
	default:
		return fmt.Errorf("unknown SOLVER %q", c.Solver)
	}
	if c.SolverMaxDuration < 0 {
		return fmt.Errorf("SOLVER_MAX_DURATION must not be negative")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
