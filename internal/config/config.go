// Package config loads service configuration from a YAML file with
// FLOODREC_-prefixed environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service settings.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Site     SiteConfig     `mapstructure:"site"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Run      RunConfig      `mapstructure:"run"`
}

// DatabaseConfig locates the IHFS SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SiteConfig holds the site-wide defaults used when the database carries no
// rpfparams row, plus the dialog defaults for unattended runs.
type SiteConfig struct {
	HSA                          string  `mapstructure:"hsa"`
	LookbackHours                int     `mapstructure:"lookback_hours"`
	LookforwardHours             int     `mapstructure:"lookforward_hours"`
	BasisHours                   int     `mapstructure:"basis_hours"`
	ShiftHours                   float64 `mapstructure:"shift_hours"`
	StageWindow                  float64 `mapstructure:"stage_window"`
	VTECRecordStageOffset        float64 `mapstructure:"vtec_record_stage_offset"`
	VTECRecordFlowOffset         float64 `mapstructure:"vtec_record_flow_offset"`
	FLWExpirationHours           int     `mapstructure:"flw_expiration_hours"`
	ForecastConfidencePercentage int     `mapstructure:"forecast_confidence_percentage"`
	IncludeNonFloodPoints        bool    `mapstructure:"include_nonflood_points"`
}

// KafkaConfig configures the optional staging-topic publisher.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// HTTPConfig configures the health/readiness/metrics endpoint.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RunConfig configures the recommendation loop.
type RunConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Load reads configuration from the given file path, applying defaults and
// environment overrides. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FLOODREC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Site.ForecastConfidencePercentage < 0 || c.Site.ForecastConfidencePercentage > 100 {
		return fmt.Errorf("site.forecast_confidence_percentage must be 0-100, got %d",
			c.Site.ForecastConfidencePercentage)
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka.enabled is true but kafka.brokers is empty")
		}
		if c.Kafka.Topic == "" {
			return errors.New("kafka.enabled is true but kafka.topic is empty")
		}
	}
	if c.Run.Interval <= 0 {
		return errors.New("run.interval must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "ihfs.db")

	v.SetDefault("site.lookback_hours", 72)
	v.SetDefault("site.lookforward_hours", 360)
	v.SetDefault("site.basis_hours", 72)
	v.SetDefault("site.shift_hours", 6)
	v.SetDefault("site.stage_window", 0.5)
	v.SetDefault("site.vtec_record_stage_offset", 2.0)
	v.SetDefault("site.vtec_record_flow_offset", 5000.0)
	v.SetDefault("site.flw_expiration_hours", 12)
	v.SetDefault("site.forecast_confidence_percentage", 80)
	v.SetDefault("site.include_nonflood_points", false)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "recommended-flood-hazards")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("run.interval", "15m")
}
