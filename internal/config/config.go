// Package config loads navaids configuration from config.yaml and NAVAIDS_*
// environment variables and sets up the global logger.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Refresh strategies.
const (
	StrategySwap        = "swap"
	StrategyDeleteFirst = "delete_first"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Feeds   FeedsConfig   `yaml:"feeds" mapstructure:"feeds"`
	Refresh RefreshConfig `yaml:"refresh" mapstructure:"refresh"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the query API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// FetchConfig configures outbound feed requests.
type FetchConfig struct {
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries"`
	Concurrency       int           `yaml:"concurrency" mapstructure:"concurrency"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// FeedsConfig holds the upstream feed locations. WeeklyURL is a format
// string taking the district number.
type FeedsConfig struct {
	NoticeURL       string `yaml:"notice_url" mapstructure:"notice_url"`
	WeeklyURL       string `yaml:"weekly_url" mapstructure:"weekly_url"`
	WeeklyDistricts []int  `yaml:"weekly_districts" mapstructure:"weekly_districts"`
}

// RefreshConfig configures the refresh cycle.
type RefreshConfig struct {
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	Strategy string        `yaml:"strategy" mapstructure:"strategy"`
	Sources  []string      `yaml:"sources" mapstructure:"sources"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NAVAIDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("fetch.timeout", 2*time.Minute)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.concurrency", 4)
	v.SetDefault("fetch.user_agent", "navaids/1.0")
	v.SetDefault("fetch.requests_per_second", 2.0)
	v.SetDefault("feeds.notice_url", "https://www.navcen.uscg.gov/?Do=lnmXmlDownload")
	v.SetDefault("feeds.weekly_url", "https://www.navcen.uscg.gov/?Do=weeklyLLCXML&id=%d")
	v.SetDefault("feeds.weekly_districts", []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	v.SetDefault("refresh.interval", 24*time.Hour)
	v.SetDefault("refresh.strategy", StrategySwap)
	v.SetDefault("refresh.sources", []string{})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Store.Driver == "sqlite" && cfg.Store.DatabaseURL == "" {
		cfg.Store.DatabaseURL = "navaids.db"
	}

	return &cfg, nil
}

// Validate checks the settings the named command depends on and reports
// every problem at once. Commands are "refresh", "serve", "export",
// "migrate", and "status".
func (c *Config) Validate(command string) error {
	var errs []string

	needsStore := map[string]bool{"refresh": true, "serve": true, "export": true, "migrate": true, "status": true}
	if !needsStore[command] {
		return eris.Errorf("config: unknown command %q", command)
	}

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}

	if command == "refresh" || command == "serve" {
		if c.Fetch.Timeout <= 0 {
			errs = append(errs, "fetch.timeout must be positive")
		}
		if c.Fetch.Concurrency < 1 {
			errs = append(errs, "fetch.concurrency must be at least 1")
		}
		if c.Feeds.NoticeURL == "" {
			errs = append(errs, "feeds.notice_url is required")
		}
		if !strings.Contains(c.Feeds.WeeklyURL, "%d") {
			errs = append(errs, "feeds.weekly_url must contain %d for the district")
		}
		if !slices.Contains([]string{StrategySwap, StrategyDeleteFirst}, c.Refresh.Strategy) {
			errs = append(errs, fmt.Sprintf("unknown refresh.strategy %q", c.Refresh.Strategy))
		}
	}

	if command == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("invalid server.port %d", c.Server.Port))
		}
		if c.Refresh.Interval <= 0 {
			errs = append(errs, "refresh.interval must be positive")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
