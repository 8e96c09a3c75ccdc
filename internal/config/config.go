// Package config loads the scheduler's options (§6) via viper,
// grounded on the teacher's internal/config.LoadConfig: a single
// parseConfigFile pass (viper.Unmarshal, mapstructure-tagged fields)
// followed by default application and validation.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/comradexy/mw-stm-go/internal/trigger"
)

// Config is the root configuration document.
type Config struct {
	EnableStorage bool               `mapstructure:"enable_storage"`
	StorageType   string             `mapstructure:"storage_type"` // memory, jdbc, redis
	DataSource    DataSourceConfig   `mapstructure:"data_source"`
	PoolSize      int                `mapstructure:"pool_size"`
	AwaitTermSec  int                `mapstructure:"await_termination_seconds"`
	Log           LogConfig          `mapstructure:"log"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
	Handlers      []HandlerConfig    `mapstructure:"handlers"`

	configPath string
}

// DataSourceConfig holds the backend connection parameters of §6's
// `dataSource.url/username/password`.
type DataSourceConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// LogConfig configures the daemon's own rotating log file, grounded
// on the teacher's internal/logger.Config field names and defaults.
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Level      string `mapstructure:"level"`
}

// MetricsConfig controls whether Prometheus collectors are registered
// and where they are served.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// HandlerConfig is the decoded form of §6's "Handler declaration": a
// zero-argument method on a named bean plus one or more execution
// specs. The callable itself cannot be expressed in config — the host
// process supplies it at Registration time via its bean class/method
// name matching this declaration.
type HandlerConfig struct {
	BeanClassName string           `mapstructure:"bean_class_name"`
	BeanName      string           `mapstructure:"bean_name"`
	MethodName    string           `mapstructure:"method_name"`
	Specs         []ExecSpecConfig `mapstructure:"specs"`
}

// ExecSpecConfig is one decoded execution spec.
type ExecSpecConfig struct {
	Cron         string `mapstructure:"cron"`
	Desc         string `mapstructure:"desc"`
	MaxExecCount int64  `mapstructure:"max_exec_count"`
}

// LoadConfig reads configPath (toml/yaml/json, whatever viper
// detects from the extension) and applies documented defaults.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{configPath: configPath}
	if err := parseConfigFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", configPath, err)
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseConfigFile(configPath string, out any) error {
	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.StorageType == "" {
		cfg.StorageType = "memory"
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 8
	}
	if cfg.AwaitTermSec <= 0 {
		cfg.AwaitTermSec = 60
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 3
	}
	if cfg.Log.MaxAgeDays <= 0 {
		cfg.Log.MaxAgeDays = 7
	}
}

func validate(cfg *Config) error {
	switch strings.ToLower(cfg.StorageType) {
	case "memory", "jdbc", "redis":
	default:
		return fmt.Errorf("config: unknown storage_type %q (allowed: memory, jdbc, redis)", cfg.StorageType)
	}
	if cfg.EnableStorage && cfg.StorageType != "memory" && strings.TrimSpace(cfg.DataSource.URL) == "" {
		return fmt.Errorf("config: storage_type %q requires data_source.url", cfg.StorageType)
	}
	for _, h := range cfg.Handlers {
		if strings.TrimSpace(h.BeanClassName) == "" || strings.TrimSpace(h.MethodName) == "" {
			return fmt.Errorf("config: handler declaration requires bean_class_name and method_name")
		}
		for _, s := range h.Specs {
			if strings.TrimSpace(s.Cron) == "" {
				return fmt.Errorf("config: handler %s.%s: exec spec requires cron", h.BeanClassName, h.MethodName)
			}
			if err := trigger.Validate(s.Cron); err != nil {
				return fmt.Errorf("config: handler %s.%s: %w", h.BeanClassName, h.MethodName, err)
			}
		}
	}
	return nil
}
