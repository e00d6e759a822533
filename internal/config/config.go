// Package config loads the application's layered configuration via
// spf13/viper: defaults, an optional YAML file, then UPTIMEWATCHER_*
// environment overrides, organized as nested sections per subsystem.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StorageConfig configures the SQLite storage engine.
type StorageConfig struct {
	Path           string `mapstructure:"path"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// SchedulerConfig configures scheduling defaults applied when a monitor
// doesn't specify its own override.
type SchedulerConfig struct {
	CleanupBuffer     time.Duration `mapstructure:"cleanup_buffer"`
	JitterCap         time.Duration `mapstructure:"jitter_cap"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	BackoffCeilingFactor int        `mapstructure:"backoff_ceiling_factor"`
}

// CacheConfig configures the in-process site cache.
type CacheConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// LogConfig configures pkg/logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// IPCConfig configures the broadcast bridge transport.
type IPCConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// Config is the root application configuration.
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	IPC       IPCConfig       `mapstructure:"ipc"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.path", "./data/uptimewatcher.db")
	v.SetDefault("storage.migrations_path", "")

	v.SetDefault("scheduler.cleanup_buffer", 500*time.Millisecond)
	v.SetDefault("scheduler.jitter_cap", 5*time.Second)
	v.SetDefault("scheduler.backoff_multiplier", 2.0)
	v.SetDefault("scheduler.backoff_ceiling_factor", 10)

	v.SetDefault("cache.size", 256)
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("ipc.listen_addr", ":7337")
}

// Load builds a Config from defaults, an optional file at configPath
// (skipped silently if empty or missing), and UPTIMEWATCHER_* environment
// variables, in that ascending precedence order.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("UPTIMEWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
