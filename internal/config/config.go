// Package config loads service configuration from an optional YAML file
// with RECONCILE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RECONCILE_STORE_PATH.
const EnvPrefix = "RECONCILE"

// Config is the full service configuration.
type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Poller   PollerConfig   `mapstructure:"poller"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// StoreConfig locates the record database.
type StoreConfig struct {
	Path    string        `mapstructure:"path"`
	Timeout time.Duration `mapstructure:"timeout"` // per store operation
}

// DispatchConfig lists the remote workers.
type DispatchConfig struct {
	SubmitTimeout time.Duration  `mapstructure:"submit_timeout"`
	Workers       []WorkerConfig `mapstructure:"workers"`
}

// WorkerConfig is one remote worker.
type WorkerConfig struct {
	Hostname string `mapstructure:"hostname"`
	URL      string `mapstructure:"url"`
}

// PollerConfig sets the status polling cadence.
type PollerConfig struct {
	Period      time.Duration `mapstructure:"period"`
	Stagger     time.Duration `mapstructure:"stagger"`
	TickTimeout time.Duration `mapstructure:"tick_timeout"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug | release | test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // text | json
	Output     string `mapstructure:"output"` // stdout | stderr | file
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	AddSource  bool   `mapstructure:"add_source"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.path", "reconcile.db")
	v.SetDefault("store.timeout", 5*time.Second)

	v.SetDefault("dispatch.submit_timeout", 30*time.Second)
	v.SetDefault("dispatch.workers", []map[string]any{})

	v.SetDefault("poller.period", 10*time.Second)
	v.SetDefault("poller.stagger", 2*time.Second)
	v.SetDefault("poller.tick_timeout", 8*time.Second)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.file_path", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.add_source", false)
}

// Load reads configuration. With an empty path it looks for reconcile.yaml
// in ./configs and the working directory and falls back to defaults when
// none exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("reconcile")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	if c.Store.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("store.timeout must be positive, got %s", c.Store.Timeout))
	}
	if c.Dispatch.SubmitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("dispatch.submit_timeout must be positive, got %s", c.Dispatch.SubmitTimeout))
	}

	seen := make(map[string]bool, len(c.Dispatch.Workers))
	for i, w := range c.Dispatch.Workers {
		if w.Hostname == "" {
			errs = append(errs, fmt.Errorf("dispatch.workers[%d].hostname is required", i))
		} else if seen[w.Hostname] {
			errs = append(errs, fmt.Errorf("dispatch.workers[%d].hostname %q is duplicated", i, w.Hostname))
		}
		seen[w.Hostname] = true

		u, err := url.Parse(w.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("dispatch.workers[%d].url %q is not an absolute URL", i, w.URL))
		}
	}

	if c.Poller.Period <= 0 {
		errs = append(errs, fmt.Errorf("poller.period must be positive, got %s", c.Poller.Period))
	}
	if c.Poller.Stagger < 0 {
		errs = append(errs, fmt.Errorf("poller.stagger must not be negative, got %s", c.Poller.Stagger))
	}
	if c.Poller.TickTimeout <= 0 {
		errs = append(errs, fmt.Errorf("poller.tick_timeout must be positive, got %s", c.Poller.TickTimeout))
	}

	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("server.mode %q must be debug, release or test", c.Server.Mode))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is unknown", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format %q must be json or text", c.Log.Format))
	}
	switch c.Log.Output {
	case "stdout", "stderr":
	case "file":
		if c.Log.FilePath == "" {
			errs = append(errs, errors.New("log.file_path is required when log.output is file"))
		}
	default:
		errs = append(errs, fmt.Errorf("log.output %q must be stdout, stderr or file", c.Log.Output))
	}

	return errors.Join(errs...)
}
