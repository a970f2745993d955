package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fragmede/threadview/internal/thread"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. THREADVIEW_LOADER_ORDER.
const EnvPrefix = "THREADVIEW"

// Load reads configuration from path, falling back to DefaultConfigPath.
// A missing file yields the defaults; environment variables override both.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
	} else if v.GetInt("config_version") != CurrentConfigVersion {
		return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("cache_dir", cfg.CacheDir)
	v.SetDefault("db_path", cfg.DBPath)
	v.SetDefault("log_path", cfg.LogPath)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.algolia_url", cfg.API.AlgoliaURL)
	v.SetDefault("api.site_url", cfg.API.SiteURL)
	v.SetDefault("api.timeout_seconds", cfg.API.TimeoutSeconds)
	v.SetDefault("api.max_concurrent", cfg.API.MaxConcurrent)
	v.SetDefault("api.tree_ttl_seconds", cfg.API.TreeTTLSeconds)
	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.page_ttl_seconds", cfg.Cache.PageTTLSeconds)
	v.SetDefault("cache.item_ttl_seconds", cfg.Cache.ItemTTLSeconds)
	v.SetDefault("cache.max_age_hours", cfg.Cache.MaxAgeHours)
	v.SetDefault("monitor.enabled", cfg.Monitor.Enabled)
	v.SetDefault("monitor.interval_seconds", cfg.Monitor.IntervalSeconds)
	v.SetDefault("loader.order", cfg.Loader.Order)
	v.SetDefault("loader.prefetch_padding", cfg.Loader.PrefetchPadding)
	v.SetDefault("loader.fallback_guard", cfg.Loader.FallbackGuard)
	v.SetDefault("loader.settle_delay_ms", cfg.Loader.SettleDelayMS)
	v.SetDefault("loader.blending", cfg.Loader.Blending)
	for name, p := range map[string]PolicyConfig{"root": cfg.Loader.Root, "replies": cfg.Loader.Replies} {
		v.SetDefault("loader."+name+".page_size", p.PageSize)
		v.SetDefault("loader."+name+".base_delay_ms", p.BaseDelayMS)
		v.SetDefault("loader."+name+".multiplier", p.Multiplier)
		v.SetDefault("loader."+name+".max_delay_ms", p.MaxDelayMS)
		v.SetDefault("loader."+name+".max_attempts", p.MaxAttempts)
	}
}

// Validate rejects settings the loader cannot run with.
func (c Config) Validate() error {
	if _, ok := thread.ParseOrdering(c.Loader.Order); !ok {
		return fmt.Errorf("loader.order: unknown ordering %q", c.Loader.Order)
	}
	for name, p := range map[string]PolicyConfig{"root": c.Loader.Root, "replies": c.Loader.Replies} {
		switch {
		case p.PageSize <= 0:
			return fmt.Errorf("loader.%s.page_size must be positive", name)
		case p.MaxAttempts <= 0:
			return fmt.Errorf("loader.%s.max_attempts must be positive", name)
		case p.Multiplier < 1:
			return fmt.Errorf("loader.%s.multiplier must be at least 1", name)
		case p.MaxDelayMS < p.BaseDelayMS:
			return fmt.Errorf("loader.%s.max_delay_ms is below base_delay_ms", name)
		}
	}
	return nil
}

// WriteDefault writes the default config to path and returns the path
// written.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	data, err := Marshal(Default())
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// Marshal encodes cfg as yaml.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
