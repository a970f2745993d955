package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fragmede/threadview/internal/thread"
)

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	CacheDir      string        `mapstructure:"cache_dir" yaml:"cache_dir"`
	DBPath        string        `mapstructure:"db_path" yaml:"db_path"`
	LogPath       string        `mapstructure:"log_path" yaml:"log_path"`
	LogLevel      string        `mapstructure:"log_level" yaml:"log_level"`
	API           APIConfig     `mapstructure:"api" yaml:"api"`
	Cache         CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Monitor       MonitorConfig `mapstructure:"monitor" yaml:"monitor"`
	Loader        LoaderConfig  `mapstructure:"loader" yaml:"loader"`
}

// APIConfig selects the remote endpoints.
type APIConfig struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	AlgoliaURL     string `mapstructure:"algolia_url" yaml:"algolia_url"`
	SiteURL        string `mapstructure:"site_url" yaml:"site_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxConcurrent  int    `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	TreeTTLSeconds int    `mapstructure:"tree_ttl_seconds" yaml:"tree_ttl_seconds"`
}

// CacheConfig controls the sqlite cache.
type CacheConfig struct {
	Enabled        bool `mapstructure:"enabled" yaml:"enabled"`
	PageTTLSeconds int  `mapstructure:"page_ttl_seconds" yaml:"page_ttl_seconds"`
	ItemTTLSeconds int  `mapstructure:"item_ttl_seconds" yaml:"item_ttl_seconds"`
	MaxAgeHours    int  `mapstructure:"max_age_hours" yaml:"max_age_hours"`
}

// MonitorConfig controls the background total poller.
type MonitorConfig struct {
	Enabled         bool `mapstructure:"enabled" yaml:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds" yaml:"interval_seconds"`
}

// LoaderConfig tunes the thread loader.
type LoaderConfig struct {
	Order           string       `mapstructure:"order" yaml:"order"`
	PrefetchPadding int          `mapstructure:"prefetch_padding" yaml:"prefetch_padding"`
	FallbackGuard   int          `mapstructure:"fallback_guard" yaml:"fallback_guard"`
	SettleDelayMS   int          `mapstructure:"settle_delay_ms" yaml:"settle_delay_ms"`
	Blending        bool         `mapstructure:"blending" yaml:"blending"`
	Root            PolicyConfig `mapstructure:"root" yaml:"root"`
	Replies         PolicyConfig `mapstructure:"replies" yaml:"replies"`
}

// PolicyConfig is the paging and retry policy of one kind of list.
type PolicyConfig struct {
	PageSize    int     `mapstructure:"page_size" yaml:"page_size"`
	BaseDelayMS int     `mapstructure:"base_delay_ms" yaml:"base_delay_ms"`
	Multiplier  float64 `mapstructure:"multiplier" yaml:"multiplier"`
	MaxDelayMS  int     `mapstructure:"max_delay_ms" yaml:"max_delay_ms"`
	MaxAttempts int     `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// Policy converts p to a loader policy.
func (p PolicyConfig) Policy() thread.Policy {
	return thread.Policy{
		PageSize:    p.PageSize,
		BaseDelay:   time.Duration(p.BaseDelayMS) * time.Millisecond,
		Multiplier:  p.Multiplier,
		MaxDelay:    time.Duration(p.MaxDelayMS) * time.Millisecond,
		MaxAttempts: p.MaxAttempts,
	}
}

func policyConfig(p thread.Policy) PolicyConfig {
	return PolicyConfig{
		PageSize:    p.PageSize,
		BaseDelayMS: int(p.BaseDelay / time.Millisecond),
		Multiplier:  p.Multiplier,
		MaxDelayMS:  int(p.MaxDelay / time.Millisecond),
		MaxAttempts: p.MaxAttempts,
	}
}

// Ordering returns the configured initial ordering.
func (l LoaderConfig) Ordering() thread.Ordering {
	o, _ := thread.ParseOrdering(l.Order)
	return o
}

func (c Config) PageTTL() time.Duration { return time.Duration(c.Cache.PageTTLSeconds) * time.Second }
func (c Config) ItemTTL() time.Duration { return time.Duration(c.Cache.ItemTTLSeconds) * time.Second }
func (c Config) TreeTTL() time.Duration { return time.Duration(c.API.TreeTTLSeconds) * time.Second }

func (c Config) MonitorInterval() time.Duration {
	return time.Duration(c.Monitor.IntervalSeconds) * time.Second
}

func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.Loader.SettleDelayMS) * time.Millisecond
}

// Default returns the built-in configuration.
func Default() Config {
	dir := filepath.Join(userConfigDir(), "threadview")
	return Config{
		ConfigVersion: CurrentConfigVersion,
		CacheDir:      dir,
		DBPath:        filepath.Join(dir, "cache.db"),
		LogPath:       filepath.Join(dir, "debug.log"),
		LogLevel:      "info",
		API: APIConfig{
			BaseURL:        "https://hacker-news.firebaseio.com/v0",
			AlgoliaURL:     "https://hn.algolia.com/api/v1",
			SiteURL:        "https://news.ycombinator.com",
			TimeoutSeconds: 10,
			MaxConcurrent:  10,
			TreeTTLSeconds: 30,
		},
		Cache: CacheConfig{
			Enabled:        true,
			PageTTLSeconds: 60,
			ItemTTLSeconds: 300,
			MaxAgeHours:    72,
		},
		Monitor: MonitorConfig{
			Enabled:         true,
			IntervalSeconds: 30,
		},
		Loader: LoaderConfig{
			Order:           thread.Popularity.String(),
			PrefetchPadding: thread.DefaultPadding,
			FallbackGuard:   thread.DefaultFallbackGuard,
			SettleDelayMS:   int(thread.DefaultSettleDelay / time.Millisecond),
			Blending:        true,
			Root:            policyConfig(thread.DefaultRootPolicy()),
			Replies:         policyConfig(thread.DefaultReplyPolicy()),
		},
	}
}

// DefaultConfigPath returns the location of the config file.
func DefaultConfigPath() string {
	return filepath.Join(userConfigDir(), "threadview", "config.yaml")
}

func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}
