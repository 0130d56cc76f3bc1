// Package config loads the postcache process configuration from defaults, an optional TOML file and
// POSTCACHE_ environment variables, in that order.
package config

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/hypergopher/postcache"
	"github.com/hypergopher/postcache/feed"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "POSTCACHE_"

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverBBolt  = "bbolt"
)

// Config is the process configuration.
type Config struct {
	RefreshInterval time.Duration `toml:"refresh_interval" env:"REFRESH_INTERVAL"`
	WarmupDelay     time.Duration `toml:"warmup_delay" env:"WARMUP_DELAY"`
	StorageDriver   string        `toml:"storage_driver" env:"STORAGE_DRIVER"`
	StoragePath     string        `toml:"storage_path" env:"STORAGE_PATH"`
	FullText        bool          `toml:"full_text" env:"FULL_TEXT"`
	TimeZone        string        `toml:"time_zone" env:"TIME_ZONE"`
	PageSize        int           `toml:"page_size" env:"PAGE_SIZE"`
	Frontmatter     string        `toml:"frontmatter" env:"FRONTMATTER"`
	LogLevel        string        `toml:"log_level" env:"LOG_LEVEL"`
	Feed            FeedConfig    `toml:"feed" envPrefix:"FEED_"`
}

// FeedConfig configures the Atom feed.
type FeedConfig struct {
	BlogTitle    string `toml:"blog_title" env:"BLOG_TITLE"`
	BlogURL      string `toml:"blog_url" env:"BLOG_URL"`
	AuthorName   string `toml:"author_name" env:"AUTHOR_NAME"`
	MaxPostCount int    `toml:"max_post_count" env:"MAX_POST_COUNT"`
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		RefreshInterval: postcache.DefaultRefreshInterval,
		StorageDriver:   DriverMemory,
		TimeZone:        postcache.DefaultTimeZone,
		PageSize:        postcache.DefaultPageSize,
		Frontmatter:     string(postcache.FrontmatterTOML),
		LogLevel:        "info",
		Feed: FeedConfig{
			MaxPostCount: feed.DefaultMaxPostCount,
		},
	}
}

// Load builds the configuration: defaults, then the TOML file at path when path is not empty, then the
// environment. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks every field and returns a *ConfigError for the first invalid one.
func (c Config) Validate() error {
	if c.RefreshInterval <= 0 {
		return &ConfigError{Field: "RefreshInterval", Message: "must be greater than 0"}
	}

	if c.WarmupDelay < 0 {
		return &ConfigError{Field: "WarmupDelay", Message: "must not be negative"}
	}

	switch c.StorageDriver {
	case DriverMemory:
	case DriverSQLite, DriverBBolt:
		if c.StoragePath == "" {
			return &ConfigError{Field: "StoragePath", Message: "is required for the " + c.StorageDriver + " driver"}
		}
	default:
		return &ConfigError{Field: "StorageDriver", Message: fmt.Sprintf("unknown driver %q", c.StorageDriver)}
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return &ConfigError{Field: "TimeZone", Message: err.Error()}
	}

	if c.PageSize <= 0 {
		return &ConfigError{Field: "PageSize", Message: "must be greater than 0"}
	}

	if _, err := postcache.ParseFrontmatterFormat(c.Frontmatter); err != nil {
		return &ConfigError{Field: "Frontmatter", Message: err.Error()}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return &ConfigError{Field: "LogLevel", Message: fmt.Sprintf("unknown level %q", c.LogLevel)}
	}

	if c.Feed.MaxPostCount <= 0 {
		return &ConfigError{Field: "Feed.MaxPostCount", Message: "must be greater than 0"}
	}

	return nil
}

// Location returns the blog time zone.
func (c Config) Location() *time.Location {
	return postcache.LoadLocation(c.TimeZone)
}

// FeedOptions returns the Atom feed options.
func (c Config) FeedOptions() feed.FeedOptions {
	return feed.FeedOptions{
		BlogTitle:    c.Feed.BlogTitle,
		BlogURL:      c.Feed.BlogURL,
		AuthorName:   c.Feed.AuthorName,
		MaxPostCount: c.Feed.MaxPostCount,
		Location:     c.Location(),
	}
}
