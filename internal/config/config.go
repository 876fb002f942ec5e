// Package config handles loading, validating, and managing configuration
// for the glaze image optimization server.
package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aellingwood/glaze/internal/imagetype"
	"github.com/spf13/viper"
)

// Config is the top-level configuration. It is constructed once at boot
// and shared read-only by every request.
type Config struct {
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Static StaticConfig `yaml:"static" mapstructure:"static"`
	Cache  CacheConfig  `yaml:"cache"  mapstructure:"cache"`
	Images ImageConfig  `yaml:"images" mapstructure:"images"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port int    `yaml:"port" mapstructure:"port"`
	Bind string `yaml:"bind" mapstructure:"bind"`
}

// StaticConfig controls how site-relative image references are resolved.
type StaticConfig struct {
	Root   string `yaml:"root"   mapstructure:"root"`   // directory served at /
	MaxAge int    `yaml:"maxAge" mapstructure:"maxAge"` // Cache-Control max-age for static files, seconds
}

// CacheConfig controls the on-disk image cache.
type CacheConfig struct {
	Root string `yaml:"root" mapstructure:"root"` // entries live under {root}/cache/images
}

// ImageConfig controls the transformation endpoint.
type ImageConfig struct {
	DeviceSizes     []int    `yaml:"deviceSizes"     mapstructure:"deviceSizes"`
	ImageSizes      []int    `yaml:"imageSizes"      mapstructure:"imageSizes"`
	Domains         []string `yaml:"domains"         mapstructure:"domains"`
	Formats         []string `yaml:"formats"         mapstructure:"formats"` // output MIME types, preference order
	MinimumCacheTTL int      `yaml:"minimumCacheTTL" mapstructure:"minimumCacheTTL"`
	Loader          string   `yaml:"loader"          mapstructure:"loader"`
	Codec           string   `yaml:"codec"           mapstructure:"codec"`        // "auto" or "std"
	FetchTimeout    int      `yaml:"fetchTimeout"    mapstructure:"fetchTimeout"` // remote fetch timeout, seconds
}

// Default returns a Config populated with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 3000,
			Bind: "localhost",
		},
		Static: StaticConfig{
			Root:   "public",
			MaxAge: 31536000,
		},
		Cache: CacheConfig{
			Root: ".glaze",
		},
		Images: ImageConfig{
			DeviceSizes:     []int{640, 750, 828, 1080, 1200, 1920, 2048, 3840},
			ImageSizes:      []int{16, 32, 48, 64, 96, 128, 256, 384},
			Domains:         []string{},
			Formats:         []string{imagetype.WEBP},
			MinimumCacheTTL: 60,
			Loader:          "default",
			Codec:           "auto",
			FetchTimeout:    10,
		},
	}
}

// Load reads a configuration file from configPath (YAML or TOML) and
// returns a Config with defaults applied first and file values overlaid
// on top.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	v := viper.New()

	// Determine format from extension.
	ext := strings.TrimPrefix(filepath.Ext(configPath), ".")
	switch ext {
	case "yaml", "yml":
		v.SetConfigType("yaml")
	case "toml":
		v.SetConfigType("toml")
	default:
		// Default to yaml if unrecognised.
		v.SetConfigType("yaml")
	}

	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the Config for common errors.
func (c *Config) Validate() error {
	if len(c.Images.DeviceSizes) == 0 && len(c.Images.ImageSizes) == 0 {
		return fmt.Errorf("config: at least one device or image size is required")
	}
	for _, f := range c.Images.Formats {
		if imagetype.Extension(f) == "" {
			return fmt.Errorf("config: unsupported output format %q", f)
		}
	}
	if c.Images.MinimumCacheTTL < 0 {
		return fmt.Errorf("config: minimumCacheTTL must not be negative")
	}
	switch c.Images.Codec {
	case "auto", "std":
	default:
		return fmt.Errorf("config: codec must be \"auto\" or \"std\" (got %q)", c.Images.Codec)
	}
	return nil
}

// WithOverrides applies CLI flag overrides to the config. Known keys are
// mapped to their corresponding struct fields. The modified config is
// returned for convenient chaining.
func (c *Config) WithOverrides(overrides map[string]any) *Config {
	for key, val := range overrides {
		switch key {
		case "port":
			if n, ok := val.(int); ok {
				c.Server.Port = n
			}
		case "bind":
			if s, ok := val.(string); ok {
				c.Server.Bind = s
			}
		case "staticRoot":
			if s, ok := val.(string); ok {
				c.Static.Root = s
			}
		case "cacheRoot":
			if s, ok := val.(string); ok {
				c.Cache.Root = s
			}
		case "codec":
			if s, ok := val.(string); ok {
				c.Images.Codec = s
			}
		}
	}
	return c
}

// AllowedSizes returns the merged device and image widths, de-duplicated
// and ascending-sorted. A requested width must be a member of this set.
func (c *Config) AllowedSizes() []int {
	seen := make(map[int]bool)
	var sizes []int
	for _, s := range c.Images.DeviceSizes {
		if s > 0 && !seen[s] {
			seen[s] = true
			sizes = append(sizes, s)
		}
	}
	for _, s := range c.Images.ImageSizes {
		if s > 0 && !seen[s] {
			seen[s] = true
			sizes = append(sizes, s)
		}
	}
	sort.Ints(sizes)
	return sizes
}

// FetchTimeout returns the remote fetch timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Images.FetchTimeout) * time.Second
}
