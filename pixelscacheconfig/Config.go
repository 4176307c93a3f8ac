// Package pixelscacheconfig loads the daemon's configuration from a
// JWCC (JSON with comments) file and binds the same keys onto command
// line flags, with flags taking precedence over the file.
package pixelscacheconfig

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"
	"github.com/tailscale/hujson"
)

// Config holds every tunable named in the external interface: where the
// cache and index files live and how big they are, whether the cache is
// enabled at all, whether reads copy out of the mapping, the balancer
// toggle, and how long a rebuild lease is honored before it's considered
// abandoned.
type Config struct {
	CacheLocation string `json:"cache.location"`
	CacheSize     int64  `json:"cache.size"`
	IndexLocation string `json:"index.location"`
	IndexSize     int64  `json:"index.size"`

	CacheEnabled          bool `json:"cache.enabled"`
	CacheReadDirect       bool `json:"cache.read.direct"`
	EnableAbsoluteBalancer bool `json:"enable.absolute.balancer"`

	LeaseTTLSeconds int `json:"lease.ttl.seconds"`
}

// Default returns the configuration a fresh install starts from.
func Default() Config {
	return Config{
		CacheLocation:          "/mnt/pixels-cache/pixels.cache",
		CacheSize:              1 << 30,
		IndexLocation:          "/mnt/pixels-cache/pixels.index",
		IndexSize:              16 << 20,
		CacheEnabled:           true,
		CacheReadDirect:        false,
		EnableAbsoluteBalancer: false,
		LeaseTTLSeconds:        30,
	}
}

// Load reads path, a JWCC document (JSON5-ish: trailing commas and
// comments allowed), standardizes it to plain JSON, and decodes it over
// Default().
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("pixelscacheconfig: read %s: %w", path, err)
	}

	std, err := hujson.Standardize(raw)
	if err != nil {
		return cfg, fmt.Errorf("pixelscacheconfig: parse %s: %w", path, err)
	}

	if err := json.Unmarshal(std, &cfg); err != nil {
		return cfg, fmt.Errorf("pixelscacheconfig: decode %s: %w", path, err)
	}

	return cfg, nil
}

// LeaseTTL is LeaseTTLSeconds as a time.Duration.
func (c Config) LeaseTTL() time.Duration {
	return time.Duration(c.LeaseTTLSeconds) * time.Second
}

// BindFlags registers every config key onto fs, defaulting each flag to
// the value already in c so an unset flag leaves the file's value (or
// Default()'s) untouched. Call fs.Parse, then re-read the same *Config
// the flags were bound to.
func BindFlags(fs *pflag.FlagSet, c *Config) {
	fs.StringVar(&c.CacheLocation, "cache.location", c.CacheLocation, "path to the cache data file")
	fs.Int64Var(&c.CacheSize, "cache.size", c.CacheSize, "cache data file size in bytes")
	fs.StringVar(&c.IndexLocation, "index.location", c.IndexLocation, "path to the cache index file")
	fs.Int64Var(&c.IndexSize, "index.size", c.IndexSize, "cache index file size in bytes")
	fs.BoolVar(&c.CacheEnabled, "cache.enabled", c.CacheEnabled, "enable the shared cache")
	fs.BoolVar(&c.CacheReadDirect, "cache.read.direct", c.CacheReadDirect, "copy lookup results out of the mapping instead of aliasing it")
	fs.BoolVar(&c.EnableAbsoluteBalancer, "enable.absolute.balancer", c.EnableAbsoluteBalancer, "enable the absolute-count cache balancer")
	fs.IntVar(&c.LeaseTTLSeconds, "lease.ttl.seconds", c.LeaseTTLSeconds, "seconds before an unrenewed rebuild lease is considered abandoned")
}
