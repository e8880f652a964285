// Package config loads gateway configuration from YAML or JSON.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/mwantia/vgate/data"
)

// Config is the full gateway configuration.
type Config struct {
	Log    LogConfig     `koanf:"log"`
	Cache  CacheConfig   `koanf:"cache"`
	Ledger LedgerConfig  `koanf:"ledger"`
	Consul ConsulConfig  `koanf:"consul"`
	Mounts []MountConfig `koanf:"mounts"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	File  string `koanf:"file"`
	JSON  bool   `koanf:"json"`
}

type CacheConfig struct {
	// DefaultTTL applies to mounts without an explicit cache_ttl.
	DefaultTTL time.Duration `koanf:"default_ttl"`
}

type LedgerConfig struct {
	// Driver selects the ledger store: "memory", "sqlite" or "postgres".
	Driver string `koanf:"driver"`

	// DSN is the sqlite path or postgres connection string.
	DSN string `koanf:"dsn"`

	// SweepAge is how long an untouched upload session survives
	// before garbage collection reclaims it.
	SweepAge time.Duration `koanf:"sweep_age"`
}

type ConsulConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Address    string `koanf:"address"`
	Token      string `koanf:"token"`
	Datacenter string `koanf:"datacenter"`
	Prefix     string `koanf:"prefix"`
}

type MountConfig struct {
	ID              string            `koanf:"id"`
	Prefix          string            `koanf:"prefix"`
	Type            string            `koanf:"type"`
	Config          map[string]string `koanf:"config"`
	CacheTTL        time.Duration     `koanf:"cache_ttl"`
	ForceProxy      bool              `koanf:"force_proxy"`
	StorageConfigID string            `koanf:"storage_config_id"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level: "INFO",
		},
		Cache: CacheConfig{
			DefaultTTL: 30 * time.Minute,
		},
		Ledger: LedgerConfig{
			Driver:   "memory",
			SweepAge: 24 * time.Hour,
		},
	}
}

// Load reads a configuration file; the format follows the extension
// (.yaml/.yml or .json).
func Load(path string) (Config, error) {
	return load(file.Provider(path), parserFor(path))
}

// Parse reads configuration from raw bytes in the given format
// ("yaml" or "json").
func Parse(raw []byte, format string) (Config, error) {
	return load(rawbytes.Provider(raw), parserFor("."+format))
}

func load(provider koanf.Provider, parser koanf.Parser) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(provider, parser); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}

	config := DefaultConfig()
	if err := k.Unmarshal("", &config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return config, nil
}

func parserFor(path string) koanf.Parser {
	if strings.HasSuffix(path, ".json") {
		return json.Parser()
	}

	return yaml.Parser()
}

// Mount converts a mount config entry into the runtime descriptor,
// applying the cache default.
func (mc MountConfig) Mount(defaultTTL time.Duration) *data.Mount {
	ttl := mc.CacheTTL
	if ttl == 0 {
		ttl = defaultTTL
	}

	return &data.Mount{
		ID:              mc.ID,
		Prefix:          data.NormalizePath(mc.Prefix),
		Type:            mc.Type,
		Config:          mc.Config,
		CacheTTL:        ttl,
		ForceProxy:      mc.ForceProxy,
		StorageConfigID: mc.StorageConfigID,
	}
}
