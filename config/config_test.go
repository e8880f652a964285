package config_test

import (
	"testing"
	"time"

	"github.com/mwantia/vgate/config"
)

// TestParseYAML verifies a full configuration document round-trips
// into the runtime types.
func TestParseYAML(t *testing.T) {
	raw := []byte(`
log:
  level: DEBUG
  json: true
cache:
  default_ttl: 5m
ledger:
  driver: sqlite
  dsn: /var/lib/vgate/ledger.db
  sweep_age: 12h
mounts:
  - id: docs
    prefix: /docs/
    type: s3
    cache_ttl: 90s
    config:
      endpoint: s3.example.com
      bucket: docs
  - id: scratch
    prefix: /scratch
    type: memory
    force_proxy: true
`)

	cfg, err := config.Parse(raw, "yaml")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Log.Level != "DEBUG" || !cfg.Log.JSON {
		t.Errorf("Expected log config to parse, got %+v", cfg.Log)
	}
	if cfg.Cache.DefaultTTL != 5*time.Minute {
		t.Errorf("Expected 5m default TTL, got %v", cfg.Cache.DefaultTTL)
	}
	if cfg.Ledger.Driver != "sqlite" || cfg.Ledger.SweepAge != 12*time.Hour {
		t.Errorf("Expected ledger config to parse, got %+v", cfg.Ledger)
	}
	if len(cfg.Mounts) != 2 {
		t.Fatalf("Expected 2 mounts, got %d", len(cfg.Mounts))
	}

	docs := cfg.Mounts[0].Mount(cfg.Cache.DefaultTTL)
	if docs.Prefix != "/docs" {
		t.Errorf("Expected the prefix to normalize, got %q", docs.Prefix)
	}
	if docs.CacheTTL != 90*time.Second {
		t.Errorf("Expected the explicit TTL, got %v", docs.CacheTTL)
	}
	if docs.Config["bucket"] != "docs" {
		t.Errorf("Expected backend config to pass through, got %v", docs.Config)
	}

	scratch := cfg.Mounts[1].Mount(cfg.Cache.DefaultTTL)
	if scratch.CacheTTL != 5*time.Minute {
		t.Errorf("Expected the default TTL to apply, got %v", scratch.CacheTTL)
	}
	if !scratch.ForceProxy {
		t.Errorf("Expected force_proxy to parse")
	}
}

// TestDefaults verifies an empty document keeps every default.
func TestDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte("{}"), "json")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	defaults := config.DefaultConfig()
	if cfg.Log.Level != defaults.Log.Level {
		t.Errorf("Expected default log level %q, got %q", defaults.Log.Level, cfg.Log.Level)
	}
	if cfg.Ledger.Driver != "memory" {
		t.Errorf("Expected the memory ledger default, got %q", cfg.Ledger.Driver)
	}
	if cfg.Cache.DefaultTTL != defaults.Cache.DefaultTTL {
		t.Errorf("Expected default TTL %v, got %v", defaults.Cache.DefaultTTL, cfg.Cache.DefaultTTL)
	}
}
