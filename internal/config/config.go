package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration lets TOML carry durations as strings such as "750ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type ServerConfig struct {
	Port string `toml:"port"`
	Mode string `toml:"mode"`
}

type MemgraphConfig struct {
	Enabled  bool   `toml:"enabled"`
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

// StorageConfig selects the backends. Empty paths mean in-memory.
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path"`
	BadgerPath string `toml:"badger_path"`
}

type CacheConfig struct {
	MaxBytes int64    `toml:"max_bytes"`
	TTL      Duration `toml:"ttl"`
}

type OrchestratorConfig struct {
	Timeout      Duration `toml:"timeout"`
	QuickTimeout Duration `toml:"quick_timeout"`
	WarnAfter    Duration `toml:"warn_after"`
}

type ConcurrencyConfig struct {
	Orchestrator int `toml:"orchestrator"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type Config struct {
	Server       ServerConfig       `toml:"server"`
	Memgraph     MemgraphConfig     `toml:"memgraph"`
	Storage      StorageConfig      `toml:"storage"`
	Cache        CacheConfig        `toml:"cache"`
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
	Concurrency  ConcurrencyConfig  `toml:"concurrency"`
	Log          LogConfig          `toml:"log"`
}

func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080", Mode: "release"},
		Memgraph: MemgraphConfig{URI: "bolt://localhost:7687"},
		Cache: CacheConfig{
			MaxBytes: 64 << 20,
			TTL:      Duration{5 * time.Minute},
		},
		Orchestrator: OrchestratorConfig{
			Timeout:      Duration{time.Second},
			QuickTimeout: Duration{250 * time.Millisecond},
			WarnAfter:    Duration{500 * time.Millisecond},
		},
		Concurrency: ConcurrencyConfig{Orchestrator: 16},
		Log:         LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides file values with environment variables when set.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := getenv("MEMGRAPH_URI"); v != "" {
		c.Memgraph.URI = v
		c.Memgraph.Enabled = true
	}
	if v := getenv("MEMGRAPH_USER"); v != "" {
		c.Memgraph.User = v
	}
	if v := getenv("MEMGRAPH_PASSWORD"); v != "" {
		c.Memgraph.Password = v
	}
	if v := getenv("CHRONICLE_SQLITE_PATH"); v != "" {
		c.Storage.SQLitePath = v
	}
	if v := getenv("CHRONICLE_BADGER_PATH"); v != "" {
		c.Storage.BadgerPath = v
	}
	if v := getenv("CHRONICLE_CACHE_MAX_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid CHRONICLE_CACHE_MAX_BYTES: %w", err)
		}
		c.Cache.MaxBytes = n
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}
