package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	Log     LogConfig     `yaml:"log"`
}

type StorageConfig struct {
	Path             string  `yaml:"path"`
	MemTableCapacity int     `yaml:"memtable_capacity"` // keys buffered before a flush
	SyncOnBuild      bool    `yaml:"sync_on_build"`     // fsync tables before they are registered
	CatalogFile      string  `yaml:"catalog_file"`      // relative to Path
	BloomFalseProb   float64 `yaml:"bloom_false_prob"`
}

type CacheConfig struct {
	Enabled     bool  `yaml:"enabled"`
	MaxCost     int64 `yaml:"max_cost"` // bytes of cached values
	NumCounters int64 `yaml:"num_counters"`
}

type LogConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:             "lsmkv_data",
			MemTableCapacity: 4096,
			SyncOnBuild:      true,
			CatalogFile:      "catalog.db",
			BloomFalseProb:   0.01,
		},
		Cache: CacheConfig{
			Enabled:     true,
			MaxCost:     64 << 20,
			NumCounters: 1 << 20,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		for _, p := range []string{"configs/lsmkv.yaml", "lsmkv.yaml"} {
			data, err := os.ReadFile(p)
			if err == nil {
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return cfg, err
				}
				applyStorageDefaults(cfg)
				return cfg, nil
			}
		}
		applyStorageDefaults(cfg)
		return cfg, nil // no file found: use defaults
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, err
	}

	applyStorageDefaults(cfg)
	return cfg, nil
}

func applyStorageDefaults(cfg *Config) {
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "lsmkv_data"
	}
	if cfg.Storage.MemTableCapacity <= 0 {
		cfg.Storage.MemTableCapacity = 4096
	}
	if cfg.Storage.CatalogFile == "" {
		cfg.Storage.CatalogFile = "catalog.db"
	}
	if cfg.Storage.BloomFalseProb <= 0 || cfg.Storage.BloomFalseProb >= 1 {
		cfg.Storage.BloomFalseProb = 0.01
	}
	if cfg.Cache.MaxCost <= 0 {
		cfg.Cache.MaxCost = 64 << 20
	}
	if cfg.Cache.NumCounters <= 0 {
		cfg.Cache.NumCounters = 1 << 20
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
