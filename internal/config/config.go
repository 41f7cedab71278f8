package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oxide-lab/discover/internal/catalog"
	"github.com/oxide-lab/discover/internal/discovery"
	"github.com/oxide-lab/discover/internal/history"
	"github.com/oxide-lab/discover/internal/searchcache"
	"github.com/oxide-lab/discover/internal/store"
)

// HomeEnv overrides the ~/.oxide directory.
const HomeEnv = "OXIDE_HOME"

// CacheConfig bounds the search cache.
type CacheConfig struct {
	MaxEntries       int `yaml:"max_entries"`
	MaxPagesPerQuery int `yaml:"max_pages_per_query"`
	MaxItemsPerPage  int `yaml:"max_items_per_page"`
	FuzzyLimit       int `yaml:"fuzzy_limit"`
}

// HistoryConfig bounds the search history.
type HistoryConfig struct {
	Max int `yaml:"max"`
}

// StoreConfig selects where cache and history are persisted.
type StoreConfig struct {
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path,omitempty"`
	RedisAddr string `yaml:"redis_addr,omitempty"`
	RedisDB   int    `yaml:"redis_db,omitempty"`
	KeyPrefix string `yaml:"key_prefix,omitempty"`
}

// Config is the in-memory representation of ~/.oxide/discover.yaml.
type Config struct {
	HubURL   string        `yaml:"hub_url"`
	PageSize int           `yaml:"page_size"`
	Cache    CacheConfig   `yaml:"cache"`
	History  HistoryConfig `yaml:"history"`
	Store    StoreConfig   `yaml:"store"`
}

// OxideDir returns the absolute path to ~/.oxide/, or $OXIDE_HOME when set.
func OxideDir() (string, error) {
	if d := strings.TrimSpace(os.Getenv(HomeEnv)); d != "" {
		return ExpandPath(d)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".oxide"), nil
}

// ConfigPath returns the absolute path to ~/.oxide/discover.yaml.
func ConfigPath() (string, error) {
	dir, err := OxideDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "discover.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		HubURL:   catalog.DefaultHubURL,
		PageSize: discovery.DefaultPageSize,
		Cache: CacheConfig{
			MaxEntries:       searchcache.DefaultMaxEntries,
			MaxPagesPerQuery: searchcache.DefaultMaxPagesPerQuery,
			MaxItemsPerPage:  searchcache.DefaultMaxItemsPerPage,
			FuzzyLimit:       discovery.DefaultFuzzyLimit,
		},
		History: HistoryConfig{Max: history.DefaultMax},
		Store: StoreConfig{
			Backend:   store.BackendFile,
			KeyPrefix: store.DefaultKeyPrefix,
		},
	}
}

// fillDefaults replaces zero-valued fields with their defaults.
func (c *Config) fillDefaults() {
	d := DefaultConfig()
	setString := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	setInt := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	setString(&c.HubURL, d.HubURL)
	setInt(&c.PageSize, d.PageSize)
	setInt(&c.Cache.MaxEntries, d.Cache.MaxEntries)
	setInt(&c.Cache.MaxPagesPerQuery, d.Cache.MaxPagesPerQuery)
	setInt(&c.Cache.MaxItemsPerPage, d.Cache.MaxItemsPerPage)
	setInt(&c.Cache.FuzzyLimit, d.Cache.FuzzyLimit)
	setInt(&c.History.Max, d.History.Max)
	setString(&c.Store.Backend, d.Store.Backend)
	setString(&c.Store.KeyPrefix, d.Store.KeyPrefix)
}

// Load reads and parses ~/.oxide/discover.yaml. A missing file yields the
// default configuration.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	cfg.fillDefaults()
	cfg.Store.Path, err = ExpandPath(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save marshals cfg and writes it to ~/.oxide/discover.yaml.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}

// StorePath returns the file store location: store.path when set, else
// ~/.oxide/discover-store.json.
func (c *Config) StorePath() (string, error) {
	if p := strings.TrimSpace(c.Store.Path); p != "" {
		return ExpandPath(p)
	}
	dir, err := OxideDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "discover-store.json"), nil
}

// CacheLimits returns the cache bounds as searchcache limits.
func (c *Config) CacheLimits() searchcache.Limits {
	return searchcache.Limits{
		MaxEntries:       c.Cache.MaxEntries,
		MaxPagesPerQuery: c.Cache.MaxPagesPerQuery,
		MaxItemsPerPage:  c.Cache.MaxItemsPerPage,
	}
}
