// Package config loads FileIndexer configuration from YAML.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/czadmedia/FileIndexer/internal/ferrors"
)

// Config is the complete FileIndexer configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Paths    PathsConfig    `yaml:"paths" json:"paths"`
	Indexing IndexingConfig `yaml:"indexing" json:"indexing"`
	Watch    WatchConfig    `yaml:"watch" json:"watch"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// PathsConfig configures which paths to exclude from indexing.
type PathsConfig struct {
	// Exclude holds doublestar globs matched against root-relative
	// paths (e.g. "**/node_modules/**", "*.log").
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// IndexingConfig configures the scheduler and file processor.
type IndexingConfig struct {
	// Workers is the indexing worker pool size (0 = max(2, NumCPU)).
	Workers int `yaml:"workers" json:"workers"`

	// MaxFileSize is the largest file to index, in bytes (0 = no limit).
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`

	// ChunkSize is the streaming read size in bytes (0 = 32KiB).
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`

	// CacheSize is the query result cache capacity (0 = 256).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// WatchConfig configures the filesystem watcher.
type WatchConfig struct {
	// Debounce is the event coalescing window (e.g. "200ms").
	Debounce string `yaml:"debounce" json:"debounce"`

	// EventBuffer is the watcher event channel size (0 = 1024).
	EventBuffer int `yaml:"event_buffer" json:"event_buffer"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Exclude: []string{"**/.git/**", "**/node_modules/**"},
		},
		Indexing: IndexingConfig{
			Workers:   defaultWorkers(),
			ChunkSize: 32 * 1024,
			CacheSize: 256,
		},
		Watch: WatchConfig{
			Debounce:    "200ms",
			EventBuffer: 1024,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file, filling unset fields from defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.New(ferrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file not found: %s", path), err)
		}
		return nil, ferrors.Wrap(ferrors.ErrCodeConfigInvalid, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, ferrors.New(ferrors.ErrCodeConfigInvalid,
			fmt.Sprintf("cannot parse config: %v", err), err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero values after unmarshalling.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Indexing.Workers <= 0 {
		c.Indexing.Workers = d.Indexing.Workers
	}
	if c.Indexing.ChunkSize <= 0 {
		c.Indexing.ChunkSize = d.Indexing.ChunkSize
	}
	if c.Indexing.CacheSize <= 0 {
		c.Indexing.CacheSize = d.Indexing.CacheSize
	}
	if c.Watch.Debounce == "" {
		c.Watch.Debounce = d.Watch.Debounce
	}
	if c.Watch.EventBuffer <= 0 {
		c.Watch.EventBuffer = d.Watch.EventBuffer
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
}

// Validate checks field values that cannot be defaulted away.
func (c *Config) Validate() error {
	if _, err := c.DebounceWindow(); err != nil {
		return ferrors.New(ferrors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid watch.debounce %q", c.Watch.Debounce), err)
	}
	if c.Indexing.MaxFileSize < 0 {
		return ferrors.New(ferrors.ErrCodeConfigInvalid,
			"indexing.max_file_size must not be negative", nil)
	}
	return nil
}

// DebounceWindow parses the configured debounce duration.
func (c *Config) DebounceWindow() (time.Duration, error) {
	return time.ParseDuration(c.Watch.Debounce)
}

func defaultWorkers() int {
	n := runtime.NumCPU()
	if n < 2 {
		return 2
	}
	return n
}
