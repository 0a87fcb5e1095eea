package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all mllab configuration.
type Config struct {
	// Directory for artifacts (charts, archives, saved models)
	DataDir string `yaml:"data_dir"`

	// Run database
	Store StoreConfig `yaml:"store"`

	// Image compression defaults
	Compress CompressConfig `yaml:"compress"`

	// Spam filter training defaults
	Train TrainConfig `yaml:"train"`

	// Web UI
	Serve ServeConfig `yaml:"serve"`

	// Sample data download
	Fetch FetchConfig `yaml:"fetch"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig configures the SQLite run store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// CompressConfig configures the rank sweep.
type CompressConfig struct {
	Ranks        []int `yaml:"ranks"`
	MaxDimension int   `yaml:"max_dimension"`
	QuantBits    int   `yaml:"quant_bits"`
	Gray         bool  `yaml:"gray"`
}

// TrainConfig configures spam classifier training.
type TrainConfig struct {
	Model          string  `yaml:"model"` // dense, conv
	SequenceLength int     `yaml:"sequence_length"`
	MaxWords       int     `yaml:"max_words"`
	EmbeddingDim   int     `yaml:"embedding_dim"`
	HiddenUnits    int     `yaml:"hidden_units"`
	Filters        int     `yaml:"filters"`
	KernelWidth    int     `yaml:"kernel_width"`
	Epochs         int     `yaml:"epochs"`
	BatchSize      int     `yaml:"batch_size"`
	LearnRate      float64 `yaml:"learn_rate"`
	Holdout        float64 `yaml:"holdout"`
	Seed           int64   `yaml:"seed"`
}

// ServeConfig configures the web UI server.
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// FetchConfig configures the sample downloader.
type FetchConfig struct {
	Interval string `yaml:"interval"`
	CacheDir string `yaml:"cache_dir"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DataDir: "data",

		Store: StoreConfig{
			Path: "data/mllab.db",
		},

		Compress: CompressConfig{
			Ranks:        []int{5, 10, 20, 50},
			MaxDimension: 0,
			QuantBits:    12,
			Gray:         false,
		},

		Train: TrainConfig{
			Model:          "dense",
			SequenceLength: 50,
			MaxWords:       2000,
			EmbeddingDim:   16,
			HiddenUnits:    16,
			Filters:        32,
			KernelWidth:    3,
			Epochs:         10,
			BatchSize:      32,
			LearnRate:      0.001,
			Holdout:        0.2,
			Seed:           42,
		},

		Serve: ServeConfig{
			Addr: ":8080",
		},

		Fetch: FetchConfig{
			Interval: "500ms",
			CacheDir: "data/cache",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; a present file overrides them field by field.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("MLLAB_DB"); path != "" {
		c.Store.Path = path
	}
	if addr := os.Getenv("MLLAB_ADDR"); addr != "" {
		c.Serve.Addr = addr
	}
	if dir := os.Getenv("MLLAB_DATA"); dir != "" {
		c.DataDir = dir
	}
}

// GetFetchInterval returns the fetch interval as a duration.
func (c *Config) GetFetchInterval() time.Duration {
	d, err := time.ParseDuration(c.Fetch.Interval)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Train.Model != "dense" && c.Train.Model != "conv" {
		return fmt.Errorf("invalid train model: %s (valid: dense, conv)", c.Train.Model)
	}
	if len(c.Compress.Ranks) == 0 {
		return fmt.Errorf("compress ranks must not be empty")
	}
	for _, k := range c.Compress.Ranks {
		if k < 1 {
			return fmt.Errorf("invalid compress rank: %d", k)
		}
	}
	if c.Train.Holdout < 0 || c.Train.Holdout >= 1 {
		return fmt.Errorf("invalid holdout: %v (valid: [0, 1))", c.Train.Holdout)
	}
	return nil
}
