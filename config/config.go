package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the assistant.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Chat      ChatConfig      `yaml:"chat"`
	Interest  InterestConfig  `yaml:"interest"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EmbeddingConfig holds oracle configuration for embeddings and completions.
type EmbeddingConfig struct {
	Provider        string  `yaml:"provider"`    // "openai", "mock"
	Model           string  `yaml:"model"`       // e.g., "text-embedding-3-small"
	APIKeyEnv       string  `yaml:"api_key_env"` // Environment variable for API key
	BaseURL         string  `yaml:"base_url"`    // Optional OpenAI-compatible endpoint
	Dimension       int     `yaml:"dimension"`
	BatchSize       int     `yaml:"batch_size"`
	ChatModel       string  `yaml:"chat_model"` // e.g., "gpt-3.5-turbo"
	ChatTemperature float32 `yaml:"chat_temperature"`
	MaxTokens       int     `yaml:"max_tokens"`
}

// IndexConfig holds vector index configuration.
type IndexConfig struct {
	Path string `yaml:"path"` // Base path for the two index artifacts
	TopK int    `yaml:"top_k"`
}

// CatalogConfig holds product catalog snapshot configuration.
type CatalogConfig struct {
	Dir      string   `yaml:"dir"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// ChatConfig holds conversational pipeline configuration.
type ChatConfig struct {
	WindowSize int `yaml:"window_size"`
	HistoryCap int `yaml:"history_cap"` // Max turns hydrated from storage
}

// InterestConfig holds interest extraction and aggregation configuration.
type InterestConfig struct {
	TopN               int     `yaml:"top_n"`
	MinConfidence      float64 `yaml:"min_confidence"`
	DaysBack           int     `yaml:"days_back"`
	ExtractTemperature float32 `yaml:"extract_temperature"`
	CandidateK         int     `yaml:"candidate_k"` // Products retrieved per analyzed conversation
}

// StorageConfig holds conversation store configuration.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:        "openai",
			Model:           "text-embedding-3-small",
			APIKeyEnv:       "OPENAI_API_KEY",
			Dimension:       1536,
			BatchSize:       100,
			ChatModel:       "gpt-3.5-turbo",
			ChatTemperature: 0.7,
			MaxTokens:       500,
		},
		Index: IndexConfig{
			Path: "data/product_vectors",
			TopK: 3,
		},
		Catalog: CatalogConfig{
			Dir:      "data/catalog",
			Includes: []string{"**/*.json"},
			Excludes: []string{},
		},
		Chat: ChatConfig{
			WindowSize: 10,
			HistoryCap: 20,
		},
		Interest: InterestConfig{
			TopN:               3,
			MinConfidence:      0.6,
			DaysBack:           30,
			ExtractTemperature: 0.1,
			CandidateK:         3,
		},
		Storage: StorageConfig{
			Path: "data/ventas.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for ventas.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "ventas.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".ventas", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// EnsureDataDirs ensures directories for the configured artifact paths exist.
func (c *Config) EnsureDataDirs() error {
	for _, p := range []string{c.Index.Path, c.Storage.Path} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
	}
	return nil
}
