// Package config provides configuration loading for suggestd.
package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig indicates invalid configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root configuration for the suggestd daemon.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	LLM         LLMConfig         `koanf:"llm"`
	Recommend   RecommendConfig   `koanf:"recommend"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// EmbeddingsConfig holds embedding provider settings.
type EmbeddingsConfig struct {
	// Provider is "fastembed" or "openai".
	Provider string `koanf:"provider"`
	// Model is the embedding model name.
	Model string `koanf:"model"`
	// Dimension is the embedding dimension D, fixed per deployment.
	// Every vector in both collections must have this dimension.
	Dimension int `koanf:"dimension"`
	// CacheDir is the local model cache directory (fastembed only).
	CacheDir string `koanf:"cache_dir"`
	// APIKey is the provider API key (openai only).
	APIKey Secret `koanf:"api_key"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	// Backend is "qdrant" or "chromem".
	Backend string `koanf:"backend"`
	// Host and Port locate the Qdrant gRPC endpoint (qdrant backend).
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool `koanf:"use_tls"`
	// Path is the persistence directory (chromem backend).
	Path string `koanf:"path"`
	// UsersCollection and ItemsCollection name the two logical collections.
	UsersCollection string `koanf:"users_collection"`
	ItemsCollection string `koanf:"items_collection"`
}

// LLMConfig holds text capability provider settings.
type LLMConfig struct {
	// Model is the chat completion model used for classification and generation.
	Model string `koanf:"model"`
	// APIKey is the OpenAI API key.
	APIKey Secret `koanf:"api_key"`
	// BaseURL overrides the API endpoint (optional).
	BaseURL string `koanf:"base_url"`
	// Timeout bounds each completion call.
	Timeout Duration `koanf:"timeout"`
}

// RecommendConfig holds recommendation tuning knobs.
type RecommendConfig struct {
	// TopK is the number of recommendations returned by the engine.
	TopK int `koanf:"top_k"`
	// SimilarUsers is how many neighbor profiles the booster consults.
	SimilarUsers int `koanf:"similar_users"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = "fastembed"
	}
	if c.Embeddings.Model == "" {
		switch c.Embeddings.Provider {
		case "openai":
			c.Embeddings.Model = "text-embedding-3-small"
		default:
			c.Embeddings.Model = "BAAI/bge-small-en-v1.5"
		}
	}
	if c.Embeddings.Dimension == 0 {
		switch c.Embeddings.Provider {
		case "openai":
			c.Embeddings.Dimension = 1536
		default:
			c.Embeddings.Dimension = 384
		}
	}
	if c.VectorStore.Backend == "" {
		c.VectorStore.Backend = "qdrant"
	}
	if c.VectorStore.Host == "" {
		c.VectorStore.Host = "localhost"
	}
	if c.VectorStore.Port == 0 {
		c.VectorStore.Port = 6334
	}
	if c.VectorStore.Path == "" {
		c.VectorStore.Path = "~/.local/share/suggestd/vectorstore"
	}
	if c.VectorStore.UsersCollection == "" {
		c.VectorStore.UsersCollection = "suggestd_users"
	}
	if c.VectorStore.ItemsCollection == "" {
		c.VectorStore.ItemsCollection = "suggestd_items"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = Duration(defaultLLMTimeout)
	}
	if c.Recommend.TopK == 0 {
		c.Recommend.TopK = 3
	}
	if c.Recommend.SimilarUsers == 0 {
		c.Recommend.SimilarUsers = 5
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port %d", ErrInvalidConfig, c.Server.Port)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Logging.Format)
	}
	switch c.Embeddings.Provider {
	case "fastembed", "openai":
	default:
		return fmt.Errorf("%w: unknown embeddings provider %q", ErrInvalidConfig, c.Embeddings.Provider)
	}
	if c.Embeddings.Dimension <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive", ErrInvalidConfig)
	}
	if c.Embeddings.Provider == "openai" && !c.Embeddings.APIKey.IsSet() {
		return fmt.Errorf("%w: embeddings api_key required for openai provider", ErrInvalidConfig)
	}
	switch c.VectorStore.Backend {
	case "qdrant", "chromem":
	default:
		return fmt.Errorf("%w: unknown vectorstore backend %q", ErrInvalidConfig, c.VectorStore.Backend)
	}
	if c.VectorStore.Backend == "qdrant" && (c.VectorStore.Port <= 0 || c.VectorStore.Port > 65535) {
		return fmt.Errorf("%w: invalid qdrant port %d", ErrInvalidConfig, c.VectorStore.Port)
	}
	if c.Recommend.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive", ErrInvalidConfig)
	}
	if c.Recommend.SimilarUsers <= 0 {
		return fmt.Errorf("%w: similar_users must be positive", ErrInvalidConfig)
	}
	return nil
}
