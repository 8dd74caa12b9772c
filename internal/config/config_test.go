package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "fastembed", cfg.Embeddings.Provider)
	assert.Equal(t, "BAAI/bge-small-en-v1.5", cfg.Embeddings.Model)
	assert.Equal(t, 384, cfg.Embeddings.Dimension)
	assert.Equal(t, "qdrant", cfg.VectorStore.Backend)
	assert.Equal(t, "localhost", cfg.VectorStore.Host)
	assert.Equal(t, 6334, cfg.VectorStore.Port)
	assert.Equal(t, "suggestd_users", cfg.VectorStore.UsersCollection)
	assert.Equal(t, "suggestd_items", cfg.VectorStore.ItemsCollection)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout.Duration())
	assert.Equal(t, 3, cfg.Recommend.TopK)
	assert.Equal(t, 5, cfg.Recommend.SimilarUsers)
}

func TestApplyDefaults_OpenAIEmbeddings(t *testing.T) {
	cfg := Config{Embeddings: EmbeddingsConfig{Provider: "openai"}}
	cfg.ApplyDefaults()

	assert.Equal(t, "text-embedding-3-small", cfg.Embeddings.Model)
	assert.Equal(t, 1536, cfg.Embeddings.Dimension)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var cfg Config
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = -1 }, wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: true},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "bad embeddings provider", mutate: func(c *Config) { c.Embeddings.Provider = "cohere" }, wantErr: true},
		{name: "openai embeddings without key", mutate: func(c *Config) { c.Embeddings.Provider = "openai" }, wantErr: true},
		{
			name: "openai embeddings with key",
			mutate: func(c *Config) {
				c.Embeddings.Provider = "openai"
				c.Embeddings.APIKey = "sk-test"
			},
		},
		{name: "bad backend", mutate: func(c *Config) { c.VectorStore.Backend = "pinecone" }, wantErr: true},
		{name: "zero top_k", mutate: func(c *Config) { c.Recommend.TopK = 0 }, wantErr: true},
		{name: "zero similar_users", mutate: func(c *Config) { c.Recommend.SimilarUsers = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_FileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9100
vectorstore:
  backend: chromem
recommend:
  top_k: 7
`), 0o600))

	t.Setenv("SERVER_PORT", "9200")
	t.Setenv("LLM_API_KEY", "sk-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	// Environment wins over the file; file wins over defaults.
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "chromem", cfg.VectorStore.Backend)
	assert.Equal(t, 7, cfg.Recommend.TopK)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey.Value())
	assert.Equal(t, 5, cfg.Recommend.SimilarUsers)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o600))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTransformEnvKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SERVER_PORT", "server.port"},
		{"EMBEDDINGS_CACHE_DIR", "embeddings.cache_dir"},
		{"VECTORSTORE_USERS_COLLECTION", "vectorstore.users_collection"},
		{"LLM_API_KEY", "llm.api_key"},
		{"RECOMMEND_TOP_K", "recommend.top_k"},
		{"PATH", ""},
		{"HOME", ""},
		{"SERVERLESS_MODE", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, transformEnvKey(tt.in))
		})
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("sk-very-secret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "sk-very-secret", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(struct {
		Key Secret `json:"key"`
	}{Key: s})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-very-secret")

	assert.Equal(t, "", Secret("").String())
	assert.False(t, Secret("").IsSet())
}
