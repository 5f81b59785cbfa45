package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "provider: bedrock\n"))
	require.NoError(t, err)

	assert.Equal(t, "bedrock", cfg.Provider)
	assert.Equal(t, "us-east-1", cfg.Bedrock.Region)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", cfg.Bedrock.ModelID)
	assert.Equal(t, "amazon.titan-embed-text-v1", cfg.Bedrock.EmbeddingModelID)
	assert.Equal(t, 512, cfg.Retrieval.ChunkSize)
	assert.Equal(t, 50, cfg.Retrieval.ChunkOverlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, "memory", cfg.History.Backend)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestLoadFileOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
provider: openai
openai:
  api_key: sk-test
  base_url: http://localhost:11434/v1
retrieval:
  top_k: 3
history:
  backend: sqlite
  sqlite_path: /tmp/chat.db
`))
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "http://localhost:11434/v1", cfg.OpenAI.BaseURL)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, "sqlite", cfg.History.Backend)
	assert.Equal(t, "/tmp/chat.db", cfg.History.SQLitePath)
}

func TestValidate(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		_, err := Load(writeConfig(t, "provider: llamafarm\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown provider")
	})

	t.Run("openai requires api key", func(t *testing.T) {
		_, err := Load(writeConfig(t, "provider: openai\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api_key")
	})

	t.Run("unknown history backend", func(t *testing.T) {
		_, err := Load(writeConfig(t, "provider: bedrock\nhistory:\n  backend: etcd\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "history backend")
	})

	t.Run("overlap must be below chunk size", func(t *testing.T) {
		_, err := Load(writeConfig(t, "provider: bedrock\nretrieval:\n  chunk_size: 10\n  chunk_overlap: 10\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chunk_overlap")
	})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
