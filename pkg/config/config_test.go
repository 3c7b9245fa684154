package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "pdf-chatbot", cfg.VectorIndex.Name)
	assert.Equal(t, 768, cfg.VectorIndex.Dimension)
	assert.Equal(t, "cosine", cfg.VectorIndex.Metric)
	assert.Equal(t, 5, cfg.VectorIndex.TopK)
	assert.Equal(t, 10000, cfg.Ingest.ChunkSize)
	assert.Equal(t, 1000, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, 10, cfg.Generation.DefaultQuestions)
	assert.InDelta(t, 0.3, cfg.Generation.AnswerTemperature, 1e-9)
	assert.False(t, cfg.VectorIndex.Qdrant.CheckCompatibility)
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "lectern.yaml")
	yamlDoc := `
server:
  addr: ":9090"
vector_index:
  type: memory
  top_k: 3
  qdrant:
    check_compatibility: true
ingest:
  chunk_size: 2000
  chunk_overlap: 200
upstream_timeout: 15s
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("QDRANT_PORT", "7000")
	t.Setenv("DATABASE_URL", "file:test.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.VectorIndex.Type)
	assert.Equal(t, 3, cfg.VectorIndex.TopK)
	assert.Equal(t, 2000, cfg.Ingest.ChunkSize)
	assert.Equal(t, 15*time.Second, cfg.Upstream)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, 7000, cfg.VectorIndex.Qdrant.Port)
	assert.True(t, cfg.VectorIndex.Qdrant.CheckCompatibility)
	assert.Equal(t, "file:test.db", cfg.Database.DSN)
	// untouched defaults survive a partial file
	assert.Equal(t, "pdf-chatbot", cfg.VectorIndex.Name)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadPort(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("QDRANT_PORT", "six")
	_, err := Load("")
	assert.ErrorContains(t, err, "QDRANT_PORT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap equals size", func(c *Config) { c.Ingest.ChunkOverlap = c.Ingest.ChunkSize }},
		{"zero chunk size", func(c *Config) { c.Ingest.ChunkSize = 0 }},
		{"dimension mismatch", func(c *Config) { c.OpenAI.EmbeddingDimensions = 1536 }},
		{"zero top k", func(c *Config) { c.VectorIndex.TopK = 0 }},
		{"too many questions", func(c *Config) { c.Generation.DefaultQuestions = 500 }},
		{"no timeout", func(c *Config) { c.Upstream = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
