package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	Server      Server      `yaml:"server"`
	Database    Database    `yaml:"database"`
	OpenAI      OpenAI      `yaml:"openai"`
	VectorIndex VectorIndex `yaml:"vector_index"`
	Ingest      Ingest      `yaml:"ingest"`
	Generation  Generation  `yaml:"generation"`
	Transcript  Transcript  `yaml:"transcript"`
	Library     Library     `yaml:"library"`
	Log         Log         `yaml:"log"`
	// Upstream bounds every call to an external service.
	Upstream time.Duration `yaml:"upstream_timeout"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr          string        `yaml:"addr"`
	MaxUploadMB   int64         `yaml:"max_upload_mb"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// Database configures the document store.
type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// OpenAI configures the language and embedding models.
type OpenAI struct {
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	ChatModel           string `yaml:"chat_model"`
	QuestionnaireModel  string `yaml:"questionnaire_model"`
	EmbeddingModel      string `yaml:"embedding_model"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions"`
}

// VectorIndex selects and configures the vector database.
type VectorIndex struct {
	Type      string   `yaml:"type"`
	Name      string   `yaml:"name"`
	Dimension int      `yaml:"dimension"`
	Metric    string   `yaml:"metric"`
	TopK      int      `yaml:"top_k"`
	Qdrant    Qdrant   `yaml:"qdrant"`
	Postgres  Postgres `yaml:"postgres"`
}

// Qdrant holds connection details for a Qdrant deployment.
type Qdrant struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
	// CheckCompatibility asks the server for its version at startup. That
	// request has no deadline.
	CheckCompatibility bool `yaml:"check_compatibility"`
}

// Postgres holds connection details for a pgvector deployment.
type Postgres struct {
	DSN string `yaml:"dsn"`
}

// Ingest configures chunking and embedding of uploaded documents.
type Ingest struct {
	ChunkSize        int     `yaml:"chunk_size"`
	ChunkOverlap     int     `yaml:"chunk_overlap"`
	EmbedConcurrency int     `yaml:"embed_concurrency"`
	EmbedRatePerSec  float64 `yaml:"embed_rate_per_sec"`
}

// Generation configures decoding for the generation tasks.
type Generation struct {
	AnswerTemperature float64 `yaml:"answer_temperature"`
	NotesTemperature  float64 `yaml:"notes_temperature"`
	DefaultQuestions  int     `yaml:"default_questions"`
	MaxQuestions      int     `yaml:"max_questions"`
}

// Transcript configures the transcript-fetching service.
type Transcript struct {
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Language string        `yaml:"language"`
	RedisURL string        `yaml:"redis_url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// Library configures where generated artifacts are kept.
type Library struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connection_string"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	DBName           string `yaml:"db_name"`
}

// Log configures the default slog handler.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:          ":8000",
			MaxUploadMB:   32,
			ReadTimeout:   30 * time.Second,
			ShutdownGrace: 10 * time.Second,
		},
		Database: Database{
			Driver: "sqlite",
			DSN:    "./sql_app.db",
		},
		OpenAI: OpenAI{
			ChatModel:           "gpt-4o-mini",
			QuestionnaireModel:  "gpt-4o",
			EmbeddingModel:      "text-embedding-3-small",
			EmbeddingDimensions: 768,
		},
		VectorIndex: VectorIndex{
			Type:      "qdrant",
			Name:      "pdf-chatbot",
			Dimension: 768,
			Metric:    "cosine",
			TopK:      5,
			Qdrant:    Qdrant{Host: "localhost", Port: 6334},
		},
		Ingest: Ingest{
			ChunkSize:        10000,
			ChunkOverlap:     1000,
			EmbedConcurrency: 4,
		},
		Generation: Generation{
			AnswerTemperature: 0.3,
			NotesTemperature:  0.3,
			DefaultQuestions:  10,
			MaxQuestions:      50,
		},
		Transcript: Transcript{
			Language: "en",
			CacheTTL: 24 * time.Hour,
		},
		Library: Library{
			Type:             "sqlite",
			ConnectionString: "./sql_app.db",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Upstream: 60 * time.Second,
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then a .env file, then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Addr, "LISTEN_ADDR")
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.VectorIndex.Type, "VECTOR_STORE")
	setString(&c.VectorIndex.Qdrant.Host, "QDRANT_HOST")
	setString(&c.VectorIndex.Qdrant.APIKey, "QDRANT_API_KEY")
	setString(&c.VectorIndex.Postgres.DSN, "POSTGRES_DSN")
	setString(&c.Transcript.BaseURL, "TRANSCRIPT_API_URL")
	setString(&c.Transcript.APIKey, "TRANSCRIPT_API_KEY")
	setString(&c.Transcript.RedisURL, "REDIS_URL")
	setString(&c.Library.Type, "LIBRARY_TYPE")
	setString(&c.Library.ConnectionString, "LIBRARY_URL")
	setString(&c.Log.Level, "LOG_LEVEL")

	if v := os.Getenv("QDRANT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid QDRANT_PORT %q: %w", v, err)
		}
		c.VectorIndex.Qdrant.Port = port
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case c.Ingest.ChunkSize <= 0:
		return fmt.Errorf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	case c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize:
		return fmt.Errorf("ingest.chunk_overlap must be in [0, %d), got %d", c.Ingest.ChunkSize, c.Ingest.ChunkOverlap)
	case c.VectorIndex.Dimension <= 0:
		return fmt.Errorf("vector_index.dimension must be positive, got %d", c.VectorIndex.Dimension)
	case c.OpenAI.EmbeddingDimensions != c.VectorIndex.Dimension:
		return fmt.Errorf("openai.embedding_dimensions (%d) must match vector_index.dimension (%d)",
			c.OpenAI.EmbeddingDimensions, c.VectorIndex.Dimension)
	case c.VectorIndex.TopK <= 0:
		return fmt.Errorf("vector_index.top_k must be positive, got %d", c.VectorIndex.TopK)
	case c.Generation.DefaultQuestions <= 0 || c.Generation.DefaultQuestions > c.Generation.MaxQuestions:
		return fmt.Errorf("generation.default_questions must be in [1, %d], got %d",
			c.Generation.MaxQuestions, c.Generation.DefaultQuestions)
	case c.Upstream <= 0:
		return fmt.Errorf("upstream_timeout must be positive, got %s", c.Upstream)
	}
	return nil
}
