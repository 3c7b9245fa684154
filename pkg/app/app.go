// Package app builds every component from configuration and exposes the four
// study-assistant operations to the HTTP server and the CLI.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go/option"
	"github.com/redis/go-redis/v9"

	"github.com/barekit/lectern/pkg/apperr"
	"github.com/barekit/lectern/pkg/chunk"
	"github.com/barekit/lectern/pkg/config"
	"github.com/barekit/lectern/pkg/database"
	"github.com/barekit/lectern/pkg/docqa"
	"github.com/barekit/lectern/pkg/extract"
	"github.com/barekit/lectern/pkg/generate"
	"github.com/barekit/lectern/pkg/knowledge"
	"github.com/barekit/lectern/pkg/knowledge/memory"
	openaiembed "github.com/barekit/lectern/pkg/knowledge/openai"
	"github.com/barekit/lectern/pkg/knowledge/postgres"
	"github.com/barekit/lectern/pkg/knowledge/qdrant"
	"github.com/barekit/lectern/pkg/library"
	"github.com/barekit/lectern/pkg/library/factory"
	openaillm "github.com/barekit/lectern/pkg/llm/openai"
	"github.com/barekit/lectern/pkg/mcq"
	"github.com/barekit/lectern/pkg/notes"
	"github.com/barekit/lectern/pkg/store"
	"github.com/barekit/lectern/pkg/transcript"
)

const saveTimeout = 5 * time.Second

// App holds the constructed services.
type App struct {
	QA          *docqa.Service
	Notes       *notes.Writer
	MCQ         *mcq.Generator
	Transcripts transcript.Fetcher
	Library     library.Library

	closers []func(context.Context) error
}

// VideoNotes is the result of ConvertVideo.
type VideoNotes struct {
	Link         string `json:"youtube_link"`
	VideoID      string `json:"video_id"`
	ThumbnailURL string `json:"thumbnail_url"`
	Subject      string `json:"subject"`
	Notes        string `json:"notes"`
}

// SetupLogging installs the default slog handler described by cfg. debug
// forces the debug level.
func SetupLogging(cfg config.Log, debug bool) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// New connects to every backing service named in cfg. On error, whatever was
// already opened is closed.
func New(ctx context.Context, cfg *config.Config, debug bool) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	db, err := database.Open(database.Driver(cfg.Database.Driver), cfg.Database.DSN, debug)
	if err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return database.Close(db) })

	st, err := store.New(db)
	if err != nil {
		return nil, err
	}
	st.SetTimeout(cfg.Upstream)

	index, err := a.vectorIndex(cfg, debug)
	if err != nil {
		return nil, err
	}

	embedder := openaiembed.NewEmbedder(openAIOptions(cfg.OpenAI)...)
	embedder.SetModel(cfg.OpenAI.EmbeddingModel)
	embedder.SetDimension(cfg.OpenAI.EmbeddingDimensions)
	embedder.SetTimeout(cfg.Upstream)
	if cfg.Ingest.EmbedRatePerSec > 0 {
		embedder.SetRateLimit(cfg.Ingest.EmbedRatePerSec)
	}

	metric, err := knowledge.ParseMetric(cfg.VectorIndex.Metric)
	if err != nil {
		return nil, err
	}
	kb := knowledge.NewKnowledgeBase(embedder, index, cfg.VectorIndex.Name, metric)

	chat := openaillm.New(openAIOptions(cfg.OpenAI)...)
	chat.SetModel(cfg.OpenAI.ChatModel)
	questionnaire := openaillm.New(openAIOptions(cfg.OpenAI)...)
	questionnaire.SetModel(cfg.OpenAI.QuestionnaireModel)

	splitter := chunk.New(
		chunk.WithSize(cfg.Ingest.ChunkSize),
		chunk.WithOverlap(cfg.Ingest.ChunkOverlap),
	)

	a.QA = docqa.New(st, extract.New(extract.OpenPDF), splitter, kb,
		generate.New(chat,
			generate.WithName("answer"),
			generate.WithTemperature(cfg.Generation.AnswerTemperature),
			generate.WithTimeout(cfg.Upstream),
			generate.WithDebug(debug),
		),
		docqa.WithTopK(cfg.VectorIndex.TopK),
		docqa.WithConcurrency(cfg.Ingest.EmbedConcurrency),
		docqa.WithDebug(debug),
	)

	a.Notes = notes.New(generate.New(chat,
		generate.WithName("notes"),
		generate.WithTemperature(cfg.Generation.NotesTemperature),
		generate.WithTimeout(cfg.Upstream),
		generate.WithDebug(debug),
	))

	a.MCQ = mcq.New(generate.New(questionnaire,
		generate.WithName("questionnaire"),
		generate.WithTimeout(cfg.Upstream),
		generate.WithDebug(debug),
	), cfg.Generation.DefaultQuestions, cfg.Generation.MaxQuestions)

	if a.Transcripts, err = a.transcripts(ctx, cfg.Transcript, cfg.Upstream); err != nil {
		return nil, err
	}

	lib, err := factory.New(ctx, factory.Config{
		Type:             factory.Type(cfg.Library.Type),
		ConnectionString: cfg.Library.ConnectionString,
		Username:         cfg.Library.Username,
		Password:         cfg.Library.Password,
		DBName:           cfg.Library.DBName,
		Debug:            debug,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	a.Library = lib
	if c, ok := lib.(library.Closer); ok {
		a.onClose(c.Close)
	}

	slog.Info("application initialized",
		"database", cfg.Database.Driver,
		"vector_index", cfg.VectorIndex.Type,
		"library", cfg.Library.Type,
		"chat_model", cfg.OpenAI.ChatModel,
	)
	return a, nil
}

func openAIOptions(cfg config.OpenAI) []option.RequestOption {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return opts
}

func (a *App) vectorIndex(cfg *config.Config, debug bool) (knowledge.VectorIndex, error) {
	switch cfg.VectorIndex.Type {
	case "qdrant":
		q := cfg.VectorIndex.Qdrant
		idx, err := qdrant.New(qdrant.Config{
			Host:               q.Host,
			Port:               q.Port,
			APIKey:             q.APIKey,
			UseTLS:             q.UseTLS,
			Timeout:            cfg.Upstream,
			CheckCompatibility: q.CheckCompatibility,
		})
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return idx.Close() })
		return idx, nil

	case "postgres", "pgvector":
		db, err := database.Open(database.DriverPostgres, cfg.VectorIndex.Postgres.DSN, debug)
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return database.Close(db) })
		idx, err := postgres.New(db)
		if err != nil {
			return nil, err
		}
		idx.SetTimeout(cfg.Upstream)
		return idx, nil

	case "memory", "inmemory":
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unsupported vector index type: %s", cfg.VectorIndex.Type)
	}
}

func (a *App) transcripts(ctx context.Context, cfg config.Transcript, timeout time.Duration) (transcript.Fetcher, error) {
	if cfg.BaseURL == "" {
		slog.Warn("no transcript service configured, video notes are disabled")
		return transcript.FetcherFunc(func(context.Context, string) (string, error) {
			return "", fmt.Errorf("%w: no transcript service configured", apperr.ErrTranscriptService)
		}), nil
	}

	var fetcher transcript.Fetcher = transcript.NewHTTPFetcher(cfg.BaseURL, cfg.APIKey, cfg.Language, timeout)
	if cfg.RedisURL == "" {
		return fetcher, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	a.onClose(func(context.Context) error { return client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return transcript.NewCachedFetcher(fetcher, transcript.NewRedisCache(client), cfg.Language, cfg.CacheTTL), nil
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases every connection, newest first.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Ask answers question about the uploaded document.
func (a *App) Ask(ctx context.Context, name string, data []byte, question string) (*docqa.Answer, error) {
	answer, err := a.QA.Ask(ctx, name, data, question)
	if err != nil {
		return nil, err
	}
	artifact := library.NewArtifact(library.KindAnswer, name, answer.Text)
	artifact.Source = name
	artifact.Prompt = question
	a.record(ctx, artifact)
	return answer, nil
}

// TopicNotes writes notes on topic.
func (a *App) TopicNotes(ctx context.Context, topic string) (string, error) {
	content, err := a.Notes.Topic(ctx, topic)
	if err != nil {
		return "", err
	}
	a.record(ctx, library.NewArtifact(library.KindTopicNotes, topic, content))
	return content, nil
}

// Questionnaire generates n questions on topic. n of zero means the
// configured default.
func (a *App) Questionnaire(ctx context.Context, topic string, n int) ([]mcq.Question, error) {
	questions, err := a.MCQ.Generate(ctx, topic, n)
	if err != nil {
		return nil, err
	}
	content, err := json.Marshal(questions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode questionnaire: %w", err)
	}
	a.record(ctx, library.NewArtifact(library.KindQuestionnaire, topic, string(content)))
	return questions, nil
}

// ConvertVideo fetches the transcript of the video at link and writes notes
// from it.
func (a *App) ConvertVideo(ctx context.Context, link, subject string) (*VideoNotes, error) {
	id, err := transcript.VideoID(link)
	if err != nil {
		return nil, err
	}
	text, err := a.Transcripts.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	content, err := a.Notes.Transcript(ctx, text, subject)
	if err != nil {
		return nil, err
	}

	out := &VideoNotes{
		Link:         link,
		VideoID:      id,
		ThumbnailURL: transcript.ThumbnailURL(id),
		Subject:      subject,
		Notes:        content,
	}
	artifact := library.NewArtifact(library.KindVideoNotes, subject, content)
	artifact.Source = link
	artifact.ThumbnailURL = out.ThumbnailURL
	a.record(ctx, artifact)
	return out, nil
}

// History lists saved artifacts, newest first.
func (a *App) History(ctx context.Context, q library.Query) ([]library.Artifact, error) {
	if a.Library == nil {
		return nil, nil
	}
	return a.Library.List(ctx, q.Normalize())
}

// record saves artifact to the library. A failed save is logged and does not
// fail the request that produced the artifact.
func (a *App) record(ctx context.Context, artifact library.Artifact) {
	if a.Library == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := a.Library.Save(ctx, artifact); err != nil {
		slog.Error("failed to save artifact", "kind", artifact.Kind, "subject", artifact.Subject, "error", err)
	}
}
