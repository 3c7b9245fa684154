package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barekit/lectern/pkg/app"
	"github.com/barekit/lectern/pkg/app/apptest"
	"github.com/barekit/lectern/pkg/apperr"
	"github.com/barekit/lectern/pkg/config"
	"github.com/barekit/lectern/pkg/docqa"
	"github.com/barekit/lectern/pkg/library"
	"github.com/barekit/lectern/pkg/mcq"
)

func questions(n int) string {
	qs := make([]mcq.Question, n)
	for i := range qs {
		qs[i] = mcq.Question{
			QuestionNumber: i + 1,
			Question:       fmt.Sprintf("Q%d?", i+1),
			A:              "a",
			B:              "b",
			C:              "c",
			D:              "d",
			CorrectAnswer:  "B",
			Explanation:    "b is right",
		}
	}
	b, _ := json.Marshal(qs)
	return string(b)
}

func TestApp_Ask(t *testing.T) {
	ctx := context.Background()
	f := apptest.New(t, "Mitochondria make ATP.")

	ans, err := f.App.Ask(ctx, "bio.pdf", []byte("mitochondria make atp\fcells divide"), "What makes ATP?")
	require.NoError(t, err)
	assert.Equal(t, "Mitochondria make ATP.", ans.Text)
	assert.Equal(t, docqa.StateUnseen, ans.State)

	saved, err := f.Library.List(ctx, library.Query{Kind: library.KindAnswer, Limit: 10})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "bio.pdf", saved[0].Subject)
	assert.Equal(t, "bio.pdf", saved[0].Source)
	assert.Equal(t, "What makes ATP?", saved[0].Prompt)
	assert.Equal(t, "Mitochondria make ATP.", saved[0].Content)
}

func TestApp_Ask_EmptyFile(t *testing.T) {
	f := apptest.New(t, "unused")

	_, err := f.App.Ask(context.Background(), "empty.pdf", nil, "anything?")
	assert.ErrorIs(t, err, apperr.ErrEmptyInput)
	assert.Empty(t, f.LLM.Calls())

	saved, err := f.Library.List(context.Background(), library.Query{})
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestApp_TopicNotes(t *testing.T) {
	ctx := context.Background()
	f := apptest.New(t, "## Recursion\nA function calling itself.")

	content, err := f.App.TopicNotes(ctx, "Recursion")
	require.NoError(t, err)
	assert.Equal(t, "## Recursion\nA function calling itself.", content)

	saved, err := f.App.History(ctx, library.Query{Kind: library.KindTopicNotes})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "Recursion", saved[0].Subject)
}

func TestApp_Questionnaire(t *testing.T) {
	ctx := context.Background()
	f := apptest.New(t, questions(3))

	qs, err := f.App.Questionnaire(ctx, "Sets", 3)
	require.NoError(t, err)
	require.Len(t, qs, 3)

	saved, err := f.App.History(ctx, library.Query{Kind: library.KindQuestionnaire})
	require.NoError(t, err)
	require.Len(t, saved, 1)

	var stored []mcq.Question
	require.NoError(t, json.Unmarshal([]byte(saved[0].Content), &stored))
	assert.Equal(t, qs, stored)
}

func TestApp_ConvertVideo(t *testing.T) {
	ctx := context.Background()
	f := apptest.New(t, "# Derivatives\n- slope of a curve")
	f.Transcripts["dQw4w9WgXcQ"] = "today we talk about derivatives"

	out, err := f.App.ConvertVideo(ctx, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "Calculus")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", out.VideoID)
	assert.Equal(t, "# Derivatives\n- slope of a curve", out.Notes)
	assert.Contains(t, out.ThumbnailURL, "dQw4w9WgXcQ")
	assert.Contains(t, f.LLM.LastPrompt(), "today we talk about derivatives")

	saved, err := f.App.History(ctx, library.Query{Kind: library.KindVideoNotes})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "Calculus", saved[0].Subject)
	assert.Equal(t, out.ThumbnailURL, saved[0].ThumbnailURL)
}

func TestApp_ConvertVideo_Errors(t *testing.T) {
	f := apptest.New(t, "notes")

	_, err := f.App.ConvertVideo(context.Background(), "not a link", "Math")
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	_, err = f.App.ConvertVideo(context.Background(), "https://youtu.be/abcdefghijk", "Math")
	assert.ErrorIs(t, err, apperr.ErrTranscriptUnavailable)

	assert.Empty(t, f.LLM.Calls())
}

type failingLibrary struct{}

func (failingLibrary) Save(context.Context, library.Artifact) error {
	return errors.New("disk full")
}

func (failingLibrary) List(context.Context, library.Query) ([]library.Artifact, error) {
	return nil, nil
}

func TestApp_LibraryFailureDoesNotFailRequest(t *testing.T) {
	f := apptest.New(t, "Some notes")
	f.App.Library = failingLibrary{}

	content, err := f.App.TopicNotes(context.Background(), "Graphs")
	require.NoError(t, err)
	assert.Equal(t, "Some notes", content)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "app.db")
	cfg.VectorIndex.Type = "memory"
	cfg.Library.Type = "inmemory"
	cfg.OpenAI.APIKey = "test-key"
	return cfg
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	a, err := app.New(ctx, testConfig(t), false)
	require.NoError(t, err)

	assert.NotNil(t, a.QA)
	assert.NotNil(t, a.Notes)
	assert.NotNil(t, a.MCQ)
	assert.NotNil(t, a.Library)

	_, err = a.ConvertVideo(ctx, "https://youtu.be/abcdefghijk", "Math")
	assert.ErrorIs(t, err, apperr.ErrTranscriptService)

	assert.NoError(t, a.Close(ctx))
}

func TestNew_Errors(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig(t)
	cfg.VectorIndex.Type = "faiss"
	_, err := app.New(ctx, cfg, false)
	assert.ErrorContains(t, err, "unsupported vector index type: faiss")

	cfg = testConfig(t)
	cfg.Library.Type = "cassandra"
	_, err = app.New(ctx, cfg, false)
	assert.ErrorContains(t, err, "failed to open library")

	cfg = testConfig(t)
	cfg.Transcript.BaseURL = "http://transcripts.invalid"
	cfg.Transcript.RedisURL = "::not a url"
	_, err = app.New(ctx, cfg, false)
	assert.ErrorContains(t, err, "failed to parse redis url")
}

func TestSetupLogging(t *testing.T) {
	defer slog.SetDefault(slog.Default())
	ctx := context.Background()

	app.SetupLogging(config.Log{Level: "warn", Format: "json"}, false)
	assert.False(t, slog.Default().Enabled(ctx, slog.LevelInfo))
	assert.True(t, slog.Default().Enabled(ctx, slog.LevelWarn))

	app.SetupLogging(config.Log{Level: "nonsense"}, false)
	assert.True(t, slog.Default().Enabled(ctx, slog.LevelInfo))
	assert.False(t, slog.Default().Enabled(ctx, slog.LevelDebug))

	app.SetupLogging(config.Log{Level: "warn"}, true)
	assert.True(t, slog.Default().Enabled(ctx, slog.LevelDebug))
}
