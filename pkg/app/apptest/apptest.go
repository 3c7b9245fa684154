// Package apptest assembles an app.App over in-process fakes.
package apptest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/barekit/lectern/pkg/app"
	"github.com/barekit/lectern/pkg/apperr"
	"github.com/barekit/lectern/pkg/chunk"
	"github.com/barekit/lectern/pkg/database"
	"github.com/barekit/lectern/pkg/docqa"
	"github.com/barekit/lectern/pkg/extract"
	"github.com/barekit/lectern/pkg/generate"
	"github.com/barekit/lectern/pkg/knowledge"
	"github.com/barekit/lectern/pkg/knowledge/knowledgetest"
	"github.com/barekit/lectern/pkg/knowledge/memory"
	"github.com/barekit/lectern/pkg/library/inmemory"
	"github.com/barekit/lectern/pkg/llm/llmtest"
	"github.com/barekit/lectern/pkg/mcq"
	"github.com/barekit/lectern/pkg/notes"
	"github.com/barekit/lectern/pkg/store"
	"github.com/barekit/lectern/pkg/transcript"
)

// Fixture exposes the fakes behind App.
type Fixture struct {
	App     *app.App
	LLM     *llmtest.Provider
	Library *inmemory.InMemory
	// Transcripts maps video IDs to their transcript. Unknown IDs fail with
	// apperr.ErrTranscriptUnavailable.
	Transcripts map[string]string
}

// Pages serves each element as one page.
type Pages []string

func (p Pages) NumPage() int               { return len(p) }
func (p Pages) Text(i int) (string, error) { return p[i], nil }
func (p Pages) Close() error               { return nil }

// OpenText treats data as plain text with pages separated by form feeds.
func OpenText(data []byte) (extract.Pages, error) {
	return Pages(strings.Split(string(data), "\f")), nil
}

// New builds a Fixture whose model replies with responses in order.
func New(t *testing.T, responses ...string) *Fixture {
	t.Helper()

	db, err := database.Open(database.DriverSQLite, filepath.Join(t.TempDir(), "app.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	st, err := store.New(db)
	require.NoError(t, err)

	f := &Fixture{
		LLM:         &llmtest.Provider{Responses: responses},
		Library:     inmemory.New(),
		Transcripts: map[string]string{},
	}
	kb := knowledge.NewKnowledgeBase(&knowledgetest.Embedder{Dim: 256}, memory.New(), "pdf-chatbot", knowledge.Cosine)

	f.App = &app.App{
		QA:    docqa.New(st, extract.New(OpenText), chunk.New(), kb, generate.New(f.LLM)),
		Notes: notes.New(generate.New(f.LLM)),
		MCQ:   mcq.New(generate.New(f.LLM), 0, 50),
		Transcripts: transcript.FetcherFunc(func(_ context.Context, id string) (string, error) {
			text, ok := f.Transcripts[id]
			if !ok {
				return "", fmt.Errorf("%w: no transcript for %s", apperr.ErrTranscriptUnavailable, id)
			}
			return text, nil
		}),
		Library: f.Library,
	}
	return f
}
