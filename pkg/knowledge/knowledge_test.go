package knowledge_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barekit/lectern/pkg/knowledge"
	"github.com/barekit/lectern/pkg/knowledge/knowledgetest"
	"github.com/barekit/lectern/pkg/knowledge/memory"
)

func TestEntryID(t *testing.T) {
	a := knowledge.EntryID("notes.pdf", 0)
	assert.Equal(t, a, knowledge.EntryID("notes.pdf", 0))
	assert.NotEqual(t, a, knowledge.EntryID("notes.pdf", 1))
	assert.NotEqual(t, a, knowledge.EntryID("other.pdf", 0))
	assert.NotEqual(t, knowledge.EntryID("a1", 0), knowledge.EntryID("a", 10))
	assert.Len(t, a, 36)
}

func TestParseMetric(t *testing.T) {
	m, err := knowledge.ParseMetric("cosine")
	require.NoError(t, err)
	assert.Equal(t, knowledge.Cosine, m)

	_, err = knowledge.ParseMetric("manhattan")
	assert.ErrorContains(t, err, "unknown metric")
}

func TestEmbedAll(t *testing.T) {
	e := &knowledgetest.Embedder{Dim: 8}
	texts := make([]string, 20)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk number %d", i)
	}

	vectors, err := knowledge.EmbedAll(context.Background(), e, texts, 3)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, v := range vectors {
		want, _ := e.Embed(context.Background(), texts[i])
		assert.Equal(t, want, v)
	}
	assert.LessOrEqual(t, e.Peak(), 3)
}

func TestEmbedAll_Error(t *testing.T) {
	boom := errors.New("boom")
	e := &knowledgetest.Embedder{Dim: 8, Err: boom, FailOn: "bad"}

	_, err := knowledge.EmbedAll(context.Background(), e, []string{"good", "bad", "good"}, 2)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "chunk 1")
}

func TestKnowledgeBase_Retrieve(t *testing.T) {
	ctx := context.Background()
	e := &knowledgetest.Embedder{Dim: 1024}
	kb := knowledge.NewKnowledgeBase(e, memory.New(), "pdf-chatbot", knowledge.Cosine)
	require.NoError(t, kb.Ensure(ctx))

	texts := []string{
		"Photosynthesis converts light into chemical energy.",
		"The French Revolution began in 1789.",
	}
	vectors, err := knowledge.EmbedAll(ctx, e, texts, 2)
	require.NoError(t, err)
	for i, text := range texts {
		require.NoError(t, kb.Index.Upsert(ctx, kb.Name, knowledge.Entry{
			ID:         knowledge.EntryID("bio.pdf", i),
			Vector:     vectors[i],
			Text:       text,
			Document:   "bio.pdf",
			ChunkIndex: i,
		}))
	}

	matches, err := kb.Retrieve(ctx, "When did the French Revolution begin?", 1, knowledge.Filter{Document: "bio.pdf"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, texts[1], matches[0].Text)

	none, err := kb.Retrieve(ctx, "revolution", 5, knowledge.Filter{Document: "other.pdf"})
	require.NoError(t, err)
	assert.Empty(t, none)
}
