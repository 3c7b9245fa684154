package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barekit/lectern/pkg/apperr"
	"github.com/barekit/lectern/pkg/knowledge"
)

func entry(doc string, chunk int, text string, v ...float32) knowledge.Entry {
	return knowledge.Entry{
		ID:         knowledge.EntryID(doc, chunk),
		Vector:     v,
		Text:       text,
		Document:   doc,
		ChunkIndex: chunk,
	}
}

func TestIndex_EnsureIndex(t *testing.T) {
	ctx := context.Background()
	x := New()

	require.NoError(t, x.EnsureIndex(ctx, "pdf-chatbot", 3, knowledge.Cosine))
	require.NoError(t, x.Upsert(ctx, "pdf-chatbot", entry("a.pdf", 0, "alpha", 1, 0, 0)))

	// Second call is a no-op and keeps existing entries.
	require.NoError(t, x.EnsureIndex(ctx, "pdf-chatbot", 3, knowledge.Cosine))
	assert.Equal(t, 1, x.Len("pdf-chatbot"))

	err := x.EnsureIndex(ctx, "pdf-chatbot", 4, knowledge.Cosine)
	assert.ErrorIs(t, err, apperr.ErrIndexConfigMismatch)

	err = x.EnsureIndex(ctx, "pdf-chatbot", 3, knowledge.Dot)
	assert.ErrorIs(t, err, apperr.ErrIndexConfigMismatch)
}

func TestIndex_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	x := New()
	require.NoError(t, x.EnsureIndex(ctx, "idx", 2, knowledge.Cosine))

	require.NoError(t, x.Upsert(ctx, "idx", entry("a.pdf", 0, "old", 1, 0)))
	require.NoError(t, x.Upsert(ctx, "idx", entry("a.pdf", 0, "new", 0, 1)))
	assert.Equal(t, 1, x.Len("idx"))

	matches, err := x.Query(ctx, "idx", []float32{0, 1}, 5, knowledge.Filter{})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new", matches[0].Text)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
}

func TestIndex_Query(t *testing.T) {
	ctx := context.Background()
	x := New()
	require.NoError(t, x.EnsureIndex(ctx, "idx", 2, knowledge.Cosine))
	require.NoError(t, x.Upsert(ctx, "idx",
		entry("a.pdf", 0, "east", 1, 0),
		entry("a.pdf", 1, "north", 0, 1),
		entry("a.pdf", 2, "northeast", 1, 1),
		entry("b.pdf", 0, "other east", 1, 0),
	))

	matches, err := x.Query(ctx, "idx", []float32{1, 0.1}, 2, knowledge.Filter{Document: "a.pdf"})
	require.NoError(t, err)
	assert.Equal(t, []string{"east", "northeast"}, knowledge.Texts(matches))
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)

	all, err := x.Query(ctx, "idx", []float32{1, 0}, 10, knowledge.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
	// Equal scores break ties by ID.
	assert.Equal(t, all[0].Score, all[1].Score)
	assert.Less(t, all[0].ID, all[1].ID)
}

func TestIndex_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	x := New()
	require.NoError(t, x.EnsureIndex(ctx, "idx", 2, knowledge.Cosine))
	require.NoError(t, x.Upsert(ctx, "idx",
		entry("a.pdf", 0, "a0", 1, 0),
		entry("a.pdf", 1, "a1", 0, 1),
		entry("b.pdf", 0, "b0", 1, 1),
	))

	require.NoError(t, x.DeleteDocument(ctx, "idx", "a.pdf"))
	assert.Equal(t, 1, x.Len("idx"))
}

func TestIndex_Errors(t *testing.T) {
	ctx := context.Background()
	x := New()

	_, err := x.Query(ctx, "missing", []float32{1}, 1, knowledge.Filter{})
	assert.ErrorIs(t, err, apperr.ErrVectorIndex)

	require.NoError(t, x.EnsureIndex(ctx, "idx", 2, knowledge.Cosine))
	err = x.Upsert(ctx, "idx", entry("a.pdf", 0, "bad", 1, 2, 3))
	assert.ErrorIs(t, err, apperr.ErrVectorIndex)

	_, err = x.Query(ctx, "idx", []float32{1}, 1, knowledge.Filter{})
	assert.ErrorIs(t, err, apperr.ErrVectorIndex)
}

func TestScore(t *testing.T) {
	a := []float32{1, 2}
	b := []float32{3, 4}
	assert.InDelta(t, 11, score(knowledge.Dot, a, b), 1e-6)
	assert.InDelta(t, -2.828427, score(knowledge.Euclidean, a, b), 1e-5)
	assert.InDelta(t, 0.98387, score(knowledge.Cosine, a, b), 1e-5)
	assert.Equal(t, float32(0), score(knowledge.Cosine, []float32{0, 0}, b))
}
