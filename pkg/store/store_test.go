package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/barekit/lectern/pkg/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, filepath.Join(t.TempDir(), "store.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	s, err := New(db)
	require.NoError(t, err)
	return s
}

func TestStore_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.FindByName(ctx, "notes.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	doc, err := s.Create(ctx, "notes.pdf")
	require.NoError(t, err)
	assert.NotZero(t, doc.ID)
	assert.False(t, doc.Indexed)

	found, err := s.FindByName(ctx, "notes.pdf")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, found.ID)

	_, err = s.Create(ctx, "notes.pdf")
	assert.Error(t, err)
}

func TestStore_ReplaceEmbeddings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	doc, err := s.Create(ctx, "bio.pdf")
	require.NoError(t, err)

	require.NoError(t, s.ReplaceEmbeddings(ctx, doc, []Chunk{
		{Index: 0, Text: "first", Vector: []float32{0.1, 0.2}},
		{Index: 1, Text: "second", Vector: []float32{0.3, 0.4}},
		{Index: 2, Text: "third", Vector: []float32{0.5, 0.6}},
	}))
	assert.True(t, doc.Indexed)

	found, err := s.FindByName(ctx, "bio.pdf")
	require.NoError(t, err)
	assert.True(t, found.Indexed)

	rows, err := s.Embeddings(ctx, found)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "second", rows[1].Content)
	v, err := rows[1].Vector()
	require.NoError(t, err)
	assert.Equal(t, []float32{0.3, 0.4}, v)

	// Re-ingestion replaces rather than appends.
	require.NoError(t, s.ReplaceEmbeddings(ctx, found, []Chunk{
		{Index: 0, Text: "only", Vector: []float32{1, 1}},
	}))
	rows, err = s.Embeddings(ctx, found)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "only", rows[0].Content)
}

func TestStore_EmbeddingsIsolatedPerDocument(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.Create(ctx, "a.pdf")
	require.NoError(t, err)
	b, err := s.Create(ctx, "b.pdf")
	require.NoError(t, err)

	require.NoError(t, s.ReplaceEmbeddings(ctx, a, []Chunk{{Index: 0, Text: "a", Vector: []float32{1}}}))
	require.NoError(t, s.ReplaceEmbeddings(ctx, b, []Chunk{{Index: 0, Text: "b", Vector: []float32{2}}}))

	rows, err := s.Embeddings(ctx, a)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].Content)
}

func TestEmbedding_VectorMalformed(t *testing.T) {
	_, err := Embedding{ID: 7, Embedding: "[0.1, oops]"}.Vector()
	assert.ErrorContains(t, err, "failed to decode embedding 7")
}

// stall makes every query, insert and delete on db wait for its context.
func stall(t *testing.T, db *gorm.DB) {
	t.Helper()
	wait := func(tx *gorm.DB) {
		<-tx.Statement.Context.Done()
		_ = tx.AddError(tx.Statement.Context.Err())
	}
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:stall_query", wait))
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:stall_create", wait))
	require.NoError(t, db.Callback().Delete().Before("gorm:delete").Register("test:stall_delete", wait))
}

func TestStore_Timeout(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.SetTimeout(50 * time.Millisecond)

	doc, err := s.Create(ctx, "slow.pdf")
	require.NoError(t, err)
	stall(t, s.db)

	calls := map[string]func() error{
		"FindByName": func() error {
			_, err := s.FindByName(ctx, "slow.pdf")
			return err
		},
		"Create": func() error {
			_, err := s.Create(ctx, "other.pdf")
			return err
		},
		"ReplaceEmbeddings": func() error {
			return s.ReplaceEmbeddings(ctx, doc, []Chunk{{Index: 0, Text: "a", Vector: []float32{1}}})
		},
		"Embeddings": func() error {
			_, err := s.Embeddings(ctx, doc)
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			start := time.Now()
			err := call()
			assert.Less(t, time.Since(start), 5*time.Second)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assert.ErrorContains(t, err, "timed out after 50ms")
		})
	}
}
