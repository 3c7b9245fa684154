// Package librarytest holds the behaviour every library.Library backend
// must share.
package librarytest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barekit/lectern/pkg/library"
)

// Run exercises lib. The library must start empty.
func Run(t *testing.T, lib library.Library) {
	t.Helper()
	ctx := context.Background()

	empty, err := lib.List(ctx, library.Query{})
	require.NoError(t, err)
	assert.Empty(t, empty)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	kinds := []library.Kind{library.KindAnswer, library.KindTopicNotes, library.KindVideoNotes, library.KindQuestionnaire}
	var saved []library.Artifact
	for i := range 8 {
		a := library.NewArtifact(kinds[i%len(kinds)], fmt.Sprintf("subject %d", i), fmt.Sprintf("content %d", i))
		a.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		a.Prompt = fmt.Sprintf("prompt %d", i)
		if a.Kind == library.KindVideoNotes {
			a.Source = "https://youtu.be/dQw4w9WgXcQ"
			a.ThumbnailURL = "http://img.youtube.com/vi/dQw4w9WgXcQ/0.jpg"
		}
		require.NoError(t, lib.Save(ctx, a))
		saved = append(saved, a)
	}

	all, err := lib.List(ctx, library.Query{})
	require.NoError(t, err)
	require.Len(t, all, 8)
	for i, a := range all {
		want := saved[len(saved)-1-i]
		assert.Equal(t, want.ID, a.ID)
		assert.Equal(t, want.Kind, a.Kind)
		assert.Equal(t, want.Subject, a.Subject)
		assert.Equal(t, want.Prompt, a.Prompt)
		assert.Equal(t, want.Content, a.Content)
		assert.Equal(t, want.Source, a.Source)
		assert.Equal(t, want.ThumbnailURL, a.ThumbnailURL)
		assert.True(t, want.CreatedAt.Equal(a.CreatedAt), "created_at %s != %s", a.CreatedAt, want.CreatedAt)
	}

	videos, err := lib.List(ctx, library.Query{Kind: library.KindVideoNotes})
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, saved[6].ID, videos[0].ID)
	assert.Equal(t, saved[2].ID, videos[1].ID)

	limited, err := lib.List(ctx, library.Query{Limit: 3})
	require.NoError(t, err)
	require.Len(t, limited, 3)
	assert.Equal(t, saved[7].ID, limited[0].ID)
}
