// Package library persists every generated artifact (answers, notes and
// questionnaires) so users can revisit them.
package library

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind is the type of a generated artifact.
type Kind string

const (
	KindAnswer        Kind = "answer"
	KindTopicNotes    Kind = "topic_notes"
	KindVideoNotes    Kind = "video_notes"
	KindQuestionnaire Kind = "questionnaire"
)

// ParseKind validates a kind name. The empty string is accepted and means
// every kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case "", KindAnswer, KindTopicNotes, KindVideoNotes, KindQuestionnaire:
		return k, nil
	default:
		return "", fmt.Errorf("unknown artifact kind %q", s)
	}
}

// Artifact is one generated result.
type Artifact struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	Subject      string    `json:"subject"`
	Source       string    `json:"source,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Prompt       string    `json:"prompt,omitempty"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewArtifact returns an artifact with a fresh ID and creation time.
func NewArtifact(kind Kind, subject, content string) Artifact {
	return Artifact{
		ID:        uuid.NewString(),
		Kind:      kind,
		Subject:   subject,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// DefaultLimit and MaxLimit bound List results.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Query selects artifacts. A zero Kind matches every kind.
type Query struct {
	Kind  Kind
	Limit int
}

// Normalize clamps Limit into [1, MaxLimit], using DefaultLimit for zero.
func (q Query) Normalize() Query {
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultLimit
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}
	return q
}

// Library represents a store of generated artifacts.
type Library interface {
	// Save stores an artifact.
	Save(ctx context.Context, a Artifact) error
	// List returns matching artifacts, newest first.
	List(ctx context.Context, q Query) ([]Artifact, error)
}

// Closer is implemented by libraries holding connections.
type Closer interface {
	Close(ctx context.Context) error
}
