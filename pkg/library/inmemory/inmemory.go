package inmemory

import (
	"context"
	"sync"

	"github.com/barekit/lectern/pkg/library"
)

// InMemory implements Library using a slice.
type InMemory struct {
	mu        sync.RWMutex
	artifacts []library.Artifact
}

// New creates a new InMemory adapter.
func New() *InMemory {
	return &InMemory{}
}

// Save saves an artifact to the in-memory store.
func (m *InMemory) Save(ctx context.Context, a library.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.artifacts = append(m.artifacts, a)
	return nil
}

// List walks the artifacts from newest to oldest.
func (m *InMemory) List(ctx context.Context, q library.Query) ([]library.Artifact, error) {
	q = q.Normalize()

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]library.Artifact, 0, q.Limit)
	for i := len(m.artifacts) - 1; i >= 0 && len(result) < q.Limit; i-- {
		if q.Kind == "" || m.artifacts[i].Kind == q.Kind {
			result = append(result, m.artifacts[i])
		}
	}
	return result, nil
}
