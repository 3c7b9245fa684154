// Package memory is an in-process knowledge.VectorIndex for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/barekit/lectern/pkg/apperr"
	"github.com/barekit/lectern/pkg/knowledge"
)

type collection struct {
	dimension int
	metric    knowledge.Metric
	entries   map[string]knowledge.Entry
}

// Index implements knowledge.VectorIndex in memory.
type Index struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// New creates an empty Index.
func New() *Index {
	return &Index{collections: make(map[string]*collection)}
}

func (x *Index) EnsureIndex(_ context.Context, name string, dimension int, metric knowledge.Metric) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if c, ok := x.collections[name]; ok {
		if c.dimension != dimension || c.metric != metric {
			return fmt.Errorf("%w: index %s has dimension %d and metric %s, want %d and %s",
				apperr.ErrIndexConfigMismatch, name, c.dimension, c.metric, dimension, metric)
		}
		return nil
	}

	x.collections[name] = &collection{
		dimension: dimension,
		metric:    metric,
		entries:   make(map[string]knowledge.Entry),
	}
	return nil
}

func (x *Index) Upsert(_ context.Context, index string, entries ...knowledge.Entry) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	c, err := x.get(index)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if len(e.Vector) != c.dimension {
			return fmt.Errorf("%w: entry %s has dimension %d, index %s expects %d",
				apperr.ErrVectorIndex, e.ID, len(e.Vector), index, c.dimension)
		}
	}
	for _, e := range entries {
		e.Vector = append([]float32(nil), e.Vector...)
		c.entries[e.ID] = e
	}
	return nil
}

func (x *Index) Query(_ context.Context, index string, vector []float32, k int, filter knowledge.Filter) ([]knowledge.Match, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	c, err := x.get(index)
	if err != nil {
		return nil, err
	}
	if len(vector) != c.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index %s expects %d",
			apperr.ErrVectorIndex, len(vector), index, c.dimension)
	}

	matches := make([]knowledge.Match, 0, len(c.entries))
	for _, e := range c.entries {
		if filter.Document != "" && e.Document != filter.Document {
			continue
		}
		matches = append(matches, knowledge.Match{Entry: e, Score: score(c.metric, vector, e.Vector)})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if k >= 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (x *Index) DeleteDocument(_ context.Context, index, document string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	c, err := x.get(index)
	if err != nil {
		return err
	}
	for id, e := range c.entries {
		if e.Document == document {
			delete(c.entries, id)
		}
	}
	return nil
}

// Len reports the number of entries in index.
func (x *Index) Len(index string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if c, ok := x.collections[index]; ok {
		return len(c.entries)
	}
	return 0
}

func (x *Index) get(index string) (*collection, error) {
	c, ok := x.collections[index]
	if !ok {
		return nil, fmt.Errorf("%w: index %s does not exist", apperr.ErrVectorIndex, index)
	}
	return c, nil
}

func score(metric knowledge.Metric, a, b []float32) float32 {
	var dot, na, nb, dist float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
		dist += (x - y) * (x - y)
	}
	switch metric {
	case knowledge.Dot:
		return float32(dot)
	case knowledge.Euclidean:
		return float32(-math.Sqrt(dist))
	default:
		if na == 0 || nb == 0 {
			return 0
		}
		return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
	}
}
