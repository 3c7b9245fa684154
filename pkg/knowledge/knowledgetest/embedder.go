// Package knowledgetest provides a deterministic knowledge.Embedder for tests.
package knowledgetest

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
)

// Embedder hashes each word of the input into one of Dim buckets, so texts
// sharing words land close together under cosine similarity.
type Embedder struct {
	Dim int
	// Err, when set, is returned by every call.
	Err error
	// FailOn makes calls whose text contains it return Err.
	FailOn string

	calls    atomic.Int64
	inFlight atomic.Int64
	mu       sync.Mutex
	peak     int64
}

// Embed implements knowledge.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)

	e.mu.Lock()
	if n > e.peak {
		e.peak = n
	}
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.Err != nil && (e.FailOn == "" || strings.Contains(text, e.FailOn)) {
		return nil, e.Err
	}

	v := make([]float32, e.Dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(word, ".,;:!?\"'()")))
		v[int(h.Sum32())%e.Dim]++
	}
	return v, nil
}

// Dimension implements knowledge.Embedder.
func (e *Embedder) Dimension() int { return e.Dim }

// Calls reports how many times Embed ran.
func (e *Embedder) Calls() int { return int(e.calls.Load()) }

// Peak reports the highest number of concurrent Embed calls observed.
func (e *Embedder) Peak() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return int(e.peak)
}
