package knowledge

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Metric is the similarity function of an index.
type Metric string

const (
	Cosine    Metric = "cosine"
	Dot       Metric = "dot"
	Euclidean Metric = "euclid"
)

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case Cosine, Dot, Euclidean:
		return m, nil
	default:
		return "", fmt.Errorf("unknown metric %q", s)
	}
}

// Entry is one chunk vector with its payload.
type Entry struct {
	ID         string    `json:"id"`
	Vector     []float32 `json:"-"`
	Text       string    `json:"text"`
	Document   string    `json:"document"`
	ChunkIndex int       `json:"chunk"`
}

// Match is an entry returned by a similarity query.
type Match struct {
	Entry
	Score float32 `json:"score"`
}

// Filter restricts a query. A zero Filter matches every entry.
type Filter struct {
	Document string
}

// Embedder is the interface for generating embeddings.
type Embedder interface {
	// Embed returns the vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimension is the length of every vector Embed returns.
	Dimension() int
}

// VectorIndex is the interface for storing and retrieving vectors.
type VectorIndex interface {
	// EnsureIndex creates the index if absent. It fails with
	// apperr.ErrIndexConfigMismatch when the index exists with a different
	// dimension or metric.
	EnsureIndex(ctx context.Context, name string, dimension int, metric Metric) error
	// Upsert inserts entries or overwrites them by ID.
	Upsert(ctx context.Context, index string, entries ...Entry) error
	// Query returns at most k entries ordered by descending similarity.
	Query(ctx context.Context, index string, vector []float32, k int, filter Filter) ([]Match, error)
	// DeleteDocument removes every entry of document.
	DeleteDocument(ctx context.Context, index, document string) error
}

var entryNamespace = uuid.MustParse("5b0f3c4e-6a3e-4d0b-9a53-6f1d2b7c8e90")

// EntryID returns the stable ID of a document chunk.
func EntryID(document string, chunk int) string {
	return uuid.NewSHA1(entryNamespace, []byte(document+"\x00"+strconv.Itoa(chunk))).String()
}

// EmbedAll embeds texts with at most limit requests in flight. Results keep
// the order of texts; the first failure cancels the rest.
func EmbedAll(ctx context.Context, e Embedder, texts []string, limit int) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Embed(ctx, text)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Texts returns the payload text of every match in order.
func Texts(matches []Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Text
	}
	return out
}

// KnowledgeBase combines an Embedder and a VectorIndex over one named index.
type KnowledgeBase struct {
	Embedder Embedder
	Index    VectorIndex
	Name     string
	Metric   Metric
}

// NewKnowledgeBase creates a new KnowledgeBase.
func NewKnowledgeBase(embedder Embedder, index VectorIndex, name string, metric Metric) *KnowledgeBase {
	return &KnowledgeBase{
		Embedder: embedder,
		Index:    index,
		Name:     name,
		Metric:   metric,
	}
}

// Ensure creates the index sized for the embedder.
func (kb *KnowledgeBase) Ensure(ctx context.Context) error {
	return kb.Index.EnsureIndex(ctx, kb.Name, kb.Embedder.Dimension(), kb.Metric)
}

// Retrieve embeds query and returns the k nearest entries matching filter.
func (kb *KnowledgeBase) Retrieve(ctx context.Context, query string, k int, filter Filter) ([]Match, error) {
	vector, err := kb.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return kb.Index.Query(ctx, kb.Name, vector, k, filter)
}
