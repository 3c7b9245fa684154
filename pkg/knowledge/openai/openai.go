package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/barekit/lectern/pkg/apperr"
)

// DefaultDimension matches the pdf-chatbot index.
const DefaultDimension = 768

// Embedder implements knowledge.Embedder using OpenAI.
type Embedder struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dimension int
	timeout   time.Duration
	limiter   *rate.Limiter
}

// NewEmbedder creates a new OpenAI Embedder.
func NewEmbedder(opts ...option.RequestOption) *Embedder {
	client := openai.NewClient(opts...)
	return &Embedder{
		client:    &client,
		model:     openai.EmbeddingModelTextEmbedding3Small,
		dimension: DefaultDimension,
		timeout:   time.Minute,
	}
}

// SetModel sets the embedding model.
func (e *Embedder) SetModel(model string) {
	e.model = openai.EmbeddingModel(model)
}

// SetDimension sets the requested vector length.
func (e *Embedder) SetDimension(n int) {
	e.dimension = n
}

// SetTimeout bounds each request.
func (e *Embedder) SetTimeout(d time.Duration) {
	if d > 0 {
		e.timeout = d
	}
}

// SetRateLimit caps requests per second. Zero or less disables the limit.
func (e *Embedder) SetRateLimit(perSecond float64) {
	if perSecond <= 0 {
		e.limiter = nil
		return
	}
	e.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Dimension implements knowledge.Embedder.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Embed generates the embedding for text with one request.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %w", apperr.ErrEmbeddingService, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model:      e.model,
		Dimensions: openai.Int(int64(e.dimension)),
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: embedding timed out after %s: %w", apperr.ErrEmbeddingService, e.timeout, context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("%w: failed to generate embedding: %w", apperr.ErrEmbeddingService, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: response contained no embeddings", apperr.ErrEmbeddingService)
	}

	data := resp.Data[0].Embedding
	if len(data) != e.dimension {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", apperr.ErrEmbeddingService, len(data), e.dimension)
	}

	vec := make([]float32, len(data))
	for i, v := range data {
		vec[i] = float32(v)
	}
	return vec, nil
}
