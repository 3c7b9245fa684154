package qdrant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/barekit/lectern/pkg/apperr"
	"github.com/barekit/lectern/pkg/knowledge"
)

// DefaultTimeout bounds each operation when Config.Timeout is zero.
const DefaultTimeout = time.Minute

const (
	payloadText     = "text"
	payloadDocument = "document"
	payloadChunk    = "chunk"
)

// Config holds connection settings.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
	// Timeout bounds each operation. Zero means DefaultTimeout.
	Timeout time.Duration
	// CheckCompatibility makes New ask the server for its version. The
	// client library gives that request no deadline, so New can block on an
	// unresponsive server.
	CheckCompatibility bool
}

// QdrantIndex implements knowledge.VectorIndex using Qdrant collections.
type QdrantIndex struct {
	client  *qdrant.Client
	timeout time.Duration
}

// New creates a new QdrantIndex. Unless cfg.CheckCompatibility is set, no
// request is made until first use.
func New(cfg Config) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   cfg.Host,
		Port:                   cfg.Port,
		APIKey:                 cfg.APIKey,
		UseTLS:                 cfg.UseTLS,
		SkipCompatibilityCheck: !cfg.CheckCompatibility,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &QdrantIndex{client: client, timeout: timeout}, nil
}

// fail tags err with ErrVectorIndex, reporting a deadline as a timeout.
func (s *QdrantIndex) fail(ctx context.Context, msg string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: timed out after %s: %w", apperr.ErrVectorIndex, msg, s.timeout, context.DeadlineExceeded)
	}
	return fmt.Errorf("%w: %s: %w", apperr.ErrVectorIndex, msg, err)
}

// Close releases the gRPC connection.
func (s *QdrantIndex) Close() error {
	return s.client.Close()
}

func (s *QdrantIndex) EnsureIndex(ctx context.Context, name string, dimension int, metric knowledge.Metric) error {
	distance, err := toDistance(metric)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return s.fail(ctx, "failed to check collection existence", err)
	}

	if exists {
		info, err := s.client.GetCollectionInfo(ctx, name)
		if err != nil {
			return s.fail(ctx, "failed to get collection info", err)
		}
		params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
		return checkParams(name, params, uint64(dimension), distance)
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: distance,
		}),
	})
	if err != nil {
		return s.fail(ctx, "failed to create collection", err)
	}
	return nil
}

func (s *QdrantIndex) Upsert(ctx context.Context, index string, entries ...knowledge.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, len(entries))
	for i, e := range entries {
		points[i] = toPoint(e)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: index,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return s.fail(ctx, fmt.Sprintf("failed to upsert %d points", len(points)), err)
	}
	return nil
}

func (s *QdrantIndex) Query(ctx context.Context, index string, vector []float32, k int, filter knowledge.Filter) ([]knowledge.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	limit := uint64(k)
	res, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: index,
		Query:          qdrant.NewQuery(vector...),
		Filter:         toFilter(filter),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, s.fail(ctx, "failed to query points", err)
	}

	matches := make([]knowledge.Match, len(res))
	for i, hit := range res {
		matches[i] = toMatch(hit)
	}
	return matches, nil
}

func (s *QdrantIndex) DeleteDocument(ctx context.Context, index, document string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: index,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelectorFilter(toFilter(knowledge.Filter{Document: document})),
	})
	if err != nil {
		return s.fail(ctx, "failed to delete points of "+document, err)
	}
	return nil
}

func toDistance(m knowledge.Metric) (qdrant.Distance, error) {
	switch m {
	case knowledge.Cosine:
		return qdrant.Distance_Cosine, nil
	case knowledge.Dot:
		return qdrant.Distance_Dot, nil
	case knowledge.Euclidean:
		return qdrant.Distance_Euclid, nil
	default:
		return qdrant.Distance_UnknownDistance, fmt.Errorf("unknown metric %q", m)
	}
}

func checkParams(name string, params *qdrant.VectorParams, size uint64, distance qdrant.Distance) error {
	if params == nil {
		return fmt.Errorf("%w: collection %s uses named vectors", apperr.ErrIndexConfigMismatch, name)
	}
	if params.GetSize() != size || params.GetDistance() != distance {
		return fmt.Errorf("%w: collection %s has size %d and distance %s, want %d and %s",
			apperr.ErrIndexConfigMismatch, name, params.GetSize(), params.GetDistance(), size, distance)
	}
	return nil
}

func toPoint(e knowledge.Entry) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(e.ID),
		Vectors: qdrant.NewVectors(e.Vector...),
		Payload: map[string]*qdrant.Value{
			payloadText:     qdrant.NewValueString(e.Text),
			payloadDocument: qdrant.NewValueString(e.Document),
			payloadChunk:    qdrant.NewValueInt(int64(e.ChunkIndex)),
		},
	}
}

func toFilter(f knowledge.Filter) *qdrant.Filter {
	if f.Document == "" {
		return nil
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(payloadDocument, f.Document)},
	}
}

func toMatch(hit *qdrant.ScoredPoint) knowledge.Match {
	payload := hit.GetPayload()
	return knowledge.Match{
		Entry: knowledge.Entry{
			ID:         hit.GetId().GetUuid(),
			Text:       payload[payloadText].GetStringValue(),
			Document:   payload[payloadDocument].GetStringValue(),
			ChunkIndex: int(payload[payloadChunk].GetIntegerValue()),
		},
		Score: hit.GetScore(),
	}
}
