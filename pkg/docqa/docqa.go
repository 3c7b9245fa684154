// Package docqa answers questions about uploaded documents: it indexes a
// document the first time it is seen and answers from its nearest chunks.
package docqa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/barekit/lectern/pkg/apperr"
	"github.com/barekit/lectern/pkg/chunk"
	"github.com/barekit/lectern/pkg/generate"
	"github.com/barekit/lectern/pkg/knowledge"
	"github.com/barekit/lectern/pkg/store"
)

// NotAvailable is the answer given when the retrieved context does not
// contain one. It is a valid answer, not an error.
const NotAvailable = "answer is not available in the context"

const upsertBatchSize = 64

var answerPrompt = generate.MustPrompt("answer", `Answer the question in detail as much as possible from the provided context, make sure to provide all the
details, if the answer is not in the provided context just say, "`+NotAvailable+`", do not
provide the wrong answer

Context:
{{.Context}}?

Question:
{{.Question}}

Answer:
`)

// State is the indexing state of a document when a question arrived.
type State string

const (
	// StateUnseen means no record existed; the document was created and indexed.
	StateUnseen State = "unseen"
	// StateUnindexed means a record existed from a failed attempt; it was indexed.
	StateUnindexed State = "unindexed"
	// StateIndexed means stored embeddings were re-synced into the index.
	StateIndexed State = "indexed"
)

// Answer is the result of Ask.
type Answer struct {
	Text     string            `json:"response"`
	Document string            `json:"document"`
	State    State             `json:"state"`
	Sources  []knowledge.Match `json:"sources,omitempty"`
}

// DocumentStore is the relational record of documents and embeddings.
type DocumentStore interface {
	FindByName(ctx context.Context, name string) (*store.Document, error)
	Create(ctx context.Context, name string) (*store.Document, error)
	ReplaceEmbeddings(ctx context.Context, doc *store.Document, chunks []store.Chunk) error
	Embeddings(ctx context.Context, doc *store.Document) ([]store.Embedding, error)
}

// TextExtractor reads the text of an uploaded file.
type TextExtractor interface {
	Extract(data []byte) (string, error)
}

// Service runs the ingestion and question answering pipeline.
type Service struct {
	store       DocumentStore
	extractor   TextExtractor
	splitter    *chunk.Splitter
	kb          *knowledge.KnowledgeBase
	gen         *generate.Generator
	topK        int
	concurrency int
	debug       bool
}

// Option is a function that configures a Service.
type Option func(*Service)

// WithTopK sets how many chunks are retrieved as context.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithConcurrency caps the number of embedding requests in flight.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithDebug enables debug logging.
func WithDebug(enable bool) Option {
	return func(s *Service) {
		s.debug = enable
	}
}

// New creates a new Service.
func New(st DocumentStore, extractor TextExtractor, splitter *chunk.Splitter, kb *knowledge.KnowledgeBase, gen *generate.Generator, opts ...Option) *Service {
	s := &Service{
		store:       st,
		extractor:   extractor,
		splitter:    splitter,
		kb:          kb,
		gen:         gen,
		topK:        5,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask answers question about the document called name whose content is data.
// The document is indexed first unless a previous request already did so.
func (s *Service) Ask(ctx context.Context, name string, data []byte, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperr.Invalid("question is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, apperr.Invalid("file name is required")
	}

	state, err := s.prepare(ctx, name, data)
	if err != nil {
		return nil, err
	}

	matches, err := s.kb.Retrieve(ctx, question, s.topK, knowledge.Filter{Document: name})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	text, err := s.answer(ctx, question, matches)
	if err != nil {
		return nil, err
	}

	return &Answer{
		Text:     text,
		Document: name,
		State:    state,
		Sources:  matches,
	}, nil
}

// prepare makes sure the vector index holds every chunk of the document.
func (s *Service) prepare(ctx context.Context, name string, data []byte) (State, error) {
	doc, err := s.store.FindByName(ctx, name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if err := s.ingest(ctx, nil, name, data); err != nil {
			return "", err
		}
		return StateUnseen, nil
	case err != nil:
		return "", err
	case !doc.Indexed:
		if err := s.ingest(ctx, doc, name, data); err != nil {
			return "", err
		}
		return StateUnindexed, nil
	default:
		if err := s.resync(ctx, doc); err != nil {
			return "", err
		}
		return StateIndexed, nil
	}
}

// ingest extracts, chunks and embeds data, writes the vectors to the index
// and only then stores the embeddings and marks the document indexed. A
// failure at any step leaves the document unindexed.
func (s *Service) ingest(ctx context.Context, doc *store.Document, name string, data []byte) error {
	start := time.Now()

	text, err := s.extractor.Extract(data)
	if err != nil {
		return err
	}
	chunks := s.splitter.Split(text)

	if doc == nil {
		doc, err = s.store.Create(ctx, name)
		if err != nil {
			return err
		}
	}

	vectors, err := knowledge.EmbedAll(ctx, s.kb.Embedder, chunks, s.concurrency)
	if err != nil {
		return fmt.Errorf("failed to embed %s: %w", name, err)
	}

	entries := make([]knowledge.Entry, len(chunks))
	rows := make([]store.Chunk, len(chunks))
	for i, c := range chunks {
		entries[i] = knowledge.Entry{
			ID:         knowledge.EntryID(name, i),
			Vector:     vectors[i],
			Text:       c,
			Document:   name,
			ChunkIndex: i,
		}
		rows[i] = store.Chunk{Index: i, Text: c, Vector: vectors[i]}
	}

	if err := s.kb.Ensure(ctx); err != nil {
		return err
	}
	if err := s.kb.Index.DeleteDocument(ctx, s.kb.Name, name); err != nil {
		return err
	}
	if err := s.upsert(ctx, entries); err != nil {
		return err
	}
	if err := s.store.ReplaceEmbeddings(ctx, doc, rows); err != nil {
		return err
	}

	if s.debug {
		slog.Info("document indexed", "document", name, "chars", len(text),
			"chunks", len(chunks), "elapsed", time.Since(start))
	}
	return nil
}

// resync re-upserts the stored embeddings of an indexed document so the
// vector index matches the relational record.
func (s *Service) resync(ctx context.Context, doc *store.Document) error {
	rows, err := s.store.Embeddings(ctx, doc)
	if err != nil {
		return err
	}

	entries := make([]knowledge.Entry, len(rows))
	for i, row := range rows {
		vector, err := row.Vector()
		if err != nil {
			return err
		}
		entries[i] = knowledge.Entry{
			ID:         knowledge.EntryID(doc.Name, row.ChunkIndex),
			Vector:     vector,
			Text:       row.Content,
			Document:   doc.Name,
			ChunkIndex: row.ChunkIndex,
		}
	}

	if err := s.kb.Ensure(ctx); err != nil {
		return err
	}
	if err := s.upsert(ctx, entries); err != nil {
		return err
	}

	if s.debug {
		slog.Info("document re-synced", "document", doc.Name, "chunks", len(entries))
	}
	return nil
}

func (s *Service) upsert(ctx context.Context, entries []knowledge.Entry) error {
	for start := 0; start < len(entries); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(entries))
		if err := s.kb.Index.Upsert(ctx, s.kb.Name, entries[start:end]...); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) answer(ctx context.Context, question string, matches []knowledge.Match) (string, error) {
	joined := strings.Join(knowledge.Texts(matches), " ")
	if strings.TrimSpace(joined) == "" {
		return NotAvailable, nil
	}

	prompt, err := answerPrompt.Render(map[string]string{
		"Context":  joined,
		"Question": question,
	})
	if err != nil {
		return "", err
	}

	text, err := s.gen.Run(ctx, prompt)
	if err != nil {
		return "", err
	}
	return normalize(text), nil
}

// normalize collapses quoted or punctuated variants of NotAvailable to the
// exact sentinel.
func normalize(text string) string {
	trimmed := strings.ToLower(strings.Trim(strings.TrimSpace(text), `"'.!`))
	if trimmed == NotAvailable {
		return NotAvailable
	}
	return text
}
