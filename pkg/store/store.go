// Package store keeps the relational record of ingested documents and their
// chunk embeddings.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DefaultTimeout bounds each operation unless SetTimeout is called.
const DefaultTimeout = time.Minute

// ErrNotFound is returned when no document has the requested name.
var ErrNotFound = errors.New("document not found")

// Document is an uploaded file identified by its name.
type Document struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"uniqueIndex;size:255;not null"`
	Indexed    bool   `gorm:"not null;default:false"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Embeddings []Embedding `gorm:"foreignKey:PDFFileID;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name.
func (Document) TableName() string {
	return "pdf_files"
}

// Embedding is the stored vector of one chunk of a document.
type Embedding struct {
	ID         uint   `gorm:"primaryKey"`
	Embedding  string `gorm:"type:text;not null"`
	PDFFileID  uint   `gorm:"index;not null"`
	ChunkIndex int
	Content    string `gorm:"type:text"`
	CreatedAt  time.Time
}

// TableName overrides the table name.
func (Embedding) TableName() string {
	return "pdf_embeddings"
}

// Vector decodes the serialized embedding.
func (e Embedding) Vector() ([]float32, error) {
	var v []float32
	if err := json.Unmarshal([]byte(e.Embedding), &v); err != nil {
		return nil, fmt.Errorf("failed to decode embedding %d: %w", e.ID, err)
	}
	return v, nil
}

// Chunk is a chunk text with its vector, ready to persist.
type Chunk struct {
	Index  int
	Text   string
	Vector []float32
}

// Store persists documents and embeddings with gorm.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
}

// New creates a new Store and migrates its tables.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Document{}, &Embedding{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Store{db: db, timeout: DefaultTimeout}, nil
}

// SetTimeout bounds each operation.
func (s *Store) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

func (s *Store) fail(ctx context.Context, msg string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: timed out after %s: %w", msg, s.timeout, context.DeadlineExceeded)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// FindByName returns the document called name, or ErrNotFound.
func (s *Store) FindByName(ctx context.Context, name string) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc Document
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.fail(ctx, "failed to find document "+name, err)
	}
	return &doc, nil
}

// Create inserts an unindexed document. A duplicate name violates the
// unique constraint and fails.
func (s *Store) Create(ctx context.Context, name string) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := Document{Name: name}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		return nil, s.fail(ctx, "failed to create document "+name, err)
	}
	return &doc, nil
}

// ReplaceEmbeddings swaps the embeddings of doc for chunks and marks it
// indexed in one transaction.
func (s *Store) ReplaceEmbeddings(ctx context.Context, doc *Document, chunks []Chunk) error {
	rows := make([]Embedding, len(chunks))
	for i, c := range chunks {
		b, err := json.Marshal(c.Vector)
		if err != nil {
			return fmt.Errorf("failed to encode embedding %d: %w", c.Index, err)
		}
		rows[i] = Embedding{
			Embedding:  string(b),
			PDFFileID:  doc.ID,
			ChunkIndex: c.Index,
			Content:    c.Text,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pdf_file_id = ?", doc.ID).Delete(&Embedding{}).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(&rows, 100).Error; err != nil {
				return err
			}
		}
		return tx.Model(&Document{}).Where("id = ?", doc.ID).Update("indexed", true).Error
	})
	if err != nil {
		return s.fail(ctx, "failed to store embeddings for "+doc.Name, err)
	}
	doc.Indexed = true
	return nil
}

// Embeddings returns the stored embeddings of doc in chunk order.
func (s *Store) Embeddings(ctx context.Context, doc *Document) ([]Embedding, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []Embedding
	err := s.db.WithContext(ctx).
		Where("pdf_file_id = ?", doc.ID).
		Order("chunk_index asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, s.fail(ctx, "failed to load embeddings for "+doc.Name, err)
	}
	return rows, nil
}
