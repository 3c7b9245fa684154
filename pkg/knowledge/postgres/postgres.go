package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/barekit/lectern/pkg/apperr"
	"github.com/barekit/lectern/pkg/knowledge"
)

// DefaultTimeout bounds each operation unless SetTimeout is called.
const DefaultTimeout = time.Minute

// PostgresIndex implements knowledge.VectorIndex using pgvector.
type PostgresIndex struct {
	db      *gorm.DB
	timeout time.Duration
}

// IndexModel records the configuration of one named index.
type IndexModel struct {
	Name      string `gorm:"primaryKey"`
	Dimension int
	Metric    string
}

// TableName overrides the table name.
func (IndexModel) TableName() string {
	return "vector_indexes"
}

// EntryModel represents the database schema for an index entry.
type EntryModel struct {
	IndexName  string `gorm:"primaryKey"`
	ID         string `gorm:"primaryKey"`
	Document   string `gorm:"index"`
	ChunkIndex int
	Content    string
	Embedding  pgvector.Vector `gorm:"type:vector"`
}

// TableName overrides the table name.
func (EntryModel) TableName() string {
	return "vector_entries"
}

// New creates a new PostgresIndex on an open connection, enabling the
// vector extension and migrating its tables.
func New(db *gorm.DB) (*PostgresIndex, error) {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("failed to enable pgvector extension: %w", err)
	}
	if err := db.AutoMigrate(&IndexModel{}, &EntryModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &PostgresIndex{db: db, timeout: DefaultTimeout}, nil
}

// SetTimeout bounds each operation.
func (s *PostgresIndex) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// fail tags err with ErrVectorIndex, reporting a deadline as a timeout.
func (s *PostgresIndex) fail(ctx context.Context, msg string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: timed out after %s: %w", apperr.ErrVectorIndex, msg, s.timeout, context.DeadlineExceeded)
	}
	return fmt.Errorf("%w: %s: %w", apperr.ErrVectorIndex, msg, err)
}

func (s *PostgresIndex) EnsureIndex(ctx context.Context, name string, dimension int, metric knowledge.Metric) error {
	if _, err := operator(metric); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var existing IndexModel
	err := s.db.WithContext(ctx).First(&existing, "name = ?", name).Error
	if err == nil {
		if existing.Dimension != dimension || existing.Metric != string(metric) {
			return fmt.Errorf("%w: index %s has dimension %d and metric %s, want %d and %s",
				apperr.ErrIndexConfigMismatch, name, existing.Dimension, existing.Metric, dimension, metric)
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return s.fail(ctx, "failed to look up index "+name, err)
	}

	model := IndexModel{Name: name, Dimension: dimension, Metric: string(metric)}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error; err != nil {
		return s.fail(ctx, "failed to create index "+name, err)
	}
	return nil
}

func (s *PostgresIndex) Upsert(ctx context.Context, index string, entries ...knowledge.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cfg, err := s.config(ctx, index)
	if err != nil {
		return err
	}

	models := make([]EntryModel, len(entries))
	for i, e := range entries {
		if len(e.Vector) != cfg.Dimension {
			return fmt.Errorf("%w: entry %s has dimension %d, index %s expects %d",
				apperr.ErrVectorIndex, e.ID, len(e.Vector), index, cfg.Dimension)
		}
		models[i] = EntryModel{
			IndexName:  index,
			ID:         e.ID,
			Document:   e.Document,
			ChunkIndex: e.ChunkIndex,
			Content:    e.Text,
			Embedding:  pgvector.NewVector(e.Vector),
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "index_name"}, {Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"document", "chunk_index", "content", "embedding"}),
		}).Create(&models).Error
	})
	if err != nil {
		return s.fail(ctx, fmt.Sprintf("failed to upsert %d entries", len(models)), err)
	}
	return nil
}

type scoredRow struct {
	ID         string
	Document   string
	ChunkIndex int
	Content    string
	Distance   float64
}

func (s *PostgresIndex) Query(ctx context.Context, index string, vector []float32, k int, filter knowledge.Filter) ([]knowledge.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cfg, err := s.config(ctx, index)
	if err != nil {
		return nil, err
	}
	op, err := operator(knowledge.Metric(cfg.Metric))
	if err != nil {
		return nil, err
	}

	query := pgvector.NewVector(vector)
	tx := s.db.WithContext(ctx).
		Model(&EntryModel{}).
		Select("id, document, chunk_index, content, embedding "+op+" ? AS distance", query).
		Where("index_name = ?", index)
	if filter.Document != "" {
		tx = tx.Where("document = ?", filter.Document)
	}

	var rows []scoredRow
	err = tx.Order("distance, id").Limit(k).Scan(&rows).Error
	if err != nil {
		return nil, s.fail(ctx, "failed to query index "+index, err)
	}

	matches := make([]knowledge.Match, len(rows))
	for i, r := range rows {
		matches[i] = knowledge.Match{
			Entry: knowledge.Entry{
				ID:         r.ID,
				Text:       r.Content,
				Document:   r.Document,
				ChunkIndex: r.ChunkIndex,
			},
			Score: score(knowledge.Metric(cfg.Metric), r.Distance),
		}
	}
	return matches, nil
}

func (s *PostgresIndex) DeleteDocument(ctx context.Context, index, document string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.db.WithContext(ctx).
		Where("index_name = ? AND document = ?", index, document).
		Delete(&EntryModel{}).Error
	if err != nil {
		return s.fail(ctx, "failed to delete entries of "+document, err)
	}
	return nil
}

func (s *PostgresIndex) config(ctx context.Context, index string) (*IndexModel, error) {
	var cfg IndexModel
	if err := s.db.WithContext(ctx).First(&cfg, "name = ?", index).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: index %s does not exist", apperr.ErrVectorIndex, index)
		}
		return nil, s.fail(ctx, "failed to look up index "+index, err)
	}
	return &cfg, nil
}

// operator returns the pgvector distance operator for m. Smaller is closer
// for all three.
func operator(m knowledge.Metric) (string, error) {
	switch m {
	case knowledge.Cosine:
		return "<=>", nil
	case knowledge.Dot:
		return "<#>", nil
	case knowledge.Euclidean:
		return "<->", nil
	default:
		return "", fmt.Errorf("unknown metric %q", m)
	}
}

// score converts a pgvector distance into a similarity where larger is closer.
func score(m knowledge.Metric, distance float64) float32 {
	switch m {
	case knowledge.Cosine:
		return float32(1 - distance)
	default:
		// <#> is the negative inner product; <-> is L2 distance.
		return float32(-distance)
	}
}
