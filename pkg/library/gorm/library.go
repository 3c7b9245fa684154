package gorm

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/barekit/lectern/pkg/library"
	"github.com/barekit/lectern/pkg/library/consts"
)

// Library implements library.Library using GORM.
type Library struct {
	db *gorm.DB
}

// ArtifactModel represents the database schema for an artifact.
type ArtifactModel struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Kind         string    `gorm:"index;size:32"`
	Subject      string
	Source       string
	ThumbnailURL string
	Prompt       string    `gorm:"type:text"`
	Content      string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"index"`
}

// TableName overrides the table name.
func (ArtifactModel) TableName() string {
	return consts.TableNameArtifacts
}

// New creates a new Library.
func New(db *gorm.DB) (*Library, error) {
	if err := db.AutoMigrate(&ArtifactModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Library{db: db}, nil
}

// Save saves an artifact to the database.
func (l *Library) Save(ctx context.Context, a library.Artifact) error {
	model := ArtifactModel{
		ID:           a.ID,
		Kind:         string(a.Kind),
		Subject:      a.Subject,
		Source:       a.Source,
		ThumbnailURL: a.ThumbnailURL,
		Prompt:       a.Prompt,
		Content:      a.Content,
		CreatedAt:    a.CreatedAt,
	}
	return l.db.WithContext(ctx).Create(&model).Error
}

// List loads artifacts from the database.
func (l *Library) List(ctx context.Context, q library.Query) ([]library.Artifact, error) {
	q = q.Normalize()

	tx := l.db.WithContext(ctx).Order(consts.ColCreatedAt + " desc").Order(consts.ColID + " desc").Limit(q.Limit)
	if q.Kind != "" {
		tx = tx.Where(consts.ColKind+" = ?", string(q.Kind))
	}

	var models []ArtifactModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}

	artifacts := make([]library.Artifact, len(models))
	for i, m := range models {
		artifacts[i] = library.Artifact{
			ID:           m.ID,
			Kind:         library.Kind(m.Kind),
			Subject:      m.Subject,
			Source:       m.Source,
			ThumbnailURL: m.ThumbnailURL,
			Prompt:       m.Prompt,
			Content:      m.Content,
			CreatedAt:    m.CreatedAt,
		}
	}
	return artifacts, nil
}

// Close releases the connection pool.
func (l *Library) Close(ctx context.Context) error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
