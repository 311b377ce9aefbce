package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/domain"
	"gorm.io/gorm"
)

type FileRepository struct {
	*Collection[domain.ObjectFile]
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{Collection: NewCollection[domain.ObjectFile](db)}
}

// ListByObject returns the attachments of an object, newest first
func (r *FileRepository) ListByObject(ctx context.Context, objectID uuid.UUID) ([]domain.ObjectFile, error) {
	return r.Query(ctx, Filter{"object_id": objectID}, "created_at DESC")
}
