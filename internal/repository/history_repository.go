package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/domain"
	"gorm.io/gorm"
)

// HistoryRepository reads the object history log. Entries are written by the
// object and stage repositories inside their transactions.
type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// ListByObject returns the history of an object, newest first
func (r *HistoryRepository) ListByObject(ctx context.Context, objectID uuid.UUID, limit int) ([]domain.ObjectHistory, error) {
	var entries []domain.ObjectHistory
	query := r.db.WithContext(ctx).
		Where("object_id = ?", objectID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&entries).Error
	return entries, err
}
