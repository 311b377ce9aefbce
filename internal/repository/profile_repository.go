package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/domain"
	"gorm.io/gorm"
)

type ProfileRepository struct {
	*Collection[domain.Profile]
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{Collection: NewCollection[domain.Profile](db)}
}

func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	return r.Get(ctx, id)
}

// ListByIDs returns the active profiles among ids
func (r *ProfileRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var profiles []domain.Profile
	err := r.db.WithContext(ctx).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&profiles).Error
	return profiles, err
}

// ListActive returns every active profile ordered by name
func (r *ProfileRepository) ListActive(ctx context.Context) ([]domain.Profile, error) {
	return r.Query(ctx, Filter{"is_active": true}, "full_name ASC")
}
