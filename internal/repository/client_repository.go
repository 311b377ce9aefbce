package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/domain"
	"gorm.io/gorm"
)

type ClientRepository struct {
	*Collection[domain.Client]
}

func NewClientRepository(db *gorm.DB) *ClientRepository {
	return &ClientRepository{Collection: NewCollection[domain.Client](db)}
}

// GetByID returns a client that is not soft deleted
func (r *ClientRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	var client domain.Client
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&client).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// List returns a page of clients, optionally filtered by a name/phone/email search
func (r *ClientRepository) List(ctx context.Context, page, pageSize int, search string) ([]domain.Client, int64, error) {
	var clients []domain.Client
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Client{}).Where("is_deleted = ?", false)
	if search = strings.TrimSpace(search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?", pattern, pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := paginate(query, page, pageSize).Order("name ASC").Find(&clients).Error
	return clients, total, err
}

// SoftDelete flags the client as deleted
func (r *ClientRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&domain.Client{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
