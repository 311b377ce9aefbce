package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Filter selects records by column equality
type Filter map[string]interface{}

// Collection is the generic create/read/update/delete gateway over one table.
// Entity repositories embed it and add their own queries.
type Collection[T any] struct {
	db *gorm.DB
}

// NewCollection creates a collection over the table of T
func NewCollection[T any](db *gorm.DB) *Collection[T] {
	return &Collection[T]{db: db}
}

// Create inserts record and fills generated fields
func (c *Collection[T]) Create(ctx context.Context, record *T) error {
	return c.db.WithContext(ctx).Omit(clause.Associations).Create(record).Error
}

// Get returns the record with the given id or gorm.ErrRecordNotFound
func (c *Collection[T]) Get(ctx context.Context, id uuid.UUID) (*T, error) {
	var record T
	if err := c.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// Update applies patch to the record and returns the stored result
func (c *Collection[T]) Update(ctx context.Context, id uuid.UUID, patch map[string]interface{}) (*T, error) {
	var record T
	result := c.db.WithContext(ctx).Model(&record).Where("id = ?", id).Updates(patch)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return c.Get(ctx, id)
}

// Save writes every field of record
func (c *Collection[T]) Save(ctx context.Context, record *T) error {
	return c.db.WithContext(ctx).Omit(clause.Associations).Save(record).Error
}

// Query returns records matching filter in the given order ("" for table order)
func (c *Collection[T]) Query(ctx context.Context, filter Filter, order string) ([]T, error) {
	var records []T
	q := c.db.WithContext(ctx)
	if len(filter) > 0 {
		q = q.Where(map[string]interface{}(filter))
	}
	if order != "" {
		q = q.Order(order)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Delete removes the record permanently
func (c *Collection[T]) Delete(ctx context.Context, id uuid.UUID) error {
	var record T
	result := c.db.WithContext(ctx).Where("id = ?", id).Delete(&record)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// paginate applies page/pageSize to q, normalizing out of range values
func paginate(q *gorm.DB, page, pageSize int) *gorm.DB {
	page, pageSize = NormalizePage(page, pageSize)
	return q.Offset((page - 1) * pageSize).Limit(pageSize)
}

// NormalizePage clamps page to >= 1 and pageSize to [1, 200], defaulting to 20
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 200 {
		pageSize = 200
	}
	return page, pageSize
}
