package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/domain"
	"gorm.io/gorm"
)

// TaskFilters narrows task listings; nil fields are ignored
type TaskFilters struct {
	ObjectID         *uuid.UUID
	StageID          *domain.StageID
	AssignedTo       *uuid.UUID
	Status           *domain.TaskStatus
	IncludeCompleted bool
}

type TaskRepository struct {
	*Collection[domain.Task]
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{Collection: NewCollection[domain.Task](db)}
}

// WithTx returns a repository bound to tx
func (r *TaskRepository) WithTx(tx *gorm.DB) *TaskRepository {
	return NewTaskRepository(tx)
}

// GetByID returns a task that is not soft deleted
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	var task domain.Task
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", id, false).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListByObject returns every live task of an object, oldest first
func (r *TaskRepository) ListByObject(ctx context.Context, objectID uuid.UUID) ([]domain.Task, error) {
	return r.List(ctx, TaskFilters{ObjectID: &objectID, IncludeCompleted: true})
}

// List returns live tasks matching filters, earliest deadline first
func (r *TaskRepository) List(ctx context.Context, filters TaskFilters) ([]domain.Task, error) {
	var tasks []domain.Task
	query := r.db.WithContext(ctx).Where("is_deleted = ?", false)
	if filters.ObjectID != nil {
		query = query.Where("object_id = ?", *filters.ObjectID)
	}
	if filters.StageID != nil {
		query = query.Where("stage_id = ?", *filters.StageID)
	}
	if filters.AssignedTo != nil {
		query = query.Where("assigned_to = ?", *filters.AssignedTo)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	} else if !filters.IncludeCompleted {
		query = query.Where("status <> ?", domain.TaskStatusCompleted)
	}
	err := query.Order("CASE WHEN deadline IS NULL THEN 1 ELSE 0 END, deadline ASC, created_at ASC").
		Find(&tasks).Error
	return tasks, err
}

// SoftDelete flags the task as deleted
func (r *TaskRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&domain.Task{}).
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
