package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/workflow"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ObjectFilters narrows object listings; nil fields are ignored
type ObjectFilters struct {
	Stage         *domain.StageID
	Status        *domain.ObjectStatus
	ResponsibleID *uuid.UUID
	ClientID      *uuid.UUID
	Search        string
	Sort          SortConfig
}

type ObjectRepository struct {
	*Collection[domain.Object]
}

func NewObjectRepository(db *gorm.DB) *ObjectRepository {
	return &ObjectRepository{Collection: NewCollection[domain.Object](db)}
}

// CreateWithInitialStage inserts the object together with its active negotiation
// stage row and a history entry, all or nothing
func (r *ObjectRepository) CreateWithInitialStage(ctx context.Context, obj *domain.Object, deadline *time.Time) (*domain.ObjectStage, error) {
	var stage domain.ObjectStage
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		obj.CurrentStage = domain.FirstStage
		obj.CurrentStatus = domain.ObjectStatusInWork
		obj.RolledBackFrom = nil

		if err := tx.Omit(clause.Associations).Create(obj).Error; err != nil {
			return fmt.Errorf("failed to create object: %w", err)
		}

		stage = domain.ObjectStage{
			ObjectID:      obj.ID,
			StageName:     domain.FirstStage,
			Status:        domain.StageStatusActive,
			StartedAt:     &now,
			Deadline:      deadline,
			ResponsibleID: obj.ResponsibleID,
		}
		if err := tx.Create(&stage).Error; err != nil {
			return fmt.Errorf("failed to create initial stage: %w", err)
		}

		to := domain.FirstStage
		entry := domain.ObjectHistory{
			ObjectID: obj.ID,
			Action:   domain.HistoryActionCreated,
			ToStage:  &to,
			ActorID:  obj.CreatedBy,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to record object history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

// GetByID returns an object that is not soft deleted, with its client preloaded
func (r *ObjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Object, error) {
	var obj domain.Object
	err := r.db.WithContext(ctx).
		Preload("Client").
		Where("id = ? AND is_deleted = ?", id, false).
		First(&obj).Error
	if err != nil {
		return nil, err
	}
	return &obj, nil
}

// List returns a page of objects, most recently updated first unless filters.Sort says otherwise
func (r *ObjectRepository) List(ctx context.Context, filters ObjectFilters, page, pageSize int) ([]domain.Object, int64, error) {
	var objects []domain.Object
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Object{}).Where("is_deleted = ?", false)
	if filters.Stage != nil {
		query = query.Where("current_stage = ?", *filters.Stage)
	}
	if filters.Status != nil {
		query = query.Where("current_status = ?", *filters.Status)
	}
	if filters.ResponsibleID != nil {
		query = query.Where("responsible_id = ?", *filters.ResponsibleID)
	}
	if filters.ClientID != nil {
		query = query.Where("client_id = ?", *filters.ClientID)
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(address) LIKE ?", pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := paginate(query, page, pageSize).
		Preload("Client").
		Order(BuildOrderClause(filters.Sort, ObjectSortFields, "updated_at")).
		Find(&objects).Error
	return objects, total, err
}

// SoftDelete flags the object as deleted
func (r *ObjectRepository) SoftDelete(ctx context.Context, id, actorID uuid.UUID) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&domain.Object{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": now,
			"updated_by": actorID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetStatus changes the work status of a non-completed object and records it in history
func (r *ObjectRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.ObjectStatus, actorID uuid.UUID) (*domain.Object, error) {
	var obj domain.Object
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockObject(tx, id, &obj); err != nil {
			return err
		}
		if obj.CurrentStatus.IsTerminal() {
			return workflow.ErrObjectCompleted
		}
		if obj.CurrentStatus == status {
			return nil
		}

		if err := tx.Model(&domain.Object{}).Where("id = ?", id).Updates(map[string]interface{}{
			"current_status": status,
			"updated_by":     actorID,
		}).Error; err != nil {
			return fmt.Errorf("failed to update object status: %w", err)
		}

		stage := obj.CurrentStage
		entry := domain.ObjectHistory{
			ObjectID:  id,
			Action:    domain.HistoryActionStatusChanged,
			FromStage: &stage,
			ToStage:   &stage,
			Reason:    fmt.Sprintf("%s -> %s", obj.CurrentStatus, status),
			ActorID:   actorID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to record object history: %w", err)
		}
		obj.CurrentStatus = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &obj, nil
}

// lockObject loads a live object for update inside tx
func lockObject(tx *gorm.DB, id uuid.UUID, obj *domain.Object) error {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND is_deleted = ?", id, false).
		First(obj).Error
}
