package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/workflow"
	"gorm.io/gorm"
)

// Guard runs inside a stage transaction after the plan is built and before anything
// is written. Returning an error aborts the transition.
type Guard func(tx *gorm.DB, obj *domain.Object, plan *workflow.Plan) error

// TransitionResult is the outcome of an applied stage transition
type TransitionResult struct {
	Object domain.Object
	Plan   *workflow.Plan
	// Stage is the row that became active; nil after finalize
	Stage *domain.ObjectStage
}

type StageRepository struct {
	*Collection[domain.ObjectStage]
}

func NewStageRepository(db *gorm.DB) *StageRepository {
	return &StageRepository{Collection: NewCollection[domain.ObjectStage](db)}
}

// ListByObject returns every stage row of an object in the order they were entered
func (r *StageRepository) ListByObject(ctx context.Context, objectID uuid.UUID) ([]domain.ObjectStage, error) {
	return listStages(r.db.WithContext(ctx), objectID)
}

func listStages(db *gorm.DB, objectID uuid.UUID) ([]domain.ObjectStage, error) {
	var stages []domain.ObjectStage
	err := db.Where("object_id = ?", objectID).
		Order("created_at ASC").
		Find(&stages).Error
	return stages, err
}

// GetActive returns the active stage row of an object
func (r *StageRepository) GetActive(ctx context.Context, objectID uuid.UUID) (*domain.ObjectStage, error) {
	var stage domain.ObjectStage
	err := r.db.WithContext(ctx).
		Where("object_id = ? AND status = ?", objectID, domain.StageStatusActive).
		First(&stage).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

// TransitionStage advances the object to next atomically. An empty next means the
// following stage; at the last stage it finalizes.
func (r *StageRepository) TransitionStage(ctx context.Context, objectID uuid.UUID, next domain.StageID, responsibleID *uuid.UUID, deadline *time.Time, actorID uuid.UUID, guard Guard) (*TransitionResult, error) {
	return r.Apply(ctx, objectID, workflow.Request{
		Kind:          workflow.KindAdvance,
		Target:        next,
		ResponsibleID: responsibleID,
		Deadline:      deadline,
	}, actorID, guard)
}

// FinalizeStage completes the last stage and the object atomically
func (r *StageRepository) FinalizeStage(ctx context.Context, objectID, actorID uuid.UUID, guard Guard) (*TransitionResult, error) {
	return r.Apply(ctx, objectID, workflow.Request{Kind: workflow.KindFinalize}, actorID, guard)
}

// RollbackStage returns the object to an earlier stage atomically
func (r *StageRepository) RollbackStage(ctx context.Context, objectID uuid.UUID, target domain.StageID, reason string, responsibleID *uuid.UUID, actorID uuid.UUID) (*TransitionResult, error) {
	return r.Apply(ctx, objectID, workflow.Request{
		Kind:          workflow.KindRollback,
		Target:        target,
		Reason:        reason,
		ResponsibleID: responsibleID,
	}, actorID, nil)
}

// RestoreStage jumps the object back to the stage it was rolled back from atomically
func (r *StageRepository) RestoreStage(ctx context.Context, objectID uuid.UUID, responsibleID *uuid.UUID, actorID uuid.UUID) (*TransitionResult, error) {
	return r.Apply(ctx, objectID, workflow.Request{
		Kind:          workflow.KindRestore,
		ResponsibleID: responsibleID,
	}, actorID, nil)
}

// Apply locks the object, plans req against its current rows and writes the plan in
// one transaction
func (r *StageRepository) Apply(ctx context.Context, objectID uuid.UUID, req workflow.Request, actorID uuid.UUID, guard Guard) (*TransitionResult, error) {
	var result TransitionResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var obj domain.Object
		if err := lockObject(tx, objectID, &obj); err != nil {
			return err
		}
		stages, err := listStages(tx, objectID)
		if err != nil {
			return fmt.Errorf("failed to load stages: %w", err)
		}

		plan, err := workflow.NewPlan(workflow.StateOf(&obj, stages), req)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(tx, &obj, plan); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if err := closeActive(tx, objectID, plan.CloseActiveAs, now); err != nil {
			return err
		}

		responsible := plan.ResponsibleID
		if responsible == nil {
			responsible = obj.ResponsibleID
		}
		if plan.OpenStage {
			stage, err := openStage(tx, objectID, plan, responsible, now)
			if err != nil {
				return err
			}
			result.Stage = stage
		}

		patch := map[string]interface{}{
			"current_stage": plan.To,
			"updated_by":    actorID,
			"updated_at":    now,
		}
		if plan.ObjectStatus != nil {
			patch["current_status"] = *plan.ObjectStatus
		}
		if plan.SetRolledBackFrom {
			if plan.RolledBackFrom != nil {
				patch["rolled_back_from"] = *plan.RolledBackFrom
			} else {
				patch["rolled_back_from"] = nil
			}
		}
		if err := tx.Model(&domain.Object{}).Where("id = ?", objectID).Updates(patch).Error; err != nil {
			return fmt.Errorf("failed to update object: %w", err)
		}

		from, to := plan.From, plan.To
		entry := domain.ObjectHistory{
			ObjectID:  objectID,
			Action:    plan.HistoryAction,
			FromStage: &from,
			ToStage:   &to,
			Reason:    plan.Reason,
			ActorID:   actorID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to record object history: %w", err)
		}

		if err := tx.Preload("Client").First(&obj, "id = ?", objectID).Error; err != nil {
			return fmt.Errorf("failed to reload object: %w", err)
		}
		result.Object = obj
		result.Plan = plan
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func closeActive(tx *gorm.DB, objectID uuid.UUID, status domain.StageStatus, now time.Time) error {
	patch := map[string]interface{}{"status": status, "updated_at": now}
	if status == domain.StageStatusCompleted {
		patch["completed_at"] = now
	}
	err := tx.Model(&domain.ObjectStage{}).
		Where("object_id = ? AND status = ?", objectID, domain.StageStatusActive).
		Updates(patch).Error
	if err != nil {
		return fmt.Errorf("failed to close active stage: %w", err)
	}
	return nil
}

func openStage(tx *gorm.DB, objectID uuid.UUID, plan *workflow.Plan, responsible *uuid.UUID, now time.Time) (*domain.ObjectStage, error) {
	if plan.ReuseRolledBack {
		var stage domain.ObjectStage
		err := tx.Where("object_id = ? AND stage_name = ? AND status = ?", objectID, plan.To, domain.StageStatusRolledBack).
			Order("created_at DESC").
			First(&stage).Error
		switch {
		case err == nil:
			patch := map[string]interface{}{
				"status":       domain.StageStatusActive,
				"started_at":   now,
				"completed_at": nil,
				"updated_at":   now,
			}
			if responsible != nil {
				patch["responsible_id"] = *responsible
			}
			if err := tx.Model(&stage).Updates(patch).Error; err != nil {
				return nil, fmt.Errorf("failed to reactivate stage: %w", err)
			}
			if err := tx.First(&stage, "id = ?", stage.ID).Error; err != nil {
				return nil, fmt.Errorf("failed to reload stage: %w", err)
			}
			return &stage, nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, fmt.Errorf("failed to find rolled back stage: %w", err)
		}
	}

	stage := domain.ObjectStage{
		ObjectID:      objectID,
		StageName:     plan.To,
		Status:        domain.StageStatusActive,
		StartedAt:     &now,
		Deadline:      plan.Deadline,
		ResponsibleID: responsible,
	}
	if err := tx.Create(&stage).Error; err != nil {
		return nil, fmt.Errorf("failed to create stage: %w", err)
	}
	return &stage, nil
}

// ExtendDeadline moves the deadline of an active stage row by days and records it
func (r *StageRepository) ExtendDeadline(ctx context.Context, objectID, stageID uuid.UUID, days int, actorID uuid.UUID) (*domain.ObjectStage, error) {
	var stage domain.ObjectStage
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var obj domain.Object
		if err := lockObject(tx, objectID, &obj); err != nil {
			return err
		}
		if obj.CurrentStatus.IsTerminal() {
			return workflow.ErrObjectCompleted
		}
		if err := tx.Where("id = ? AND object_id = ?", stageID, objectID).First(&stage).Error; err != nil {
			return err
		}
		if stage.Status != domain.StageStatusActive {
			return fmt.Errorf("%w: only the active stage deadline can be extended", workflow.ErrInvalidTransition)
		}

		base := time.Now().UTC()
		if stage.Deadline != nil {
			base = *stage.Deadline
		}
		deadline := base.AddDate(0, 0, days)
		if err := tx.Model(&stage).Updates(map[string]interface{}{
			"deadline":            deadline,
			"extension_days":      stage.ExtensionDays + days,
			"overdue_notified_at": nil,
		}).Error; err != nil {
			return fmt.Errorf("failed to extend deadline: %w", err)
		}

		name := stage.StageName
		entry := domain.ObjectHistory{
			ObjectID:  objectID,
			Action:    domain.HistoryActionDeadlineExtended,
			FromStage: &name,
			ToStage:   &name,
			Reason:    fmt.Sprintf("+%d days", days),
			ActorID:   actorID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to record object history: %w", err)
		}
		return tx.First(&stage, "id = ?", stageID).Error
	})
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

// ListOverdue returns active stage rows past their deadline that were not yet reported
func (r *StageRepository) ListOverdue(ctx context.Context, now time.Time) ([]domain.ObjectStage, error) {
	var stages []domain.ObjectStage
	err := r.db.WithContext(ctx).
		Where("status = ? AND deadline IS NOT NULL AND deadline < ? AND overdue_notified_at IS NULL",
			domain.StageStatusActive, now).
		Order("deadline ASC").
		Find(&stages).Error
	return stages, err
}

// MarkOverdueNotified records that the overdue notice for a stage row was sent
func (r *StageRepository) MarkOverdueNotified(ctx context.Context, stageID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.ObjectStage{}).
		Where("id = ?", stageID).
		Update("overdue_notified_at", at).Error
}
