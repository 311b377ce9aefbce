package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/mapper"
	"github.com/smartdom/crm-api/internal/realtime"
	"github.com/smartdom/crm-api/internal/repository"
	"github.com/smartdom/crm-api/internal/workflow"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var timeNow = time.Now

// WorkflowService moves objects through their stages. Every transition is planned by the
// stage machine and applied by the stage repository in one transaction; notifications and
// change events go out only after commit.
type WorkflowService struct {
	objectRepo *repository.ObjectRepository
	stageRepo  *repository.StageRepository
	taskRepo   *repository.TaskRepository
	notifier   Notifier
	publisher  realtime.Publisher
	logger     *zap.Logger
}

func NewWorkflowService(
	objectRepo *repository.ObjectRepository,
	stageRepo *repository.StageRepository,
	taskRepo *repository.TaskRepository,
	notifier Notifier,
	publisher realtime.Publisher,
	logger *zap.Logger,
) *WorkflowService {
	return &WorkflowService{
		objectRepo: objectRepo,
		stageRepo:  stageRepo,
		taskRepo:   taskRepo,
		notifier:   notifier,
		publisher:  publisher,
		logger:     logger,
	}
}

// Advance moves the object to the next stage. At the last stage it finalizes instead.
// Unfinished tasks of the current stage block the move unless Force is set.
func (s *WorkflowService) Advance(ctx context.Context, id uuid.UUID, req *domain.AdvanceStageRequest) (*domain.ObjectDTO, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.stageRepo.TransitionStage(ctx, id, req.NextStage, req.ResponsibleID, req.Deadline, actor, s.gate(ctx, req.Force))
	return s.afterTransition(ctx, res, actor, err)
}

// Finalize completes the last stage and the object
func (s *WorkflowService) Finalize(ctx context.Context, id uuid.UUID, force bool) (*domain.ObjectDTO, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.stageRepo.FinalizeStage(ctx, id, actor, s.gate(ctx, force))
	return s.afterTransition(ctx, res, actor, err)
}

// Rollback returns the object to an earlier stage it has already been through
func (s *WorkflowService) Rollback(ctx context.Context, id uuid.UUID, req *domain.RollbackStageRequest) (*domain.ObjectDTO, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.stageRepo.RollbackStage(ctx, id, req.TargetStage, req.Reason, req.ResponsibleID, actor)
	return s.afterTransition(ctx, res, actor, err)
}

// Restore jumps the object forward to the stage it was rolled back from
func (s *WorkflowService) Restore(ctx context.Context, id uuid.UUID, req *domain.RestoreStageRequest) (*domain.ObjectDTO, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.stageRepo.RestoreStage(ctx, id, req.ResponsibleID, actor)
	return s.afterTransition(ctx, res, actor, err)
}

// SetStatus changes the work status of an object that is not completed
func (s *WorkflowService) SetStatus(ctx context.Context, id uuid.UUID, req *domain.UpdateObjectStatusRequest) (*domain.ObjectDTO, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	if !req.Status.IsValid() || req.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: status %q cannot be set directly", ErrInvalidInput, req.Status)
	}

	obj, err := s.objectRepo.SetStatus(ctx, id, req.Status, actor)
	if err != nil {
		return nil, mapObjectError(err)
	}
	s.publish(ctx, id)

	active, err := s.stageRepo.GetActive(ctx, id)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get active stage: %w", err)
	}
	dto := mapper.ToObjectDTO(obj, active)
	return &dto, nil
}

// ExtendDeadline pushes the deadline of the active stage row by days
func (s *WorkflowService) ExtendDeadline(ctx context.Context, objectID, stageID uuid.UUID, days int) (*domain.ObjectStageDTO, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	if days < 1 || days > 365 {
		return nil, fmt.Errorf("%w: days must be between 1 and 365", ErrInvalidInput)
	}

	stage, err := s.stageRepo.ExtendDeadline(ctx, objectID, stageID, days, actor)
	if err != nil {
		return nil, mapObjectError(err)
	}
	s.publish(ctx, objectID)
	if s.notifier != nil && stage.ResponsibleID != nil && *stage.ResponsibleID != actor {
		s.notifier.Notify(ctx, *stage.ResponsibleID,
			fmt.Sprintf("Deadline of stage %s extended by %d day(s)", stage.StageName, days), objectLink(objectID))
	}

	dto := mapper.ToObjectStageDTO(stage, timeNow())
	return &dto, nil
}

// NotifyOverdueStages notifies the responsible of every active stage past its deadline once
// and returns how many stages were reported
func (s *WorkflowService) NotifyOverdueStages(ctx context.Context) (int, error) {
	now := timeNow().UTC()
	stages, err := s.stageRepo.ListOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue stages: %w", err)
	}

	reported := 0
	for i := range stages {
		stage := &stages[i]
		obj, err := s.objectRepo.GetByID(ctx, stage.ObjectID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Warn("failed to load object of overdue stage",
					zap.String("stageID", stage.ID.String()), zap.Error(err))
				continue
			}
			obj = nil
		}

		if obj != nil && !obj.CurrentStatus.IsTerminal() {
			recipient := stage.ResponsibleID
			if recipient == nil {
				recipient = obj.ResponsibleID
			}
			if recipient != nil && s.notifier != nil {
				s.notifier.Notify(ctx, *recipient,
					fmt.Sprintf("Stage %s of object %q is overdue", stage.StageName, obj.Name), objectLink(obj.ID))
			}
			reported++
		}

		if err := s.stageRepo.MarkOverdueNotified(ctx, stage.ID, now); err != nil {
			s.logger.Warn("failed to mark overdue stage as notified",
				zap.String("stageID", stage.ID.String()), zap.Error(err))
		}
	}
	return reported, nil
}

// ForcedGateReason is the history reason of a transition forced past pending tasks
func ForcedGateReason(pending int) string {
	return fmt.Sprintf("forced past %d pending tasks", pending)
}

// gate consults the task gate inside the transition transaction
func (s *WorkflowService) gate(ctx context.Context, force bool) repository.Guard {
	return func(tx *gorm.DB, obj *domain.Object, plan *workflow.Plan) error {
		if !plan.NeedsGate() {
			return nil
		}
		stage := obj.CurrentStage
		tasks, err := s.taskRepo.WithTx(tx).List(ctx, repository.TaskFilters{ObjectID: &obj.ID, StageID: &stage})
		if err != nil {
			return fmt.Errorf("failed to load stage tasks: %w", err)
		}
		if workflow.CanAdvance(obj, tasks, false) {
			return nil
		}
		pending := workflow.PendingTasks(stage, tasks)
		if force {
			// the reason lands in the history entry written by the same transaction
			plan.Reason = ForcedGateReason(len(pending))
			s.logger.Info("task gate overridden",
				zap.String("objectID", obj.ID.String()),
				zap.String("stage", string(stage)),
				zap.Int("pending", len(pending)),
			)
			return nil
		}
		return &GateBlockedError{Stage: stage, Pending: pending}
	}
}

func (s *WorkflowService) afterTransition(ctx context.Context, res *repository.TransitionResult, actor uuid.UUID, err error) (*domain.ObjectDTO, error) {
	if err != nil {
		return nil, mapObjectError(err)
	}
	obj := &res.Object
	plan := res.Plan

	s.logger.Info("object stage transition",
		zap.String("objectID", obj.ID.String()),
		zap.String("kind", string(plan.Kind)),
		zap.String("from", string(plan.From)),
		zap.String("to", string(plan.To)),
		zap.String("actorID", actor.String()),
	)
	s.publish(ctx, obj.ID)
	notifyObjectMembers(ctx, s.notifier, obj, res.Stage, actor, transitionMessage(obj, plan))

	dto := mapper.ToObjectDTO(obj, res.Stage)
	return &dto, nil
}

func (s *WorkflowService) publish(ctx context.Context, id uuid.UUID) {
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, realtime.NewEvent(realtime.EntityObject, id, realtime.ActionUpdated))
	}
}

func transitionMessage(obj *domain.Object, plan *workflow.Plan) string {
	switch plan.Kind {
	case workflow.KindFinalize:
		return fmt.Sprintf("Object %q is completed", obj.Name)
	case workflow.KindRollback:
		return fmt.Sprintf("Object %q was rolled back from %s to %s: %s", obj.Name, plan.From, plan.To, plan.Reason)
	case workflow.KindRestore:
		return fmt.Sprintf("Object %q was restored to %s", obj.Name, plan.To)
	default:
		return fmt.Sprintf("Object %q moved from %s to %s", obj.Name, plan.From, plan.To)
	}
}

func mapObjectError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrObjectNotFound
	}
	var blocked *GateBlockedError
	switch {
	case errors.As(err, &blocked),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrObjectCompleted),
		errors.Is(err, workflow.ErrReasonRequired),
		errors.Is(err, workflow.ErrStageNotReached),
		errors.Is(err, workflow.ErrNothingToRestore):
		return err
	}
	return fmt.Errorf("failed to apply stage transition: %w", err)
}
