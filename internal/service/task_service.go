package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/mapper"
	"github.com/smartdom/crm-api/internal/realtime"
	"github.com/smartdom/crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrTaskNotFound is returned when a task does not exist or was deleted
var ErrTaskNotFound = errors.New("task not found")

// TaskService manages the tasks of an object. A task belongs to the stage that was active
// when it was created.
type TaskService struct {
	taskRepo   *repository.TaskRepository
	objectRepo *repository.ObjectRepository
	notifier   Notifier
	publisher  realtime.Publisher
	logger     *zap.Logger
}

func NewTaskService(
	taskRepo *repository.TaskRepository,
	objectRepo *repository.ObjectRepository,
	notifier Notifier,
	publisher realtime.Publisher,
	logger *zap.Logger,
) *TaskService {
	return &TaskService{
		taskRepo:   taskRepo,
		objectRepo: objectRepo,
		notifier:   notifier,
		publisher:  publisher,
		logger:     logger,
	}
}

// Create adds a task to the current stage of the object
func (s *TaskService) Create(ctx context.Context, objectID uuid.UUID, req *domain.CreateTaskRequest) (*domain.TaskDTO, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	obj, err := s.objectRepo.GetByID(ctx, objectID)
	if err != nil {
		return nil, mapObjectError(err)
	}
	if obj.CurrentStatus.IsTerminal() {
		return nil, ErrObjectCompleted
	}

	task := &domain.Task{
		ObjectID:    objectID,
		StageID:     obj.CurrentStage,
		Title:       title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		Status:      domain.TaskStatusPending,
		Deadline:    req.Deadline,
		CreatedBy:   actor,
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Info("task created",
		zap.String("taskID", task.ID.String()),
		zap.String("objectID", objectID.String()),
		zap.String("stage", string(task.StageID)),
	)
	s.publish(ctx, task.ID, realtime.ActionCreated)
	if task.AssignedTo != nil && *task.AssignedTo != actor && s.notifier != nil {
		s.notifier.Notify(ctx, *task.AssignedTo,
			fmt.Sprintf("New task %q on object %q", task.Title, obj.Name), objectLink(objectID))
	}

	dto := mapper.ToTaskDTO(task)
	return &dto, nil
}

func (s *TaskService) GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskDTO, error) {
	task, err := s.getTask(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToTaskDTO(task)
	return &dto, nil
}

// ListByObject returns every task of an object; stage narrows it to one stage
func (s *TaskService) ListByObject(ctx context.Context, objectID uuid.UUID, stage *domain.StageID) ([]domain.TaskDTO, error) {
	if _, err := s.objectRepo.GetByID(ctx, objectID); err != nil {
		return nil, mapObjectError(err)
	}
	tasks, err := s.taskRepo.List(ctx, repository.TaskFilters{
		ObjectID:         &objectID,
		StageID:          stage,
		IncludeCompleted: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return mapper.ToTaskDTOs(tasks), nil
}

// ListMine returns the open tasks assigned to the current actor
func (s *TaskService) ListMine(ctx context.Context, includeCompleted bool) ([]domain.TaskDTO, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.taskRepo.List(ctx, repository.TaskFilters{
		AssignedTo:       &actor,
		IncludeCompleted: includeCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return mapper.ToTaskDTOs(tasks), nil
}

// Update changes the descriptive fields of a task. Its stage never changes.
func (s *TaskService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateTaskRequest) (*domain.TaskDTO, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	before, err := s.getTask(ctx, id)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	task, err := s.taskRepo.Update(ctx, id, map[string]interface{}{
		"title":       title,
		"description": req.Description,
		"assigned_to": req.AssignedTo,
		"deadline":    req.Deadline,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.publish(ctx, id, realtime.ActionUpdated)
	reassigned := req.AssignedTo != nil && (before.AssignedTo == nil || *before.AssignedTo != *req.AssignedTo)
	if reassigned && *req.AssignedTo != actor && s.notifier != nil {
		s.notifier.Notify(ctx, *req.AssignedTo,
			fmt.Sprintf("Task %q was assigned to you", task.Title), objectLink(task.ObjectID))
	}

	dto := mapper.ToTaskDTO(task)
	return &dto, nil
}

// UpdateStatus moves a task between pending, in progress and completed
func (s *TaskService) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) (*domain.TaskDTO, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown task status %q", ErrInvalidInput, status)
	}
	if status == domain.TaskStatusCompleted {
		return s.Complete(ctx, id, "")
	}
	if _, err := actorID(ctx); err != nil {
		return nil, err
	}
	if _, err := s.getTask(ctx, id); err != nil {
		return nil, err
	}

	task, err := s.taskRepo.Update(ctx, id, map[string]interface{}{
		"status":             status,
		"completed_at":       nil,
		"completed_by":       nil,
		"completion_comment": "",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}
	s.publish(ctx, id, realtime.ActionUpdated)
	dto := mapper.ToTaskDTO(task)
	return &dto, nil
}

// Complete marks a task done and tells the task author and the object responsible
func (s *TaskService) Complete(ctx context.Context, id uuid.UUID, comment string) (*domain.TaskDTO, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	before, err := s.getTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if before.Status == domain.TaskStatusCompleted {
		dto := mapper.ToTaskDTO(before)
		return &dto, nil
	}

	now := timeNow().UTC()
	task, err := s.taskRepo.Update(ctx, id, map[string]interface{}{
		"status":             domain.TaskStatusCompleted,
		"completed_at":       now,
		"completed_by":       actor,
		"completion_comment": strings.TrimSpace(comment),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}

	s.logger.Info("task completed", zap.String("taskID", id.String()), zap.String("actorID", actor.String()))
	s.publish(ctx, id, realtime.ActionUpdated)
	s.notifyCompleted(ctx, task, actor)

	dto := mapper.ToTaskDTO(task)
	return &dto, nil
}

// Delete soft deletes a task
func (s *TaskService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := actorID(ctx); err != nil {
		return err
	}
	if err := s.taskRepo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}
	s.publish(ctx, id, realtime.ActionDeleted)
	return nil
}

func (s *TaskService) notifyCompleted(ctx context.Context, task *domain.Task, actor uuid.UUID) {
	if s.notifier == nil {
		return
	}
	recipients := []uuid.UUID{task.CreatedBy}
	if obj, err := s.objectRepo.GetByID(ctx, task.ObjectID); err == nil && obj.ResponsibleID != nil {
		recipients = append(recipients, *obj.ResponsibleID)
	}
	seen := map[uuid.UUID]struct{}{actor: {}, uuid.Nil: {}}
	for _, id := range recipients {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		s.notifier.Notify(ctx, id, fmt.Sprintf("Task %q is completed", task.Title), objectLink(task.ObjectID))
	}
}

func (s *TaskService) getTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func (s *TaskService) publish(ctx context.Context, id uuid.UUID, action string) {
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, realtime.NewEvent(realtime.EntityTask, id, action))
	}
}
