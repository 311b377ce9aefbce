package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/mapper"
	"github.com/smartdom/crm-api/internal/realtime"
	"github.com/smartdom/crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrObjectNotFound is returned when an object does not exist or was deleted
var ErrObjectNotFound = errors.New("object not found")

// ObjectService manages installation objects and their read models
type ObjectService struct {
	objectRepo  *repository.ObjectRepository
	stageRepo   *repository.StageRepository
	historyRepo *repository.HistoryRepository
	clientRepo  *repository.ClientRepository
	notifier    Notifier
	publisher   realtime.Publisher
	logger      *zap.Logger
}

func NewObjectService(
	objectRepo *repository.ObjectRepository,
	stageRepo *repository.StageRepository,
	historyRepo *repository.HistoryRepository,
	clientRepo *repository.ClientRepository,
	notifier Notifier,
	publisher realtime.Publisher,
	logger *zap.Logger,
) *ObjectService {
	return &ObjectService{
		objectRepo:  objectRepo,
		stageRepo:   stageRepo,
		historyRepo: historyRepo,
		clientRepo:  clientRepo,
		notifier:    notifier,
		publisher:   publisher,
		logger:      logger,
	}
}

// Create inserts the object together with its first active stage
func (s *ObjectService) Create(ctx context.Context, req *domain.CreateObjectRequest) (*domain.ObjectDTO, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := s.ensureClient(ctx, req.ClientID); err != nil {
		return nil, err
	}

	obj := &domain.Object{
		Name:          name,
		Address:       req.Address,
		ClientID:      req.ClientID,
		ResponsibleID: req.ResponsibleID,
		Participants:  participantArray(req.Participants),
		CreatedBy:     actor,
		UpdatedBy:     actor,
	}
	stage, err := s.objectRepo.CreateWithInitialStage(ctx, obj, req.Deadline)
	if err != nil {
		return nil, fmt.Errorf("failed to create object: %w", err)
	}

	s.logger.Info("object created",
		zap.String("objectID", obj.ID.String()),
		zap.String("actorID", actor.String()),
	)
	s.publish(ctx, obj.ID, realtime.ActionCreated)
	notifyObjectMembers(ctx, s.notifier, obj, nil, actor,
		fmt.Sprintf("You were assigned to object %q", obj.Name))

	dto := mapper.ToObjectDTO(obj, stage)
	return &dto, nil
}

// GetByID returns the object with its active stage
func (s *ObjectService) GetByID(ctx context.Context, id uuid.UUID) (*domain.ObjectDTO, error) {
	obj, err := s.getObject(ctx, id)
	if err != nil {
		return nil, err
	}
	active, err := s.stageRepo.GetActive(ctx, id)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get active stage: %w", err)
	}
	dto := mapper.ToObjectDTO(obj, active)
	return &dto, nil
}

func (s *ObjectService) List(ctx context.Context, filters repository.ObjectFilters, page, pageSize int) (*domain.PaginatedResponse, error) {
	page, pageSize = repository.NormalizePage(page, pageSize)
	objects, total, err := s.objectRepo.List(ctx, filters, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	dtos := make([]domain.ObjectDTO, len(objects))
	for i := range objects {
		dtos[i] = mapper.ToObjectDTO(&objects[i], nil)
	}
	return paginated(dtos, total, page, pageSize), nil
}

// Update changes the descriptive fields of an object. Stage and status are changed only
// through the workflow.
func (s *ObjectService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateObjectRequest) (*domain.ObjectDTO, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	before, err := s.getObject(ctx, id)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := s.ensureClient(ctx, req.ClientID); err != nil {
		return nil, err
	}

	if _, err := s.objectRepo.Update(ctx, id, map[string]interface{}{
		"name":           name,
		"address":        req.Address,
		"client_id":      req.ClientID,
		"responsible_id": req.ResponsibleID,
		"participants":   participantArray(req.Participants),
		"updated_by":     actor,
	}); err != nil {
		return nil, fmt.Errorf("failed to update object: %w", err)
	}

	s.publish(ctx, id, realtime.ActionUpdated)
	if req.ResponsibleID != nil && (before.ResponsibleID == nil || *before.ResponsibleID != *req.ResponsibleID) && *req.ResponsibleID != actor {
		s.notifier.Notify(ctx, *req.ResponsibleID,
			fmt.Sprintf("You are now responsible for object %q", name), objectLink(id))
	}
	return s.GetByID(ctx, id)
}

// Delete soft deletes the object
func (s *ObjectService) Delete(ctx context.Context, id uuid.UUID) error {
	actor, err := actorID(ctx)
	if err != nil {
		return err
	}
	if err := s.objectRepo.SoftDelete(ctx, id, actor); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	s.logger.Info("object deleted", zap.String("objectID", id.String()), zap.String("actorID", actor.String()))
	s.publish(ctx, id, realtime.ActionDeleted)
	return nil
}

// ListStages returns the stage timeline of an object in the order stages were entered
func (s *ObjectService) ListStages(ctx context.Context, id uuid.UUID) ([]domain.ObjectStageDTO, error) {
	if _, err := s.getObject(ctx, id); err != nil {
		return nil, err
	}
	stages, err := s.stageRepo.ListByObject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	now := timeNow()
	dtos := make([]domain.ObjectStageDTO, len(stages))
	for i := range stages {
		dtos[i] = mapper.ToObjectStageDTO(&stages[i], now)
	}
	return dtos, nil
}

// History returns the history log of an object, newest first
func (s *ObjectService) History(ctx context.Context, id uuid.UUID, limit int) ([]domain.ObjectHistoryDTO, error) {
	if _, err := s.getObject(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.historyRepo.ListByObject(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	dtos := make([]domain.ObjectHistoryDTO, len(entries))
	for i := range entries {
		dtos[i] = mapper.ToObjectHistoryDTO(&entries[i])
	}
	return dtos, nil
}

func (s *ObjectService) getObject(ctx context.Context, id uuid.UUID) (*domain.Object, error) {
	obj, err := s.objectRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return obj, nil
}

func (s *ObjectService) ensureClient(ctx context.Context, clientID *uuid.UUID) error {
	if clientID == nil {
		return nil
	}
	if _, err := s.clientRepo.GetByID(ctx, *clientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClientNotFound
		}
		return fmt.Errorf("failed to get client: %w", err)
	}
	return nil
}

func (s *ObjectService) publish(ctx context.Context, id uuid.UUID, action string) {
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, realtime.NewEvent(realtime.EntityObject, id, action))
	}
}

func participantArray(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id.String())
	}
	return out
}

func objectLink(id uuid.UUID) string {
	return "/objects/" + id.String()
}

// notifyObjectMembers notifies the object responsible, the stage responsible and every
// participant, skipping the actor
func notifyObjectMembers(ctx context.Context, notifier Notifier, obj *domain.Object, stage *domain.ObjectStage, actor uuid.UUID, message string) {
	if notifier == nil {
		return
	}
	recipients := obj.ParticipantIDs()
	if obj.ResponsibleID != nil {
		recipients = append(recipients, *obj.ResponsibleID)
	}
	if stage != nil && stage.ResponsibleID != nil {
		recipients = append(recipients, *stage.ResponsibleID)
	}

	seen := make(map[uuid.UUID]struct{}, len(recipients))
	for _, id := range recipients {
		if id == uuid.Nil || id == actor {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		notifier.Notify(ctx, id, message, objectLink(obj.ID))
	}
}
