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

// ErrClientNotFound is returned when a client does not exist or was deleted
var ErrClientNotFound = errors.New("client not found")

type ClientService struct {
	clientRepo *repository.ClientRepository
	publisher  realtime.Publisher
	logger     *zap.Logger
}

func NewClientService(clientRepo *repository.ClientRepository, publisher realtime.Publisher, logger *zap.Logger) *ClientService {
	return &ClientService{
		clientRepo: clientRepo,
		publisher:  publisher,
		logger:     logger,
	}
}

func (s *ClientService) Create(ctx context.Context, req *domain.CreateClientRequest) (*domain.ClientDTO, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}

	client := &domain.Client{
		Name:      strings.TrimSpace(req.Name),
		Phone:     strings.TrimSpace(req.Phone),
		Email:     strings.TrimSpace(req.Email),
		Address:   req.Address,
		Notes:     req.Notes,
		CreatedBy: actor,
	}
	if client.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := s.clientRepo.Create(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	s.publish(ctx, client.ID, realtime.ActionCreated)
	dto := mapper.ToClientDTO(client)
	return &dto, nil
}

func (s *ClientService) GetByID(ctx context.Context, id uuid.UUID) (*domain.ClientDTO, error) {
	client, err := s.clientRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	dto := mapper.ToClientDTO(client)
	return &dto, nil
}

func (s *ClientService) List(ctx context.Context, page, pageSize int, search string) (*domain.PaginatedResponse, error) {
	page, pageSize = repository.NormalizePage(page, pageSize)
	clients, total, err := s.clientRepo.List(ctx, page, pageSize, search)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	dtos := make([]domain.ClientDTO, len(clients))
	for i := range clients {
		dtos[i] = mapper.ToClientDTO(&clients[i])
	}
	return paginated(dtos, total, page, pageSize), nil
}

func (s *ClientService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateClientRequest) (*domain.ClientDTO, error) {
	if _, err := s.clientRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	client, err := s.clientRepo.Update(ctx, id, map[string]interface{}{
		"name":    name,
		"phone":   strings.TrimSpace(req.Phone),
		"email":   strings.TrimSpace(req.Email),
		"address": req.Address,
		"notes":   req.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}

	s.publish(ctx, id, realtime.ActionUpdated)
	dto := mapper.ToClientDTO(client)
	return &dto, nil
}

func (s *ClientService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.clientRepo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClientNotFound
		}
		return fmt.Errorf("failed to delete client: %w", err)
	}
	s.logger.Info("client deleted", zap.String("clientID", id.String()))
	s.publish(ctx, id, realtime.ActionDeleted)
	return nil
}

func (s *ClientService) publish(ctx context.Context, id uuid.UUID, action string) {
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, realtime.NewEvent(realtime.EntityClient, id, action))
	}
}
