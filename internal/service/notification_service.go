package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/mapper"
	"github.com/smartdom/crm-api/internal/realtime"
	"github.com/smartdom/crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotificationNotFound is returned when a notification is not found or belongs to someone else
var ErrNotificationNotFound = errors.New("notification not found")

// Notifier delivers a message to one employee. Delivery is best effort and never fails
// the caller.
type Notifier interface {
	Notify(ctx context.Context, profileID uuid.UUID, message, link string)
}

// ChatSender delivers a message to an external chat
type ChatSender interface {
	Send(ctx context.Context, chatID, message, link string) error
}

// NotificationService writes in-app notifications and mirrors them to Telegram
type NotificationService struct {
	notificationRepo *repository.NotificationRepository
	profileRepo      *repository.ProfileRepository
	sender           ChatSender
	publisher        realtime.Publisher
	logger           *zap.Logger
	sendTimeout      time.Duration
	wg               sync.WaitGroup
}

// NewNotificationService creates a new NotificationService. sender may be nil when no
// chat channel is configured.
func NewNotificationService(
	notificationRepo *repository.NotificationRepository,
	profileRepo *repository.ProfileRepository,
	sender ChatSender,
	publisher realtime.Publisher,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		profileRepo:      profileRepo,
		sender:           sender,
		publisher:        publisher,
		logger:           logger,
		sendTimeout:      15 * time.Second,
	}
}

// Notify stores the in-app notification and, when the profile has a chat linked, sends it
// in the background. Failures are logged and swallowed.
func (s *NotificationService) Notify(ctx context.Context, profileID uuid.UUID, message, link string) {
	if profileID == uuid.Nil {
		return
	}

	notification := &domain.Notification{
		ProfileID: profileID,
		Message:   message,
		Link:      link,
	}
	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		s.logger.Warn("failed to create notification",
			zap.String("profileID", profileID.String()),
			zap.Error(err),
		)
	} else if s.publisher != nil {
		_ = s.publisher.Publish(ctx, realtime.NewEvent(realtime.EntityNotification, notification.ID, realtime.ActionCreated))
	}

	if s.sender == nil {
		return
	}
	profile, err := s.profileRepo.GetByID(ctx, profileID)
	if err != nil {
		s.logger.Warn("failed to load profile for chat delivery",
			zap.String("profileID", profileID.String()),
			zap.Error(err),
		)
		return
	}
	if !profile.IsActive || profile.TelegramChatID == "" {
		return
	}

	chatID := profile.TelegramChatID
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
		defer cancel()
		if err := s.sender.Send(sendCtx, chatID, message, link); err != nil {
			s.logger.Warn("failed to deliver chat notification",
				zap.String("profileID", profileID.String()),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until every background delivery has finished
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

// List returns the inbox of the current actor
func (s *NotificationService) List(ctx context.Context, page, pageSize int, unreadOnly bool) (*domain.PaginatedResponse, error) {
	profileID, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	page, pageSize = repository.NormalizePage(page, pageSize)

	notifications, total, err := s.notificationRepo.ListByProfile(ctx, profileID, page, pageSize, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	dtos := make([]domain.NotificationDTO, len(notifications))
	for i := range notifications {
		dtos[i] = mapper.ToNotificationDTO(&notifications[i])
	}
	return paginated(dtos, total, page, pageSize), nil
}

// CountUnread returns the unread counter of the current actor
func (s *NotificationService) CountUnread(ctx context.Context) (int64, error) {
	profileID, err := actorID(ctx)
	if err != nil {
		return 0, err
	}
	count, err := s.notificationRepo.CountUnread(ctx, profileID)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

// MarkAsRead marks one notification of the current actor as read
func (s *NotificationService) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	profileID, err := actorID(ctx)
	if err != nil {
		return err
	}
	if err := s.notificationRepo.MarkAsRead(ctx, id, profileID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		return fmt.Errorf("failed to mark notification as read: %w", err)
	}
	return nil
}

// MarkAllAsRead marks the whole inbox of the current actor as read
func (s *NotificationService) MarkAllAsRead(ctx context.Context) (int64, error) {
	profileID, err := actorID(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.notificationRepo.MarkAllAsRead(ctx, profileID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications as read: %w", err)
	}
	return n, nil
}

func paginated(data interface{}, total int64, page, pageSize int) *domain.PaginatedResponse {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return &domain.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
