package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/repository"
	"github.com/smartdom/crm-api/internal/service"
	"github.com/smartdom/crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type chatMessage struct {
	ChatID  string
	Message string
	Link    string
}

type fakeChatSender struct {
	mu   sync.Mutex
	sent []chatMessage
	err  error
}

func (f *fakeChatSender) Send(_ context.Context, chatID, message, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, chatMessage{ChatID: chatID, Message: message, Link: link})
	return nil
}

func newNotificationService(db *gorm.DB, sender service.ChatSender, logger *zap.Logger) *service.NotificationService {
	return service.NewNotificationService(
		repository.NewNotificationRepository(db),
		repository.NewProfileRepository(db),
		sender,
		&recordingPublisher{},
		logger,
	)
}

func TestNotificationService_Notify(t *testing.T) {
	db := testutil.SetupTestDB(t)
	linked := testutil.CreateTestProfile(t, db, "Linked Installer")
	require.NoError(t, db.Model(linked).Update("telegram_chat_id", "424242").Error)
	unlinked := testutil.CreateTestProfile(t, db, "Offline Engineer")

	t.Run("writes the inbox row and sends to linked chats only", func(t *testing.T) {
		sender := &fakeChatSender{}
		svc := newNotificationService(db, sender, zap.NewNop())

		svc.Notify(context.Background(), linked.ID, "Object moved to design", "/objects/1")
		svc.Notify(context.Background(), unlinked.ID, "Object moved to design", "/objects/1")
		svc.Wait()

		require.Len(t, sender.sent, 1)
		assert.Equal(t, "424242", sender.sent[0].ChatID)
		assert.Equal(t, "/objects/1", sender.sent[0].Link)

		count, err := svc.CountUnread(actorCtx(unlinked))
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("delivery failures are logged and swallowed", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		sender := &fakeChatSender{err: errors.New("bot blocked by user")}
		svc := newNotificationService(db, sender, zap.New(core))

		assert.NotPanics(t, func() {
			svc.Notify(context.Background(), linked.ID, "Task assigned", "")
			svc.Wait()
		})
		assert.Equal(t, 1, logs.FilterMessage("failed to deliver chat notification").Len())
	})

	t.Run("nil profile is ignored", func(t *testing.T) {
		svc := newNotificationService(db, nil, zap.NewNop())
		svc.Notify(context.Background(), uuid.Nil, "nobody", "")
		svc.Wait()
	})
}

func TestNotificationService_Inbox(t *testing.T) {
	db := testutil.SetupTestDB(t)
	owner := testutil.CreateTestProfile(t, db, "Inbox Owner")
	other := testutil.CreateTestProfile(t, db, "Someone Else")
	svc := newNotificationService(db, nil, zap.NewNop())
	ctx := actorCtx(owner)

	for i := 0; i < 3; i++ {
		svc.Notify(context.Background(), owner.ID, "Stage overdue", "/objects/x")
	}
	svc.Notify(context.Background(), other.ID, "Not yours", "")

	page, err := svc.List(ctx, 1, 2, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)

	foreign, err := svc.List(actorCtx(other), 1, 20, false)
	require.NoError(t, err)
	require.Equal(t, int64(1), foreign.Total)

	t.Run("mark one as read", func(t *testing.T) {
		mine, err := svc.List(ctx, 1, 20, true)
		require.NoError(t, err)
		first := firstNotificationID(t, mine.Data)

		require.NoError(t, svc.MarkAsRead(ctx, first))
		count, err := svc.CountUnread(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("someone else's notification is not found", func(t *testing.T) {
		theirs := firstNotificationID(t, foreign.Data)
		assert.ErrorIs(t, svc.MarkAsRead(ctx, theirs), service.ErrNotificationNotFound)
	})

	t.Run("mark all as read", func(t *testing.T) {
		n, err := svc.MarkAllAsRead(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		count, err := svc.CountUnread(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("requires an actor", func(t *testing.T) {
		_, err := svc.CountUnread(context.Background())
		assert.ErrorIs(t, err, service.ErrUnauthorized)
	})
}

func firstNotificationID(t *testing.T, data interface{}) uuid.UUID {
	t.Helper()
	dtos, ok := data.([]domain.NotificationDTO)
	require.True(t, ok)
	require.NotEmpty(t, dtos)
	return dtos[0].ID
}
