package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/repository"
	"github.com/smartdom/crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createTestNotification(t *testing.T, db *gorm.DB, profileID uuid.UUID, read bool) *domain.Notification {
	notification := &domain.Notification{
		ProfileID: profileID,
		Message:   "Object moved to design",
		Link:      "/objects/" + uuid.NewString(),
		IsRead:    read,
	}
	require.NoError(t, db.Create(notification).Error)
	return notification
}

func TestNotificationRepository_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewNotificationRepository(db)

	notification := &domain.Notification{ProfileID: uuid.New(), Message: "Task assigned"}
	err := repo.Create(context.Background(), notification)
	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, notification.ID)
	assert.False(t, notification.IsRead)
}

func TestNotificationRepository_Inbox(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewNotificationRepository(db)
	ctx := context.Background()

	owner := uuid.New()
	other := uuid.New()
	first := createTestNotification(t, db, owner, false)
	createTestNotification(t, db, owner, false)
	createTestNotification(t, db, owner, true)
	foreign := createTestNotification(t, db, other, false)

	t.Run("list all and unread only", func(t *testing.T) {
		all, total, err := repo.ListByProfile(ctx, owner, 1, 20, false)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, all, 3)

		unread, total, err := repo.ListByProfile(ctx, owner, 1, 20, true)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, unread, 2)
	})

	t.Run("count unread", func(t *testing.T) {
		count, err := repo.CountUnread(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("mark as read checks ownership", func(t *testing.T) {
		err := repo.MarkAsRead(ctx, foreign.ID, owner)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

		require.NoError(t, repo.MarkAsRead(ctx, first.ID, owner))
		found, err := repo.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, found.IsRead)
		assert.NotNil(t, found.ReadAt)
	})

	t.Run("mark all as read", func(t *testing.T) {
		updated, err := repo.MarkAllAsRead(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, int64(1), updated)

		count, err := repo.CountUnread(ctx, owner)
		require.NoError(t, err)
		assert.Zero(t, count)

		count, err = repo.CountUnread(ctx, other)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}
