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

func TestTaskRepository_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewTaskRepository(db)
	ctx := context.Background()

	objectID := uuid.New()
	open := testutil.CreateTestTask(t, db, objectID, domain.StageNegotiation, domain.TaskStatusPending)
	testutil.CreateTestTask(t, db, objectID, domain.StageNegotiation, domain.TaskStatusCompleted)
	testutil.CreateTestTask(t, db, objectID, domain.StageDesign, domain.TaskStatusInProgress)
	testutil.CreateTestTask(t, db, uuid.New(), domain.StageNegotiation, domain.TaskStatusPending)

	t.Run("open tasks by default", func(t *testing.T) {
		tasks, err := repo.List(ctx, repository.TaskFilters{ObjectID: &objectID})
		require.NoError(t, err)
		assert.Len(t, tasks, 2)
	})

	t.Run("by stage", func(t *testing.T) {
		stage := domain.StageNegotiation
		tasks, err := repo.List(ctx, repository.TaskFilters{ObjectID: &objectID, StageID: &stage})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, open.ID, tasks[0].ID)
	})

	t.Run("explicit status includes completed", func(t *testing.T) {
		status := domain.TaskStatusCompleted
		tasks, err := repo.List(ctx, repository.TaskFilters{ObjectID: &objectID, Status: &status})
		require.NoError(t, err)
		assert.Len(t, tasks, 1)
	})

	t.Run("list by object includes completed", func(t *testing.T) {
		tasks, err := repo.ListByObject(ctx, objectID)
		require.NoError(t, err)
		assert.Len(t, tasks, 3)
	})

	t.Run("soft deleted tasks are hidden", func(t *testing.T) {
		require.NoError(t, repo.SoftDelete(ctx, open.ID))
		_, err := repo.GetByID(ctx, open.ID)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

		tasks, err := repo.ListByObject(ctx, objectID)
		require.NoError(t, err)
		assert.Len(t, tasks, 2)
	})
}
