package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskService_Create(t *testing.T) {
	s := setupServices(t)
	ctx := actorCtx(s.manager)
	obj := s.createObject(t)

	t.Run("binds the task to the current stage and notifies the assignee", func(t *testing.T) {
		_, err := s.workflow.Advance(ctx, obj.ID, &domain.AdvanceStageRequest{})
		require.NoError(t, err)
		s.notifier.reset()

		task, err := s.tasks.Create(ctx, obj.ID, &domain.CreateTaskRequest{
			Title:      "  Measure the living room  ",
			AssignedTo: &s.installer.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, "Measure the living room", task.Title)
		assert.Equal(t, domain.StageDesign, task.StageID)
		assert.Equal(t, domain.TaskStatusPending, task.Status)
		assert.Equal(t, []uuid.UUID{s.installer.ID}, s.notifier.recipients())
	})

	t.Run("blank title", func(t *testing.T) {
		_, err := s.tasks.Create(ctx, obj.ID, &domain.CreateTaskRequest{Title: "   "})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("unknown object", func(t *testing.T) {
		_, err := s.tasks.Create(ctx, uuid.New(), &domain.CreateTaskRequest{Title: "Lost"})
		assert.ErrorIs(t, err, service.ErrObjectNotFound)
	})

	t.Run("no actor", func(t *testing.T) {
		_, err := s.tasks.Create(context.Background(), obj.ID, &domain.CreateTaskRequest{Title: "Anonymous"})
		assert.ErrorIs(t, err, service.ErrUnauthorized)
	})
}

func TestTaskService_Lifecycle(t *testing.T) {
	s := setupServices(t)
	managerCtx := actorCtx(s.manager)
	installerCtx := actorCtx(s.installer)
	obj := s.createObject(t)

	task, err := s.tasks.Create(managerCtx, obj.ID, &domain.CreateTaskRequest{
		Title:      "Pull cables",
		AssignedTo: &s.installer.ID,
	})
	require.NoError(t, err)

	inProgress, err := s.tasks.UpdateStatus(installerCtx, task.ID, domain.TaskStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, inProgress.Status)

	mine, err := s.tasks.ListMine(installerCtx, false)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, task.ID, mine[0].ID)

	s.notifier.reset()
	done, err := s.tasks.Complete(installerCtx, task.ID, "all cables in place")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, done.Status)
	require.NotNil(t, done.CompletedBy)
	assert.Equal(t, s.installer.ID, *done.CompletedBy)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, "all cables in place", done.CompletionComment)
	assert.Equal(t, []uuid.UUID{s.manager.ID}, s.notifier.recipients(),
		"author and object responsible are the same person and get one notice")

	mine, err = s.tasks.ListMine(installerCtx, false)
	require.NoError(t, err)
	assert.Empty(t, mine)

	reopened, err := s.tasks.UpdateStatus(managerCtx, task.ID, domain.TaskStatusPending)
	require.NoError(t, err)
	assert.Nil(t, reopened.CompletedAt)
	assert.Nil(t, reopened.CompletedBy)
	assert.Empty(t, reopened.CompletionComment)

	_, err = s.tasks.UpdateStatus(managerCtx, task.ID, domain.TaskStatus("archived"))
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	require.NoError(t, s.tasks.Delete(managerCtx, task.ID))
	_, err = s.tasks.GetByID(managerCtx, task.ID)
	assert.ErrorIs(t, err, service.ErrTaskNotFound)
	assert.ErrorIs(t, s.tasks.Delete(managerCtx, task.ID), service.ErrTaskNotFound)
}

func TestTaskService_ListByObject(t *testing.T) {
	s := setupServices(t)
	ctx := actorCtx(s.manager)
	obj := s.createObject(t)

	_, err := s.tasks.Create(ctx, obj.ID, &domain.CreateTaskRequest{Title: "Call the client"})
	require.NoError(t, err)
	_, err = s.workflow.Advance(ctx, obj.ID, &domain.AdvanceStageRequest{Force: true})
	require.NoError(t, err)
	_, err = s.tasks.Create(ctx, obj.ID, &domain.CreateTaskRequest{Title: "Draw the plan"})
	require.NoError(t, err)

	all, err := s.tasks.ListByObject(ctx, obj.ID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	design := domain.StageDesign
	onlyDesign, err := s.tasks.ListByObject(ctx, obj.ID, &design)
	require.NoError(t, err)
	require.Len(t, onlyDesign, 1)
	assert.Equal(t, "Draw the plan", onlyDesign[0].Title)
}

func TestTaskService_CompletedObjectRejectsTasks(t *testing.T) {
	s := setupServices(t)
	ctx := actorCtx(s.manager)
	obj := s.createObject(t)

	var err error
	for obj.CurrentStage != domain.StageSupport {
		obj, err = s.workflow.Advance(ctx, obj.ID, &domain.AdvanceStageRequest{})
		require.NoError(t, err)
	}
	_, err = s.workflow.Finalize(ctx, obj.ID, false)
	require.NoError(t, err)

	_, err = s.tasks.Create(ctx, obj.ID, &domain.CreateTaskRequest{Title: "Too late"})
	assert.ErrorIs(t, err, service.ErrObjectCompleted)
}
