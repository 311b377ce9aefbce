package service_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/realtime"
	"github.com/smartdom/crm-api/internal/repository"
	"github.com/smartdom/crm-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectService_Create(t *testing.T) {
	s := setupServices(t)
	ctx := actorCtx(s.manager)

	client, err := s.clients.Create(ctx, &domain.CreateClientRequest{Name: "Ivanov family"})
	require.NoError(t, err)

	obj, err := s.objects.Create(ctx, &domain.CreateObjectRequest{
		Name:          " Cottage ",
		ClientID:      &client.ID,
		ResponsibleID: &s.manager.ID,
		Participants:  []uuid.UUID{s.installer.ID, s.installer.ID, s.manager.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "Cottage", obj.Name)
	assert.Equal(t, domain.StageNegotiation, obj.CurrentStage)
	assert.Equal(t, domain.ObjectStatusInWork, obj.CurrentStatus)
	assert.Equal(t, []uuid.UUID{s.installer.ID, s.manager.ID}, obj.Participants)
	require.NotNil(t, obj.ActiveStage)
	assert.Equal(t, domain.StageStatusActive, obj.ActiveStage.Status)

	assert.Equal(t, []uuid.UUID{s.installer.ID}, s.notifier.recipients(), "the actor is never notified")
	assert.True(t, s.publisher.has(realtime.EntityObject, obj.ID, realtime.ActionCreated))

	_, err = s.objects.Create(ctx, &domain.CreateObjectRequest{Name: "   "})
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	missing := uuid.New()
	_, err = s.objects.Create(ctx, &domain.CreateObjectRequest{Name: "Ghost", ClientID: &missing})
	assert.ErrorIs(t, err, service.ErrClientNotFound)
}

func TestObjectService_ReadModels(t *testing.T) {
	s := setupServices(t)
	ctx := actorCtx(s.manager)
	obj := s.createObject(t)

	_, err := s.workflow.Advance(ctx, obj.ID, &domain.AdvanceStageRequest{})
	require.NoError(t, err)

	got, err := s.objects.GetByID(ctx, obj.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageDesign, got.CurrentStage)
	require.NotNil(t, got.ActiveStage)
	assert.Equal(t, domain.StageDesign, got.ActiveStage.StageName)

	stages, err := s.objects.ListStages(ctx, obj.ID)
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, domain.StageNegotiation, stages[0].StageName)
	assert.Equal(t, domain.StageStatusCompleted, stages[0].Status)

	history, err := s.objects.History(ctx, obj.ID, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)

	list, err := s.objects.List(ctx, repository.ObjectFilters{}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)

	_, err = s.objects.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, service.ErrObjectNotFound)
}

func TestObjectService_UpdateAndDelete(t *testing.T) {
	s := setupServices(t)
	ctx := actorCtx(s.manager)
	obj := s.createObject(t)
	s.notifier.reset()

	updated, err := s.objects.Update(ctx, obj.ID, &domain.UpdateObjectRequest{
		Name:          "Villa, second floor",
		ResponsibleID: &s.installer.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Villa, second floor", updated.Name)
	require.NotNil(t, updated.ResponsibleID)
	assert.Equal(t, s.installer.ID, *updated.ResponsibleID)
	assert.Equal(t, []uuid.UUID{s.installer.ID}, s.notifier.recipients())

	require.NoError(t, s.objects.Delete(ctx, obj.ID))
	_, err = s.objects.GetByID(ctx, obj.ID)
	assert.ErrorIs(t, err, service.ErrObjectNotFound)
	assert.ErrorIs(t, s.objects.Delete(ctx, obj.ID), service.ErrObjectNotFound)
}
