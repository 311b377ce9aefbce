package service_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientService_CRUD(t *testing.T) {
	s := setupServices(t)
	ctx := actorCtx(s.manager)

	created, err := s.clients.Create(ctx, &domain.CreateClientRequest{
		Name:  "  Petrov LLC ",
		Phone: "+375 29 000 00 00",
		Email: "office@petrov.test",
	})
	require.NoError(t, err)
	assert.Equal(t, "Petrov LLC", created.Name)
	assert.Equal(t, s.manager.ID, created.CreatedBy)

	_, err = s.clients.Create(ctx, &domain.CreateClientRequest{Name: " "})
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	updated, err := s.clients.Update(ctx, created.ID, &domain.UpdateClientRequest{Name: "Petrov & Sons", Notes: "prefers calls"})
	require.NoError(t, err)
	assert.Equal(t, "Petrov & Sons", updated.Name)
	assert.Equal(t, "prefers calls", updated.Notes)

	list, err := s.clients.List(ctx, 1, 20, "sons")
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)

	require.NoError(t, s.clients.Delete(ctx, created.ID))
	_, err = s.clients.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, service.ErrClientNotFound)

	_, err = s.clients.Update(ctx, uuid.New(), &domain.UpdateClientRequest{Name: "Nobody"})
	assert.ErrorIs(t, err, service.ErrClientNotFound)
}
