package handler_test

import (
	"net/http"
	"testing"

	"github.com/smartdom/crm-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskHandler_Lifecycle(t *testing.T) {
	api := setupAPI(t)
	manager := actorFor(api.manager)
	installer := actorFor(api.installer)
	obj := api.createObject(t)

	w := api.do(t, manager, http.MethodPost, "/objects/"+obj.ID.String()+"/tasks", map[string]interface{}{
		"title":      "Pull cable to the hallway",
		"assignedTo": api.installer.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	task := decodeBody[domain.TaskDTO](t, w)
	path := "/tasks/" + task.ID.String()

	w = api.do(t, installer, http.MethodGet, "/tasks/my", nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine := decodeBody[[]domain.TaskDTO](t, w)
	require.Len(t, mine, 1)
	assert.Equal(t, task.ID, mine[0].ID)

	w = api.do(t, installer, http.MethodPut, path+"/status", map[string]interface{}{"status": "blocked"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, installer, http.MethodPut, path+"/status", map[string]interface{}{"status": "in_progress"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.TaskStatusInProgress, decodeBody[domain.TaskDTO](t, w).Status)

	w = api.do(t, installer, http.MethodPost, path+"/complete", map[string]interface{}{"comment": "done, photos in chat"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	done := decodeBody[domain.TaskDTO](t, w)
	assert.Equal(t, domain.TaskStatusCompleted, done.Status)
	assert.Equal(t, "done, photos in chat", done.CompletionComment)
	require.NotNil(t, done.CompletedBy)
	assert.Equal(t, api.installer.ID, *done.CompletedBy)

	w = api.do(t, installer, http.MethodGet, "/tasks/my", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody[[]domain.TaskDTO](t, w))

	w = api.do(t, installer, http.MethodGet, "/tasks/my?includeCompleted=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]domain.TaskDTO](t, w), 1)

	// completed tasks no longer hold the gate
	w = api.do(t, manager, http.MethodPost, "/objects/"+obj.ID.String()+"/advance", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(t, manager, http.MethodGet, "/objects/"+obj.ID.String()+"/tasks?stage=negotiation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]domain.TaskDTO](t, w), 1)

	w = api.do(t, manager, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = api.do(t, manager, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
