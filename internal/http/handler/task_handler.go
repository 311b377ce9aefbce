package handler

import (
	"net/http"

	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/service"
	"go.uber.org/zap"
)

type TaskHandler struct {
	taskService *service.TaskService
	logger      *zap.Logger
}

func NewTaskHandler(taskService *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{taskService: taskService, logger: logger}
}

// ListMine godoc
// @Summary List my tasks
// @Description Tasks assigned to the current user across all objects
// @Tags Tasks
// @Produce json
// @Param includeCompleted query bool false "Include completed tasks" default(false)
// @Success 200 {array} domain.TaskDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /tasks/my [get]
func (h *TaskHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	includeCompleted := r.URL.Query().Get("includeCompleted") == "true"
	tasks, err := h.taskService.ListMine(r.Context(), includeCompleted)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to list tasks")
		return
	}
	respondJSON(w, http.StatusOK, tasks)
}

// GetByID godoc
// @Summary Get task
// @Tags Tasks
// @Produce json
// @Param id path string true "Task ID" format(uuid)
// @Success 200 {object} domain.TaskDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /tasks/{id} [get]
func (h *TaskHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "task")
	if !ok {
		return
	}
	task, err := h.taskService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get task")
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// Update godoc
// @Summary Update task
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID" format(uuid)
// @Param request body domain.UpdateTaskRequest true "Task"
// @Success 200 {object} domain.TaskDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /tasks/{id} [put]
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "task")
	if !ok {
		return
	}
	var req domain.UpdateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	task, err := h.taskService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to update task")
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// UpdateStatus godoc
// @Summary Set task status
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID" format(uuid)
// @Param request body domain.UpdateTaskStatusRequest true "Status"
// @Success 200 {object} domain.TaskDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /tasks/{id}/status [put]
func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "task")
	if !ok {
		return
	}
	var req domain.UpdateTaskStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	task, err := h.taskService.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to update task status")
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// Complete godoc
// @Summary Complete task
// @Description Marks the task completed and notifies its creator and the object responsible
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID" format(uuid)
// @Param request body domain.CompleteTaskRequest false "Completion comment"
// @Success 200 {object} domain.TaskDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /tasks/{id}/complete [post]
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "task")
	if !ok {
		return
	}
	var req domain.CompleteTaskRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	task, err := h.taskService.Complete(r.Context(), id, req.Comment)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to complete task")
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// Delete godoc
// @Summary Delete task
// @Tags Tasks
// @Param id path string true "Task ID" format(uuid)
// @Success 204
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /tasks/{id} [delete]
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "task")
	if !ok {
		return
	}
	if err := h.taskService.Delete(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "Failed to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
