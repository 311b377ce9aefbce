package handler

import (
	"net/http"

	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/repository"
	"github.com/smartdom/crm-api/internal/service"
	"go.uber.org/zap"
)

type ObjectHandler struct {
	objectService   *service.ObjectService
	workflowService *service.WorkflowService
	taskService     *service.TaskService
	logger          *zap.Logger
}

func NewObjectHandler(
	objectService *service.ObjectService,
	workflowService *service.WorkflowService,
	taskService *service.TaskService,
	logger *zap.Logger,
) *ObjectHandler {
	return &ObjectHandler{
		objectService:   objectService,
		workflowService: workflowService,
		taskService:     taskService,
		logger:          logger,
	}
}

// List godoc
// @Summary List objects
// @Description Paginated list of installation objects, newest first
// @Tags Objects
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param stage query string false "Filter by current stage" Enums(negotiation, design, logistics, assembly, mounting, commissioning, programming, support)
// @Param status query string false "Filter by work status" Enums(in_work, on_pause, frozen, review_required, completed)
// @Param responsibleId query string false "Filter by responsible employee" format(uuid)
// @Param clientId query string false "Filter by client" format(uuid)
// @Param search query string false "Search by name or address"
// @Param sortBy query string false "Sort field" Enums(updatedAt, createdAt, name, currentStage) default(updatedAt)
// @Param sortOrder query string false "Sort direction" Enums(asc, desc) default(desc)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ObjectDTO}
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /objects [get]
func (h *ObjectHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	query := r.URL.Query()

	filters := repository.ObjectFilters{
		Search: query.Get("search"),
		Sort: repository.SortConfig{
			Field: query.Get("sortBy"),
			Order: repository.ParseSortOrder(query.Get("sortOrder")),
		},
	}
	if v := query.Get("stage"); v != "" {
		stage := domain.StageID(v)
		if !stage.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid stage: "+v)
			return
		}
		filters.Stage = &stage
	}
	if v := query.Get("status"); v != "" {
		status := domain.ObjectStatus(v)
		if !status.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid status: "+v)
			return
		}
		filters.Status = &status
	}
	var err error
	if filters.ResponsibleID, err = parseUUIDQuery(r, "responsibleId"); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filters.ClientID, err = parseUUIDQuery(r, "clientId"); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.objectService.List(r.Context(), filters, page, pageSize)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to list objects")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Create godoc
// @Summary Create object
// @Description Creates an object at the negotiation stage with its first stage row
// @Tags Objects
// @Accept json
// @Produce json
// @Param request body domain.CreateObjectRequest true "Object"
// @Success 201 {object} domain.ObjectDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /objects [post]
func (h *ObjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateObjectRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	obj, err := h.objectService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to create object")
		return
	}
	w.Header().Set("Location", "/api/v1/objects/"+obj.ID.String())
	respondJSON(w, http.StatusCreated, obj)
}

// GetByID godoc
// @Summary Get object
// @Tags Objects
// @Produce json
// @Param id path string true "Object ID" format(uuid)
// @Success 200 {object} domain.ObjectDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /objects/{id} [get]
func (h *ObjectHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "object")
	if !ok {
		return
	}
	obj, err := h.objectService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get object")
		return
	}
	respondJSON(w, http.StatusOK, obj)
}

// Update godoc
// @Summary Update object
// @Description Updates descriptive fields. Stage and status change only through the workflow endpoints.
// @Tags Objects
// @Accept json
// @Produce json
// @Param id path string true "Object ID" format(uuid)
// @Param request body domain.UpdateObjectRequest true "Object"
// @Success 200 {object} domain.ObjectDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /objects/{id} [put]
func (h *ObjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "object")
	if !ok {
		return
	}
	var req domain.UpdateObjectRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	obj, err := h.objectService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to update object")
		return
	}
	respondJSON(w, http.StatusOK, obj)
}

// Delete godoc
// @Summary Delete object
// @Tags Objects
// @Param id path string true "Object ID" format(uuid)
// @Success 204
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /objects/{id} [delete]
func (h *ObjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "object")
	if !ok {
		return
	}
	if err := h.objectService.Delete(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "Failed to delete object")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListStages godoc
// @Summary List object stages
// @Description Every stage row of the object in the order they were entered
// @Tags Workflow
// @Produce json
// @Param id path string true "Object ID" format(uuid)
// @Success 200 {array} domain.ObjectStageDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /objects/{id}/stages [get]
func (h *ObjectHandler) ListStages(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "object")
	if !ok {
		return
	}
	stages, err := h.objectService.ListStages(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to list stages")
		return
	}
	respondJSON(w, http.StatusOK, stages)
}

// History godoc
// @Summary Object history
// @Tags Workflow
// @Produce json
// @Param id path string true "Object ID" format(uuid)
// @Param limit query int false "Maximum entries" default(100)
// @Success 200 {array} domain.ObjectHistoryDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /objects/{id}/history [get]
func (h *ObjectHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "object")
	if !ok {
		return
	}
	limit := parseIntQuery(r, "limit", 100)
	if limit < 1 || limit > 500 {
		limit = 100
	}
	entries, err := h.objectService.History(r.Context(), id, limit)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get object history")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// Advance godoc
// @Summary Advance object to the next stage
// @Description Completes the active stage and opens the next one. Pending tasks of the current stage block the move unless force is set; overrides are logged.
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Object ID" format(uuid)
// @Param request body domain.AdvanceStageRequest false "Advance options"
// @Success 200 {object} domain.ObjectDTO
// @Failure 403 {object} domain.APIError
// @Failure 409 {object} domain.GateBlockedResponse
// @Failure 422 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /objects/{id}/advance [post]
func (h *ObjectHandler) Advance(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "object")
	if !ok {
		return
	}
	var req domain.AdvanceStageRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	obj, err := h.workflowService.Advance(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to advance object")
		return
	}
	respondJSON(w, http.StatusOK, obj)
}

// Finalize godoc
// @Summary Finalize object
// @Description Completes the last stage and marks the object completed
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Object ID" format(uuid)
// @Param request body domain.FinalizeObjectRequest false "Finalize options"
// @Success 200 {object} domain.ObjectDTO
// @Failure 409 {object} domain.GateBlockedResponse
// @Failure 422 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /objects/{id}/finalize [post]
func (h *ObjectHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "object")
	if !ok {
		return
	}
	var req domain.FinalizeObjectRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	obj, err := h.workflowService.Finalize(r.Context(), id, req.Force)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to finalize object")
		return
	}
	respondJSON(w, http.StatusOK, obj)
}

// Rollback godoc
// @Summary Roll object back to an earlier stage
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Object ID" format(uuid)
// @Param request body domain.RollbackStageRequest true "Rollback target and reason"
// @Success 200 {object} domain.ObjectDTO
// @Failure 400 {object} domain.APIError
// @Failure 422 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /objects/{id}/rollback [post]
func (h *ObjectHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "object")
	if !ok {
		return
	}
	var req domain.RollbackStageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	obj, err := h.workflowService.Rollback(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to roll back object")
		return
	}
	respondJSON(w, http.StatusOK, obj)
}

// Restore godoc
// @Summary Restore object forward
// @Description Returns the object to the stage it was rolled back from
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Object ID" format(uuid)
// @Param request body domain.RestoreStageRequest false "Restore options"
// @Success 200 {object} domain.ObjectDTO
// @Failure 422 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /objects/{id}/restore [post]
func (h *ObjectHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "object")
	if !ok {
		return
	}
	var req domain.RestoreStageRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	obj, err := h.workflowService.Restore(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to restore object")
		return
	}
	respondJSON(w, http.StatusOK, obj)
}

// UpdateStatus godoc
// @Summary Set object work status
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Object ID" format(uuid)
// @Param request body domain.UpdateObjectStatusRequest true "Status"
// @Success 200 {object} domain.ObjectDTO
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /objects/{id}/status [put]
func (h *ObjectHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "object")
	if !ok {
		return
	}
	var req domain.UpdateObjectStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	obj, err := h.workflowService.SetStatus(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to update object status")
		return
	}
	respondJSON(w, http.StatusOK, obj)
}

// ExtendDeadline godoc
// @Summary Extend stage deadline
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Object ID" format(uuid)
// @Param stageId path string true "Stage row ID" format(uuid)
// @Param request body domain.ExtendDeadlineRequest true "Days to add"
// @Success 200 {object} domain.ObjectStageDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 422 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /objects/{id}/stages/{stageId}/extend [post]
func (h *ObjectHandler) ExtendDeadline(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "object")
	if !ok {
		return
	}
	stageID, ok := parseID(w, r, "stageId", "stage")
	if !ok {
		return
	}
	var req domain.ExtendDeadlineRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	stage, err := h.workflowService.ExtendDeadline(r.Context(), id, stageID, req.Days)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to extend deadline")
		return
	}
	respondJSON(w, http.StatusOK, stage)
}

// ListTasks godoc
// @Summary List object tasks
// @Tags Tasks
// @Produce json
// @Param id path string true "Object ID" format(uuid)
// @Param stage query string false "Only tasks of this stage" Enums(negotiation, design, logistics, assembly, mounting, commissioning, programming, support)
// @Success 200 {array} domain.TaskDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /objects/{id}/tasks [get]
func (h *ObjectHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "object")
	if !ok {
		return
	}
	var stage *domain.StageID
	if v := r.URL.Query().Get("stage"); v != "" {
		s := domain.StageID(v)
		if !s.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid stage: "+v)
			return
		}
		stage = &s
	}
	tasks, err := h.taskService.ListByObject(r.Context(), id, stage)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to list tasks")
		return
	}
	respondJSON(w, http.StatusOK, tasks)
}

// CreateTask godoc
// @Summary Create task on the current stage
// @Tags Tasks
// @Accept json
// @Produce json
// @Param id path string true "Object ID" format(uuid)
// @Param request body domain.CreateTaskRequest true "Task"
// @Success 201 {object} domain.TaskDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /objects/{id}/tasks [post]
func (h *ObjectHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "object")
	if !ok {
		return
	}
	var req domain.CreateTaskRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	task, err := h.taskService.Create(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to create task")
		return
	}
	w.Header().Set("Location", "/api/v1/tasks/"+task.ID.String())
	respondJSON(w, http.StatusCreated, task)
}
