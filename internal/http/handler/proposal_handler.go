package handler

import (
	"net/http"

	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/repository"
	"github.com/smartdom/crm-api/internal/service"
	"go.uber.org/zap"
)

type ProposalHandler struct {
	proposalService *service.ProposalService
	invoiceService  *service.InvoiceService
	logger          *zap.Logger
}

func NewProposalHandler(proposalService *service.ProposalService, invoiceService *service.InvoiceService, logger *zap.Logger) *ProposalHandler {
	return &ProposalHandler{
		proposalService: proposalService,
		invoiceService:  invoiceService,
		logger:          logger,
	}
}

// List godoc
// @Summary List proposals
// @Tags Proposals
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param status query string false "Filter by status" Enums(draft, sent, accepted, rejected)
// @Param clientId query string false "Filter by client" format(uuid)
// @Param objectId query string false "Filter by object" format(uuid)
// @Param createdBy query string false "Filter by author" format(uuid)
// @Param search query string false "Search by number"
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ProposalDTO}
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals [get]
func (h *ProposalHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	filters := repository.ProposalFilters{Search: r.URL.Query().Get("search")}

	if v := r.URL.Query().Get("status"); v != "" {
		status := domain.ProposalStatus(v)
		if !status.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid status: "+v)
			return
		}
		filters.Status = &status
	}
	var err error
	if filters.ClientID, err = parseUUIDQuery(r, "clientId"); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filters.ObjectID, err = parseUUIDQuery(r, "objectId"); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filters.CreatedBy, err = parseUUIDQuery(r, "createdBy"); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.proposalService.List(r.Context(), filters, page, pageSize)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to list proposals")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Create godoc
// @Summary Create proposal
// @Description Creates an empty draft proposal with the next number of the author
// @Tags Proposals
// @Accept json
// @Produce json
// @Param request body domain.CreateProposalRequest true "Proposal"
// @Success 201 {object} domain.ProposalDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals [post]
func (h *ProposalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProposalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	proposal, err := h.proposalService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to create proposal")
		return
	}
	w.Header().Set("Location", "/api/v1/proposals/"+proposal.ID.String())
	respondJSON(w, http.StatusCreated, proposal)
}

// GetByID godoc
// @Summary Get proposal with items
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal ID" format(uuid)
// @Success 200 {object} domain.ProposalDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals/{id} [get]
func (h *ProposalHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "proposal")
	if !ok {
		return
	}
	proposal, err := h.proposalService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get proposal")
		return
	}
	respondJSON(w, http.StatusOK, proposal)
}

// Update godoc
// @Summary Update proposal header
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID" format(uuid)
// @Param request body domain.UpdateProposalRequest true "Proposal"
// @Success 200 {object} domain.ProposalDTO
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals/{id} [put]
func (h *ProposalHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "proposal")
	if !ok {
		return
	}
	var req domain.UpdateProposalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	proposal, err := h.proposalService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to update proposal")
		return
	}
	respondJSON(w, http.StatusOK, proposal)
}

// Delete godoc
// @Summary Delete proposal
// @Tags Proposals
// @Param id path string true "Proposal ID" format(uuid)
// @Success 204
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals/{id} [delete]
func (h *ProposalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "proposal")
	if !ok {
		return
	}
	if err := h.proposalService.Delete(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "Failed to delete proposal")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyAction godoc
// @Summary Edit proposal items
// @Description Applies one cart action (add, remove, quantity, markup, prices, move, recalculate) to the item tree and stores the recomputed prices
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID" format(uuid)
// @Param request body domain.CartActionRequest true "Cart action"
// @Success 200 {object} domain.ProposalDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals/{id}/items [post]
func (h *ProposalHandler) ApplyAction(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "proposal")
	if !ok {
		return
	}
	var req domain.CartActionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	proposal, err := h.proposalService.ApplyAction(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to update proposal items")
		return
	}
	respondJSON(w, http.StatusOK, proposal)
}

// Totals godoc
// @Summary Proposal totals
// @Description Recomputed total, VAT and the stored snapshot for comparison
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal ID" format(uuid)
// @Success 200 {object} domain.ProposalTotalsDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals/{id}/totals [get]
func (h *ProposalHandler) Totals(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "proposal")
	if !ok {
		return
	}
	totals, err := h.proposalService.Totals(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to compute proposal totals")
		return
	}
	respondJSON(w, http.StatusOK, totals)
}

// Send godoc
// @Summary Send proposal
// @Description Marks the proposal sent and optionally issues an invoice from it
// @Tags Proposals
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID" format(uuid)
// @Param request body domain.SendProposalRequest false "Send options"
// @Success 200 {object} domain.SendProposalResponse
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals/{id}/send [post]
func (h *ProposalHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "proposal")
	if !ok {
		return
	}
	var req domain.SendProposalRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	result, err := h.proposalService.Send(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to send proposal")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Accept godoc
// @Summary Accept proposal
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal ID" format(uuid)
// @Success 200 {object} domain.ProposalDTO
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals/{id}/accept [post]
func (h *ProposalHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "proposal")
	if !ok {
		return
	}
	proposal, err := h.proposalService.Accept(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to accept proposal")
		return
	}
	respondJSON(w, http.StatusOK, proposal)
}

// Reject godoc
// @Summary Reject proposal
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal ID" format(uuid)
// @Success 200 {object} domain.ProposalDTO
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals/{id}/reject [post]
func (h *ProposalHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "proposal")
	if !ok {
		return
	}
	proposal, err := h.proposalService.Reject(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to reject proposal")
		return
	}
	respondJSON(w, http.StatusOK, proposal)
}

// Duplicate godoc
// @Summary Duplicate proposal
// @Description Copies header and items into a new draft with a fresh number
// @Tags Proposals
// @Produce json
// @Param id path string true "Proposal ID" format(uuid)
// @Success 201 {object} domain.ProposalDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals/{id}/duplicate [post]
func (h *ProposalHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "proposal")
	if !ok {
		return
	}
	proposal, err := h.proposalService.Duplicate(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to duplicate proposal")
		return
	}
	w.Header().Set("Location", "/api/v1/proposals/"+proposal.ID.String())
	respondJSON(w, http.StatusCreated, proposal)
}

// CreateInvoice godoc
// @Summary Issue invoice from proposal
// @Description Freezes the current unit prices of a sent or accepted proposal into a new invoice
// @Tags Invoices
// @Produce json
// @Param id path string true "Proposal ID" format(uuid)
// @Success 201 {object} domain.InvoiceDTO
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals/{id}/invoices [post]
func (h *ProposalHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "proposal")
	if !ok {
		return
	}
	invoice, err := h.invoiceService.CreateFromProposal(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to create invoice")
		return
	}
	w.Header().Set("Location", "/api/v1/invoices/"+invoice.ID.String())
	respondJSON(w, http.StatusCreated, invoice)
}

// ListInvoices godoc
// @Summary List invoices of a proposal
// @Tags Invoices
// @Produce json
// @Param id path string true "Proposal ID" format(uuid)
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.InvoiceDTO}
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /proposals/{id}/invoices [get]
func (h *ProposalHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "proposal")
	if !ok {
		return
	}
	page, pageSize := pagination(r)
	result, err := h.invoiceService.List(r.Context(), repository.InvoiceFilters{ProposalID: &id}, page, pageSize)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to list invoices")
		return
	}
	respondJSON(w, http.StatusOK, result)
}
