package handler

import (
	"net/http"

	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/repository"
	"github.com/smartdom/crm-api/internal/service"
	"go.uber.org/zap"
)

type InvoiceHandler struct {
	invoiceService *service.InvoiceService
	logger         *zap.Logger
}

func NewInvoiceHandler(invoiceService *service.InvoiceService, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService, logger: logger}
}

// List godoc
// @Summary List invoices
// @Tags Invoices
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param status query string false "Filter by status" Enums(draft, issued, partially_paid, paid, cancelled)
// @Param proposalId query string false "Filter by proposal" format(uuid)
// @Param clientId query string false "Filter by client" format(uuid)
// @Param objectId query string false "Filter by object" format(uuid)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.InvoiceDTO}
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoices [get]
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	var filters repository.InvoiceFilters

	if v := r.URL.Query().Get("status"); v != "" {
		status := domain.InvoiceStatus(v)
		if !status.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid status: "+v)
			return
		}
		filters.Status = &status
	}
	var err error
	if filters.ProposalID, err = parseUUIDQuery(r, "proposalId"); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filters.ClientID, err = parseUUIDQuery(r, "clientId"); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filters.ObjectID, err = parseUUIDQuery(r, "objectId"); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.invoiceService.List(r.Context(), filters, page, pageSize)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to list invoices")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetByID godoc
// @Summary Get invoice with items and payments
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID" format(uuid)
// @Success 200 {object} domain.InvoiceDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "invoice")
	if !ok {
		return
	}
	invoice, err := h.invoiceService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get invoice")
		return
	}
	respondJSON(w, http.StatusOK, invoice)
}

// RecordPayment godoc
// @Summary Record payment
// @Description Adds a payment and moves the invoice to partially_paid or paid
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID" format(uuid)
// @Param request body domain.RecordPaymentRequest true "Payment"
// @Success 200 {object} domain.InvoiceDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoices/{id}/payments [post]
func (h *InvoiceHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "invoice")
	if !ok {
		return
	}
	var req domain.RecordPaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	invoice, err := h.invoiceService.RecordPayment(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to record payment")
		return
	}
	respondJSON(w, http.StatusOK, invoice)
}

// Cancel godoc
// @Summary Cancel invoice
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID" format(uuid)
// @Success 200 {object} domain.InvoiceDTO
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoices/{id}/cancel [post]
func (h *InvoiceHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "invoice")
	if !ok {
		return
	}
	invoice, err := h.invoiceService.Cancel(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to cancel invoice")
		return
	}
	respondJSON(w, http.StatusOK, invoice)
}

// Delete godoc
// @Summary Delete invoice
// @Tags Invoices
// @Param id path string true "Invoice ID" format(uuid)
// @Success 204
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoices/{id} [delete]
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "id", "invoice")
	if !ok {
		return
	}
	if err := h.invoiceService.Delete(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "Failed to delete invoice")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
