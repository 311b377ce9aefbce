package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/mapper"
	"github.com/smartdom/crm-api/internal/pricing"
	"github.com/smartdom/crm-api/internal/realtime"
	"github.com/smartdom/crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInvoiceNotFound is returned when an invoice does not exist
var ErrInvoiceNotFound = errors.New("invoice not found")

// InvoiceService issues invoices from proposals and tracks their payments
type InvoiceService struct {
	invoiceRepo  *repository.InvoiceRepository
	proposalRepo *repository.ProposalRepository
	numbers      *NumberSequenceService
	notifier     Notifier
	publisher    realtime.Publisher
	vatRate      decimal.Decimal
	logger       *zap.Logger
}

func NewInvoiceService(
	invoiceRepo *repository.InvoiceRepository,
	proposalRepo *repository.ProposalRepository,
	numbers *NumberSequenceService,
	notifier Notifier,
	publisher realtime.Publisher,
	vatRate decimal.Decimal,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		invoiceRepo:  invoiceRepo,
		proposalRepo: proposalRepo,
		numbers:      numbers,
		notifier:     notifier,
		publisher:    publisher,
		vatRate:      vatRate,
		logger:       logger,
	}
}

// CreateFromProposal copies a sent or accepted proposal into a new invoice. Unit prices are
// frozen at the moment of the copy; later proposal edits do not touch the invoice.
func (s *InvoiceService) CreateFromProposal(ctx context.Context, proposalID uuid.UUID) (*domain.InvoiceDTO, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	proposal, err := s.proposalRepo.GetWithItems(ctx, proposalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	if proposal.Status != domain.ProposalStatusSent && proposal.Status != domain.ProposalStatusAccepted {
		return nil, fmt.Errorf("%w: invoices are issued only for sent or accepted proposals", ErrConflict)
	}
	if len(proposal.Items) == 0 {
		return nil, fmt.Errorf("%w: proposal has no items", ErrInvalidInput)
	}

	number, err := s.numbers.GenerateInvoiceNumber(ctx, actor)
	if err != nil {
		return nil, err
	}

	items := freezeItems(proposal.Items)
	totals := pricing.ComputeTotals(mapper.ToPricingItems(proposal.Items), proposal.HasVAT, s.vatRate)
	invoice := &domain.Invoice{
		Number:         number,
		ProposalID:     &proposal.ID,
		ClientID:       proposal.ClientID,
		ObjectID:       proposal.ObjectID,
		HasVAT:         proposal.HasVAT,
		TotalAmountBYN: totals.Total,
		Status:         domain.InvoiceStatusIssued,
		CreatedBy:      actor,
	}
	if err := s.invoiceRepo.CreateWithItems(ctx, invoice, items); err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	s.logger.Info("invoice created",
		zap.String("invoiceID", invoice.ID.String()),
		zap.String("proposalID", proposal.ID.String()),
		zap.String("number", invoice.Number),
		zap.String("total", invoice.TotalAmountBYN.StringFixed(2)),
	)
	s.publish(ctx, invoice.ID, realtime.ActionCreated)

	dto := mapper.ToInvoiceDTO(invoice, s.vatOf(invoice))
	return &dto, nil
}

// freezeItems copies proposal items into invoice items with fresh ids. Parent ids are
// remapped to the copies; items arrive parents first so every parent is mapped in time.
func freezeItems(src []domain.ProposalItem) []domain.InvoiceItem {
	ids := make(map[uuid.UUID]uuid.UUID, len(src))
	for _, it := range src {
		ids[it.ID] = uuid.New()
	}

	out := make([]domain.InvoiceItem, 0, len(src))
	for i := range src {
		it := &src[i]
		var parent *uuid.UUID
		if it.ParentID != nil {
			if mapped, ok := ids[*it.ParentID]; ok {
				parent = &mapped
			}
		}
		price := pricing.UnitPrice(mapper.ToPricingItem(it))
		item := domain.InvoiceItem{
			ParentID:       parent,
			ProductName:    it.ProductName,
			Description:    it.Description,
			Unit:           it.Unit,
			Quantity:       it.Quantity,
			BasePrice:      it.BasePrice,
			Price:          price,
			Total:          pricing.Round2(price.Mul(it.Quantity)),
			IsBundleHeader: it.IsBundleHeader,
			Position:       it.Position,
		}
		item.ID = ids[it.ID]
		out = append(out, item)
	}
	return out
}

func (s *InvoiceService) GetByID(ctx context.Context, id uuid.UUID) (*domain.InvoiceDTO, error) {
	invoice, err := s.getInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToInvoiceDTO(invoice, s.vatOf(invoice))
	return &dto, nil
}

func (s *InvoiceService) List(ctx context.Context, filters repository.InvoiceFilters, page, pageSize int) (*domain.PaginatedResponse, error) {
	page, pageSize = repository.NormalizePage(page, pageSize)
	invoices, total, err := s.invoiceRepo.List(ctx, filters, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	dtos := make([]domain.InvoiceDTO, len(invoices))
	for i := range invoices {
		dtos[i] = mapper.ToInvoiceDTO(&invoices[i], s.vatOf(&invoices[i]))
	}
	return paginated(dtos, total, page, pageSize), nil
}

// RecordPayment adds a payment and moves the invoice to partially paid or paid
func (s *InvoiceService) RecordPayment(ctx context.Context, id uuid.UUID, req *domain.RecordPaymentRequest) (*domain.InvoiceDTO, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be positive", ErrInvalidInput)
	}
	invoice, err := s.getInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	paidAt := timeNow().UTC()
	if req.PaidAt != nil {
		paidAt = req.PaidAt.UTC()
	}
	payment := &domain.InvoicePayment{
		InvoiceID: id,
		Amount:    pricing.Round2(req.Amount),
		PaidAt:    paidAt,
		Comment:   strings.TrimSpace(req.Comment),
		CreatedBy: actor,
	}
	updated, err := s.invoiceRepo.AddPayment(ctx, payment, PaymentStatus)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrInvoiceNotFound
		case errors.Is(err, repository.ErrInvoiceCancelled):
			return nil, fmt.Errorf("%w: invoice is cancelled", ErrConflict)
		}
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	s.logger.Info("invoice payment recorded",
		zap.String("invoiceID", id.String()),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("status", string(updated.Status)),
	)
	s.publish(ctx, id, realtime.ActionUpdated)
	if updated.Status == domain.InvoiceStatusPaid && invoice.Status != domain.InvoiceStatusPaid &&
		updated.CreatedBy != actor && s.notifier != nil {
		s.notifier.Notify(ctx, updated.CreatedBy,
			fmt.Sprintf("Invoice %s is fully paid", updated.Number), invoiceLink(id))
	}

	return s.GetByID(ctx, id)
}

// PaymentStatus derives the invoice status from its total and the paid sum
func PaymentStatus(total, paid decimal.Decimal) domain.InvoiceStatus {
	switch {
	case paid.IsPositive() && paid.GreaterThanOrEqual(total):
		return domain.InvoiceStatusPaid
	case paid.IsPositive():
		return domain.InvoiceStatusPartiallyPaid
	default:
		return domain.InvoiceStatusIssued
	}
}

// Cancel marks an unpaid invoice as cancelled
func (s *InvoiceService) Cancel(ctx context.Context, id uuid.UUID) (*domain.InvoiceDTO, error) {
	if _, err := actorID(ctx); err != nil {
		return nil, err
	}
	invoice, err := s.invoiceRepo.Cancel(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrInvoiceNotFound
		case errors.Is(err, repository.ErrInvoiceHasPayments):
			return nil, fmt.Errorf("%w: invoice with payments cannot be cancelled", ErrConflict)
		}
		return nil, fmt.Errorf("failed to cancel invoice: %w", err)
	}
	s.logger.Info("invoice cancelled", zap.String("invoiceID", invoice.ID.String()))
	s.publish(ctx, id, realtime.ActionUpdated)
	return s.GetByID(ctx, id)
}

// Delete removes an invoice with its items and payments
func (s *InvoiceService) Delete(ctx context.Context, id uuid.UUID) error {
	actor, err := actorID(ctx)
	if err != nil {
		return err
	}
	if err := s.invoiceRepo.DeleteCascade(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvoiceNotFound
		}
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	s.logger.Info("invoice deleted", zap.String("invoiceID", id.String()), zap.String("actorID", actor.String()))
	s.publish(ctx, id, realtime.ActionDeleted)
	return nil
}

func (s *InvoiceService) getInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	invoice, err := s.invoiceRepo.GetWithDetails(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return invoice, nil
}

func (s *InvoiceService) vatOf(invoice *domain.Invoice) decimal.Decimal {
	if !invoice.HasVAT {
		return decimal.Zero
	}
	return pricing.ExtractVAT(invoice.TotalAmountBYN, s.vatRate)
}

func (s *InvoiceService) publish(ctx context.Context, id uuid.UUID, action string) {
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, realtime.NewEvent(realtime.EntityInvoice, id, action))
	}
}

func invoiceLink(id uuid.UUID) string {
	return "/invoices/" + id.String()
}
