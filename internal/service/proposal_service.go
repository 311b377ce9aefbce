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

var (
	// ErrProposalNotFound is returned when a proposal does not exist
	ErrProposalNotFound = errors.New("proposal not found")

	// ErrProposalItemNotFound is returned when a cart action names an item the proposal does not have
	ErrProposalItemNotFound = errors.New("proposal item not found")
)

// ProposalService manages commercial proposals. Item edits go through the pricing
// cart reducer and are persisted together with the new total snapshot.
type ProposalService struct {
	proposalRepo *repository.ProposalRepository
	clientRepo   *repository.ClientRepository
	objectRepo   *repository.ObjectRepository
	numbers      *NumberSequenceService
	invoices     *InvoiceService
	notifier     Notifier
	publisher    realtime.Publisher
	vatRate      decimal.Decimal
	logger       *zap.Logger
}

func NewProposalService(
	proposalRepo *repository.ProposalRepository,
	clientRepo *repository.ClientRepository,
	objectRepo *repository.ObjectRepository,
	numbers *NumberSequenceService,
	invoices *InvoiceService,
	notifier Notifier,
	publisher realtime.Publisher,
	vatRate decimal.Decimal,
	logger *zap.Logger,
) *ProposalService {
	return &ProposalService{
		proposalRepo: proposalRepo,
		clientRepo:   clientRepo,
		objectRepo:   objectRepo,
		numbers:      numbers,
		invoices:     invoices,
		notifier:     notifier,
		publisher:    publisher,
		vatRate:      vatRate,
		logger:       logger,
	}
}

// Create starts an empty draft proposal numbered for the current actor
func (s *ProposalService) Create(ctx context.Context, req *domain.CreateProposalRequest) (*domain.ProposalDTO, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.ensureRefs(ctx, req.ClientID, req.ObjectID); err != nil {
		return nil, err
	}

	number, err := s.numbers.GenerateProposalNumber(ctx, actor)
	if err != nil {
		return nil, err
	}
	hasVAT := true
	if req.HasVAT != nil {
		hasVAT = *req.HasVAT
	}

	proposal := &domain.Proposal{
		Number:         number,
		ClientID:       req.ClientID,
		ObjectID:       req.ObjectID,
		HasVAT:         hasVAT,
		Preamble:       req.Preamble,
		Footer:         req.Footer,
		TotalAmountBYN: decimal.Zero,
		Status:         domain.ProposalStatusDraft,
		CreatedBy:      actor,
	}
	if err := s.proposalRepo.CreateWithItems(ctx, proposal, nil); err != nil {
		return nil, fmt.Errorf("failed to create proposal: %w", err)
	}

	s.logger.Info("proposal created",
		zap.String("proposalID", proposal.ID.String()),
		zap.String("number", proposal.Number),
	)
	s.publish(ctx, proposal.ID, realtime.ActionCreated)
	dto := mapper.ToProposalDTO(proposal)
	return &dto, nil
}

// GetByID returns a proposal with its items in display order
func (s *ProposalService) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProposalDTO, error) {
	proposal, err := s.getProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToProposalDTO(proposal)
	return &dto, nil
}

func (s *ProposalService) List(ctx context.Context, filters repository.ProposalFilters, page, pageSize int) (*domain.PaginatedResponse, error) {
	page, pageSize = repository.NormalizePage(page, pageSize)
	proposals, total, err := s.proposalRepo.List(ctx, filters, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	dtos := make([]domain.ProposalDTO, len(proposals))
	for i := range proposals {
		dtos[i] = mapper.ToProposalDTO(&proposals[i])
	}
	return paginated(dtos, total, page, pageSize), nil
}

// Update changes the header of a proposal. The total snapshot is recomputed because the
// VAT flag is part of it.
func (s *ProposalService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateProposalRequest) (*domain.ProposalDTO, error) {
	if _, err := actorID(ctx); err != nil {
		return nil, err
	}
	proposal, err := s.getProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	if proposal.Status == domain.ProposalStatusAccepted {
		return nil, fmt.Errorf("%w: accepted proposal cannot be edited", ErrConflict)
	}
	if err := s.ensureRefs(ctx, req.ClientID, req.ObjectID); err != nil {
		return nil, err
	}

	totals := pricing.ComputeTotals(mapper.ToPricingItems(proposal.Items), req.HasVAT, s.vatRate)
	if _, err := s.proposalRepo.Update(ctx, id, map[string]interface{}{
		"client_id":        req.ClientID,
		"object_id":        req.ObjectID,
		"has_vat":          req.HasVAT,
		"preamble":         req.Preamble,
		"footer":           req.Footer,
		"total_amount_byn": totals.Total,
	}); err != nil {
		return nil, fmt.Errorf("failed to update proposal: %w", err)
	}
	s.publish(ctx, id, realtime.ActionUpdated)
	return s.GetByID(ctx, id)
}

// ApplyAction runs one cart edit through the reducer and stores the resulting items and
// total in one transaction
func (s *ProposalService) ApplyAction(ctx context.Context, id uuid.UUID, req *domain.CartActionRequest) (*domain.ProposalDTO, error) {
	if _, err := actorID(ctx); err != nil {
		return nil, err
	}
	proposal, err := s.getProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	if proposal.Status == domain.ProposalStatusAccepted {
		return nil, fmt.Errorf("%w: accepted proposal cannot be edited", ErrConflict)
	}

	action, err := cartAction(req)
	if err != nil {
		return nil, err
	}
	cart, err := pricing.NewCart(mapper.ToPricingItems(proposal.Items))
	if err != nil {
		return nil, fmt.Errorf("failed to load proposal items: %w", err)
	}
	next, err := pricing.Reduce(cart, action)
	if err != nil {
		return nil, mapCartError(err)
	}

	totals := next.Totals(proposal.HasVAT, s.vatRate)
	items := mapper.FromPricingItems(id, next.Items())
	if err := s.proposalRepo.ReplaceItems(ctx, id, items, totals.Total); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("failed to save proposal items: %w", err)
	}

	s.logger.Debug("proposal cart action applied",
		zap.String("proposalID", id.String()),
		zap.String("action", string(req.Type)),
		zap.String("total", totals.Total.StringFixed(2)),
	)
	s.publish(ctx, id, realtime.ActionUpdated)
	return s.GetByID(ctx, id)
}

// cartAction translates a request into a reducer action
func cartAction(req *domain.CartActionRequest) (pricing.Action, error) {
	itemID := func() (uuid.UUID, error) {
		if req.ItemID == nil || *req.ItemID == uuid.Nil {
			return uuid.Nil, fmt.Errorf("%w: itemId is required for %s", ErrInvalidInput, req.Type)
		}
		return *req.ItemID, nil
	}
	amount := func(v *decimal.Decimal, field string) (decimal.Decimal, error) {
		if v == nil {
			return decimal.Zero, fmt.Errorf("%w: %s is required for %s", ErrInvalidInput, field, req.Type)
		}
		return *v, nil
	}
	orZero := func(v *decimal.Decimal) decimal.Decimal {
		if v == nil {
			return decimal.Zero
		}
		return *v
	}

	if req.Type == domain.CartActionAddItem {
		unit := strings.TrimSpace(req.Unit)
		if unit == "" {
			unit = "pcs"
		}
		return pricing.AddItem{Item: pricing.Item{
			ID:             uuid.New(),
			ParentID:       req.ParentID,
			ProductName:    strings.TrimSpace(req.ProductName),
			Description:    req.Description,
			Unit:           unit,
			Quantity:       orZero(req.Quantity),
			BasePrice:      orZero(req.BasePrice),
			MarkupPercent:  orZero(req.MarkupPercent),
			RetailPrice:    orZero(req.RetailPrice),
			IsBundleHeader: req.IsBundleHeader,
		}}, nil
	}

	id, err := itemID()
	if err != nil {
		return nil, err
	}
	switch req.Type {
	case domain.CartActionRemoveItem:
		return pricing.RemoveItem{ID: id}, nil
	case domain.CartActionSetQuantity:
		q, err := amount(req.Quantity, "quantity")
		if err != nil {
			return nil, err
		}
		return pricing.SetQuantity{ID: id, Quantity: q}, nil
	case domain.CartActionSetMarkup:
		p, err := amount(req.MarkupPercent, "markupPercent")
		if err != nil {
			return nil, err
		}
		return pricing.SetMarkup{ID: id, Percent: p}, nil
	case domain.CartActionSetBasePrice:
		p, err := amount(req.BasePrice, "basePrice")
		if err != nil {
			return nil, err
		}
		return pricing.SetBasePrice{ID: id, Price: p}, nil
	case domain.CartActionSetRetailPrice:
		p, err := amount(req.RetailPrice, "retailPrice")
		if err != nil {
			return nil, err
		}
		return pricing.SetRetailPrice{ID: id, Price: p}, nil
	case domain.CartActionRecalculate:
		return pricing.Recalculate{ID: id}, nil
	case domain.CartActionMoveItem:
		return pricing.MoveItem{ID: id, ParentID: req.ParentID}, nil
	}
	return nil, fmt.Errorf("%w: unknown cart action %q", ErrInvalidInput, req.Type)
}

func mapCartError(err error) error {
	switch {
	case errors.Is(err, pricing.ErrItemNotFound):
		return ErrProposalItemNotFound
	case errors.Is(err, pricing.ErrInvalidParent), errors.Is(err, pricing.ErrInvalidItem):
		return fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	return fmt.Errorf("failed to apply cart action: %w", err)
}

// Totals returns the financial summary computed from the items together with the VAT
// contained in the stored total snapshot
func (s *ProposalService) Totals(ctx context.Context, id uuid.UUID) (*domain.ProposalTotalsDTO, error) {
	proposal, err := s.getProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	totals := pricing.ComputeTotals(mapper.ToPricingItems(proposal.Items), proposal.HasVAT, s.vatRate)
	storedVAT := decimal.Zero
	if proposal.HasVAT {
		storedVAT = pricing.ExtractVAT(proposal.TotalAmountBYN, s.vatRate)
	}
	dto := mapper.ToProposalTotalsDTO(totals, proposal.TotalAmountBYN, storedVAT)
	return &dto, nil
}

// Send marks the proposal as sent and optionally issues an invoice for it
func (s *ProposalService) Send(ctx context.Context, id uuid.UUID, req *domain.SendProposalRequest) (*domain.SendProposalResponse, error) {
	if req.CreateInvoice {
		current, err := s.getProposal(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(current.Items) == 0 {
			return nil, fmt.Errorf("%w: proposal has no items", ErrInvalidInput)
		}
	}
	proposal, err := s.setStatus(ctx, id, domain.ProposalStatusSent,
		domain.ProposalStatusDraft, domain.ProposalStatusSent, domain.ProposalStatusRejected)
	if err != nil {
		return nil, err
	}

	resp := &domain.SendProposalResponse{Proposal: mapper.ToProposalDTO(proposal)}
	if req.CreateInvoice {
		invoice, err := s.invoices.CreateFromProposal(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to create invoice for proposal: %w", err)
		}
		resp.Invoice = invoice
	}
	return resp, nil
}

// Accept marks the proposal as accepted by the client. Accepted proposals are final.
func (s *ProposalService) Accept(ctx context.Context, id uuid.UUID) (*domain.ProposalDTO, error) {
	proposal, err := s.setStatus(ctx, id, domain.ProposalStatusAccepted,
		domain.ProposalStatusDraft, domain.ProposalStatusSent)
	if err != nil {
		return nil, err
	}
	s.notifyDecision(ctx, proposal, fmt.Sprintf("Proposal %s was accepted", proposal.Number))
	dto := mapper.ToProposalDTO(proposal)
	return &dto, nil
}

// Reject marks the proposal as rejected; it may be sent again later
func (s *ProposalService) Reject(ctx context.Context, id uuid.UUID) (*domain.ProposalDTO, error) {
	proposal, err := s.setStatus(ctx, id, domain.ProposalStatusRejected,
		domain.ProposalStatusDraft, domain.ProposalStatusSent)
	if err != nil {
		return nil, err
	}
	s.notifyDecision(ctx, proposal, fmt.Sprintf("Proposal %s was rejected", proposal.Number))
	dto := mapper.ToProposalDTO(proposal)
	return &dto, nil
}

func (s *ProposalService) setStatus(ctx context.Context, id uuid.UUID, to domain.ProposalStatus, from ...domain.ProposalStatus) (*domain.Proposal, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	proposal, err := s.getProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, st := range from {
		if proposal.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: proposal cannot move from %s to %s", ErrConflict, proposal.Status, to)
	}

	if proposal.Status != to {
		if _, err := s.proposalRepo.Update(ctx, id, map[string]interface{}{"status": to}); err != nil {
			return nil, fmt.Errorf("failed to update proposal status: %w", err)
		}
		s.logger.Info("proposal status changed",
			zap.String("proposalID", id.String()),
			zap.String("from", string(proposal.Status)),
			zap.String("to", string(to)),
			zap.String("actorID", actor.String()),
		)
		proposal.Status = to
		s.publish(ctx, id, realtime.ActionUpdated)
	}
	return proposal, nil
}

// Duplicate copies a proposal with all its items into a new draft
func (s *ProposalService) Duplicate(ctx context.Context, id uuid.UUID) (*domain.ProposalDTO, error) {
	actor, err := actorID(ctx)
	if err != nil {
		return nil, err
	}
	src, err := s.getProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	number, err := s.numbers.GenerateProposalNumber(ctx, actor)
	if err != nil {
		return nil, err
	}

	ids := make(map[uuid.UUID]uuid.UUID, len(src.Items))
	for _, it := range src.Items {
		ids[it.ID] = uuid.New()
	}
	items := make([]domain.ProposalItem, len(src.Items))
	for i, it := range src.Items {
		copied := it
		copied.BaseModel = domain.BaseModel{ID: ids[it.ID]}
		if it.ParentID != nil {
			parent := ids[*it.ParentID]
			copied.ParentID = &parent
		}
		items[i] = copied
	}

	proposal := &domain.Proposal{
		Number:         number,
		ClientID:       src.ClientID,
		ObjectID:       src.ObjectID,
		HasVAT:         src.HasVAT,
		Preamble:       src.Preamble,
		Footer:         src.Footer,
		TotalAmountBYN: src.TotalAmountBYN,
		Status:         domain.ProposalStatusDraft,
		CreatedBy:      actor,
	}
	if err := s.proposalRepo.CreateWithItems(ctx, proposal, items); err != nil {
		return nil, fmt.Errorf("failed to duplicate proposal: %w", err)
	}

	s.logger.Info("proposal duplicated",
		zap.String("sourceID", id.String()),
		zap.String("proposalID", proposal.ID.String()),
	)
	s.publish(ctx, proposal.ID, realtime.ActionCreated)
	return s.GetByID(ctx, proposal.ID)
}

// Delete removes a proposal that was not accepted, together with its items
func (s *ProposalService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := actorID(ctx); err != nil {
		return err
	}
	proposal, err := s.getProposal(ctx, id)
	if err != nil {
		return err
	}
	if proposal.Status == domain.ProposalStatusAccepted {
		return fmt.Errorf("%w: accepted proposal cannot be deleted", ErrConflict)
	}
	if err := s.proposalRepo.DeleteWithItems(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProposalNotFound
		}
		return fmt.Errorf("failed to delete proposal: %w", err)
	}
	s.publish(ctx, id, realtime.ActionDeleted)
	return nil
}

func (s *ProposalService) notifyDecision(ctx context.Context, proposal *domain.Proposal, message string) {
	if s.notifier == nil {
		return
	}
	actor, _ := actorID(ctx)
	recipients := []uuid.UUID{proposal.CreatedBy}
	if proposal.ObjectID != nil {
		if obj, err := s.objectRepo.GetByID(ctx, *proposal.ObjectID); err == nil && obj.ResponsibleID != nil {
			recipients = append(recipients, *obj.ResponsibleID)
		}
	}
	seen := map[uuid.UUID]struct{}{actor: {}, uuid.Nil: {}}
	for _, id := range recipients {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		s.notifier.Notify(ctx, id, message, "/proposals/"+proposal.ID.String())
	}
}

func (s *ProposalService) ensureRefs(ctx context.Context, clientID, objectID *uuid.UUID) error {
	if clientID != nil {
		if _, err := s.clientRepo.GetByID(ctx, *clientID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrClientNotFound
			}
			return fmt.Errorf("failed to get client: %w", err)
		}
	}
	if objectID != nil {
		if _, err := s.objectRepo.GetByID(ctx, *objectID); err != nil {
			return mapObjectError(err)
		}
	}
	return nil
}

func (s *ProposalService) getProposal(ctx context.Context, id uuid.UUID) (*domain.Proposal, error) {
	proposal, err := s.proposalRepo.GetWithItems(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProposalNotFound
		}
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return proposal, nil
}

func (s *ProposalService) publish(ctx context.Context, id uuid.UUID, action string) {
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, realtime.NewEvent(realtime.EntityProposal, id, action))
	}
}
