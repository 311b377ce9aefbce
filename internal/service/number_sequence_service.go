package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/repository"
	"go.uber.org/zap"
)

// Document number prefixes
const (
	ProposalNumberPrefix = "KP"
	InvoiceNumberPrefix  = "INV"
)

// NumberSequenceService generates document numbers. Numbers run per author and calendar
// day: {PREFIX}-{YYYYMMDD}-{AUTHOR}-{NN}, e.g. KP-20261018-3F2A9C1B-01.
type NumberSequenceService struct {
	repo   *repository.NumberSequenceRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewNumberSequenceService creates a new NumberSequenceService
func NewNumberSequenceService(repo *repository.NumberSequenceRepository, logger *zap.Logger) *NumberSequenceService {
	return &NumberSequenceService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// GenerateProposalNumber returns the next proposal number for authorID
func (s *NumberSequenceService) GenerateProposalNumber(ctx context.Context, authorID uuid.UUID) (string, error) {
	return s.generate(ctx, domain.SequenceScopeProposal, ProposalNumberPrefix, authorID)
}

// GenerateInvoiceNumber returns the next invoice number for authorID
func (s *NumberSequenceService) GenerateInvoiceNumber(ctx context.Context, authorID uuid.UUID) (string, error) {
	return s.generate(ctx, domain.SequenceScopeInvoice, InvoiceNumberPrefix, authorID)
}

func (s *NumberSequenceService) generate(ctx context.Context, scope domain.SequenceScope, prefix string, authorID uuid.UUID) (string, error) {
	if authorID == uuid.Nil {
		return "", fmt.Errorf("%w: author is required for numbering", ErrInvalidInput)
	}
	day := s.now().UTC().Format("20060102")

	seq, err := s.repo.GetNextNumber(ctx, scope, authorID, day)
	if err != nil {
		s.logger.Error("failed to get next sequence number",
			zap.String("scope", string(scope)),
			zap.String("authorID", authorID.String()),
			zap.String("day", day),
			zap.Error(err))
		return "", fmt.Errorf("failed to generate %s number: %w", scope, err)
	}

	number := fmt.Sprintf("%s-%s-%s-%02d", prefix, day, authorCode(authorID), seq)
	s.logger.Debug("generated number", zap.String("scope", string(scope)), zap.String("number", number))
	return number, nil
}

// authorCode is the short author tag embedded in document numbers
func authorCode(id uuid.UUID) string {
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}
