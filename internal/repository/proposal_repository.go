package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smartdom/crm-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProposalFilters narrows proposal listings; nil fields are ignored
type ProposalFilters struct {
	Status    *domain.ProposalStatus
	ClientID  *uuid.UUID
	ObjectID  *uuid.UUID
	CreatedBy *uuid.UUID
	Search    string
}

type ProposalRepository struct {
	*Collection[domain.Proposal]
}

func NewProposalRepository(db *gorm.DB) *ProposalRepository {
	return &ProposalRepository{Collection: NewCollection[domain.Proposal](db)}
}

// GetWithItems returns a proposal with its items in display order
func (r *ProposalRepository) GetWithItems(ctx context.Context, id uuid.UUID) (*domain.Proposal, error) {
	var proposal domain.Proposal
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&proposal, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

// List returns a page of proposals, newest first
func (r *ProposalRepository) List(ctx context.Context, filters ProposalFilters, page, pageSize int) ([]domain.Proposal, int64, error) {
	var proposals []domain.Proposal
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Proposal{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.ClientID != nil {
		query = query.Where("client_id = ?", *filters.ClientID)
	}
	if filters.ObjectID != nil {
		query = query.Where("object_id = ?", *filters.ObjectID)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		query = query.Where("number LIKE ?", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := paginate(query, page, pageSize).Order("created_at DESC").Find(&proposals).Error
	return proposals, total, err
}

// CreateWithItems inserts a proposal and its items in one transaction.
// Items must be ordered parents first.
func (r *ProposalRepository) CreateWithItems(ctx context.Context, proposal *domain.Proposal, items []domain.ProposalItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(proposal).Error; err != nil {
			return fmt.Errorf("failed to create proposal: %w", err)
		}
		for i := range items {
			items[i].ProposalID = proposal.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return fmt.Errorf("failed to create proposal items: %w", err)
			}
		}
		proposal.Items = items
		return nil
	})
}

// ReplaceItems swaps the whole item set of a proposal and stores the new total snapshot
func (r *ProposalRepository) ReplaceItems(ctx context.Context, proposalID uuid.UUID, items []domain.ProposalItem, total decimal.Decimal) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var proposal domain.Proposal
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&proposal, "id = ?", proposalID).Error; err != nil {
			return err
		}
		if err := tx.Where("proposal_id = ?", proposalID).Delete(&domain.ProposalItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete proposal items: %w", err)
		}
		for i := range items {
			items[i].ProposalID = proposalID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return fmt.Errorf("failed to create proposal items: %w", err)
			}
		}
		if err := tx.Model(&domain.Proposal{}).Where("id = ?", proposalID).
			Update("total_amount_byn", total).Error; err != nil {
			return fmt.Errorf("failed to update proposal total: %w", err)
		}
		return nil
	})
}

// DeleteWithItems removes a proposal and its items
func (r *ProposalRepository) DeleteWithItems(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("proposal_id = ?", id).Delete(&domain.ProposalItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete proposal items: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&domain.Proposal{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete proposal: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
