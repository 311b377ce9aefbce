package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smartdom/crm-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvoiceCancelled is returned when a payment targets a cancelled invoice
	ErrInvoiceCancelled = errors.New("invoice is cancelled")
	// ErrInvoiceHasPayments is returned when cancelling an invoice that already received money
	ErrInvoiceHasPayments = errors.New("invoice has payments")
)

// InvoiceFilters narrows invoice listings; nil fields are ignored
type InvoiceFilters struct {
	ProposalID *uuid.UUID
	ClientID   *uuid.UUID
	ObjectID   *uuid.UUID
	Status     *domain.InvoiceStatus
}

// PaymentStatusFunc derives the invoice status from its total and the amount paid so far
type PaymentStatusFunc func(total, paid decimal.Decimal) domain.InvoiceStatus

type InvoiceRepository struct {
	*Collection[domain.Invoice]
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{Collection: NewCollection[domain.Invoice](db)}
}

// CreateWithItems inserts the invoice and its items in one transaction.
// Items must be ordered parents first with parent ids already pointing at invoice items.
func (r *InvoiceRepository) CreateWithItems(ctx context.Context, invoice *domain.Invoice, items []domain.InvoiceItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(invoice).Error; err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		for i := range items {
			items[i].InvoiceID = invoice.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return fmt.Errorf("failed to create invoice items: %w", err)
			}
		}
		invoice.Items = items
		return nil
	})
}

// GetWithDetails returns an invoice with items in display order and payments by date
func (r *InvoiceRepository) GetWithDetails(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("paid_at ASC")
		}).
		First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// List returns a page of invoices, newest first
func (r *InvoiceRepository) List(ctx context.Context, filters InvoiceFilters, page, pageSize int) ([]domain.Invoice, int64, error) {
	var invoices []domain.Invoice
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Invoice{})
	if filters.ProposalID != nil {
		query = query.Where("proposal_id = ?", *filters.ProposalID)
	}
	if filters.ClientID != nil {
		query = query.Where("client_id = ?", *filters.ClientID)
	}
	if filters.ObjectID != nil {
		query = query.Where("object_id = ?", *filters.ObjectID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := paginate(query, page, pageSize).
		Preload("Payments").
		Order("created_at DESC").
		Find(&invoices).Error
	return invoices, total, err
}

// AddPayment stores a payment and updates the invoice status from the new paid sum.
// The status check runs under the row lock so a concurrent Cancel cannot be overwritten.
func (r *InvoiceRepository) AddPayment(ctx context.Context, payment *domain.InvoicePayment, statusFor PaymentStatusFunc) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&invoice, "id = ?", payment.InvoiceID).Error; err != nil {
			return err
		}
		if invoice.Status == domain.InvoiceStatusCancelled {
			return ErrInvoiceCancelled
		}
		if err := tx.Create(payment).Error; err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}

		var payments []domain.InvoicePayment
		if err := tx.Where("invoice_id = ?", invoice.ID).Find(&payments).Error; err != nil {
			return fmt.Errorf("failed to load payments: %w", err)
		}
		paid := decimal.Zero
		for _, p := range payments {
			paid = paid.Add(p.Amount)
		}

		status := statusFor(invoice.TotalAmountBYN, paid)
		if err := tx.Model(&domain.Invoice{}).Where("id = ?", invoice.ID).Update("status", status).Error; err != nil {
			return fmt.Errorf("failed to update invoice status: %w", err)
		}
		invoice.Status = status
		invoice.Payments = payments
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// Cancel marks the invoice cancelled unless it already has payments. Cancelling a
// cancelled invoice is a no-op.
func (r *InvoiceRepository) Cancel(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&invoice, "id = ?", id).Error; err != nil {
			return err
		}
		if invoice.Status == domain.InvoiceStatusCancelled {
			return nil
		}
		var payments int64
		if err := tx.Model(&domain.InvoicePayment{}).Where("invoice_id = ?", id).Count(&payments).Error; err != nil {
			return fmt.Errorf("failed to count payments: %w", err)
		}
		if payments > 0 {
			return ErrInvoiceHasPayments
		}
		if err := tx.Model(&domain.Invoice{}).Where("id = ?", id).
			Update("status", domain.InvoiceStatusCancelled).Error; err != nil {
			return fmt.Errorf("failed to cancel invoice: %w", err)
		}
		invoice.Status = domain.InvoiceStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// DeleteCascade removes an invoice with its payments and items
func (r *InvoiceRepository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", id).Delete(&domain.InvoicePayment{}).Error; err != nil {
			return fmt.Errorf("failed to delete invoice payments: %w", err)
		}
		if err := tx.Where("invoice_id = ?", id).Delete(&domain.InvoiceItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete invoice items: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&domain.Invoice{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete invoice: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
