package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/repository"
	"github.com/smartdom/crm-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newProposalItems(t *testing.T) []domain.ProposalItem {
	header := domain.ProposalItem{
		ProductName:    "Lighting kit",
		Quantity:       decimal.NewFromInt(1),
		RetailPrice:    testutil.Money(t, "29.00"),
		IsBundleHeader: true,
		Position:       0,
	}
	header.ID = uuid.New()
	child := domain.ProposalItem{
		ParentID:            &header.ID,
		ProductName:         "Dimmer",
		Quantity:            decimal.NewFromInt(2),
		BasePrice:           testutil.Money(t, "10.00"),
		ManualMarkupPercent: testutil.Money(t, "45.00"),
		RetailPrice:         testutil.Money(t, "14.50"),
		Position:            1,
	}
	return []domain.ProposalItem{header, child}
}

func TestProposalRepository_CreateAndReplaceItems(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewProposalRepository(db)
	ctx := context.Background()
	author := testutil.CreateTestProfile(t, db, "Olga Sales")

	proposal := &domain.Proposal{
		Number:    "KP-20261018-" + author.ID.String()[:4] + "-1",
		HasVAT:    true,
		Status:    domain.ProposalStatusDraft,
		CreatedBy: author.ID,
	}
	require.NoError(t, repo.CreateWithItems(ctx, proposal, newProposalItems(t)))

	loaded, err := repo.GetWithItems(ctx, proposal.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)
	assert.True(t, loaded.Items[0].IsBundleHeader)
	require.NotNil(t, loaded.Items[1].ParentID)
	assert.Equal(t, loaded.Items[0].ID, *loaded.Items[1].ParentID)

	replacement := []domain.ProposalItem{{
		ProductName: "Gateway",
		Quantity:    decimal.NewFromInt(1),
		BasePrice:   testutil.Money(t, "100.00"),
		RetailPrice: testutil.Money(t, "130.00"),
	}}
	require.NoError(t, repo.ReplaceItems(ctx, proposal.ID, replacement, testutil.Money(t, "156.00")))

	loaded, err = repo.GetWithItems(ctx, proposal.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, "Gateway", loaded.Items[0].ProductName)
	assert.Equal(t, "156.00", loaded.TotalAmountBYN.StringFixed(2))

	t.Run("replace on a missing proposal", func(t *testing.T) {
		err := repo.ReplaceItems(ctx, uuid.New(), nil, decimal.Zero)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("list filters by status", func(t *testing.T) {
		draft := domain.ProposalStatusDraft
		list, total, err := repo.List(ctx, repository.ProposalFilters{Status: &draft}, 1, 20)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, list, 1)

		sent := domain.ProposalStatusSent
		_, total, err = repo.List(ctx, repository.ProposalFilters{Status: &sent}, 1, 20)
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	require.NoError(t, repo.DeleteWithItems(ctx, proposal.ID))
	_, err = repo.GetWithItems(ctx, proposal.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var orphans int64
	require.NoError(t, db.Model(&domain.ProposalItem{}).Where("proposal_id = ?", proposal.ID).Count(&orphans).Error)
	assert.Zero(t, orphans)
}

func paidStatus(total, paid decimal.Decimal) domain.InvoiceStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return domain.InvoiceStatusPaid
	case paid.IsPositive():
		return domain.InvoiceStatusPartiallyPaid
	default:
		return domain.InvoiceStatusIssued
	}
}

func TestInvoiceRepository_PaymentsAndDelete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewInvoiceRepository(db)
	ctx := context.Background()
	author := testutil.CreateTestProfile(t, db, "Pavel Accountant")

	invoice := &domain.Invoice{
		Number:         "INV-20261018-1",
		HasVAT:         true,
		TotalAmountBYN: testutil.Money(t, "100.00"),
		Status:         domain.InvoiceStatusIssued,
		CreatedBy:      author.ID,
	}
	items := []domain.InvoiceItem{{
		ProductName: "Thermostat",
		Quantity:    decimal.NewFromInt(2),
		Price:       testutil.Money(t, "41.67"),
		Total:       testutil.Money(t, "83.34"),
	}}
	require.NoError(t, repo.CreateWithItems(ctx, invoice, items))

	updated, err := repo.AddPayment(ctx, &domain.InvoicePayment{
		InvoiceID: invoice.ID,
		Amount:    testutil.Money(t, "40.00"),
		PaidAt:    time.Now().UTC(),
		CreatedBy: author.ID,
	}, paidStatus)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPartiallyPaid, updated.Status)

	updated, err = repo.AddPayment(ctx, &domain.InvoicePayment{
		InvoiceID: invoice.ID,
		Amount:    testutil.Money(t, "60.00"),
		PaidAt:    time.Now().UTC(),
		CreatedBy: author.ID,
	}, paidStatus)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, updated.Status)
	assert.Len(t, updated.Payments, 2)

	loaded, err := repo.GetWithDetails(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Items, 1)
	assert.Len(t, loaded.Payments, 2)
	assert.Equal(t, domain.InvoiceStatusPaid, loaded.Status)

	_, err = repo.AddPayment(ctx, &domain.InvoicePayment{InvoiceID: uuid.New(), Amount: decimal.NewFromInt(1)}, paidStatus)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, repo.DeleteCascade(ctx, invoice.ID))
	_, err = repo.GetWithDetails(ctx, invoice.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.ErrorIs(t, repo.DeleteCascade(ctx, invoice.ID), gorm.ErrRecordNotFound)
}

func TestInvoiceRepository_CancelAndPaymentsUnderLock(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewInvoiceRepository(db)
	ctx := context.Background()
	author := testutil.CreateTestProfile(t, db, "Pavel Accountant")

	newInvoice := func(number string) *domain.Invoice {
		invoice := &domain.Invoice{
			Number:         number,
			HasVAT:         true,
			TotalAmountBYN: testutil.Money(t, "100.00"),
			Status:         domain.InvoiceStatusIssued,
			CreatedBy:      author.ID,
		}
		require.NoError(t, repo.CreateWithItems(ctx, invoice, nil))
		return invoice
	}
	pay := func(id uuid.UUID) (*domain.Invoice, error) {
		return repo.AddPayment(ctx, &domain.InvoicePayment{
			InvoiceID: id,
			Amount:    testutil.Money(t, "40.00"),
			PaidAt:    time.Now().UTC(),
			CreatedBy: author.ID,
		}, paidStatus)
	}

	t.Run("payment after cancel is refused and writes nothing", func(t *testing.T) {
		invoice := newInvoice("INV-20261018-2")
		cancelled, err := repo.Cancel(ctx, invoice.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.InvoiceStatusCancelled, cancelled.Status)

		_, err = pay(invoice.ID)
		assert.ErrorIs(t, err, repository.ErrInvoiceCancelled)

		loaded, err := repo.GetWithDetails(ctx, invoice.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.InvoiceStatusCancelled, loaded.Status)
		assert.Empty(t, loaded.Payments)

		again, err := repo.Cancel(ctx, invoice.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.InvoiceStatusCancelled, again.Status)
	})

	t.Run("cancel after payment is refused", func(t *testing.T) {
		invoice := newInvoice("INV-20261018-3")
		_, err := pay(invoice.ID)
		require.NoError(t, err)

		_, err = repo.Cancel(ctx, invoice.ID)
		assert.ErrorIs(t, err, repository.ErrInvoiceHasPayments)

		loaded, err := repo.GetWithDetails(ctx, invoice.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.InvoiceStatusPartiallyPaid, loaded.Status)
	})

	t.Run("unknown invoice", func(t *testing.T) {
		_, err := repo.Cancel(ctx, uuid.New())
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}
