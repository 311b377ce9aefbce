package mapper_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/mapper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToObjectDTO(t *testing.T) {
	participant := uuid.New()
	deadline := time.Now().Add(-time.Hour)
	obj := &domain.Object{
		Name:          "Cottage",
		CurrentStage:  domain.StageDesign,
		CurrentStatus: domain.ObjectStatusInWork,
		Participants:  pq.StringArray{participant.String(), "garbage"},
		Client:        &domain.Client{Name: "Petrov"},
	}
	obj.ID = uuid.New()
	active := &domain.ObjectStage{
		ObjectID:  obj.ID,
		StageName: domain.StageDesign,
		Status:    domain.StageStatusActive,
		Deadline:  &deadline,
	}

	dto := mapper.ToObjectDTO(obj, active)
	assert.Equal(t, "Petrov", dto.ClientName)
	assert.Equal(t, []uuid.UUID{participant}, dto.Participants)
	require.NotNil(t, dto.ActiveStage)
	assert.True(t, dto.ActiveStage.IsOverdue)
	assert.NotNil(t, dto.ActiveStage.Deadline)
	assert.Nil(t, dto.ActiveStage.CompletedAt)

	dto = mapper.ToObjectDTO(obj, nil)
	assert.Nil(t, dto.ActiveStage)
}

func TestPricingItemRoundTrip(t *testing.T) {
	proposalID := uuid.New()
	headerID := uuid.New()
	items := []domain.ProposalItem{
		{ProductName: "Kit", IsBundleHeader: true, Quantity: decimal.NewFromInt(1), RetailPrice: decimal.RequireFromString("29.00")},
		{ParentID: &headerID, ProductName: "Relay", Quantity: decimal.NewFromInt(2),
			BasePrice: decimal.RequireFromString("10.00"), ManualMarkupPercent: decimal.RequireFromString("45")},
	}
	items[0].ID = headerID
	items[1].ID = uuid.New()

	back := mapper.FromPricingItems(proposalID, mapper.ToPricingItems(items))
	require.Len(t, back, 2)
	for i := range items {
		assert.Equal(t, items[i].ID, back[i].ID)
		assert.Equal(t, proposalID, back[i].ProposalID)
		assert.Equal(t, i, back[i].Position)
	}
	assert.True(t, back[1].ManualMarkupPercent.Equal(items[1].ManualMarkupPercent))
}

func TestToProposalItemDTO(t *testing.T) {
	item := &domain.ProposalItem{
		ProductName:         "Dimmer",
		Quantity:            decimal.NewFromInt(3),
		BasePrice:           decimal.RequireFromString("10.005"),
		ManualMarkupPercent: decimal.Zero,
	}
	dto := mapper.ToProposalItemDTO(item)
	assert.Equal(t, "10.01", dto.UnitPrice.StringFixed(2))
	assert.Equal(t, "30.03", dto.LineTotal.StringFixed(2))
}

func TestToInvoiceDTO_SumsPayments(t *testing.T) {
	invoice := &domain.Invoice{
		TotalAmountBYN: decimal.RequireFromString("120.00"),
		Status:         domain.InvoiceStatusPartiallyPaid,
		Payments: []domain.InvoicePayment{
			{Amount: decimal.RequireFromString("20.00"), PaidAt: time.Now()},
			{Amount: decimal.RequireFromString("30.50"), PaidAt: time.Now()},
		},
	}
	dto := mapper.ToInvoiceDTO(invoice, decimal.RequireFromString("20.00"))
	assert.Equal(t, "50.50", dto.PaidAmount.StringFixed(2))
	assert.Len(t, dto.Payments, 2)
	assert.Equal(t, "20.00", dto.VATAmount.StringFixed(2))
}

func TestToNotificationDTO(t *testing.T) {
	readAt := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	dto := mapper.ToNotificationDTO(&domain.Notification{Message: "hi", IsRead: true, ReadAt: &readAt})
	require.NotNil(t, dto.ReadAt)
	assert.Equal(t, "2026-10-18T09:30:00Z", *dto.ReadAt)
}
