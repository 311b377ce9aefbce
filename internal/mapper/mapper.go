package mapper

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smartdom/crm-api/internal/domain"
	"github.com/smartdom/crm-api/internal/pricing"
)

const timeLayout = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// ToProfileDTO converts Profile to ProfileDTO
func ToProfileDTO(profile *domain.Profile) domain.ProfileDTO {
	return domain.ProfileDTO{
		ID:             profile.ID,
		FullName:       profile.FullName,
		Email:          profile.Email,
		Role:           profile.Role,
		TelegramLinked: profile.TelegramChatID != "",
		IsActive:       profile.IsActive,
	}
}

// ToClientDTO converts Client to ClientDTO
func ToClientDTO(client *domain.Client) domain.ClientDTO {
	return domain.ClientDTO{
		ID:        client.ID,
		Name:      client.Name,
		Phone:     client.Phone,
		Email:     client.Email,
		Address:   client.Address,
		Notes:     client.Notes,
		CreatedBy: client.CreatedBy,
		CreatedAt: formatTime(client.CreatedAt),
		UpdatedAt: formatTime(client.UpdatedAt),
	}
}

// ToObjectDTO converts Object to ObjectDTO. active may be nil, e.g. for completed objects.
func ToObjectDTO(obj *domain.Object, active *domain.ObjectStage) domain.ObjectDTO {
	dto := domain.ObjectDTO{
		ID:             obj.ID,
		Name:           obj.Name,
		Address:        obj.Address,
		ClientID:       obj.ClientID,
		ResponsibleID:  obj.ResponsibleID,
		CurrentStage:   obj.CurrentStage,
		CurrentStatus:  obj.CurrentStatus,
		RolledBackFrom: obj.RolledBackFrom,
		Participants:   obj.ParticipantIDs(),
		CreatedBy:      obj.CreatedBy,
		UpdatedBy:      obj.UpdatedBy,
		CreatedAt:      formatTime(obj.CreatedAt),
		UpdatedAt:      formatTime(obj.UpdatedAt),
	}
	if obj.Client != nil {
		dto.ClientName = obj.Client.Name
	}
	if active != nil {
		stage := ToObjectStageDTO(active, time.Now())
		dto.ActiveStage = &stage
	}
	return dto
}

// ToObjectStageDTO converts ObjectStage to ObjectStageDTO, evaluating overdue at now
func ToObjectStageDTO(stage *domain.ObjectStage, now time.Time) domain.ObjectStageDTO {
	return domain.ObjectStageDTO{
		ID:            stage.ID,
		ObjectID:      stage.ObjectID,
		StageName:     stage.StageName,
		Status:        stage.Status,
		StartedAt:     formatTimePtr(stage.StartedAt),
		CompletedAt:   formatTimePtr(stage.CompletedAt),
		Deadline:      formatTimePtr(stage.Deadline),
		ResponsibleID: stage.ResponsibleID,
		ExtensionDays: stage.ExtensionDays,
		IsOverdue:     stage.IsOverdue(now),
	}
}

// ToObjectHistoryDTO converts ObjectHistory to ObjectHistoryDTO
func ToObjectHistoryDTO(entry *domain.ObjectHistory) domain.ObjectHistoryDTO {
	return domain.ObjectHistoryDTO{
		ID:        entry.ID,
		ObjectID:  entry.ObjectID,
		Action:    entry.Action,
		FromStage: entry.FromStage,
		ToStage:   entry.ToStage,
		Reason:    entry.Reason,
		ActorID:   entry.ActorID,
		CreatedAt: formatTime(entry.CreatedAt),
	}
}

// ToTaskDTO converts Task to TaskDTO
func ToTaskDTO(task *domain.Task) domain.TaskDTO {
	return domain.TaskDTO{
		ID:                task.ID,
		ObjectID:          task.ObjectID,
		StageID:           task.StageID,
		Title:             task.Title,
		Description:       task.Description,
		AssignedTo:        task.AssignedTo,
		Status:            task.Status,
		Deadline:          formatTimePtr(task.Deadline),
		CompletedAt:       formatTimePtr(task.CompletedAt),
		CompletedBy:       task.CompletedBy,
		CompletionComment: task.CompletionComment,
		CreatedBy:         task.CreatedBy,
		CreatedAt:         formatTime(task.CreatedAt),
		UpdatedAt:         formatTime(task.UpdatedAt),
	}
}

// ToTaskDTOs converts a slice of tasks
func ToTaskDTOs(tasks []domain.Task) []domain.TaskDTO {
	dtos := make([]domain.TaskDTO, len(tasks))
	for i := range tasks {
		dtos[i] = ToTaskDTO(&tasks[i])
	}
	return dtos
}

// ToPricingItem converts a stored proposal item to the pricing engine's view
func ToPricingItem(item *domain.ProposalItem) pricing.Item {
	return pricing.Item{
		ID:             item.ID,
		ParentID:       item.ParentID,
		ProductName:    item.ProductName,
		Description:    item.Description,
		Unit:           item.Unit,
		Quantity:       item.Quantity,
		BasePrice:      item.BasePrice,
		MarkupPercent:  item.ManualMarkupPercent,
		RetailPrice:    item.RetailPrice,
		IsBundleHeader: item.IsBundleHeader,
		IsManualPrice:  item.IsManualPrice,
	}
}

// ToPricingItems converts stored proposal items, keeping their order
func ToPricingItems(items []domain.ProposalItem) []pricing.Item {
	out := make([]pricing.Item, len(items))
	for i := range items {
		out[i] = ToPricingItem(&items[i])
	}
	return out
}

// FromPricingItems converts engine items back to proposal items, numbering positions in order
func FromPricingItems(proposalID uuid.UUID, items []pricing.Item) []domain.ProposalItem {
	out := make([]domain.ProposalItem, len(items))
	for i, it := range items {
		out[i] = domain.ProposalItem{
			ProposalID:          proposalID,
			ParentID:            it.ParentID,
			ProductName:         it.ProductName,
			Description:         it.Description,
			Unit:                it.Unit,
			Quantity:            it.Quantity,
			BasePrice:           it.BasePrice,
			ManualMarkupPercent: it.MarkupPercent,
			RetailPrice:         it.RetailPrice,
			IsBundleHeader:      it.IsBundleHeader,
			IsManualPrice:       it.IsManualPrice,
			Position:            i,
		}
		out[i].ID = it.ID
	}
	return out
}

// ToProposalItemDTO converts ProposalItem to ProposalItemDTO with computed prices
func ToProposalItemDTO(item *domain.ProposalItem) domain.ProposalItemDTO {
	it := ToPricingItem(item)
	return domain.ProposalItemDTO{
		ID:                  item.ID,
		ParentID:            item.ParentID,
		ProductName:         item.ProductName,
		Description:         item.Description,
		Unit:                item.Unit,
		Quantity:            item.Quantity,
		BasePrice:           item.BasePrice,
		ManualMarkupPercent: item.ManualMarkupPercent,
		RetailPrice:         item.RetailPrice,
		UnitPrice:           pricing.UnitPrice(it),
		LineTotal:           pricing.LineTotal(it),
		IsBundleHeader:      item.IsBundleHeader,
		IsManualPrice:       item.IsManualPrice,
		Position:            item.Position,
	}
}

// ToProposalDTO converts Proposal to ProposalDTO including any loaded items
func ToProposalDTO(proposal *domain.Proposal) domain.ProposalDTO {
	dto := domain.ProposalDTO{
		ID:             proposal.ID,
		Number:         proposal.Number,
		ClientID:       proposal.ClientID,
		ObjectID:       proposal.ObjectID,
		HasVAT:         proposal.HasVAT,
		Preamble:       proposal.Preamble,
		Footer:         proposal.Footer,
		TotalAmountBYN: proposal.TotalAmountBYN,
		Status:         proposal.Status,
		CreatedBy:      proposal.CreatedBy,
		CreatedAt:      formatTime(proposal.CreatedAt),
		UpdatedAt:      formatTime(proposal.UpdatedAt),
	}
	if len(proposal.Items) > 0 {
		dto.Items = make([]domain.ProposalItemDTO, len(proposal.Items))
		for i := range proposal.Items {
			dto.Items[i] = ToProposalItemDTO(&proposal.Items[i])
		}
	}
	return dto
}

// ToProposalTotalsDTO combines computed totals with the VAT extracted from the stored snapshot
func ToProposalTotalsDTO(totals pricing.Totals, stored, storedVAT decimal.Decimal) domain.ProposalTotalsDTO {
	return domain.ProposalTotalsDTO{
		Subtotal:      totals.Subtotal,
		Cost:          totals.Cost,
		VAT:           totals.VAT,
		Total:         totals.Total,
		Profit:        totals.Profit,
		MarkupPercent: totals.MarkupPercent,
		StoredTotal:   stored,
		StoredVAT:     storedVAT,
	}
}

// ToInvoiceDTO converts Invoice to InvoiceDTO. vat is the VAT contained in the total.
func ToInvoiceDTO(invoice *domain.Invoice, vat decimal.Decimal) domain.InvoiceDTO {
	dto := domain.InvoiceDTO{
		ID:             invoice.ID,
		Number:         invoice.Number,
		ProposalID:     invoice.ProposalID,
		ClientID:       invoice.ClientID,
		ObjectID:       invoice.ObjectID,
		HasVAT:         invoice.HasVAT,
		TotalAmountBYN: invoice.TotalAmountBYN,
		VATAmount:      vat,
		PaidAmount:     decimal.Zero,
		Status:         invoice.Status,
		CreatedBy:      invoice.CreatedBy,
		CreatedAt:      formatTime(invoice.CreatedAt),
		UpdatedAt:      formatTime(invoice.UpdatedAt),
	}
	for _, item := range invoice.Items {
		dto.Items = append(dto.Items, domain.InvoiceItemDTO{
			ID:             item.ID,
			ParentID:       item.ParentID,
			ProductName:    item.ProductName,
			Description:    item.Description,
			Unit:           item.Unit,
			Quantity:       item.Quantity,
			Price:          item.Price,
			Total:          item.Total,
			IsBundleHeader: item.IsBundleHeader,
			Position:       item.Position,
		})
	}
	for _, p := range invoice.Payments {
		dto.PaidAmount = dto.PaidAmount.Add(p.Amount)
		dto.Payments = append(dto.Payments, domain.InvoicePaymentDTO{
			ID:        p.ID,
			Amount:    p.Amount,
			PaidAt:    formatTime(p.PaidAt),
			Comment:   p.Comment,
			CreatedBy: p.CreatedBy,
		})
	}
	return dto
}

// ToNotificationDTO converts Notification to NotificationDTO
func ToNotificationDTO(notification *domain.Notification) domain.NotificationDTO {
	return domain.NotificationDTO{
		ID:        notification.ID,
		ProfileID: notification.ProfileID,
		Message:   notification.Message,
		Link:      notification.Link,
		IsRead:    notification.IsRead,
		ReadAt:    formatTimePtr(notification.ReadAt),
		CreatedAt: formatTime(notification.CreatedAt),
	}
}

func ToObjectFileDTO(file *domain.ObjectFile) domain.ObjectFileDTO {
	return domain.ObjectFileDTO{
		ID:          file.ID,
		ObjectID:    file.ObjectID,
		StageID:     file.StageID,
		Filename:    file.Filename,
		ContentType: file.ContentType,
		Size:        file.Size,
		UploadedBy:  file.UploadedBy,
		CreatedAt:   formatTime(file.CreatedAt),
	}
}
