package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs for API responses. Timestamps are ISO 8601 strings, money is a decimal string.

type ProfileDTO struct {
	ID             uuid.UUID   `json:"id"`
	FullName       string      `json:"fullName"`
	Email          string      `json:"email,omitempty"`
	Role           ProfileRole `json:"role"`
	TelegramLinked bool        `json:"telegramLinked"`
	IsActive       bool        `json:"isActive"`
}

type ClientDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedBy uuid.UUID `json:"createdBy"`
	CreatedAt string    `json:"createdAt"`
	UpdatedAt string    `json:"updatedAt"`
}

type ObjectDTO struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Address        string          `json:"address,omitempty"`
	ClientID       *uuid.UUID      `json:"clientId,omitempty"`
	ClientName     string          `json:"clientName,omitempty"`
	ResponsibleID  *uuid.UUID      `json:"responsibleId,omitempty"`
	CurrentStage   StageID         `json:"currentStage"`
	CurrentStatus  ObjectStatus    `json:"currentStatus"`
	RolledBackFrom *StageID        `json:"rolledBackFrom,omitempty"`
	Participants   []uuid.UUID     `json:"participants"`
	ActiveStage    *ObjectStageDTO `json:"activeStage,omitempty"`
	CreatedBy      uuid.UUID       `json:"createdBy"`
	UpdatedBy      uuid.UUID       `json:"updatedBy"`
	CreatedAt      string          `json:"createdAt"`
	UpdatedAt      string          `json:"updatedAt"`
}

type ObjectStageDTO struct {
	ID            uuid.UUID   `json:"id"`
	ObjectID      uuid.UUID   `json:"objectId"`
	StageName     StageID     `json:"stageName"`
	Status        StageStatus `json:"status"`
	StartedAt     *string     `json:"startedAt,omitempty"`
	CompletedAt   *string     `json:"completedAt,omitempty"`
	Deadline      *string     `json:"deadline,omitempty"`
	ResponsibleID *uuid.UUID  `json:"responsibleId,omitempty"`
	ExtensionDays int         `json:"extensionDays"`
	IsOverdue     bool        `json:"isOverdue"`
}

type ObjectHistoryDTO struct {
	ID        uuid.UUID     `json:"id"`
	ObjectID  uuid.UUID     `json:"objectId"`
	Action    HistoryAction `json:"action"`
	FromStage *StageID      `json:"fromStage,omitempty"`
	ToStage   *StageID      `json:"toStage,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	ActorID   uuid.UUID     `json:"actorId"`
	CreatedAt string        `json:"createdAt"`
}

type TaskDTO struct {
	ID                uuid.UUID  `json:"id"`
	ObjectID          uuid.UUID  `json:"objectId"`
	StageID           StageID    `json:"stageId"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	AssignedTo        *uuid.UUID `json:"assignedTo,omitempty"`
	Status            TaskStatus `json:"status"`
	Deadline          *string    `json:"deadline,omitempty"`
	CompletedAt       *string    `json:"completedAt,omitempty"`
	CompletedBy       *uuid.UUID `json:"completedBy,omitempty"`
	CompletionComment string     `json:"completionComment,omitempty"`
	CreatedBy         uuid.UUID  `json:"createdBy"`
	CreatedAt         string     `json:"createdAt"`
	UpdatedAt         string     `json:"updatedAt"`
}

type ProposalItemDTO struct {
	ID                  uuid.UUID       `json:"id"`
	ParentID            *uuid.UUID      `json:"parentId,omitempty"`
	ProductName         string          `json:"productName"`
	Description         string          `json:"description,omitempty"`
	Unit                string          `json:"unit"`
	Quantity            decimal.Decimal `json:"quantity"`
	BasePrice           decimal.Decimal `json:"basePrice"`
	ManualMarkupPercent decimal.Decimal `json:"manualMarkupPercent"`
	RetailPrice         decimal.Decimal `json:"retailPrice"`
	UnitPrice           decimal.Decimal `json:"unitPrice"`
	LineTotal           decimal.Decimal `json:"lineTotal"`
	IsBundleHeader      bool            `json:"isBundleHeader"`
	IsManualPrice       bool            `json:"isManualPrice"`
	Position            int             `json:"position"`
}

type ProposalDTO struct {
	ID             uuid.UUID         `json:"id"`
	Number         string            `json:"number"`
	ClientID       *uuid.UUID        `json:"clientId,omitempty"`
	ObjectID       *uuid.UUID        `json:"objectId,omitempty"`
	HasVAT         bool              `json:"hasVat"`
	Preamble       string            `json:"preamble,omitempty"`
	Footer         string            `json:"footer,omitempty"`
	TotalAmountBYN decimal.Decimal   `json:"totalAmountByn"`
	Status         ProposalStatus    `json:"status"`
	CreatedBy      uuid.UUID         `json:"createdBy"`
	Items          []ProposalItemDTO `json:"items,omitempty"`
	CreatedAt      string            `json:"createdAt"`
	UpdatedAt      string            `json:"updatedAt"`
}

// ProposalTotalsDTO holds the entry-time totals computed from items and the VAT extracted
// from the stored VAT-inclusive snapshot
type ProposalTotalsDTO struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	Cost          decimal.Decimal `json:"cost"`
	VAT           decimal.Decimal `json:"vat"`
	Total         decimal.Decimal `json:"total"`
	Profit        decimal.Decimal `json:"profit"`
	MarkupPercent decimal.Decimal `json:"markupPercent"`
	StoredTotal   decimal.Decimal `json:"storedTotal"`
	StoredVAT     decimal.Decimal `json:"storedVat"`
}

type InvoiceItemDTO struct {
	ID             uuid.UUID       `json:"id"`
	ParentID       *uuid.UUID      `json:"parentId,omitempty"`
	ProductName    string          `json:"productName"`
	Description    string          `json:"description,omitempty"`
	Unit           string          `json:"unit"`
	Quantity       decimal.Decimal `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	Total          decimal.Decimal `json:"total"`
	IsBundleHeader bool            `json:"isBundleHeader"`
	Position       int             `json:"position"`
}

type InvoicePaymentDTO struct {
	ID        uuid.UUID       `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    string          `json:"paidAt"`
	Comment   string          `json:"comment,omitempty"`
	CreatedBy uuid.UUID       `json:"createdBy"`
}

type InvoiceDTO struct {
	ID             uuid.UUID           `json:"id"`
	Number         string              `json:"number"`
	ProposalID     *uuid.UUID          `json:"proposalId,omitempty"`
	ClientID       *uuid.UUID          `json:"clientId,omitempty"`
	ObjectID       *uuid.UUID          `json:"objectId,omitempty"`
	HasVAT         bool                `json:"hasVat"`
	TotalAmountBYN decimal.Decimal     `json:"totalAmountByn"`
	VATAmount      decimal.Decimal     `json:"vatAmount"`
	PaidAmount     decimal.Decimal     `json:"paidAmount"`
	Status         InvoiceStatus       `json:"status"`
	CreatedBy      uuid.UUID           `json:"createdBy"`
	Items          []InvoiceItemDTO    `json:"items,omitempty"`
	Payments       []InvoicePaymentDTO `json:"payments,omitempty"`
	CreatedAt      string              `json:"createdAt"`
	UpdatedAt      string              `json:"updatedAt"`
}

type NotificationDTO struct {
	ID        uuid.UUID `json:"id"`
	ProfileID uuid.UUID `json:"profileId"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"isRead"`
	ReadAt    *string   `json:"readAt,omitempty"`
	CreatedAt string    `json:"createdAt"`
}

// ObjectFileDTO describes an attachment; the content is fetched from the download endpoint
type ObjectFileDTO struct {
	ID          uuid.UUID `json:"id"`
	ObjectID    uuid.UUID `json:"objectId"`
	StageID     StageID   `json:"stageId"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedBy  uuid.UUID `json:"uploadedBy"`
	CreatedAt   string    `json:"createdAt"`
}

// UnreadCountDTO is the response of the unread notification counter
type UnreadCountDTO struct {
	Count int64 `json:"count"`
}

// GateBlockedResponse is returned with 409 when pending tasks block a stage transition
type GateBlockedResponse struct {
	APIError
	PendingTasks []TaskDTO `json:"pendingTasks"`
}

// Paginated response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	TotalPages int         `json:"totalPages"`
}

// Request DTOs

type CreateClientRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone,omitempty" validate:"max=50"`
	Email   string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Address string `json:"address,omitempty" validate:"max=500"`
	Notes   string `json:"notes,omitempty" validate:"max=5000"`
}

type UpdateClientRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone,omitempty" validate:"max=50"`
	Email   string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Address string `json:"address,omitempty" validate:"max=500"`
	Notes   string `json:"notes,omitempty" validate:"max=5000"`
}

type CreateObjectRequest struct {
	Name          string      `json:"name" validate:"required,max=200"`
	Address       string      `json:"address,omitempty" validate:"max=500"`
	ClientID      *uuid.UUID  `json:"clientId,omitempty"`
	ResponsibleID *uuid.UUID  `json:"responsibleId,omitempty"`
	Participants  []uuid.UUID `json:"participants,omitempty" validate:"max=50"`
	Deadline      *time.Time  `json:"deadline,omitempty"`
}

type UpdateObjectRequest struct {
	Name          string      `json:"name" validate:"required,max=200"`
	Address       string      `json:"address,omitempty" validate:"max=500"`
	ClientID      *uuid.UUID  `json:"clientId,omitempty"`
	ResponsibleID *uuid.UUID  `json:"responsibleId,omitempty"`
	Participants  []uuid.UUID `json:"participants,omitempty" validate:"max=50"`
}

// AdvanceStageRequest moves an object to the next stage. NextStage may be omitted,
// in which case the stage following the current one is used.
type AdvanceStageRequest struct {
	NextStage     StageID    `json:"nextStage,omitempty"`
	ResponsibleID *uuid.UUID `json:"responsibleId,omitempty"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	Force         bool       `json:"force"`
}

type FinalizeObjectRequest struct {
	Force bool `json:"force"`
}

type RollbackStageRequest struct {
	TargetStage   StageID    `json:"targetStage" validate:"required"`
	Reason        string     `json:"reason" validate:"required,max=2000"`
	ResponsibleID *uuid.UUID `json:"responsibleId,omitempty"`
}

type RestoreStageRequest struct {
	ResponsibleID *uuid.UUID `json:"responsibleId,omitempty"`
}

type UpdateObjectStatusRequest struct {
	Status ObjectStatus `json:"status" validate:"required,oneof=in_work on_pause frozen review_required"`
}

type ExtendDeadlineRequest struct {
	Days int `json:"days" validate:"required,gte=1,lte=365"`
}

type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,max=300"`
	Description string     `json:"description,omitempty" validate:"max=5000"`
	AssignedTo  *uuid.UUID `json:"assignedTo,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

type UpdateTaskRequest struct {
	Title       string     `json:"title" validate:"required,max=300"`
	Description string     `json:"description,omitempty" validate:"max=5000"`
	AssignedTo  *uuid.UUID `json:"assignedTo,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

type UpdateTaskStatusRequest struct {
	Status TaskStatus `json:"status" validate:"required,oneof=pending in_progress completed"`
}

type CompleteTaskRequest struct {
	Comment string `json:"comment,omitempty" validate:"max=2000"`
}

type CreateProposalRequest struct {
	ClientID *uuid.UUID `json:"clientId,omitempty"`
	ObjectID *uuid.UUID `json:"objectId,omitempty"`
	HasVAT   *bool      `json:"hasVat,omitempty"`
	Preamble string     `json:"preamble,omitempty" validate:"max=10000"`
	Footer   string     `json:"footer,omitempty" validate:"max=10000"`
}

type UpdateProposalRequest struct {
	ClientID *uuid.UUID `json:"clientId,omitempty"`
	ObjectID *uuid.UUID `json:"objectId,omitempty"`
	HasVAT   bool       `json:"hasVat"`
	Preamble string     `json:"preamble,omitempty" validate:"max=10000"`
	Footer   string     `json:"footer,omitempty" validate:"max=10000"`
}

// CartActionType names one edit of the proposal item tree
type CartActionType string

const (
	CartActionAddItem        CartActionType = "add_item"
	CartActionRemoveItem     CartActionType = "remove_item"
	CartActionSetQuantity    CartActionType = "set_quantity"
	CartActionSetMarkup      CartActionType = "set_markup"
	CartActionSetBasePrice   CartActionType = "set_base_price"
	CartActionSetRetailPrice CartActionType = "set_retail_price"
	CartActionRecalculate    CartActionType = "recalculate"
	CartActionMoveItem       CartActionType = "move_item"
)

// CartActionRequest carries one edit of a proposal's items. Which fields are read
// depends on Type.
type CartActionRequest struct {
	Type           CartActionType   `json:"type" validate:"required,oneof=add_item remove_item set_quantity set_markup set_base_price set_retail_price recalculate move_item"`
	ItemID         *uuid.UUID       `json:"itemId,omitempty"`
	ParentID       *uuid.UUID       `json:"parentId,omitempty"`
	ProductName    string           `json:"productName,omitempty" validate:"max=300"`
	Description    string           `json:"description,omitempty" validate:"max=5000"`
	Unit           string           `json:"unit,omitempty" validate:"max=50"`
	Quantity       *decimal.Decimal `json:"quantity,omitempty"`
	BasePrice      *decimal.Decimal `json:"basePrice,omitempty"`
	MarkupPercent  *decimal.Decimal `json:"markupPercent,omitempty"`
	RetailPrice    *decimal.Decimal `json:"retailPrice,omitempty"`
	IsBundleHeader bool             `json:"isBundleHeader"`
}

type SendProposalRequest struct {
	CreateInvoice bool `json:"createInvoice"`
}

type RecordPaymentRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	PaidAt  *time.Time      `json:"paidAt,omitempty"`
	Comment string          `json:"comment,omitempty" validate:"max=2000"`
}

// SendProposalResponse is the proposal after sending and the invoice created with it, if any
type SendProposalResponse struct {
	Proposal ProposalDTO `json:"proposal"`
	Invoice  *InvoiceDTO `json:"invoice,omitempty"`
}

// AuthActorDTO describes the caller as resolved by the authentication middleware
type AuthActorDTO struct {
	ProfileID uuid.UUID   `json:"profileId"`
	Name      string      `json:"name"`
	Email     string      `json:"email,omitempty"`
	Roles     []string    `json:"roles"`
	Source    string      `json:"source"`
	Profile   *ProfileDTO `json:"profile,omitempty"`
}
