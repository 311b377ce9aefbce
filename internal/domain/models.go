package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller did not set one
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// ProfileRole represents the job role of an employee
type ProfileRole string

const (
	ProfileRoleAdmin      ProfileRole = "admin"
	ProfileRoleManager    ProfileRole = "manager"
	ProfileRoleEngineer   ProfileRole = "engineer"
	ProfileRoleInstaller  ProfileRole = "installer"
	ProfileRoleAccountant ProfileRole = "accountant"
)

// IsValid checks if the ProfileRole is a valid enum value
func (r ProfileRole) IsValid() bool {
	switch r {
	case ProfileRoleAdmin, ProfileRoleManager, ProfileRoleEngineer, ProfileRoleInstaller, ProfileRoleAccountant:
		return true
	}
	return false
}

// Profile represents an employee who can be responsible for objects, stages and tasks
type Profile struct {
	BaseModel
	FullName       string      `gorm:"type:varchar(200);not null;column:full_name"`
	Email          string      `gorm:"type:varchar(255);uniqueIndex"`
	Role           ProfileRole `gorm:"type:varchar(50);not null;default:'manager'"`
	TelegramChatID string      `gorm:"type:varchar(50);column:telegram_chat_id"`
	IsActive       bool        `gorm:"not null;default:true;column:is_active"`
}

// Client represents a customer of the installation company
type Client struct {
	BaseModel
	Name      string     `gorm:"type:varchar(200);not null;index"`
	Phone     string     `gorm:"type:varchar(50)"`
	Email     string     `gorm:"type:varchar(255)"`
	Address   string     `gorm:"type:varchar(500)"`
	Notes     string     `gorm:"type:text"`
	CreatedBy uuid.UUID  `gorm:"type:uuid;column:created_by"`
	IsDeleted bool       `gorm:"not null;default:false;index;column:is_deleted"`
	DeletedAt *time.Time `gorm:"column:deleted_at"`
}

// Object represents an installation site moving through the stage workflow
type Object struct {
	BaseModel
	Name           string         `gorm:"type:varchar(200);not null;index"`
	Address        string         `gorm:"type:varchar(500)"`
	ClientID       *uuid.UUID     `gorm:"type:uuid;index;column:client_id"`
	Client         *Client        `gorm:"foreignKey:ClientID"`
	ResponsibleID  *uuid.UUID     `gorm:"type:uuid;index;column:responsible_id"`
	CurrentStage   StageID        `gorm:"type:varchar(50);not null;default:'negotiation';index;column:current_stage"`
	CurrentStatus  ObjectStatus   `gorm:"type:varchar(50);not null;default:'in_work';column:current_status"`
	RolledBackFrom *StageID       `gorm:"type:varchar(50);column:rolled_back_from"`
	Participants   pq.StringArray `gorm:"type:text[]"`
	CreatedBy      uuid.UUID      `gorm:"type:uuid;column:created_by"`
	UpdatedBy      uuid.UUID      `gorm:"type:uuid;column:updated_by"`
	IsDeleted      bool           `gorm:"not null;default:false;index;column:is_deleted"`
	DeletedAt      *time.Time     `gorm:"column:deleted_at"`
}

// ParticipantIDs returns the participant list as UUIDs, skipping malformed entries
func (o *Object) ParticipantIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(o.Participants))
	for _, p := range o.Participants {
		if id, err := uuid.Parse(p); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// ObjectStage is one visit of an object to a stage. Revisiting a stage after a rollback
// produces another row with the same StageName.
type ObjectStage struct {
	BaseModel
	ObjectID          uuid.UUID   `gorm:"type:uuid;not null;index;column:object_id"`
	StageName         StageID     `gorm:"type:varchar(50);not null;column:stage_name"`
	Status            StageStatus `gorm:"type:varchar(50);not null;index"`
	StartedAt         *time.Time  `gorm:"column:started_at"`
	CompletedAt       *time.Time  `gorm:"column:completed_at"`
	Deadline          *time.Time  `gorm:"column:deadline"`
	ResponsibleID     *uuid.UUID  `gorm:"type:uuid;column:responsible_id"`
	ExtensionDays     int         `gorm:"not null;default:0;column:extension_days"`
	OverdueNotifiedAt *time.Time  `gorm:"column:overdue_notified_at"`
}

// IsOverdue reports whether an active stage is past its deadline at the given instant
func (s *ObjectStage) IsOverdue(now time.Time) bool {
	return s.Status == StageStatusActive && s.Deadline != nil && now.After(*s.Deadline)
}

// HistoryAction represents the kind of entry in the object history log
type HistoryAction string

const (
	HistoryActionCreated          HistoryAction = "created"
	HistoryActionAdvanced         HistoryAction = "advanced"
	HistoryActionFinalized        HistoryAction = "finalized"
	HistoryActionRolledBack       HistoryAction = "rolled_back"
	HistoryActionRestored         HistoryAction = "restored"
	HistoryActionStatusChanged    HistoryAction = "status_changed"
	HistoryActionDeadlineExtended HistoryAction = "deadline_extended"
)

// ObjectHistory is an audit entry for workflow changes of an object
type ObjectHistory struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey"`
	ObjectID  uuid.UUID     `gorm:"type:uuid;not null;index;column:object_id"`
	Action    HistoryAction `gorm:"type:varchar(50);not null"`
	FromStage *StageID      `gorm:"type:varchar(50);column:from_stage"`
	ToStage   *StageID      `gorm:"type:varchar(50);column:to_stage"`
	Reason    string        `gorm:"type:text"`
	ActorID   uuid.UUID     `gorm:"type:uuid;column:actor_id"`
	CreatedAt time.Time     `gorm:"not null;autoCreateTime"`
}

// TableName overrides the default table name to match the migration
func (ObjectHistory) TableName() string {
	return "object_history"
}

// BeforeCreate assigns an id when the caller did not set one
func (h *ObjectHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// TaskStatus represents the status of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// IsValid checks if the TaskStatus is a valid enum value
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// Task is a unit of work bound to the stage that was active when it was created
type Task struct {
	BaseModel
	ObjectID          uuid.UUID  `gorm:"type:uuid;not null;index;column:object_id"`
	StageID           StageID    `gorm:"type:varchar(50);not null;index;column:stage_id"`
	Title             string     `gorm:"type:varchar(300);not null"`
	Description       string     `gorm:"type:text"`
	AssignedTo        *uuid.UUID `gorm:"type:uuid;index;column:assigned_to"`
	Status            TaskStatus `gorm:"type:varchar(50);not null;default:'pending'"`
	Deadline          *time.Time `gorm:"column:deadline"`
	CompletedAt       *time.Time `gorm:"column:completed_at"`
	CompletedBy       *uuid.UUID `gorm:"type:uuid;column:completed_by"`
	CompletionComment string     `gorm:"type:text;column:completion_comment"`
	CreatedBy         uuid.UUID  `gorm:"type:uuid;column:created_by"`
	IsDeleted         bool       `gorm:"not null;default:false;index;column:is_deleted"`
	DeletedAt         *time.Time `gorm:"column:deleted_at"`
}

// ProposalStatus represents the status of a commercial proposal
type ProposalStatus string

const (
	ProposalStatusDraft    ProposalStatus = "draft"
	ProposalStatusSent     ProposalStatus = "sent"
	ProposalStatusAccepted ProposalStatus = "accepted"
	ProposalStatusRejected ProposalStatus = "rejected"
)

// IsValid checks if the ProposalStatus is a valid enum value
func (s ProposalStatus) IsValid() bool {
	switch s {
	case ProposalStatusDraft, ProposalStatusSent, ProposalStatusAccepted, ProposalStatusRejected:
		return true
	}
	return false
}

// Proposal is a commercial proposal owning a two-level tree of line items
type Proposal struct {
	BaseModel
	Number         string          `gorm:"type:varchar(50);uniqueIndex"`
	ClientID       *uuid.UUID      `gorm:"type:uuid;index;column:client_id"`
	ObjectID       *uuid.UUID      `gorm:"type:uuid;index;column:object_id"`
	HasVAT         bool            `gorm:"not null;column:has_vat"`
	Preamble       string          `gorm:"type:text"`
	Footer         string          `gorm:"type:text"`
	TotalAmountBYN decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0;column:total_amount_byn"`
	Status         ProposalStatus  `gorm:"type:varchar(50);not null;default:'draft';index"`
	CreatedBy      uuid.UUID       `gorm:"type:uuid;column:created_by"`
	Items          []ProposalItem  `gorm:"foreignKey:ProposalID;constraint:OnDelete:CASCADE"`
}

// ProposalItem is either a product line, a bundle header (ParentID nil) or a bundle child
type ProposalItem struct {
	BaseModel
	ProposalID          uuid.UUID       `gorm:"type:uuid;not null;index;column:proposal_id"`
	ParentID            *uuid.UUID      `gorm:"type:uuid;index;column:parent_id"`
	ProductName         string          `gorm:"type:varchar(300);not null;column:product_name"`
	Description         string          `gorm:"type:text"`
	Unit                string          `gorm:"type:varchar(50);default:'pcs'"`
	Quantity            decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	BasePrice           decimal.Decimal `gorm:"type:decimal(15,3);not null;default:0;column:base_price"`
	ManualMarkupPercent decimal.Decimal `gorm:"type:decimal(7,2);not null;default:0;column:manual_markup_percent"`
	RetailPrice         decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0;column:retail_price"`
	IsBundleHeader      bool            `gorm:"not null;default:false;column:is_bundle_header"`
	IsManualPrice       bool            `gorm:"not null;default:false;column:is_manual_price"`
	Position            int             `gorm:"not null;default:0"`
}

// InvoiceStatus represents the payment state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusIssued        InvoiceStatus = "issued"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusCancelled     InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusIssued, InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// Invoice mirrors a proposal with unit prices frozen at creation time
type Invoice struct {
	BaseModel
	Number         string           `gorm:"type:varchar(50);uniqueIndex"`
	ProposalID     *uuid.UUID       `gorm:"type:uuid;index;column:proposal_id"`
	ClientID       *uuid.UUID       `gorm:"type:uuid;index;column:client_id"`
	ObjectID       *uuid.UUID       `gorm:"type:uuid;index;column:object_id"`
	HasVAT         bool             `gorm:"not null;column:has_vat"`
	TotalAmountBYN decimal.Decimal  `gorm:"type:decimal(15,2);not null;default:0;column:total_amount_byn"`
	Status         InvoiceStatus    `gorm:"type:varchar(50);not null;default:'issued';index"`
	CreatedBy      uuid.UUID        `gorm:"type:uuid;column:created_by"`
	Items          []InvoiceItem    `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Payments       []InvoicePayment `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// InvoiceItem is a copied proposal item with a frozen unit price
type InvoiceItem struct {
	BaseModel
	InvoiceID      uuid.UUID       `gorm:"type:uuid;not null;index;column:invoice_id"`
	ParentID       *uuid.UUID      `gorm:"type:uuid;index;column:parent_id"`
	ProductName    string          `gorm:"type:varchar(300);not null;column:product_name"`
	Description    string          `gorm:"type:text"`
	Unit           string          `gorm:"type:varchar(50)"`
	Quantity       decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	BasePrice      decimal.Decimal `gorm:"type:decimal(15,3);not null;default:0;column:base_price"`
	Price          decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Total          decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	IsBundleHeader bool            `gorm:"not null;default:false;column:is_bundle_header"`
	Position       int             `gorm:"not null;default:0"`
}

// InvoicePayment records money received against an invoice
type InvoicePayment struct {
	BaseModel
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index;column:invoice_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	PaidAt    time.Time       `gorm:"not null;column:paid_at"`
	Comment   string          `gorm:"type:text"`
	CreatedBy uuid.UUID       `gorm:"type:uuid;column:created_by"`
}

// Notification represents an in-app notification for a profile
type Notification struct {
	BaseModel
	ProfileID uuid.UUID  `gorm:"type:uuid;not null;index;column:profile_id"`
	Message   string     `gorm:"type:varchar(1000);not null"`
	Link      string     `gorm:"type:varchar(500)"`
	IsRead    bool       `gorm:"not null;default:false;index;column:is_read"`
	ReadAt    *time.Time `gorm:"column:read_at"`
}

// ObjectFile is a document or photo attached to an object, such as a floor plan or
// commissioning report. The content lives in file storage under StoragePath.
type ObjectFile struct {
	BaseModel
	ObjectID    uuid.UUID `gorm:"type:uuid;not null;index;column:object_id"`
	StageID     StageID   `gorm:"type:varchar(50);not null;column:stage_id"`
	Filename    string    `gorm:"type:varchar(255);not null"`
	ContentType string    `gorm:"type:varchar(100);not null;column:content_type"`
	Size        int64     `gorm:"not null"`
	StoragePath string    `gorm:"type:varchar(500);not null;column:storage_path"`
	UploadedBy  uuid.UUID `gorm:"type:uuid;not null;column:uploaded_by"`
}

func (ObjectFile) TableName() string {
	return "object_files"
}

// SequenceScope separates numbering of different document kinds
type SequenceScope string

const (
	SequenceScopeProposal SequenceScope = "proposal"
	SequenceScopeInvoice  SequenceScope = "invoice"
)

// NumberSequence tracks the last number issued per scope, author and day
type NumberSequence struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey"`
	Scope        SequenceScope `gorm:"type:varchar(20);not null;uniqueIndex:idx_number_sequence_key"`
	AuthorID     uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_number_sequence_key;column:author_id"`
	Day          string        `gorm:"type:varchar(8);not null;uniqueIndex:idx_number_sequence_key"`
	LastSequence int           `gorm:"not null;default:0;column:last_sequence"`
	CreatedAt    time.Time     `gorm:"not null;autoCreateTime"`
	UpdatedAt    time.Time     `gorm:"not null;autoUpdateTime"`
}

// BeforeCreate assigns an id when the caller did not set one
func (n *NumberSequence) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
