package models

import "time"

// RFQStatus type for RFQ status
type RFQStatus string

const (
	RFQDraft   RFQStatus = "draft"
	RFQOpen    RFQStatus = "open"
	RFQAwarded RFQStatus = "awarded"
	RFQClosed  RFQStatus = "closed"
)

// QuoteStatus type for quote status
type QuoteStatus string

const (
	QuoteSubmitted QuoteStatus = "submitted"
	QuoteAccepted  QuoteStatus = "accepted"
	QuoteRejected  QuoteStatus = "rejected"
)

// POStatus type for purchase order status
type POStatus string

const (
	POIssued     POStatus = "issued"
	POAccepted   POStatus = "accepted"
	POInProgress POStatus = "in_progress"
	PODisputed   POStatus = "disputed"
	POCompleted  POStatus = "completed"
	POCancelled  POStatus = "cancelled"
)

// MilestoneStatus type for milestone status
type MilestoneStatus string

const (
	MilestonePending   MilestoneStatus = "pending"
	MilestoneCompleted MilestoneStatus = "completed"
)

// DisputeStatus type for dispute status
type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "open"
	DisputeResolved DisputeStatus = "resolved"
)

const PaymentPaid = "paid"

// EventType enumerates the audit event taxonomy
type EventType string

const (
	EventPOCreated        EventType = "PO_CREATED"
	EventPOAccepted       EventType = "PO_ACCEPTED"
	EventMilestoneUpdated EventType = "MILESTONE_UPDATED"
	EventMilestonePaid    EventType = "MILESTONE_PAID"
	EventPOCompleted      EventType = "PO_COMPLETED"
	EventDisputeRaised    EventType = "DISPUTE_RAISED"
	EventDisputeResolved  EventType = "DISPUTE_RESOLVED"
	EventPOForceCancelled EventType = "PO_FORCE_CANCELLED"
	EventPOForceClosed    EventType = "PO_FORCE_CLOSED"
)

type RFQ struct {
	ID              int64     `gorm:"primaryKey;autoIncrement"`
	BuyerOrgID      int64     `gorm:"not null;index"`
	CreatedByID     int64     `gorm:"not null"`
	PartNumber      string    `gorm:"type:varchar(64);not null"`
	Description     *string   `gorm:"type:text"`
	Quantity        int32     `gorm:"not null"`
	Status          RFQStatus `gorm:"type:varchar(20);not null;default:'open'"`
	AcceptedQuoteID *int64    `gorm:"uniqueIndex"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Quotes []Quote `gorm:"foreignKey:RFQID"`
}

func (RFQ) TableName() string { return "rfqs" }

type Quote struct {
	ID            int64       `gorm:"primaryKey;autoIncrement"`
	RFQID         int64       `gorm:"not null;index"`
	SupplierOrgID int64       `gorm:"not null;index"`
	Price         string      `gorm:"type:varchar(32);not null"`
	LeadTimeDays  int32       `gorm:"not null"`
	Notes         *string     `gorm:"type:text"`
	Status        QuoteStatus `gorm:"type:varchar(20);not null;default:'submitted'"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	RFQ *RFQ `gorm:"foreignKey:RFQID"`
}

type PurchaseOrder struct {
	ID            int64    `gorm:"primaryKey;autoIncrement"`
	PONumber      string   `gorm:"type:varchar(40);uniqueIndex;not null"`
	RFQID         int64    `gorm:"uniqueIndex;not null"`
	QuoteID       int64    `gorm:"uniqueIndex;not null"`
	BuyerOrgID    int64    `gorm:"not null;index"`
	SupplierOrgID int64    `gorm:"not null;index"`
	PartNumber    string   `gorm:"type:varchar(64);not null"`
	Quantity      int32    `gorm:"not null"`
	Value         string   `gorm:"type:varchar(32);not null"`
	Status        POStatus `gorm:"type:varchar(20);not null;default:'issued'"`
	DisputeFlag   bool     `gorm:"not null;default:false"`
	AcceptedAt    *time.Time
	PromisedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Milestones []Milestone `gorm:"foreignKey:POID"`
}

type Milestone struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	POID          int64           `gorm:"not null;uniqueIndex:idx_po_sequence"`
	Name          string          `gorm:"type:varchar(40);not null"`
	SequenceOrder int32           `gorm:"not null;uniqueIndex:idx_po_sequence"`
	Status        MilestoneStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	CompletedAt   *time.Time
	DueDate       *time.Time
	EvidenceURL   *string `gorm:"type:varchar(256)"`
	Remarks       *string `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Payment struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	POID        int64  `gorm:"not null;index"`
	MilestoneID int64  `gorm:"uniqueIndex;not null"`
	Amount      string `gorm:"type:varchar(32);not null"`
	Status      string `gorm:"type:varchar(20);not null;default:'paid'"`
	PaidByID    int64  `gorm:"not null"`
	PaidByOrgID int64  `gorm:"not null"`
	CreatedAt   time.Time
}

type Dispute struct {
	ID             int64         `gorm:"primaryKey;autoIncrement"`
	POID           int64         `gorm:"not null;index"`
	RaisedByID     int64         `gorm:"not null"`
	RaisedByRole   string        `gorm:"type:varchar(20);not null"`
	OrgID          int64         `gorm:"not null"`
	Reason         string        `gorm:"type:text;not null"`
	Status         DisputeStatus `gorm:"type:varchar(20);not null;default:'open'"`
	PriorPOStatus  POStatus      `gorm:"type:varchar(20);not null"`
	ResolutionNote *string       `gorm:"type:text"`
	ResolvedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Event rows are append-only; nothing in the service updates or deletes them.
type Event struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	POID        int64     `gorm:"not null;index"`
	EventType   EventType `gorm:"type:varchar(40);not null"`
	Description string    `gorm:"type:text;not null"`
	ActorID     int64     `gorm:"not null"`
	ActorRole   string    `gorm:"type:varchar(20);not null"`
	OrgID       int64     `gorm:"not null"`
	Metadata    *string   `gorm:"type:text"`
	CreatedAt   time.Time
}
