package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
)

// Nombres lógicos de los eventos del módulo. Son el contrato en el cable.
const (
	InvoiceCreated          = "InvoiceCreatedEvent"
	InvoiceExtracted        = "InvoiceExtractedEvent"
	InvoiceApproved         = "InvoiceApprovedEvent"
	InvoiceRejected         = "InvoiceRejectedEvent"
	InvoiceMarkedAsPaid     = "InvoiceMarkedAsPaidEvent"
	InvoiceFlaggedForReview = "InvoiceFlaggedForReviewEvent"
)

type InvoiceCreatedEvent struct {
	sharedDomain.EventBase
	InvoiceID     uuid.UUID       `json:"invoiceId"`
	VendorID      uuid.UUID       `json:"vendorId"`
	InvoiceNumber string          `json:"invoiceNumber"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Currency      string          `json:"currency"`
	IssueDate     time.Time       `json:"issueDate"`
	DueDate       time.Time       `json:"dueDate"`
}

func (InvoiceCreatedEvent) EventType() string { return InvoiceCreated }

type InvoiceExtractedEvent struct {
	sharedDomain.EventBase
	InvoiceID       uuid.UUID       `json:"invoiceId"`
	VendorID        uuid.UUID       `json:"vendorId"`
	InvoiceNumber   string          `json:"invoiceNumber"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Currency        string          `json:"currency"`
	IssueDate       time.Time       `json:"issueDate"`
	DueDate         time.Time       `json:"dueDate"`
	ConfidenceScore float64         `json:"confidenceScore"`
}

func (InvoiceExtractedEvent) EventType() string { return InvoiceExtracted }

type InvoiceApprovedEvent struct {
	sharedDomain.EventBase
	InvoiceID   uuid.UUID       `json:"invoiceId"`
	VendorID    uuid.UUID       `json:"vendorId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    string          `json:"currency"`
	DueDate     time.Time       `json:"dueDate"`
	ApprovedBy  string          `json:"approvedBy"`
}

func (InvoiceApprovedEvent) EventType() string { return InvoiceApproved }

type InvoiceRejectedEvent struct {
	sharedDomain.EventBase
	InvoiceID  uuid.UUID `json:"invoiceId"`
	Reason     string    `json:"reason"`
	RejectedBy string    `json:"rejectedBy"`
}

func (InvoiceRejectedEvent) EventType() string { return InvoiceRejected }

type InvoiceMarkedAsPaidEvent struct {
	sharedDomain.EventBase
	InvoiceID uuid.UUID `json:"invoiceId"`
	PaymentID uuid.UUID `json:"paymentId"`
	PaidDate  time.Time `json:"paidDate"`
}

func (InvoiceMarkedAsPaidEvent) EventType() string { return InvoiceMarkedAsPaid }

type InvoiceFlaggedForReviewEvent struct {
	sharedDomain.EventBase
	InvoiceID uuid.UUID `json:"invoiceId"`
	Reason    string    `json:"reason"`
	FlaggedBy string    `json:"flaggedBy"`
}

func (InvoiceFlaggedForReviewEvent) EventType() string { return InvoiceFlaggedForReview }
