package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
)

const (
	PaymentScheduled = "PaymentScheduledEvent"
	PaymentCompleted = "PaymentCompletedEvent"
	PaymentFailed    = "PaymentFailedEvent"
	PaymentOverdue   = "PaymentOverdueEvent"
)

type PaymentScheduledEvent struct {
	sharedDomain.EventBase
	PaymentID     uuid.UUID       `json:"paymentId"`
	InvoiceID     uuid.UUID       `json:"invoiceId"`
	VendorID      uuid.UUID       `json:"vendorId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	ScheduledDate time.Time       `json:"scheduledDate"`
}

func (PaymentScheduledEvent) EventType() string { return PaymentScheduled }

type PaymentCompletedEvent struct {
	sharedDomain.EventBase
	PaymentID            uuid.UUID       `json:"paymentId"`
	InvoiceID            uuid.UUID       `json:"invoiceId"`
	VendorID             uuid.UUID       `json:"vendorId"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	CompletedDate        time.Time       `json:"completedDate"`
	TransactionReference string          `json:"transactionReference"`
}

func (PaymentCompletedEvent) EventType() string { return PaymentCompleted }

type PaymentFailedEvent struct {
	sharedDomain.EventBase
	PaymentID     uuid.UUID `json:"paymentId"`
	InvoiceID     uuid.UUID `json:"invoiceId"`
	FailureReason string    `json:"failureReason"`
}

func (PaymentFailedEvent) EventType() string { return PaymentFailed }

type PaymentOverdueEvent struct {
	sharedDomain.EventBase
	PaymentID     uuid.UUID `json:"paymentId"`
	InvoiceID     uuid.UUID `json:"invoiceId"`
	ScheduledDate time.Time `json:"scheduledDate"`
	DaysOverdue   int       `json:"daysOverdue"`
}

func (PaymentOverdueEvent) EventType() string { return PaymentOverdue }
