package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/davicafu/invoiceflow/internal/reporting/domain"
	"github.com/davicafu/invoiceflow/internal/shared/infra/dispatch"
	sharedUtils "github.com/davicafu/invoiceflow/internal/shared/infra/utils"
)

const (
	ReportingQueue = "reporting-queue"

	InvoiceCreated          = "InvoiceCreatedEvent"
	InvoiceExtracted        = "InvoiceExtractedEvent"
	InvoiceApproved         = "InvoiceApprovedEvent"
	InvoiceRejected         = "InvoiceRejectedEvent"
	InvoiceFlaggedForReview = "InvoiceFlaggedForReviewEvent"
	InvoiceMarkedAsPaid     = "InvoiceMarkedAsPaidEvent"
	PaymentCompleted        = "PaymentCompletedEvent"
)

// statusByType traduce cada evento al estado que deja en la factura.
var statusByType = map[string]string{
	InvoiceCreated:          domain.StatusDraft,
	InvoiceExtracted:        domain.StatusDraft,
	InvoiceApproved:         domain.StatusApproved,
	InvoiceRejected:         domain.StatusRejected,
	InvoiceFlaggedForReview: domain.StatusFlaggedForReview,
	InvoiceMarkedAsPaid:     domain.StatusPaid,
	PaymentCompleted:        domain.StatusPaid,
}

type Projector interface {
	Project(ctx context.Context, change domain.StatusChange) (bool, error)
}

// invoiceEventDTO cubre los campos que usan todos los eventos suscritos.
type invoiceEventDTO struct {
	OccurredOn    time.Time        `json:"occurredOn"`
	InvoiceID     uuid.UUID        `json:"invoiceId"`
	InvoiceNumber string           `json:"invoiceNumber"`
	VendorID      uuid.UUID        `json:"vendorId"`
	TotalAmount   *decimal.Decimal `json:"totalAmount"`
	Currency      string           `json:"currency"`
}

var errMissingInvoiceID = errors.New("event without invoiceId")

type ReportingConsumer struct {
	projector Projector
	log       *zap.Logger
}

func NewReportingConsumer(projector Projector, log *zap.Logger) *ReportingConsumer {
	return &ReportingConsumer{projector: projector, log: log}
}

func (c *ReportingConsumer) Subscription() dispatch.Subscription {
	types := []string{InvoiceCreated, InvoiceExtracted, InvoiceApproved, InvoiceRejected,
		InvoiceFlaggedForReview, InvoiceMarkedAsPaid, PaymentCompleted}
	return dispatch.Subscription{Queue: ReportingQueue, EventTypes: types}
}

func (c *ReportingConsumer) Handle(ctx context.Context, eventType string, payload []byte) error {
	status, ok := statusByType[eventType]
	if !ok {
		return nil
	}
	evt, err := sharedUtils.DecodeEvent[invoiceEventDTO](payload)
	if err != nil {
		return dispatch.Permanent(err)
	}
	if evt.InvoiceID == uuid.Nil {
		return dispatch.Permanent(errMissingInvoiceID)
	}

	change := domain.StatusChange{
		InvoiceID:     evt.InvoiceID,
		Status:        status,
		InvoiceNumber: evt.InvoiceNumber,
		VendorID:      evt.VendorID,
		Currency:      evt.Currency,
		OccurredOn:    evt.OccurredOn,
	}
	// El importe del pago no es el total de la factura.
	if eventType != PaymentCompleted {
		change.TotalAmount = evt.TotalAmount
	}

	applied, err := c.projector.Project(ctx, change)
	if err != nil {
		return err
	}
	if !applied {
		c.log.Debug("Evento ya reflejado en la proyección",
			zap.String("event_type", eventType),
			zap.String("invoice_id", evt.InvoiceID.String()),
		)
	}
	return nil
}
