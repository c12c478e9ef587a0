package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/davicafu/invoiceflow/internal/payment/application"
	paymentDomain "github.com/davicafu/invoiceflow/internal/payment/domain"
	"github.com/davicafu/invoiceflow/internal/shared/infra/dispatch"
	sharedUtils "github.com/davicafu/invoiceflow/internal/shared/infra/utils"
)

const (
	PaymentTrackingQueue = "payment-tracking-queue"
	InvoiceApproved      = "InvoiceApprovedEvent"
)

type PaymentScheduler interface {
	SchedulePayment(ctx context.Context, cmd application.SchedulePaymentCommand) (*paymentDomain.Payment, error)
}

type invoiceApprovedDTO struct {
	EventID     uuid.UUID       `json:"eventId"`
	InvoiceID   uuid.UUID       `json:"invoiceId"`
	VendorID    uuid.UUID       `json:"vendorId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Currency    string          `json:"currency"`
	DueDate     time.Time       `json:"dueDate"`
	ApprovedBy  string          `json:"approvedBy"`
}

// InvoiceApprovedConsumer programa el pago de cada factura aprobada, con fecha el vencimiento.
type InvoiceApprovedConsumer struct {
	service PaymentScheduler
	log     *zap.Logger
}

func NewInvoiceApprovedConsumer(service PaymentScheduler, log *zap.Logger) *InvoiceApprovedConsumer {
	return &InvoiceApprovedConsumer{service: service, log: log}
}

func (c *InvoiceApprovedConsumer) Subscription() dispatch.Subscription {
	return dispatch.Subscription{Queue: PaymentTrackingQueue, EventTypes: []string{InvoiceApproved}}
}

func (c *InvoiceApprovedConsumer) Handle(ctx context.Context, eventType string, payload []byte) error {
	evt, err := sharedUtils.DecodeEvent[invoiceApprovedDTO](payload)
	if err != nil {
		return dispatch.Permanent(err)
	}
	log := c.log.With(zap.String("invoice_id", evt.InvoiceID.String()))
	log.Info("Processing event for payment scheduling", zap.String("event_type", eventType))

	payment, err := c.service.SchedulePayment(ctx, application.SchedulePaymentCommand{
		InvoiceID:     evt.InvoiceID,
		VendorID:      evt.VendorID,
		Amount:        evt.TotalAmount,
		Currency:      evt.Currency,
		ScheduledDate: evt.DueDate,
		CreatedBy:     evt.ApprovedBy,
	})
	switch {
	case errors.Is(err, paymentDomain.ErrPaymentAlreadyExists):
		log.Info("Pago ya programado para la factura, se ignora")
		return nil
	case errors.Is(err, paymentDomain.ErrInvalidPayment):
		return dispatch.Permanent(err)
	case err != nil:
		return err
	}

	log.Info("✅ Pago programado para factura aprobada", zap.String("payment_id", payment.ID.String()))
	return nil
}

var _ dispatch.EventHandler = (*InvoiceApprovedConsumer)(nil)
