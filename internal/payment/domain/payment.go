package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
)

type PaymentStatus string

const (
	StatusScheduled  PaymentStatus = "Scheduled"
	StatusProcessing PaymentStatus = "Processing"
	StatusCompleted  PaymentStatus = "Completed"
	StatusFailed     PaymentStatus = "Failed"
	StatusCancelled  PaymentStatus = "Cancelled"
	StatusOverdue    PaymentStatus = "Overdue"
)

// Payment sigue el ciclo de vida de un pago desde que se programa hasta que se liquida.
type Payment struct {
	sharedDomain.AggregateRoot `json:"-"`

	ID                   uuid.UUID       `json:"id"`
	InvoiceID            uuid.UUID       `json:"invoiceId"`
	VendorID             uuid.UUID       `json:"vendorId"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	Status               PaymentStatus   `json:"status"`
	ScheduledDate        time.Time       `json:"scheduledDate"`
	ProcessedDate        *time.Time      `json:"processedDate,omitempty"`
	CompletedDate        *time.Time      `json:"completedDate,omitempty"`
	TransactionReference string          `json:"transactionReference,omitempty"`
	FailureReason        string          `json:"failureReason,omitempty"`
	CreatedBy            string          `json:"createdBy"`
	CreatedAt            time.Time       `json:"createdAt"`
	Version              int             `json:"version"`
}

// SchedulePayment programa el pago de una factura aprobada.
// La fecha no puede ser anterior al día de hoy (UTC).
func SchedulePayment(invoiceID, vendorID uuid.UUID, amount decimal.Decimal, currency string, scheduledDate time.Time, createdBy string, now time.Time) (*Payment, error) {
	if invoiceID == uuid.Nil {
		return nil, fmt.Errorf("%w: invoice is required", ErrInvalidPayment)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount cannot be negative", ErrInvalidPayment)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return nil, fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidPayment)
	}
	if scheduledDate.Before(today(now)) {
		return nil, fmt.Errorf("%w: scheduled date cannot be in the past", ErrInvalidPayment)
	}

	p := &Payment{
		ID:            uuid.New(),
		InvoiceID:     invoiceID,
		VendorID:      vendorID,
		Amount:        amount,
		Currency:      currency,
		Status:        StatusScheduled,
		ScheduledDate: scheduledDate.UTC(),
		CreatedBy:     createdBy,
		CreatedAt:     now.UTC(),
	}
	p.Raise(PaymentScheduledEvent{
		EventBase:     sharedDomain.NewEventBase(now),
		PaymentID:     p.ID,
		InvoiceID:     invoiceID,
		VendorID:      vendorID,
		Amount:        amount,
		Currency:      currency,
		ScheduledDate: p.ScheduledDate,
	})
	return p, nil
}

func (p *Payment) StartProcessing(now time.Time) error {
	if p.Status != StatusScheduled {
		return p.transitionError("start processing")
	}
	at := now.UTC()
	p.Status = StatusProcessing
	p.ProcessedDate = &at
	return nil
}

func (p *Payment) Complete(transactionReference string, now time.Time) error {
	if strings.TrimSpace(transactionReference) == "" {
		return fmt.Errorf("%w: transaction reference is required", ErrInvalidPayment)
	}
	if p.Status != StatusScheduled && p.Status != StatusProcessing {
		return p.transitionError("complete")
	}

	at := now.UTC()
	p.Status = StatusCompleted
	p.CompletedDate = &at
	p.TransactionReference = transactionReference

	p.Raise(PaymentCompletedEvent{
		EventBase:            sharedDomain.NewEventBase(now),
		PaymentID:            p.ID,
		InvoiceID:            p.InvoiceID,
		VendorID:             p.VendorID,
		Amount:               p.Amount,
		Currency:             p.Currency,
		CompletedDate:        at,
		TransactionReference: transactionReference,
	})
	return nil
}

func (p *Payment) Fail(reason string, now time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: failure reason is required", ErrInvalidPayment)
	}
	if p.Status != StatusScheduled && p.Status != StatusProcessing {
		return p.transitionError("fail")
	}

	p.Status = StatusFailed
	p.FailureReason = reason
	p.Raise(PaymentFailedEvent{
		EventBase:     sharedDomain.NewEventBase(now),
		PaymentID:     p.ID,
		InvoiceID:     p.InvoiceID,
		FailureReason: reason,
	})
	return nil
}

// Cancel: un pago completado no se puede cancelar.
func (p *Payment) Cancel() error {
	if p.Status == StatusCompleted {
		return p.transitionError("cancel")
	}
	p.Status = StatusCancelled
	return nil
}

// MarkAsOverdue sólo actúa sobre pagos programados cuya fecha ya pasó. Devuelve si cambió.
func (p *Payment) MarkAsOverdue(now time.Time) bool {
	day := today(now)
	if p.Status != StatusScheduled || !p.ScheduledDate.Before(day) {
		return false
	}

	p.Status = StatusOverdue
	p.Raise(PaymentOverdueEvent{
		EventBase:     sharedDomain.NewEventBase(now),
		PaymentID:     p.ID,
		InvoiceID:     p.InvoiceID,
		ScheduledDate: p.ScheduledDate,
		DaysOverdue:   int(day.Sub(today(p.ScheduledDate)).Hours() / 24),
	})
	return true
}

func (p *Payment) Reschedule(newDate, now time.Time) error {
	if p.Status != StatusScheduled && p.Status != StatusOverdue && p.Status != StatusFailed {
		return p.transitionError("reschedule")
	}
	if newDate.Before(today(now)) {
		return fmt.Errorf("%w: new scheduled date cannot be in the past", ErrInvalidPayment)
	}
	p.ScheduledDate = newDate.UTC()
	p.Status = StatusScheduled
	p.FailureReason = ""
	return nil
}

func (p *Payment) transitionError(action string) error {
	return fmt.Errorf("%w: cannot %s payment in %s status", ErrInvalidTransition, action, p.Status)
}

func today(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
