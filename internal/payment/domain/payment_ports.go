package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyExists = errors.New("payment already exists for invoice")
	ErrInvalidPayment       = errors.New("invalid payment")
	ErrInvalidTransition    = errors.New("invalid payment status transition")
	ErrConcurrentUpdate     = errors.New("payment was modified concurrently")
)

// PaymentRepository persiste pagos. Como mucho un pago por factura.
type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	Update(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*Payment, error)
	ExistsForInvoice(ctx context.Context, invoiceID uuid.UUID) (bool, error)
}

func PaymentCacheKeyByID(id uuid.UUID) string {
	return fmt.Sprintf("payment:id:%s", id.String())
}
