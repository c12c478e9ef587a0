package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
	sharedQuery "github.com/davicafu/invoiceflow/internal/shared/infra/platform/query"
)

var (
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrInvoiceAlreadyExists = errors.New("invoice already exists")
	ErrInvalidInvoice       = errors.New("invalid invoice")
	ErrInvalidTransition    = errors.New("invalid invoice status transition")
	ErrConcurrentUpdate     = errors.New("invoice was modified concurrently")
)

// InvoiceRepository persiste el agregado. Create y Update registran la factura
// en la unidad de trabajo del contexto para capturar sus eventos.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	Update(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetByClassificationID(ctx context.Context, classificationID uuid.UUID) (*Invoice, error)
	ListByCriteria(ctx context.Context, criteria sharedDomain.Criteria, page sharedQuery.OffsetPagination, sort sharedQuery.Sort) ([]*Invoice, error)
}

// --- Criterios ---

type StatusCriteria struct {
	Status InvoiceStatus
}

func (c StatusCriteria) ToConditions() []sharedDomain.Criterion {
	return []sharedDomain.Criterion{{Field: "status", Op: sharedDomain.OpEq, Value: string(c.Status)}}
}

type VendorIDCriteria struct {
	ID uuid.UUID
}

func (c VendorIDCriteria) ToConditions() []sharedDomain.Criterion {
	return []sharedDomain.Criterion{{Field: "vendor_id", Op: sharedDomain.OpEq, Value: c.ID.String()}}
}

type NumberLikeCriteria struct {
	Number string
}

func (c NumberLikeCriteria) ToConditions() []sharedDomain.Criterion {
	return []sharedDomain.Criterion{{Field: "invoice_number", Op: sharedDomain.OpILike, Value: "%" + c.Number + "%"}}
}

// DueDateRangeCriteria: ambos extremos son opcionales.
type DueDateRangeCriteria struct {
	Start *time.Time
	End   *time.Time
}

func (c DueDateRangeCriteria) ToConditions() []sharedDomain.Criterion {
	var conds []sharedDomain.Criterion
	if c.Start != nil {
		conds = append(conds, sharedDomain.Criterion{Field: "due_date", Op: sharedDomain.OpGte, Value: c.Start.UTC()})
	}
	if c.End != nil {
		conds = append(conds, sharedDomain.Criterion{Field: "due_date", Op: sharedDomain.OpLte, Value: c.End.UTC()})
	}
	return conds
}

func InvoiceCacheKeyByID(id uuid.UUID) string {
	return fmt.Sprintf("invoice:id:%s", id.String())
}
