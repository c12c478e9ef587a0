package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	invoiceDomain "github.com/davicafu/invoiceflow/internal/invoice/domain"
	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
	sharedCache "github.com/davicafu/invoiceflow/internal/shared/infra/platform/cache"
	sharedQuery "github.com/davicafu/invoiceflow/internal/shared/infra/platform/query"
	sharedUtils "github.com/davicafu/invoiceflow/internal/shared/infra/utils"
)

const cacheTTL = 60 * time.Second

type LineItemInput struct {
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	Currency    string
}

type CreateInvoiceCommand struct {
	InvoiceNumber string
	VendorID      uuid.UUID
	IssueDate     time.Time
	DueDate       time.Time
	CreatedBy     string
	Notes         string
	LineItems     []LineItemInput
}

// ExtractionCommand llega desde el clasificador de documentos.
type ExtractionCommand struct {
	ClassificationID uuid.UUID
	InvoiceNumber    string
	VendorID         uuid.UUID
	IssueDate        time.Time
	DueDate          time.Time
	TotalAmount      decimal.Decimal
	Currency         string
	ConfidenceScore  float64
	ExtractedBy      string
}

// InvoiceFilter agrupa los filtros opcionales del listado.
type InvoiceFilter struct {
	Status     *invoiceDomain.InvoiceStatus
	VendorID   *uuid.UUID
	Number     string
	DueFrom    *time.Time
	DueTo      *time.Time
	Pagination sharedQuery.OffsetPagination
	Sort       sharedQuery.Sort
}

// InvoiceService define los casos de uso de facturas.
// Toda escritura pasa por la unidad de trabajo, que captura los eventos en el outbox.
type InvoiceService struct {
	uow   sharedDomain.UnitOfWork
	repo  invoiceDomain.InvoiceRepository
	cache sharedCache.Cache
	clock sharedDomain.Clock
	log   *zap.Logger
}

func NewInvoiceService(uow sharedDomain.UnitOfWork, repo invoiceDomain.InvoiceRepository, cache sharedCache.Cache, clock sharedDomain.Clock, log *zap.Logger) *InvoiceService {
	return &InvoiceService{uow: uow, repo: repo, cache: cache, clock: clock, log: log}
}

func (s *InvoiceService) CreateInvoice(ctx context.Context, cmd CreateInvoiceCommand) (*invoiceDomain.Invoice, error) {
	now := s.clock.Now()
	inv, err := invoiceDomain.NewInvoice(cmd.InvoiceNumber, cmd.VendorID, cmd.IssueDate, cmd.DueDate, cmd.CreatedBy, cmd.Notes, now)
	if err != nil {
		return nil, err
	}
	for _, li := range cmd.LineItems {
		if _, err := inv.AddLineItem(li.Description, li.Quantity, li.UnitPrice, li.Currency); err != nil {
			return nil, err
		}
	}

	if err := s.uow.Do(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, inv)
	}); err != nil {
		s.log.Error("Failed to create invoice", zap.String("invoice_number", cmd.InvoiceNumber), zap.Error(err))
		return nil, err
	}

	sharedCache.AsyncCacheSet(s.cache, invoiceDomain.InvoiceCacheKeyByID(inv.ID), inv, cacheTTL, s.log)
	return inv, nil
}

// CreateFromExtraction es idempotente por ClassificationID: si ya existe la factura la devuelve
// sin crear otra. created indica si esta llamada la ha creado.
func (s *InvoiceService) CreateFromExtraction(ctx context.Context, cmd ExtractionCommand) (inv *invoiceDomain.Invoice, created bool, err error) {
	err = s.uow.Do(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByClassificationID(ctx, cmd.ClassificationID)
		if err == nil {
			inv = existing
			return nil
		}
		if !errors.Is(err, invoiceDomain.ErrInvoiceNotFound) {
			return err
		}

		inv, err = invoiceDomain.NewInvoiceFromExtraction(cmd.InvoiceNumber, cmd.VendorID, cmd.IssueDate, cmd.DueDate,
			cmd.TotalAmount, cmd.Currency, cmd.ConfidenceScore, cmd.ExtractedBy, cmd.ClassificationID, s.clock.Now())
		if err != nil {
			return err
		}
		created = true
		return s.repo.Create(ctx, inv)
	})

	// Otra entrega concurrente ganó la carrera: la restricción única lo detecta.
	if errors.Is(err, invoiceDomain.ErrInvoiceAlreadyExists) {
		existing, getErr := s.repo.GetByClassificationID(ctx, cmd.ClassificationID)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if created {
		s.log.Info("Factura creada desde extracción",
			zap.String("invoice_id", inv.ID.String()),
			zap.String("classification_id", cmd.ClassificationID.String()),
		)
	}
	return inv, created, nil
}

func (s *InvoiceService) AddLineItem(ctx context.Context, id uuid.UUID, in LineItemInput) (*invoiceDomain.Invoice, error) {
	return s.mutate(ctx, id, func(inv *invoiceDomain.Invoice) error {
		_, err := inv.AddLineItem(in.Description, in.Quantity, in.UnitPrice, in.Currency)
		return err
	})
}

func (s *InvoiceService) Submit(ctx context.Context, id uuid.UUID) (*invoiceDomain.Invoice, error) {
	return s.mutate(ctx, id, func(inv *invoiceDomain.Invoice) error {
		return inv.Submit()
	})
}

func (s *InvoiceService) Approve(ctx context.Context, id uuid.UUID, approvedBy string) (*invoiceDomain.Invoice, error) {
	return s.mutate(ctx, id, func(inv *invoiceDomain.Invoice) error {
		return inv.Approve(approvedBy, s.clock.Now())
	})
}

func (s *InvoiceService) Reject(ctx context.Context, id uuid.UUID, reason, rejectedBy string) (*invoiceDomain.Invoice, error) {
	return s.mutate(ctx, id, func(inv *invoiceDomain.Invoice) error {
		return inv.Reject(reason, rejectedBy, s.clock.Now())
	})
}

func (s *InvoiceService) Flag(ctx context.Context, id uuid.UUID, reason, flaggedBy string) (*invoiceDomain.Invoice, error) {
	return s.mutate(ctx, id, func(inv *invoiceDomain.Invoice) error {
		return inv.FlagForReview(reason, flaggedBy, s.clock.Now())
	})
}

func (s *InvoiceService) MarkAsPaid(ctx context.Context, id, paymentID uuid.UUID) (*invoiceDomain.Invoice, error) {
	return s.mutate(ctx, id, func(inv *invoiceDomain.Invoice) error {
		return inv.MarkAsPaid(paymentID, s.clock.Now())
	})
}

func (s *InvoiceService) Cancel(ctx context.Context, id uuid.UUID) (*invoiceDomain.Invoice, error) {
	return s.mutate(ctx, id, func(inv *invoiceDomain.Invoice) error {
		return inv.Cancel()
	})
}

// mutate carga, aplica fn y guarda dentro de una unidad de trabajo.
// La caché se invalida sólo después de confirmar.
func (s *InvoiceService) mutate(ctx context.Context, id uuid.UUID, fn func(inv *invoiceDomain.Invoice) error) (*invoiceDomain.Invoice, error) {
	var inv *invoiceDomain.Invoice
	err := s.uow.Do(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(inv); err != nil {
			return err
		}
		return s.repo.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	sharedCache.InvalidateCache(ctx, s.cache, invoiceDomain.InvoiceCacheKeyByID(id), s.log)
	return inv, nil
}

// GetInvoice usa cache-aside con reintentos sobre errores de infraestructura.
func (s *InvoiceService) GetInvoice(ctx context.Context, id uuid.UUID) (*invoiceDomain.Invoice, error) {
	key := invoiceDomain.InvoiceCacheKeyByID(id)
	if s.cache != nil {
		var cached invoiceDomain.Invoice
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	var (
		inv      *invoiceDomain.Invoice
		notFound bool
	)
	err := sharedUtils.Retry(ctx, 3, 100*time.Millisecond, func(int) error {
		var err error
		inv, err = s.repo.GetByID(ctx, id)
		if errors.Is(err, invoiceDomain.ErrInvoiceNotFound) {
			notFound = true
			return nil
		}
		return err
	})
	if err != nil {
		s.log.Error("Failed to fetch invoice", zap.String("invoice_id", id.String()), zap.Error(err))
		return nil, err
	}
	if notFound {
		return nil, invoiceDomain.ErrInvoiceNotFound
	}

	sharedCache.AsyncCacheSet(s.cache, key, inv, cacheTTL, s.log)
	return inv, nil
}

// LoadInvoice lee siempre de la base de datos, sin pasar por la caché.
// Los consumidores lo usan para decidir sobre el estado confirmado.
func (s *InvoiceService) LoadInvoice(ctx context.Context, id uuid.UUID) (*invoiceDomain.Invoice, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *InvoiceService) GetByClassificationID(ctx context.Context, classificationID uuid.UUID) (*invoiceDomain.Invoice, error) {
	return s.repo.GetByClassificationID(ctx, classificationID)
}

func (s *InvoiceService) ListInvoices(ctx context.Context, f InvoiceFilter) ([]*invoiceDomain.Invoice, error) {
	var criterias []sharedDomain.Criteria
	if f.Status != nil {
		criterias = append(criterias, invoiceDomain.StatusCriteria{Status: *f.Status})
	}
	if f.VendorID != nil {
		criterias = append(criterias, invoiceDomain.VendorIDCriteria{ID: *f.VendorID})
	}
	if f.Number != "" {
		criterias = append(criterias, invoiceDomain.NumberLikeCriteria{Number: f.Number})
	}
	if f.DueFrom != nil || f.DueTo != nil {
		criterias = append(criterias, invoiceDomain.DueDateRangeCriteria{Start: f.DueFrom, End: f.DueTo})
	}

	sort := f.Sort
	if sort.Field == "" {
		sort = sharedQuery.Sort{Field: "created_at", Desc: true}
	}
	return s.repo.ListByCriteria(ctx, sharedDomain.And(criterias...), f.Pagination, sort)
}
