package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/invoiceflow/internal/reporting/domain"
	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
	sharedQuery "github.com/davicafu/invoiceflow/internal/shared/infra/platform/query"
)

// ReportService mantiene la proyección de facturas y sirve los informes.
// analytics puede ser nil si no hay ClickHouse configurado.
type ReportService struct {
	uow       sharedDomain.UnitOfWork
	repo      domain.ReportRepository
	analytics domain.EventLogRepository
	clock     sharedDomain.Clock
	log       *zap.Logger
}

func NewReportService(uow sharedDomain.UnitOfWork, repo domain.ReportRepository, analytics domain.EventLogRepository, clock sharedDomain.Clock, log *zap.Logger) *ReportService {
	return &ReportService{uow: uow, repo: repo, analytics: analytics, clock: clock, log: log}
}

// Project aplica un cambio a la fila de la factura. applied es false si la fila ya lo reflejaba.
func (s *ReportService) Project(ctx context.Context, change domain.StatusChange) (applied bool, err error) {
	now := s.clock.Now()
	err = s.uow.Do(ctx, func(ctx context.Context) error {
		rep, err := s.repo.Get(ctx, change.InvoiceID)
		switch {
		case errors.Is(err, domain.ErrReportNotFound):
			rep = domain.NewInvoiceReport(change, now)
			applied = true
		case err != nil:
			return err
		default:
			applied = rep.Apply(change, now)
		}
		if !applied {
			return nil
		}
		return s.repo.Save(ctx, rep)
	})
	if err != nil {
		return false, err
	}

	if applied {
		s.log.Debug("Proyección actualizada",
			zap.String("invoice_id", change.InvoiceID.String()),
			zap.String("status", change.Status),
		)
	}
	return applied, nil
}

func (s *ReportService) GetInvoiceReport(ctx context.Context, invoiceID uuid.UUID) (*domain.InvoiceReport, error) {
	return s.repo.Get(ctx, invoiceID)
}

func (s *ReportService) ListInvoiceReports(ctx context.Context, status string, page sharedQuery.OffsetPagination) ([]*domain.InvoiceReport, error) {
	return s.repo.List(ctx, status, page)
}

// InvoiceSummary agrega la proyección por estado.
func (s *ReportService) InvoiceSummary(ctx context.Context) ([]domain.InvoiceSummary, error) {
	rows, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	return domain.Summarize(rows), nil
}

// EventCounts cuenta los eventos auditados por tipo entre from y to.
func (s *ReportService) EventCounts(ctx context.Context, from, to time.Time) ([]domain.EventTypeCount, error) {
	if s.analytics == nil {
		return nil, domain.ErrAnalyticsDisabled
	}
	if !to.After(from) {
		return nil, domain.ErrInvalidReportQuery
	}
	return s.analytics.CountByType(ctx, from, to)
}
