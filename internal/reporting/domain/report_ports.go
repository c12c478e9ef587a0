package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	sharedQuery "github.com/davicafu/invoiceflow/internal/shared/infra/platform/query"
)

var (
	ErrReportNotFound     = errors.New("invoice report not found")
	ErrAnalyticsDisabled  = errors.New("event analytics not configured")
	ErrInvalidReportQuery = errors.New("invalid report query")
)

// ReportRepository guarda la proyección por factura.
type ReportRepository interface {
	Get(ctx context.Context, invoiceID uuid.UUID) (*InvoiceReport, error)
	Save(ctx context.Context, r *InvoiceReport) error
	List(ctx context.Context, status string, page sharedQuery.OffsetPagination) ([]*InvoiceReport, error)
	All(ctx context.Context) ([]*InvoiceReport, error)
}

// EventLogEntry es una línea del log de auditoría de la plataforma.
type EventLogEntry struct {
	EventID    uuid.UUID
	Type       string
	Body       string
	OccurredOn time.Time
	LoggedAt   time.Time
}

// EventTypeCount cuenta eventos distintos de un tipo en una ventana.
type EventTypeCount struct {
	Type  string `json:"type"`
	Count uint64 `json:"count"`
}

// EventLogRepository es el sumidero analítico del log de eventos.
type EventLogRepository interface {
	LogBatch(ctx context.Context, entries []EventLogEntry) error
	CountByType(ctx context.Context, from, to time.Time) ([]EventTypeCount, error)
}
