package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	MaxTypeLength  = 500
	MaxErrorLength = 2000
)

var (
	ErrEventTypeTooLong = errors.New("event type exceeds maximum length")
	ErrEmptyEventType   = errors.New("event type is empty")
)

// OutboxRecord es la fila persistida en la tabla outbox de cada módulo.
type OutboxRecord struct {
	ID             uuid.UUID  `json:"id"`
	Type           string     `json:"type"`
	Content        string     `json:"content"`
	OccurredOnUtc  time.Time  `json:"occurredOnUtc"`
	ProcessedOnUtc *time.Time `json:"processedOnUtc,omitempty"`
	Error          *string    `json:"error,omitempty"`
}

// NewOutboxRecord serializa un evento de dominio a un registro outbox.
func NewOutboxRecord(evt DomainEvent) (OutboxRecord, error) {
	eventType := evt.EventType()
	if eventType == "" {
		return OutboxRecord{}, ErrEmptyEventType
	}
	if len(eventType) > MaxTypeLength {
		return OutboxRecord{}, fmt.Errorf("%w: %q", ErrEventTypeTooLong, eventType[:32])
	}

	content, err := json.Marshal(evt)
	if err != nil {
		return OutboxRecord{}, fmt.Errorf("failed to serialize %s: %w", eventType, err)
	}

	return OutboxRecord{
		ID:            uuid.New(),
		Type:          eventType,
		Content:       string(content),
		OccurredOnUtc: evt.Base().OccurredOn.UTC(),
	}, nil
}

// Processed indica si el relay ya publicó el registro.
func (r OutboxRecord) Processed() bool {
	return r.ProcessedOnUtc != nil
}

// MarkProcessed fija processedOnUtc. Nunca sobrescribe un valor existente.
func (r *OutboxRecord) MarkProcessed(now time.Time) {
	if r.ProcessedOnUtc != nil {
		return
	}
	t := now.UTC()
	r.ProcessedOnUtc = &t
}

// MarkFailed guarda el mensaje de error (truncado). El registro sigue pendiente.
func (r *OutboxRecord) MarkFailed(err error) {
	msg := TruncateError(err.Error())
	r.Error = &msg
}

// TruncateError recorta un mensaje al tamaño de la columna error.
func TruncateError(msg string) string {
	if len(msg) <= MaxErrorLength {
		return msg
	}
	return msg[:MaxErrorLength]
}

// OutboxBatch es un lote reclamado de registros pendientes.
// Commit persiste todas las mutaciones en una única escritura y libera el lote.
type OutboxBatch interface {
	Records() []OutboxRecord
	Commit(ctx context.Context, records []OutboxRecord) error
	Rollback() error
}

// OutboxStore es la tabla outbox de un módulo vista desde el relay.
type OutboxStore interface {
	// FetchPendingOutbox reclama hasta limit registros no procesados, del más antiguo al más nuevo.
	FetchPendingOutbox(ctx context.Context, limit int) (OutboxBatch, error)

	// CountPending cuenta los registros aún no publicados.
	CountPending(ctx context.Context) (int, error)
}
