package domain

import (
	"context"

	"github.com/google/uuid"
)

// InboxStore es el registro de eventos ya procesados por cada consumidor.
type InboxStore interface {
	// Seen indica si el consumidor ya procesó el evento.
	Seen(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)

	// Record marca el evento como procesado. Registrar dos veces no es un error.
	Record(ctx context.Context, consumer string, eventID uuid.UUID, eventType string) error
}
