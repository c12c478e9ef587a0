package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventBase lleva la identidad y el instante de un evento de dominio.
// Se embebe en cada evento para que el contenido serializado sea autocontenido.
type EventBase struct {
	EventID    uuid.UUID `json:"eventId"`
	OccurredOn time.Time `json:"occurredOn"`
}

// NewEventBase genera un id nuevo y fija el instante en UTC.
func NewEventBase(now time.Time) EventBase {
	return EventBase{
		EventID:    uuid.New(),
		OccurredOn: now.UTC(),
	}
}

func (b EventBase) Base() EventBase {
	return b
}

// DomainEvent es un hecho inmutable levantado por un agregado.
// EventType devuelve el nombre lógico usado para enrutar (ej. "InvoiceApprovedEvent").
type DomainEvent interface {
	EventType() string
	Base() EventBase
}

// Aggregate es el único contrato que el outbox necesita de un agregado.
type Aggregate interface {
	PendingEvents() []DomainEvent
	ClearEvents()
}

// AggregateRoot acumula los eventos pendientes de captura. Se embebe en los agregados.
type AggregateRoot struct {
	events []DomainEvent
}

// Raise registra un evento pendiente.
func (a *AggregateRoot) Raise(evt DomainEvent) {
	a.events = append(a.events, evt)
}

// PendingEvents devuelve una copia de los eventos aún no capturados.
func (a *AggregateRoot) PendingEvents() []DomainEvent {
	out := make([]DomainEvent, len(a.events))
	copy(out, a.events)
	return out
}

func (a *AggregateRoot) ClearEvents() {
	a.events = nil
}

var _ Aggregate = (*AggregateRoot)(nil)
