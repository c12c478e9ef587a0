package bus

import (
	"context"
	"errors"
	"sync"
)

// DefaultExchange es el exchange fan-out compartido por todos los módulos.
const DefaultExchange = "invoice-platform-exchange"

var (
	ErrBrokerClosed    = errors.New("broker closed")
	ErrAlreadySettled  = errors.New("delivery already acknowledged")
	ErrQueueNameNeeded = errors.New("queue name is required")
)

// Message es el sobre en el cable: el tipo viaja como metadato y el cuerpo es el
// contenido exacto del registro outbox.
type Message struct {
	Type    string
	Body    []byte
	Headers map[string]string
}

// Delivery es un mensaje entregado a una cola, pendiente de ack o nack.
type Delivery struct {
	Message
	// Count empieza en 1 y sube con cada reentrega.
	Count int

	once sync.Once
	ack  func(ctx context.Context) error
	nack func(ctx context.Context, requeue bool) error
}

// NewDelivery construye una entrega con sus funciones de confirmación.
func NewDelivery(msg Message, count int, ack func(ctx context.Context) error, nack func(ctx context.Context, requeue bool) error) *Delivery {
	return &Delivery{Message: msg, Count: count, ack: ack, nack: nack}
}

// Redelivered indica si el mensaje ya se entregó antes.
func (d *Delivery) Redelivered() bool {
	return d.Count > 1
}

// Ack elimina el mensaje de la cola de forma definitiva.
func (d *Delivery) Ack(ctx context.Context) error {
	err := ErrAlreadySettled
	d.once.Do(func() { err = d.ack(ctx) })
	return err
}

// Nack rechaza el mensaje; con requeue el broker lo vuelve a entregar.
func (d *Delivery) Nack(ctx context.Context, requeue bool) error {
	err := ErrAlreadySettled
	d.once.Do(func() { err = d.nack(ctx, requeue) })
	return err
}

// Queue es una cola durable enlazada al exchange.
type Queue interface {
	Name() string
	// Fetch bloquea hasta que haya una entrega o se cancele el contexto.
	Fetch(ctx context.Context) (*Delivery, error)
	Close() error
}

// Broker es la conexión con el broker de mensajes.
type Broker interface {
	// DeclareExchange declara (idempotente) el exchange fan-out durable.
	DeclareExchange(ctx context.Context) error
	// Publish envía al exchange sin routing key: llega a todas las colas enlazadas.
	Publish(ctx context.Context, msg Message) error
	// DeclareQueue declara la cola durable y la enlaza al exchange.
	DeclareQueue(ctx context.Context, name string) (Queue, error)
	Close() error
}

// EventPublisher es la cara de publicación que usa el relay.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte) error
}
