package dispatch

import (
	"context"
)

// Wildcard suscribe una cola a todos los tipos de evento.
const Wildcard = "*"

// Subscription enlaza una cola durable con los tipos que le interesan.
type Subscription struct {
	Queue      string
	EventTypes []string
}

// Accepts indica si la cola maneja el tipo dado.
func (s Subscription) Accepts(eventType string) bool {
	for _, t := range s.EventTypes {
		if t == Wildcard || t == eventType {
			return true
		}
	}
	return false
}

// EventHandler procesa los eventos de una cola.
// Un error devuelto reentrega el mensaje salvo que sea Permanent.
type EventHandler interface {
	Subscription() Subscription
	Handle(ctx context.Context, eventType string, payload []byte) error
}

type funcHandler struct {
	sub Subscription
	fn  func(ctx context.Context, eventType string, payload []byte) error
}

// HandlerFunc crea un EventHandler a partir de una función.
func HandlerFunc(sub Subscription, fn func(ctx context.Context, eventType string, payload []byte) error) EventHandler {
	return &funcHandler{sub: sub, fn: fn}
}

func (h *funcHandler) Subscription() Subscription { return h.sub }

func (h *funcHandler) Handle(ctx context.Context, eventType string, payload []byte) error {
	return h.fn(ctx, eventType, payload)
}
