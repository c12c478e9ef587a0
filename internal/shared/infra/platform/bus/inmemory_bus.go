package bus

import (
	"context"
	"sync"
)

// InMemoryBroker implementa un exchange fan-out con colas durables dentro del proceso.
// Cada cola declarada recibe una copia de todo lo publicado después de su declaración.
type InMemoryBroker struct {
	mu       sync.RWMutex
	exchange string
	declared bool
	queues   map[string]*inMemoryQueue
	closed   bool
}

// Verifica en tiempo de compilación que cumple la interfaz
var _ Broker = (*InMemoryBroker)(nil)

func NewInMemoryBroker(exchange string) *InMemoryBroker {
	return &InMemoryBroker{
		exchange: exchange,
		queues:   make(map[string]*inMemoryQueue),
	}
}

func (b *InMemoryBroker) DeclareExchange(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBrokerClosed
	}
	b.declared = true
	return nil
}

// Publish copia el mensaje en todas las colas enlazadas.
func (b *InMemoryBroker) Publish(ctx context.Context, msg Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBrokerClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, q := range b.queues {
		q.enqueue(cloneMessage(msg), 1)
	}
	return nil
}

// DeclareQueue es idempotente: si la cola existe, se devuelve la misma con sus mensajes.
func (b *InMemoryBroker) DeclareQueue(ctx context.Context, name string) (Queue, error) {
	if name == "" {
		return nil, ErrQueueNameNeeded
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}
	b.declared = true

	q, ok := b.queues[name]
	if !ok {
		q = newInMemoryQueue(name)
		b.queues[name] = q
	}
	return q, nil
}

// Depth devuelve los mensajes listos (no entregados) de una cola.
func (b *InMemoryBroker) Depth(name string) int {
	b.mu.RLock()
	q, ok := b.queues[name]
	b.mu.RUnlock()
	if !ok {
		return 0
	}
	return q.depth()
}

func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, q := range b.queues {
		q.Close()
	}
	return nil
}

type queued struct {
	msg   Message
	count int
}

type inMemoryQueue struct {
	name   string
	mu     sync.Mutex
	items  []queued
	notify chan struct{}
	stop   chan struct{}
	once   sync.Once
}

func newInMemoryQueue(name string) *inMemoryQueue {
	return &inMemoryQueue{
		name:   name,
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
}

func (q *inMemoryQueue) Name() string { return q.name }

func (q *inMemoryQueue) enqueue(msg Message, count int) {
	q.mu.Lock()
	q.items = append(q.items, queued{msg: msg, count: count})
	q.mu.Unlock()
	q.signal()
}

// requeue devuelve el mensaje a la cabeza de la cola.
func (q *inMemoryQueue) requeue(msg Message, count int) {
	q.mu.Lock()
	q.items = append([]queued{{msg: msg, count: count}}, q.items...)
	q.mu.Unlock()
	q.signal()
}

func (q *inMemoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *inMemoryQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *inMemoryQueue) Fetch(ctx context.Context) (*Delivery, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return q.delivery(item), nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.stop:
			return nil, ErrBrokerClosed
		case <-q.notify:
		}
	}
}

func (q *inMemoryQueue) delivery(item queued) *Delivery {
	return NewDelivery(item.msg, item.count,
		func(ctx context.Context) error { return nil },
		func(ctx context.Context, requeue bool) error {
			if requeue {
				q.requeue(item.msg, item.count+1)
			}
			return nil
		},
	)
}

func (q *inMemoryQueue) Close() error {
	q.once.Do(func() { close(q.stop) })
	return nil
}

func cloneMessage(msg Message) Message {
	out := Message{Type: msg.Type, Body: append([]byte(nil), msg.Body...)}
	if msg.Headers != nil {
		out.Headers = make(map[string]string, len(msg.Headers))
		for k, v := range msg.Headers {
			out.Headers[k] = v
		}
	}
	return out
}
