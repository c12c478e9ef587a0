package domain

import (
	"context"
	"errors"
	"fmt"
)

var ErrNoUnitOfWork = errors.New("aggregate persisted outside a unit of work")

// UnitOfWork ejecuta fn dentro de una transacción. Al confirmar, los eventos de los
// agregados registrados con Track se convierten en registros outbox en esa misma transacción.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type trackerKey struct{}

// Tracker guarda los agregados que participan en la unidad de trabajo actual.
type Tracker struct {
	aggregates []Aggregate
	seen       map[Aggregate]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{seen: make(map[Aggregate]struct{})}
}

// Add registra un agregado una sola vez, respetando el orden de llegada.
func (t *Tracker) Add(agg Aggregate) {
	if _, ok := t.seen[agg]; ok {
		return
	}
	t.seen[agg] = struct{}{}
	t.aggregates = append(t.aggregates, agg)
}

func (t *Tracker) Aggregates() []Aggregate {
	return t.aggregates
}

// ClearAll vacía los eventos pendientes de todos los agregados registrados.
func (t *Tracker) ClearAll() {
	for _, agg := range t.aggregates {
		agg.ClearEvents()
	}
}

// WithTracker asocia un Tracker al contexto.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// Track registra el agregado en la unidad de trabajo del contexto.
// Los repositorios lo llaman en cada escritura; sin unidad de trabajo devuelve ErrNoUnitOfWork.
func Track(ctx context.Context, agg Aggregate) error {
	t, ok := ctx.Value(trackerKey{}).(*Tracker)
	if !ok || t == nil {
		return ErrNoUnitOfWork
	}
	t.Add(agg)
	return nil
}

// CaptureEvents convierte los eventos pendientes en registros outbox.
// Los agregados sin eventos se saltan.
func CaptureEvents(aggregates []Aggregate) ([]OutboxRecord, error) {
	var records []OutboxRecord
	for _, agg := range aggregates {
		events := agg.PendingEvents()
		if len(events) == 0 {
			continue
		}
		for _, evt := range events {
			rec, err := NewOutboxRecord(evt)
			if err != nil {
				return nil, fmt.Errorf("capture %s: %w", evt.EventType(), err)
			}
			records = append(records, rec)
		}
	}
	return records, nil
}
