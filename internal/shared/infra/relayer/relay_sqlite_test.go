package relayer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
	"github.com/davicafu/invoiceflow/internal/shared/infra/metrics"
	sharedBus "github.com/davicafu/invoiceflow/internal/shared/infra/platform/bus"
	"github.com/davicafu/invoiceflow/internal/shared/infra/platform/db/sqlstore"
)

type noteAdded struct {
	sharedDomain.EventBase
	Text string `json:"text"`
}

func (noteAdded) EventType() string { return "NoteAddedEvent" }

type note struct {
	sharedDomain.AggregateRoot
}

// toggleBroker falla mientras down sea true.
type toggleBroker struct {
	*sharedBus.InMemoryBroker
	down bool
}

func (b *toggleBroker) Publish(ctx context.Context, msg sharedBus.Message) error {
	if b.down {
		return errors.New("connection refused")
	}
	return b.InMemoryBroker.Publish(ctx, msg)
}

func TestRelay_EndToEndOverSQLite(t *testing.T) {
	// ARRANGE
	ctx := context.Background()
	store, err := sqlstore.Open(ctx, sqlstore.SQLite, ":memory:", "")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.InitSchema(ctx))

	outbox := sqlstore.NewOutboxRepo(store)
	uow := sqlstore.NewUnitOfWork(store, outbox, zap.NewNop())

	broker := &toggleBroker{InMemoryBroker: sharedBus.NewInMemoryBroker(sharedBus.DefaultExchange), down: true}
	queue, err := broker.DeclareQueue(ctx, "notes-queue")
	require.NoError(t, err)
	gateway, err := sharedBus.NewGateway(ctx, broker, zap.NewNop())
	require.NoError(t, err)

	clock := sharedDomain.NewFixedClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	relay := NewOutboxRelay("notes", outbox, gateway, clock, metrics.Nop{}, Config{BatchSize: 10}, zap.NewNop())

	n := &note{}
	n.Raise(noteAdded{EventBase: sharedDomain.NewEventBase(clock.Now()), Text: "hola"})
	require.NoError(t, uow.Do(ctx, func(ctx context.Context) error {
		return sharedDomain.Track(ctx, n)
	}))

	// ACT: broker caído
	published, failed := relay.ProcessBatch(ctx)

	// ASSERT
	assert.Equal(t, 0, published)
	assert.Equal(t, 1, failed)
	pending, err := outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
	assert.Equal(t, 0, broker.Depth("notes-queue"))

	// ACT: broker recuperado
	broker.down = false
	published, _ = relay.ProcessBatch(ctx)

	// ASSERT
	assert.Equal(t, 1, published)
	pending, err = outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)

	fetchCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	d, err := queue.Fetch(fetchCtx)
	require.NoError(t, err)
	assert.Equal(t, "NoteAddedEvent", d.Type)
	assert.Contains(t, string(d.Body), `"text":"hola"`)

	// Un lote más no vuelve a publicar.
	published, _ = relay.ProcessBatch(ctx)
	assert.Equal(t, 0, published)
	assert.Equal(t, 0, broker.Depth("notes-queue"))

	records, err := outbox.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Error, "the last failure stays recorded")
	assert.Equal(t, "connection refused", *records[0].Error)
}

// slowBroker tarda delay en cada publicación y avisa en started al empezar la primera.
type slowBroker struct {
	*sharedBus.InMemoryBroker
	delay   time.Duration
	started chan struct{}
	once    sync.Once
}

func (b *slowBroker) Publish(ctx context.Context, msg sharedBus.Message) error {
	b.once.Do(func() { close(b.started) })
	select {
	case <-time.After(b.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.InMemoryBroker.Publish(ctx, msg)
}

func TestRelay_SlowBrokerDoesNotBlockModuleWrites(t *testing.T) {
	// ARRANGE
	ctx := context.Background()
	store, err := sqlstore.Open(ctx, sqlstore.SQLite, ":memory:", "")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.InitSchema(ctx))

	outbox := sqlstore.NewOutboxRepo(store)
	uow := sqlstore.NewUnitOfWork(store, outbox, zap.NewNop())

	broker := &slowBroker{
		InMemoryBroker: sharedBus.NewInMemoryBroker(sharedBus.DefaultExchange),
		delay:          150 * time.Millisecond,
		started:        make(chan struct{}),
	}
	gateway, err := sharedBus.NewGateway(ctx, broker, zap.NewNop())
	require.NoError(t, err)

	clock := sharedDomain.NewFixedClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	relay := NewOutboxRelay("notes", outbox, gateway, clock, metrics.Nop{}, Config{BatchSize: 10}, zap.NewNop())

	for i := 0; i < 5; i++ {
		n := &note{}
		n.Raise(noteAdded{EventBase: sharedDomain.NewEventBase(clock.Now()), Text: "pendiente"})
		require.NoError(t, uow.Do(ctx, func(ctx context.Context) error {
			return sharedDomain.Track(ctx, n)
		}))
	}

	type result struct{ published, failed int }
	done := make(chan result, 1)
	go func() {
		p, f := relay.ProcessBatch(ctx)
		done <- result{p, f}
	}()
	<-broker.started

	// ACT: una escritura de negocio mientras el relay publica
	writeCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	n := &note{}
	n.Raise(noteAdded{EventBase: sharedDomain.NewEventBase(clock.Now()), Text: "nueva"})
	err = uow.Do(writeCtx, func(ctx context.Context) error {
		return sharedDomain.Track(ctx, n)
	})

	// ASSERT
	require.NoError(t, err)
	res := <-done
	assert.Equal(t, 5, res.published)
	assert.Equal(t, 0, res.failed)

	pending, err := outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending, "the record written during publishing stays pending")
}
