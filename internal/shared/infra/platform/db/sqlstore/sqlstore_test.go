package sqlstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
)

type widgetEvent struct {
	sharedDomain.EventBase
	Name string `json:"name"`
	typ  string
}

func (e widgetEvent) EventType() string {
	if e.typ != "" {
		return e.typ
	}
	return "WidgetCreatedEvent"
}

type widget struct {
	sharedDomain.AggregateRoot
	ID   uuid.UUID
	Name string
}

func newWidget(name string, at time.Time) *widget {
	w := &widget{ID: uuid.New(), Name: name}
	w.Raise(widgetEvent{EventBase: sharedDomain.NewEventBase(at), Name: name})
	return w
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	store, err := Open(ctx, SQLite, ":memory:", "")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.InitSchema(ctx))
	require.NoError(t, store.Exec(ctx, `CREATE TABLE widgets (id TEXT PRIMARY KEY, name TEXT NOT NULL)`))
	return store
}

func saveWidget(ctx context.Context, store *Store, w *widget) error {
	if _, err := store.Conn(ctx).ExecContext(ctx, `INSERT INTO widgets (id, name) VALUES (?, ?)`, w.ID.String(), w.Name); err != nil {
		return err
	}
	return sharedDomain.Track(ctx, w)
}

func countWidgets(t *testing.T, store *Store) int {
	var n int
	require.NoError(t, store.DB.QueryRow(`SELECT COUNT(*) FROM widgets`).Scan(&n))
	return n
}

func TestUnitOfWork_CommitsStateAndEventsTogether(t *testing.T) {
	// ARRANGE
	ctx := context.Background()
	store := newTestStore(t)
	outbox := NewOutboxRepo(store)
	uow := NewUnitOfWork(store, outbox, zap.NewNop())
	w := newWidget("bolt", time.Now())

	// ACT
	err := uow.Do(ctx, func(ctx context.Context) error {
		return saveWidget(ctx, store, w)
	})

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, 1, countWidgets(t, store))

	pending, err := outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
	assert.Empty(t, w.PendingEvents(), "events are cleared after commit")

	records, err := outbox.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "WidgetCreatedEvent", records[0].Type)
	assert.Contains(t, records[0].Content, `"name":"bolt"`)
	assert.Nil(t, records[0].ProcessedOnUtc)
}

func TestUnitOfWork_RollbackKeepsNothingAndEventsStayPending(t *testing.T) {
	// ARRANGE
	ctx := context.Background()
	store := newTestStore(t)
	outbox := NewOutboxRepo(store)
	uow := NewUnitOfWork(store, outbox, zap.NewNop())
	w := newWidget("nut", time.Now())
	boom := errors.New("boom")

	// ACT
	err := uow.Do(ctx, func(ctx context.Context) error {
		if err := saveWidget(ctx, store, w); err != nil {
			return err
		}
		return boom
	})

	// ASSERT
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countWidgets(t, store))
	pending, err := outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
	assert.Len(t, w.PendingEvents(), 1)
}

func TestUnitOfWork_CaptureFailureRollsBackState(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	uow := NewUnitOfWork(store, NewOutboxRepo(store), zap.NewNop())

	w := &widget{ID: uuid.New(), Name: "gear"}
	w.Raise(widgetEvent{EventBase: sharedDomain.NewEventBase(time.Now()), typ: strings.Repeat("x", sharedDomain.MaxTypeLength+1)})

	err := uow.Do(ctx, func(ctx context.Context) error {
		return saveWidget(ctx, store, w)
	})

	assert.ErrorIs(t, err, sharedDomain.ErrEventTypeTooLong)
	assert.Equal(t, 0, countWidgets(t, store))
}

func TestUnitOfWork_AggregateWithoutEventsWritesNoOutbox(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	outbox := NewOutboxRepo(store)
	uow := NewUnitOfWork(store, outbox, zap.NewNop())

	w := &widget{ID: uuid.New(), Name: "quiet"}
	require.NoError(t, uow.Do(ctx, func(ctx context.Context) error {
		return saveWidget(ctx, store, w)
	}))

	pending, err := outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
	assert.Equal(t, 1, countWidgets(t, store))
}

func TestOutbox_FetchPendingOldestFirstAndCommit(t *testing.T) {
	// ARRANGE
	ctx := context.Background()
	store := newTestStore(t)
	outbox := NewOutboxRepo(store)
	uow := NewUnitOfWork(store, outbox, zap.NewNop())

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	late := newWidget("late", base.Add(time.Minute))
	early := newWidget("early", base)
	require.NoError(t, uow.Do(ctx, func(ctx context.Context) error {
		if err := saveWidget(ctx, store, late); err != nil {
			return err
		}
		return saveWidget(ctx, store, early)
	}))

	// ACT
	batch, err := outbox.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)
	records := batch.Records()
	require.Len(t, records, 2)
	assert.Contains(t, records[0].Content, `"early"`)
	assert.Contains(t, records[1].Content, `"late"`)

	processedAt := base.Add(time.Hour)
	records[0].MarkProcessed(processedAt)
	records[1].MarkFailed(errors.New("broker unreachable"))
	require.NoError(t, batch.Commit(ctx, records))

	// ASSERT
	pending, err := outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	next, err := outbox.FetchPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, next.Records(), 1)
	left := next.Records()[0]
	assert.Contains(t, left.Content, `"late"`)
	require.NotNil(t, left.Error)
	assert.Equal(t, "broker unreachable", *left.Error)
	require.NoError(t, next.Rollback())

	all, err := outbox.List(ctx, 10, 0)
	require.NoError(t, err)
	for _, rec := range all {
		if rec.ID == records[0].ID {
			require.NotNil(t, rec.ProcessedOnUtc)
			assert.True(t, processedAt.Equal(*rec.ProcessedOnUtc))
		}
	}
}

func TestOutbox_FetchRespectsLimit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	outbox := NewOutboxRepo(store)
	uow := NewUnitOfWork(store, outbox, zap.NewNop())

	now := time.Now()
	require.NoError(t, uow.Do(ctx, func(ctx context.Context) error {
		for i := 0; i < 5; i++ {
			if err := saveWidget(ctx, store, newWidget("w", now.Add(time.Duration(i)*time.Second))); err != nil {
				return err
			}
		}
		return nil
	}))

	batch, err := outbox.FetchPendingOutbox(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, batch.Records(), 3)
	require.NoError(t, batch.Rollback())
	assert.NoError(t, batch.Rollback(), "rollback twice is harmless")
}

func TestInboxRepo_RecordIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	inbox := NewInboxRepo(store, sharedDomain.SystemClock{})
	eventID := uuid.New()

	seen, err := inbox.Seen(ctx, "payment-tracking-queue", eventID)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, inbox.Record(ctx, "payment-tracking-queue", eventID, "InvoiceApprovedEvent"))
	require.NoError(t, inbox.Record(ctx, "payment-tracking-queue", eventID, "InvoiceApprovedEvent"))

	seen, err = inbox.Seen(ctx, "payment-tracking-queue", eventID)
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = inbox.Seen(ctx, "reporting-queue", eventID)
	require.NoError(t, err)
	assert.False(t, seen, "the ledger is per consumer")
}

func TestDeadLetterRepo_SaveAndList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := NewDeadLetterRepo(store)
	require.NoError(t, repo.InitSchema(ctx))
	require.NoError(t, repo.InitSchema(ctx), "idempotente")

	first := sharedDomain.DeadLetter{
		ID: uuid.New(), Queue: "invoice-payment-queue", Type: "PaymentCompletedEvent",
		Body: `{"bad":`, Headers: map[string]string{"traceparent": "t"}, Deliveries: 1,
		Error: "malformed payload", FailedOnUtc: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	second := first
	second.ID = uuid.New()
	second.FailedOnUtc = first.FailedOnUtc.Add(time.Hour)

	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	list, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	assert.Equal(t, first.Headers, list[1].Headers)
	assert.Equal(t, `{"bad":`, list[1].Body)
}

func TestInitSchema_ModuleStoreHasNoDeadLetters(t *testing.T) {
	// ARRANGE
	ctx := context.Background()
	store := newTestStore(t)
	tableCount := func(name string) int {
		var n int
		require.NoError(t, store.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n))
		return n
	}

	// ASSERT
	assert.Equal(t, 1, tableCount("outbox_messages"))
	assert.Equal(t, 1, tableCount("inbox_messages"))
	assert.Equal(t, 0, tableCount("dead_letters"))

	// ACT
	require.NoError(t, NewDeadLetterRepo(store).InitSchema(ctx))

	// ASSERT
	assert.Equal(t, 1, tableCount("dead_letters"))
}

func TestDialect_Rebind(t *testing.T) {
	q := `UPDATE t SET a = ?, b = ? WHERE id = ?`
	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, `UPDATE t SET a = $1, b = $2 WHERE id = $3`, Postgres.Rebind(q))

	s := &Store{Dialect: Postgres, Schema: "invoices"}
	assert.Equal(t, "invoices.outbox_messages", s.Table("outbox_messages"))
	s = &Store{Dialect: SQLite, Schema: "invoices"}
	assert.Equal(t, "outbox_messages", s.Table("outbox_messages"))

	d, err := ParseDialect("PostgreSQL")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)
	_, err = ParseDialect("oracle")
	assert.Error(t, err)
}

func TestUnitOfWork_PanicRollsBackAndReleasesConnection(t *testing.T) {
	// ARRANGE
	ctx := context.Background()
	store := newTestStore(t)
	outbox := NewOutboxRepo(store)
	uow := NewUnitOfWork(store, outbox, zap.NewNop())

	// ACT: el panic se propaga, como lo recogería gin.Recovery
	assert.PanicsWithValue(t, "boom", func() {
		_ = uow.Do(ctx, func(ctx context.Context) error {
			if err := saveWidget(ctx, store, newWidget("lost", time.Now())); err != nil {
				return err
			}
			panic("boom")
		})
	})

	nextCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	err := uow.Do(nextCtx, func(ctx context.Context) error {
		return saveWidget(ctx, store, newWidget("kept", time.Now()))
	})

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, 1, countWidgets(t, store))
	pending, err := outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}
