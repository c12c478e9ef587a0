package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
)

// InboxRepo registra los eventos ya manejados por cada consumidor del módulo.
type InboxRepo struct {
	store *Store
	table string
	clock sharedDomain.Clock
}

func NewInboxRepo(store *Store, clock sharedDomain.Clock) *InboxRepo {
	return &InboxRepo{store: store, table: store.Table("inbox_messages"), clock: clock}
}

func (r *InboxRepo) Seen(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	var one int
	err := r.store.Conn(ctx).QueryRowContext(ctx, r.store.Rebind(fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE consumer = ? AND event_id = ?`, r.table)),
		consumer, eventID.String(),
	).Scan(&one)
	if err != nil {
		return false, fmt.Errorf("inbox lookup: %w", err)
	}
	return one > 0, nil
}

// Record es idempotente: registrar dos veces el mismo evento no falla.
func (r *InboxRepo) Record(ctx context.Context, consumer string, eventID uuid.UUID, eventType string) error {
	_, err := r.store.Conn(ctx).ExecContext(ctx, r.store.Rebind(fmt.Sprintf(
		`INSERT INTO %s (consumer, event_id, event_type, processed_on_utc) VALUES (?, ?, ?, ?)
		 ON CONFLICT (consumer, event_id) DO NOTHING`, r.table)),
		consumer, eventID.String(), eventType, r.clock.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("inbox record: %w", err)
	}
	return nil
}

var _ sharedDomain.InboxStore = (*InboxRepo)(nil)
