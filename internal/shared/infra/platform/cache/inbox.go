package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
)

// Inbox es un registro de deduplicación sobre la caché: una clave por consumidor y evento,
// con TTL. Pasado el TTL un duplicado tardío se volvería a procesar.
type Inbox struct {
	cache Cache
	ttl   time.Duration
}

var _ sharedDomain.InboxStore = (*Inbox)(nil)

func NewInbox(c Cache, ttl time.Duration) *Inbox {
	return &Inbox{cache: c, ttl: ttl}
}

func inboxKey(consumer string, eventID uuid.UUID) string {
	return fmt.Sprintf("inbox:%s:%s", consumer, eventID)
}

func (i *Inbox) Seen(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	var eventType string
	return i.cache.Get(ctx, inboxKey(consumer, eventID), &eventType)
}

func (i *Inbox) Record(ctx context.Context, consumer string, eventID uuid.UUID, eventType string) error {
	_, err := i.cache.SetNX(ctx, inboxKey(consumer, eventID), eventType, i.ttl)
	return err
}
