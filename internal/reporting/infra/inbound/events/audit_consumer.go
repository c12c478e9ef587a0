package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/invoiceflow/internal/reporting/domain"
	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
	"github.com/davicafu/invoiceflow/internal/shared/infra/dispatch"
)

const AuditQueue = "audit-log-queue"

// AuditConsumer vuelca todos los eventos de la plataforma al log analítico.
type AuditConsumer struct {
	sink  domain.EventLogRepository
	clock sharedDomain.Clock
	log   *zap.Logger
}

func NewAuditConsumer(sink domain.EventLogRepository, clock sharedDomain.Clock, log *zap.Logger) *AuditConsumer {
	return &AuditConsumer{sink: sink, clock: clock, log: log}
}

func (c *AuditConsumer) Subscription() dispatch.Subscription {
	return dispatch.Subscription{Queue: AuditQueue, EventTypes: []string{dispatch.Wildcard}}
}

func (c *AuditConsumer) Handle(ctx context.Context, eventType string, payload []byte) error {
	now := c.clock.Now().UTC()
	entry := domain.EventLogEntry{
		Type:       eventType,
		Body:       string(payload),
		OccurredOn: now,
		LoggedAt:   now,
	}

	// Sin eventId no se puede deduplicar en ClickHouse; se genera uno para no perder la línea.
	var base sharedDomain.EventBase
	if err := json.Unmarshal(payload, &base); err == nil {
		entry.EventID = base.EventID
		if !base.OccurredOn.IsZero() {
			entry.OccurredOn = base.OccurredOn.UTC()
		}
	}
	if entry.EventID == uuid.Nil {
		entry.EventID = uuid.New()
	}

	if err := c.sink.LogBatch(ctx, []domain.EventLogEntry{entry}); err != nil {
		c.log.Warn("⚠️ No se pudo auditar el evento", zap.String("event_type", eventType), zap.Error(err))
		return err
	}
	return nil
}

