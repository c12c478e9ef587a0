package bus

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/davicafu/invoiceflow/internal/shared/infra/tracing"
)

// Gateway es el único punto de publicación hacia el broker.
type Gateway struct {
	broker Broker
	log    *zap.Logger
}

// NewGateway declara el exchange y devuelve el gateway listo para publicar.
func NewGateway(ctx context.Context, broker Broker, log *zap.Logger) (*Gateway, error) {
	if err := broker.DeclareExchange(ctx); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Gateway{broker: broker, log: log}, nil
}

// Publish envía (tipo, payload) al exchange. Los errores se propagan al llamante.
func (g *Gateway) Publish(ctx context.Context, eventType string, payload []byte) error {
	ctx, span := tracing.Tracer().Start(ctx, "outbox.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attribute.String("messaging.event_type", eventType)),
	)
	defer span.End()

	headers := map[string]string{}
	tracing.Inject(ctx, headers)

	if err := g.broker.Publish(ctx, Message{Type: eventType, Body: payload, Headers: headers}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	g.log.Debug("Event published", zap.String("event_type", eventType), zap.Int("bytes", len(payload)))
	return nil
}

var _ EventPublisher = (*Gateway)(nil)
