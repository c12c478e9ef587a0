package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
	"github.com/davicafu/invoiceflow/internal/shared/infra/metrics"
	sharedBus "github.com/davicafu/invoiceflow/internal/shared/infra/platform/bus"
	"github.com/davicafu/invoiceflow/internal/shared/infra/tracing"
)

// Outcome es cómo se liquidó una entrega.
type Outcome string

const (
	Ignored      Outcome = "ignored"
	Handled      Outcome = "handled"
	Duplicate    Outcome = "duplicate"
	Requeued     Outcome = "requeued"
	DeadLettered Outcome = "dead_lettered"
	Dropped      Outcome = "dropped"
)

type Config struct {
	HandlerTimeout  time.Duration
	RedeliveryDelay time.Duration
	// MaxDeliveries: a partir de esta entrega un fallo va a dead-letter. 0 = sin límite.
	MaxDeliveries int
}

func (c Config) withDefaults() Config {
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = 30 * time.Second
	}
	if c.RedeliveryDelay < 0 {
		c.RedeliveryDelay = 0
	}
	if c.MaxDeliveries < 0 {
		c.MaxDeliveries = 0
	}
	return c
}

// Consumer consume una cola y despacha cada entrega a su handler.
type Consumer struct {
	broker      sharedBus.Broker
	handler     EventHandler
	inbox       sharedDomain.InboxStore
	deadLetters sharedDomain.DeadLetterStore
	clock       sharedDomain.Clock
	metrics     metrics.Recorder
	cfg         Config
	log         *zap.Logger

	done chan struct{}
}

// NewConsumer crea el consumidor. inbox y deadLetters pueden ser nil.
func NewConsumer(
	broker sharedBus.Broker,
	handler EventHandler,
	inbox sharedDomain.InboxStore,
	deadLetters sharedDomain.DeadLetterStore,
	clock sharedDomain.Clock,
	recorder metrics.Recorder,
	cfg Config,
	log *zap.Logger,
) *Consumer {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Consumer{
		broker:      broker,
		handler:     handler,
		inbox:       inbox,
		deadLetters: deadLetters,
		clock:       clock,
		metrics:     recorder,
		cfg:         cfg.withDefaults(),
		log:         log.With(zap.String("queue", handler.Subscription().Queue)),
		done:        make(chan struct{}),
	}
}

// Start declara la cola y arranca el bucle de consumo en una goroutine.
// El bucle termina al cancelar ctx; Done se cierra entonces.
func (c *Consumer) Start(ctx context.Context) error {
	sub := c.handler.Subscription()
	queue, err := c.broker.DeclareQueue(ctx, sub.Queue)
	if err != nil {
		return err
	}

	c.log.Info("🎧 Consumidor iniciado", zap.Strings("event_types", sub.EventTypes))
	go c.run(ctx, queue)
	return nil
}

func (c *Consumer) Done() <-chan struct{} {
	return c.done
}

func (c *Consumer) run(ctx context.Context, queue sharedBus.Queue) {
	defer close(c.done)
	defer queue.Close()

	for {
		d, err := queue.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, sharedBus.ErrBrokerClosed) {
				c.log.Info("🛑 Consumidor detenido")
				return
			}
			c.log.Warn("Error fetching delivery", zap.Error(err))
			if !sleep(ctx, time.Second) {
				return
			}
			continue
		}

		if c.HandleDelivery(ctx, d) == Requeued {
			if !sleep(ctx, c.cfg.RedeliveryDelay) {
				return
			}
		}
	}
}

// HandleDelivery procesa y liquida una entrega. Toda entrega termina en exactamente un ack o nack.
func (c *Consumer) HandleDelivery(ctx context.Context, d *sharedBus.Delivery) Outcome {
	sub := c.handler.Subscription()
	outcome := c.handle(ctx, sub, d)
	c.metrics.RecordDelivery(sub.Queue, d.Type, string(outcome))
	return outcome
}

func (c *Consumer) handle(ctx context.Context, sub Subscription, d *sharedBus.Delivery) Outcome {
	log := c.log.With(zap.String("event_type", d.Type), zap.Int("delivery", d.Count))

	if !sub.Accepts(d.Type) {
		c.settle(log, d.Ack(ctx))
		return Ignored
	}

	eventID := eventIDOf(d.Body)
	if c.inbox != nil && eventID != uuid.Nil {
		seen, err := c.inbox.Seen(ctx, sub.Queue, eventID)
		if err != nil {
			log.Warn("Inbox lookup failed, requeueing", zap.Error(err))
			c.settle(log, d.Nack(ctx, true))
			return Requeued
		}
		if seen {
			log.Debug("Duplicate delivery skipped", zap.String("event_id", eventID.String()))
			c.settle(log, d.Ack(ctx))
			return Duplicate
		}
	}

	err := c.invoke(ctx, sub, d)
	if err == nil {
		if c.inbox != nil && eventID != uuid.Nil {
			if err := c.inbox.Record(ctx, sub.Queue, eventID, d.Type); err != nil {
				log.Warn("Inbox record failed", zap.String("event_id", eventID.String()), zap.Error(err))
			}
		}
		c.settle(log, d.Ack(ctx))
		return Handled
	}

	exhausted := c.cfg.MaxDeliveries > 0 && d.Count >= c.cfg.MaxDeliveries
	if !IsPermanent(err) && !exhausted {
		log.Warn("⚠️ Handler falló, se reintentará", zap.Error(err))
		c.settle(log, d.Nack(ctx, true))
		return Requeued
	}

	return c.deadLetter(ctx, log, sub, d, err)
}

// ErrHandlerPanic envuelve un panic recuperado del handler. Se trata como fallo reintentable.
var ErrHandlerPanic = errors.New("event handler panicked")

func (c *Consumer) invoke(ctx context.Context, sub Subscription, d *sharedBus.Delivery) (err error) {
	hctx := tracing.Extract(ctx, d.Headers)
	hctx, span := tracing.Tracer().Start(hctx, sub.Queue+" process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination", sub.Queue),
			attribute.String("messaging.event_type", d.Type),
			attribute.Int("messaging.delivery_count", d.Count),
		),
	)
	defer span.End()

	hctx, cancel := context.WithTimeout(hctx, c.cfg.HandlerTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, p)
		}
		c.metrics.ObserveHandling(sub.Queue, d.Type, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	return c.handler.Handle(hctx, d.Type, d.Body)
}

func (c *Consumer) deadLetter(ctx context.Context, log *zap.Logger, sub Subscription, d *sharedBus.Delivery, cause error) Outcome {
	if c.deadLetters == nil {
		log.Error("❌ Mensaje descartado sin dead-letter store", zap.Error(cause))
		c.settle(log, d.Nack(ctx, false))
		return Dropped
	}

	dl := sharedDomain.DeadLetter{
		ID:          uuid.New(),
		Queue:       sub.Queue,
		Type:        d.Type,
		Body:        string(d.Body),
		Headers:     d.Headers,
		Deliveries:  d.Count,
		Error:       sharedDomain.TruncateError(cause.Error()),
		FailedOnUtc: c.clock.Now().UTC(),
	}
	if err := c.deadLetters.Save(ctx, dl); err != nil {
		log.Error("Dead-letter save failed, requeueing", zap.Error(err))
		c.settle(log, d.Nack(ctx, true))
		return Requeued
	}

	log.Error("☠️ Mensaje enviado a dead-letter",
		zap.String("dead_letter_id", dl.ID.String()),
		zap.Bool("permanent", IsPermanent(cause)),
		zap.Error(cause),
	)
	c.settle(log, d.Ack(ctx))
	return DeadLettered
}

func (c *Consumer) settle(log *zap.Logger, err error) {
	if err != nil {
		log.Warn("Error settling delivery", zap.Error(err))
	}
}

// eventIDOf lee el campo eventId del cuerpo. uuid.Nil si no está o no se puede leer.
func eventIDOf(body []byte) uuid.UUID {
	var envelope struct {
		EventID uuid.UUID `json:"eventId"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return uuid.Nil
	}
	return envelope.EventID
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
