package events

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/invoiceflow/internal/shared/infra/platform/bus"
)

// DeclareQueue crea un lector del topic con GroupID = nombre de la cola.
// Cada consumer group recibe todos los mensajes, como una cola enlazada a un fan-out.
func (b *KafkaBroker) DeclareQueue(ctx context.Context, name string) (sharedBus.Queue, error) {
	if name == "" {
		return nil, sharedBus.ErrQueueNameNeeded
	}
	if err := b.DeclareExchange(ctx); err != nil {
		return nil, err
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.cfg.Brokers,
		Topic:       b.cfg.Exchange,
		GroupID:     name,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		StartOffset: kafka.FirstOffset,
	})

	b.log.Info("🎧 Cola declarada en Kafka",
		zap.String("queue", name),
		zap.String("topic", b.cfg.Exchange),
	)
	return &kafkaQueue{name: name, reader: reader, log: b.log}, nil
}

// kafkaQueue adapta un kafka.Reader a la semántica ack/nack de una cola.
// Ack confirma el offset. Nack con requeue vuelve a entregar el mismo mensaje
// en el siguiente Fetch, sin confirmar, con el contador incrementado.
type kafkaQueue struct {
	name   string
	reader *kafka.Reader
	log    *zap.Logger

	mu      sync.Mutex
	pending *redelivery
}

type redelivery struct {
	km    kafka.Message
	count int
}

var _ sharedBus.Queue = (*kafkaQueue)(nil)

func (q *kafkaQueue) Name() string { return q.name }

func (q *kafkaQueue) Fetch(ctx context.Context) (*sharedBus.Delivery, error) {
	q.mu.Lock()
	if p := q.pending; p != nil {
		q.pending = nil
		q.mu.Unlock()
		return q.delivery(p.km, p.count), nil
	}
	q.mu.Unlock()

	km, err := q.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	return q.delivery(km, 1), nil
}

func (q *kafkaQueue) delivery(km kafka.Message, count int) *sharedBus.Delivery {
	return sharedBus.NewDelivery(fromKafkaMessage(km), count,
		func(ctx context.Context) error {
			return q.reader.CommitMessages(ctx, km)
		},
		func(ctx context.Context, requeue bool) error {
			if !requeue {
				return q.reader.CommitMessages(ctx, km)
			}
			q.mu.Lock()
			q.pending = &redelivery{km: km, count: count + 1}
			q.mu.Unlock()
			return nil
		},
	)
}

func (q *kafkaQueue) Close() error {
	return q.reader.Close()
}
