package events

import (
	"context"
	"sort"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/invoiceflow/internal/shared/infra/platform/bus"
)

// Publish escribe el mensaje en el topic del exchange, sin clave: no hay routing key.
// El tipo viaja en la cabecera "type" y el cuerpo es el contenido tal cual.
func (b *KafkaBroker) Publish(ctx context.Context, msg sharedBus.Message) error {
	km := kafka.Message{
		Value:   msg.Body,
		Headers: toKafkaHeaders(msg),
	}

	if err := b.writer.WriteMessages(ctx, km); err != nil {
		b.log.Error("Error publishing to Kafka", zap.String("event_type", msg.Type), zap.Error(err))
		return err
	}
	return nil
}

func toKafkaHeaders(msg sharedBus.Message) []kafka.Header {
	headers := []kafka.Header{{Key: HeaderType, Value: []byte(msg.Type)}}

	keys := make([]string, 0, len(msg.Headers))
	for k := range msg.Headers {
		if k != HeaderType {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(msg.Headers[k])})
	}
	return headers
}

func fromKafkaMessage(km kafka.Message) sharedBus.Message {
	msg := sharedBus.Message{Body: km.Value, Headers: map[string]string{}}
	for _, h := range km.Headers {
		if h.Key == HeaderType {
			msg.Type = string(h.Value)
			continue
		}
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}
