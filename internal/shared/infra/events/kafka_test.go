package events

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/invoiceflow/internal/shared/infra/platform/bus"
)

func TestKafkaHeaders_TypeTravelsAsMetadata(t *testing.T) {
	msg := sharedBus.Message{
		Type:    "InvoiceApprovedEvent",
		Body:    []byte(`{"invoiceId":"1"}`),
		Headers: map[string]string{"traceparent": "00-abc-def-01", "tracestate": "x=1"},
	}

	headers := toKafkaHeaders(msg)

	require.Len(t, headers, 3)
	assert.Equal(t, HeaderType, headers[0].Key)
	assert.Equal(t, "InvoiceApprovedEvent", string(headers[0].Value))
	assert.Equal(t, "traceparent", headers[1].Key)
	assert.Equal(t, "tracestate", headers[2].Key)

	back := fromKafkaMessage(kafka.Message{Value: msg.Body, Headers: headers})
	assert.Equal(t, msg.Type, back.Type)
	assert.Equal(t, msg.Body, back.Body)
	assert.Equal(t, msg.Headers, back.Headers)
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitBrokers(" a:9092, ,b:9092 "))
	assert.Nil(t, SplitBrokers(""))
}

func TestNewKafkaBroker_Defaults(t *testing.T) {
	_, err := NewKafkaBroker(KafkaConfig{}, zap.NewNop())
	assert.Error(t, err)

	b, err := NewKafkaBroker(KafkaConfig{Brokers: []string{"localhost:9092"}}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, sharedBus.DefaultExchange, b.cfg.Exchange)
	assert.Equal(t, 1, b.cfg.Partitions)
	assert.Equal(t, sharedBus.DefaultExchange, b.writer.Topic)
}
