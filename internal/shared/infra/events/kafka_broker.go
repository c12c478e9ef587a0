package events

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedBus "github.com/davicafu/invoiceflow/internal/shared/infra/platform/bus"
)

// HeaderType es la cabecera que lleva la etiqueta de tipo del mensaje.
const HeaderType = "type"

// KafkaConfig describe cómo se proyecta el exchange fan-out sobre Kafka:
// el exchange es un topic y cada cola durable es un consumer group.
type KafkaConfig struct {
	Brokers           []string
	Exchange          string
	Partitions        int
	ReplicationFactor int
}

// KafkaBroker implementa sharedBus.Broker con segmentio/kafka-go.
type KafkaBroker struct {
	cfg    KafkaConfig
	writer *kafka.Writer
	log    *zap.Logger
}

var _ sharedBus.Broker = (*KafkaBroker)(nil)

func NewKafkaBroker(cfg KafkaConfig, log *zap.Logger) (*KafkaBroker, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	if cfg.Exchange == "" {
		cfg.Exchange = sharedBus.DefaultExchange
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = 1
	}
	if cfg.ReplicationFactor <= 0 {
		cfg.ReplicationFactor = 1
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Exchange,
		Balancer:               &kafka.RoundRobin{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		AllowAutoTopicCreation: false,
	}

	return &KafkaBroker{cfg: cfg, writer: writer, log: log}, nil
}

// DeclareExchange crea el topic si no existe. Es idempotente.
func (b *KafkaBroker) DeclareExchange(ctx context.Context) error {
	dialer := kafka.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", b.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("dial kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller: %w", err)
	}

	ctrl, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial kafka controller: %w", err)
	}
	defer ctrl.Close()

	err = ctrl.CreateTopics(kafka.TopicConfig{
		Topic:             b.cfg.Exchange,
		NumPartitions:     b.cfg.Partitions,
		ReplicationFactor: b.cfg.ReplicationFactor,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", b.cfg.Exchange, err)
	}

	b.log.Info("✅ Exchange declarado en Kafka",
		zap.String("topic", b.cfg.Exchange),
		zap.Strings("brokers", b.cfg.Brokers),
	)
	return nil
}

func (b *KafkaBroker) Close() error {
	return b.writer.Close()
}

// SplitBrokers parte una lista separada por comas ignorando huecos.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, broker := range strings.Split(raw, ",") {
		broker = strings.TrimSpace(broker)
		if broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}
