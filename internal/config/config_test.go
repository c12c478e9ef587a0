package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"HTTP_PORT", "STORAGE_DRIVER", "SQLITE_DIR", "BROKER_DRIVER", "OUTBOX_INTERVAL",
		"OUTBOX_BATCH_SIZE", "DISPATCH_MAX_DELIVERIES", "FRAUD_LOOKUP_ATTEMPTS", "FRAUD_LOOKUP_DELAY", "CLICKHOUSE_ADDR"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "memory", cfg.Broker.Driver)
	assert.Equal(t, 5*time.Second, cfg.Relay.Interval)
	assert.Equal(t, 20, cfg.Relay.BatchSize)
	assert.Equal(t, 10, cfg.Dispatch.MaxDeliveries)
	assert.Equal(t, 5, cfg.Invoice.FraudLookupAttempts)
	assert.Equal(t, 2*time.Second, cfg.Invoice.FraudLookupDelay)
	assert.False(t, cfg.Analytics.Enabled())
	assert.Equal(t, "data/payment.db", cfg.DSN(cfg.Payment))
}

func TestLoadConfig_FromEnv(t *testing.T) {
	// ARRANGE
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://u:p@db:5432/x")
	t.Setenv("BROKER_DRIVER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("OUTBOX_INTERVAL", "250ms")
	t.Setenv("DISPATCH_MAX_DELIVERIES", "0")
	t.Setenv("CLICKHOUSE_ADDR", "ch:9000")
	t.Setenv("OTEL_ENABLED", "true")

	// ACT
	cfg, err := LoadConfig()

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DSN(cfg.Invoice.ModuleConfig))
	assert.Equal(t, "invoice", cfg.Invoice.Schema)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Broker.Brokers)
	assert.Equal(t, 250*time.Millisecond, cfg.Relay.Interval)
	assert.Equal(t, 0, cfg.Dispatch.MaxDeliveries)
	assert.True(t, cfg.Analytics.Enabled())
	assert.True(t, cfg.Tracing.Enabled)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("BROKER_DRIVER", "rabbit")
	t.Setenv("OUTBOX_BATCH_SIZE", "many")

	_, err := LoadConfig()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "BROKER_DRIVER")
	assert.Contains(t, err.Error(), "OUTBOX_BATCH_SIZE")
}
