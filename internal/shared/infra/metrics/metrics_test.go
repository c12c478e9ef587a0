package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheus_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg)

	m.RecordPublished("invoices", "InvoiceApprovedEvent")
	m.RecordPublished("invoices", "InvoiceApprovedEvent")
	m.RecordPublishFailed("payments", "PaymentScheduledEvent")
	m.RecordDelivery("payment-tracking-queue", "InvoiceApprovedEvent", "handled")
	m.SetOutboxPending("invoices", 7)
	m.ObserveHandling("payment-tracking-queue", "InvoiceApprovedEvent", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.published.WithLabelValues("invoices", "InvoiceApprovedEvent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.publishFailed.WithLabelValues("payments", "PaymentScheduledEvent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("payment-tracking-queue", "InvoiceApprovedEvent", "handled")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.outboxPending.WithLabelValues("invoices")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.handlingSecond))
}
