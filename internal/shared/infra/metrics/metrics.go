package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder recoge las métricas del relay y del despachador.
type Recorder interface {
	RecordPublished(module, eventType string)
	RecordPublishFailed(module, eventType string)
	SetOutboxPending(module string, n int)
	RecordDelivery(queue, eventType, outcome string)
	ObserveHandling(queue, eventType string, d time.Duration)
}

// Nop descarta todo. Es el valor por defecto en tests.
type Nop struct{}

func (Nop) RecordPublished(string, string)                {}
func (Nop) RecordPublishFailed(string, string)            {}
func (Nop) SetOutboxPending(string, int)                  {}
func (Nop) RecordDelivery(string, string, string)         {}
func (Nop) ObserveHandling(string, string, time.Duration) {}

type Prometheus struct {
	published      *prometheus.CounterVec
	publishFailed  *prometheus.CounterVec
	outboxPending  *prometheus.GaugeVec
	deliveries     *prometheus.CounterVec
	handlingSecond *prometheus.HistogramVec
}

var (
	_ Recorder = Nop{}
	_ Recorder = (*Prometheus)(nil)
)

// NewPrometheus registra las métricas en reg. Con prometheus.DefaultRegisterer
// quedan expuestas por promhttp.Handler().
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		published: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "invoiceflow_outbox_events_published_total",
			Help: "Outbox records published to the broker",
		}, []string{"module", "type"}),
		publishFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "invoiceflow_outbox_publish_errors_total",
			Help: "Failed publish attempts from the outbox relay",
		}, []string{"module", "type"}),
		outboxPending: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "invoiceflow_outbox_pending",
			Help: "Outbox records not yet published",
		}, []string{"module"}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "invoiceflow_deliveries_total",
			Help: "Deliveries settled by the consumer dispatcher, by outcome",
		}, []string{"queue", "type", "outcome"}),
		handlingSecond: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "invoiceflow_handler_duration_seconds",
			Help:    "Time spent in event handlers",
			Buckets: prometheus.DefBuckets,
		}, []string{"queue", "type"}),
	}
}

func (p *Prometheus) RecordPublished(module, eventType string) {
	p.published.WithLabelValues(module, eventType).Inc()
}

func (p *Prometheus) RecordPublishFailed(module, eventType string) {
	p.publishFailed.WithLabelValues(module, eventType).Inc()
}

func (p *Prometheus) SetOutboxPending(module string, n int) {
	p.outboxPending.WithLabelValues(module).Set(float64(n))
}

func (p *Prometheus) RecordDelivery(queue, eventType, outcome string) {
	p.deliveries.WithLabelValues(queue, eventType, outcome).Inc()
}

func (p *Prometheus) ObserveHandling(queue, eventType string, d time.Duration) {
	p.handlingSecond.WithLabelValues(queue, eventType).Observe(d.Seconds())
}
