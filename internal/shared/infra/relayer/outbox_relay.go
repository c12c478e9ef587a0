package relayer

import (
	"context"
	"time"

	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
	"github.com/davicafu/invoiceflow/internal/shared/infra/metrics"
	sharedBus "github.com/davicafu/invoiceflow/internal/shared/infra/platform/bus"
)

type Config struct {
	Interval  time.Duration
	BatchSize int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	return c
}

// Relay publica los registros pendientes del outbox de un módulo.
// Entrega al menos una vez: un fallo deja el registro pendiente con su error.
type Relay struct {
	module    string
	store     sharedDomain.OutboxStore
	publisher sharedBus.EventPublisher
	clock     sharedDomain.Clock
	metrics   metrics.Recorder
	cfg       Config
	log       *zap.Logger
}

func NewOutboxRelay(
	module string,
	store sharedDomain.OutboxStore,
	publisher sharedBus.EventPublisher,
	clock sharedDomain.Clock,
	recorder metrics.Recorder,
	cfg Config,
	log *zap.Logger,
) *Relay {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Relay{
		module:    module,
		store:     store,
		publisher: publisher,
		clock:     clock,
		metrics:   recorder,
		cfg:       cfg.withDefaults(),
		log:       log.With(zap.String("module", module)),
	}
}

// Start ejecuta un lote en cada tick hasta que se cancela el contexto.
// Un lote en curso termina antes de salir.
func (r *Relay) Start(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.log.Info("🚀 Outbox relay iniciado",
		zap.Duration("interval", r.cfg.Interval),
		zap.Int("batch_size", r.cfg.BatchSize),
	)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("🛑 Outbox relay detenido")
			return
		case <-ticker.C:
			r.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch reclama un lote, publica cada registro y confirma todos los cambios de una vez.
func (r *Relay) ProcessBatch(ctx context.Context) (published, failed int) {
	batch, err := r.store.FetchPendingOutbox(ctx, r.cfg.BatchSize)
	if err != nil {
		r.log.Warn("⚠️ Error al obtener registros pendientes", zap.Error(err))
		return 0, 0
	}

	records := batch.Records()
	if len(records) == 0 {
		if err := batch.Rollback(); err != nil {
			r.log.Warn("Error releasing empty outbox batch", zap.Error(err))
		}
		r.reportPending(ctx)
		return 0, 0
	}
	r.log.Debug("📬 Registros pendientes", zap.Int("count", len(records)))

	for i := range records {
		rec := &records[i]
		if err := r.publisher.Publish(ctx, rec.Type, []byte(rec.Content)); err != nil {
			rec.MarkFailed(err)
			failed++
			r.metrics.RecordPublishFailed(r.module, rec.Type)
			r.log.Warn("⚠️ No se pudo publicar registro",
				zap.String("outbox_id", rec.ID.String()),
				zap.String("event_type", rec.Type),
				zap.Error(err),
			)
			continue
		}
		rec.MarkProcessed(r.clock.Now())
		published++
		r.metrics.RecordPublished(r.module, rec.Type)
	}

	if err := batch.Commit(ctx, records); err != nil {
		// Los publicados se volverán a publicar en el siguiente lote.
		r.log.Error("❌ Error al confirmar lote de outbox", zap.Int("published", published), zap.Error(err))
		return 0, len(records)
	}

	if published > 0 || failed > 0 {
		r.log.Info("✅ Lote de outbox procesado", zap.Int("published", published), zap.Int("failed", failed))
	}
	r.reportPending(ctx)
	return published, failed
}

func (r *Relay) reportPending(ctx context.Context) {
	n, err := r.store.CountPending(ctx)
	if err != nil {
		return
	}
	r.metrics.SetOutboxPending(r.module, n)
}
