package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	config "github.com/davicafu/invoiceflow/internal/config"
	invoiceApp "github.com/davicafu/invoiceflow/internal/invoice/application"
	invoiceEvents "github.com/davicafu/invoiceflow/internal/invoice/infra/inbound/events"
	invoiceHttp "github.com/davicafu/invoiceflow/internal/invoice/infra/inbound/http"
	invoiceRepo "github.com/davicafu/invoiceflow/internal/invoice/infra/outbound/db/relational"
	paymentApp "github.com/davicafu/invoiceflow/internal/payment/application"
	paymentEvents "github.com/davicafu/invoiceflow/internal/payment/infra/inbound/events"
	paymentHttp "github.com/davicafu/invoiceflow/internal/payment/infra/inbound/http"
	paymentRepo "github.com/davicafu/invoiceflow/internal/payment/infra/outbound/db/relational"
	reportingApp "github.com/davicafu/invoiceflow/internal/reporting/application"
	reportingDomain "github.com/davicafu/invoiceflow/internal/reporting/domain"
	reportingEvents "github.com/davicafu/invoiceflow/internal/reporting/infra/inbound/events"
	reportingHttp "github.com/davicafu/invoiceflow/internal/reporting/infra/inbound/http"
	reportingAnalytics "github.com/davicafu/invoiceflow/internal/reporting/infra/outbound/analytics/clickhouse"
	reportingRepo "github.com/davicafu/invoiceflow/internal/reporting/infra/outbound/db/relational"
	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
	"github.com/davicafu/invoiceflow/internal/shared/infra/dispatch"
	"github.com/davicafu/invoiceflow/internal/shared/infra/events"
	opsHttp "github.com/davicafu/invoiceflow/internal/shared/infra/inbound/http"
	"github.com/davicafu/invoiceflow/internal/shared/infra/metrics"
	sharedBus "github.com/davicafu/invoiceflow/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/invoiceflow/internal/shared/infra/platform/cache"
	"github.com/davicafu/invoiceflow/internal/shared/infra/platform/db/mongodb"
	"github.com/davicafu/invoiceflow/internal/shared/infra/platform/db/sqlstore"
	"github.com/davicafu/invoiceflow/internal/shared/infra/platform/filesystem"
	"github.com/davicafu/invoiceflow/internal/shared/infra/relayer"
	"github.com/davicafu/invoiceflow/internal/shared/infra/tracing"
	"github.com/davicafu/invoiceflow/pkg/logger"
)

// module agrupa lo que cada módulo aporta a la infraestructura compartida.
type module struct {
	name   string
	store  *sqlstore.Store
	outbox *sqlstore.OutboxRepo
	uow    *sqlstore.UnitOfWork
	inbox  sharedDomain.InboxStore
	// stopInbox libera la limpieza periódica del inbox en memoria.
	stopInbox func()
}

func (m *module) close() {
	if m.stopInbox != nil {
		m.stopInbox()
	}
	m.store.Close()
}

// openModule abre el store del módulo, crea su esquema de infraestructura y elige el inbox.
func openModule(ctx context.Context, cfg *config.Config, dialect sqlstore.Dialect, m config.ModuleConfig,
	redisClient *redis.Client, clock sharedDomain.Clock, log *zap.Logger) (*module, error) {
	store, err := sqlstore.Open(ctx, dialect, cfg.DSN(m), m.Schema)
	if err != nil {
		return nil, err
	}
	if err := store.InitSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	outbox := sqlstore.NewOutboxRepo(store)
	mod := &module{
		name:   m.Name,
		store:  store,
		outbox: outbox,
		uow:    sqlstore.NewUnitOfWork(store, outbox, log.With(zap.String("module", m.Name))),
	}
	switch cfg.Inbox.Driver {
	case "redis":
		if redisClient == nil {
			store.Close()
			return nil, errors.New("INBOX_DRIVER=redis but redis is unavailable")
		}
		mod.inbox = sharedCache.NewInbox(sharedCache.NewRedisCache(redisClient, cfg.Inbox.TTL), cfg.Inbox.TTL)
	case "memory":
		memInbox := sharedCache.NewInMemoryCache(cfg.Inbox.TTL, time.Hour)
		mod.inbox = sharedCache.NewInbox(memInbox, cfg.Inbox.TTL)
		mod.stopInbox = memInbox.Stop
	default:
		mod.inbox = sqlstore.NewInboxRepo(store, clock)
	}
	return mod, nil
}

// ---------------- Main ----------------
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger.Init(cfg.LogLevel)
	log := logger.Logger()
	defer log.Sync()
	logger.Sugar().Infof("🚀 invoiceflow arrancando: storage=%s broker=%s inbox=%s deadletters=%s",
		cfg.Storage.Driver, cfg.Broker.Driver, cfg.Inbox.Driver, cfg.DeadLetter.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("❌ invoiceflow terminated", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// cancel detiene relays y consumers también si el servidor HTTP cae.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	clock := sharedDomain.SystemClock{}
	recorder := metrics.NewPrometheus(prometheus.DefaultRegisterer)

	// ---------------- Tracing ----------------
	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  "invoiceflow",
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRatio:  cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	// ---------------- Cache ----------------
	var cacheInstance sharedCache.Cache
	redisClient, err := sharedCache.NewRedisClient(ctx, cfg.Inbox.RedisAddr, "", 0)
	if err != nil {
		log.Warn("⚠️ Redis no disponible, cache en memoria", zap.Error(err))
		memCache := sharedCache.NewInMemoryCache(5*time.Minute, 15*time.Minute)
		defer memCache.Stop()
		cacheInstance = memCache
	} else {
		defer redisClient.Close()
		cacheInstance = sharedCache.NewRedisCache(redisClient, 5*time.Minute)
		log.Info("✅ Redis conectado, cache habilitado")
	}

	// ---------------- DB ----------------
	dialect, err := sqlstore.ParseDialect(cfg.Storage.Driver)
	if err != nil {
		return err
	}
	if dialect == sqlstore.SQLite {
		if err := os.MkdirAll(cfg.Storage.SQLiteDir, 0o755); err != nil {
			return err
		}
	}

	invoiceMod, err := openModule(ctx, cfg, dialect, cfg.Invoice.ModuleConfig, redisClient, clock, log)
	if err != nil {
		return err
	}
	defer invoiceMod.close()
	paymentMod, err := openModule(ctx, cfg, dialect, cfg.Payment, redisClient, clock, log)
	if err != nil {
		return err
	}
	defer paymentMod.close()
	reportingMod, err := openModule(ctx, cfg, dialect, cfg.Reporting, redisClient, clock, log)
	if err != nil {
		return err
	}
	defer reportingMod.close()

	invoices := invoiceRepo.NewInvoiceRepo(invoiceMod.store)
	if err := invoices.InitSchema(ctx); err != nil {
		return err
	}
	payments := paymentRepo.NewPaymentRepo(paymentMod.store)
	if err := payments.InitSchema(ctx); err != nil {
		return err
	}
	reports := reportingRepo.NewReportRepo(reportingMod.store)
	if err := reports.InitSchema(ctx); err != nil {
		return err
	}

	// ---------------- Dead letters ----------------
	deadLetters, closeDeadLetters, err := openDeadLetters(ctx, cfg, dialect)
	if err != nil {
		return err
	}
	defer closeDeadLetters()

	// ---------------- Analytics ----------------
	var analytics reportingDomain.EventLogRepository
	if cfg.Analytics.Enabled() {
		eventLog, err := reportingAnalytics.NewEventLogRepo(ctx, cfg.Analytics.ClickHouseAddr, cfg.Analytics.ClickHouseDatabase)
		if err != nil {
			return err
		}
		defer eventLog.Close()
		if err := eventLog.InitSchema(ctx); err != nil {
			return err
		}
		analytics = eventLog
		log.Info("✅ ClickHouse conectado, auditoría de eventos habilitada")
	}

	// --------------- Servicios --------------
	invoiceService := invoiceApp.NewInvoiceService(invoiceMod.uow, invoices, cacheInstance, clock, log.With(zap.String("module", "invoice")))
	paymentService := paymentApp.NewPaymentService(paymentMod.uow, payments, cacheInstance, clock, log.With(zap.String("module", "payment")))
	reportService := reportingApp.NewReportService(reportingMod.uow, reports, analytics, clock, log.With(zap.String("module", "reporting")))

	// ---------------- Broker ----------------
	var broker sharedBus.Broker
	if cfg.Broker.Driver == "kafka" {
		log.Info("🚀 Usando Kafka como bus de eventos", zap.Strings("brokers", cfg.Broker.Brokers))
		kb, err := events.NewKafkaBroker(events.KafkaConfig{
			Brokers:    cfg.Broker.Brokers,
			Exchange:   cfg.Broker.Exchange,
			Partitions: cfg.Broker.Partitions,
		}, log)
		if err != nil {
			return err
		}
		broker = kb
	} else {
		log.Info("⚡️ Usando bus de eventos en memoria")
		broker = sharedBus.NewInMemoryBroker(cfg.Broker.Exchange)
	}
	defer broker.Close()

	gateway, err := sharedBus.NewGateway(ctx, broker, log)
	if err != nil {
		return err
	}

	// ---------------- Consumers ----------------
	dispatchCfg := dispatch.Config{
		HandlerTimeout:  cfg.Dispatch.HandlerTimeout,
		RedeliveryDelay: cfg.Dispatch.RedeliveryDelay,
		MaxDeliveries:   cfg.Dispatch.MaxDeliveries,
	}
	type binding struct {
		mod     *module
		handler dispatch.EventHandler
	}
	bindings := []binding{
		{invoiceMod, invoiceEvents.NewExtractionConsumer(invoiceService, cfg.Invoice.DemoVendorID, clock, log)},
		{invoiceMod, invoiceEvents.NewFraudConsumer(invoiceService, invoiceEvents.FraudConfig{
			Attempts: cfg.Invoice.FraudLookupAttempts,
			Delay:    cfg.Invoice.FraudLookupDelay,
		}, log)},
		{invoiceMod, invoiceEvents.NewPaymentCompletedConsumer(invoiceService, log)},
		{paymentMod, paymentEvents.NewInvoiceApprovedConsumer(paymentService, log)},
		{reportingMod, reportingEvents.NewReportingConsumer(reportService, log)},
	}
	if analytics != nil {
		// Sin inbox: ClickHouse deduplica por event_id.
		bindings = append(bindings, binding{&module{name: "reporting"}, reportingEvents.NewAuditConsumer(analytics, clock, log)})
	}

	var consumers []*dispatch.Consumer
	for _, b := range bindings {
		c := dispatch.NewConsumer(broker, b.handler, b.mod.inbox, deadLetters, clock, recorder, dispatchCfg,
			log.With(zap.String("module", b.mod.name)))
		if err := c.Start(ctx); err != nil {
			return err
		}
		consumers = append(consumers, c)
	}

	// ------------ Outbox Relays ------------
	relayCfg := relayer.Config{Interval: cfg.Relay.Interval, BatchSize: cfg.Relay.BatchSize}
	relaysDone := make(chan struct{})
	mods := []*module{invoiceMod, paymentMod, reportingMod}
	for _, m := range mods {
		relay := relayer.NewOutboxRelay(m.name, m.outbox, gateway, clock, recorder, relayCfg, log)
		go func() {
			relay.Start(ctx)
			relaysDone <- struct{}{}
		}()
	}

	// ---------------- HTTP ----------------
	outboxes := map[string]opsHttp.OutboxInspector{}
	for _, m := range mods {
		outboxes[m.name] = m.outbox
	}

	router := gin.Default()
	opsHttp.RegisterOpsRoutes(router, opsHttp.NewOpsHandler(outboxes, deadLetters, log))
	invoiceHttp.RegisterInvoiceRoutes(router, invoiceHttp.NewInvoiceHandler(invoiceService))
	paymentHttp.RegisterPaymentRoutes(router, paymentHttp.NewPaymentHandler(paymentService))
	reportingHttp.RegisterReportRoutes(router, reportingHttp.NewReportHandler(reportService))

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: otelhttp.NewHandler(router, "invoiceflow-http")}
	serverErr := make(chan error, 1)
	go func() {
		log.Info("🚀 Server running", zap.String("url", "http://localhost:"+cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	log.Info("🛑 Apagando invoiceflow")
	cancel()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("⚠️ HTTP shutdown", zap.Error(err))
	}
	for range mods {
		<-relaysDone
	}
	for _, c := range consumers {
		<-c.Done()
	}
	log.Info("✅ invoiceflow detenido")
	return nil
}

// openDeadLetters elige el almacén de dead-letters según la configuración.
func openDeadLetters(ctx context.Context, cfg *config.Config, dialect sqlstore.Dialect) (sharedDomain.DeadLetterStore, func(), error) {
	switch cfg.DeadLetter.Driver {
	case "mongo":
		client, err := mongodb.Connect(ctx, cfg.DeadLetter.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		repo := mongodb.NewDeadLetterRepoMongoDB(client, cfg.DeadLetter.MongoDatabase)
		if err := repo.EnsureIndexes(ctx); err != nil {
			client.Disconnect(context.Background())
			return nil, nil, err
		}
		return repo, func() { client.Disconnect(context.Background()) }, nil
	case "file":
		return filesystem.NewJSONDeadLetterStorage(cfg.DeadLetter.FilePath), func() {}, nil
	default:
		store, err := sqlstore.Open(ctx, dialect, cfg.DSN(cfg.Platform), cfg.Platform.Schema)
		if err != nil {
			return nil, nil, err
		}
		repo := sqlstore.NewDeadLetterRepo(store)
		if err := repo.InitSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return repo, func() { store.Close() }, nil
	}
}
