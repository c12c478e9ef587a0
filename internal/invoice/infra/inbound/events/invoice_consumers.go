package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/davicafu/invoiceflow/internal/invoice/application"
	invoiceDomain "github.com/davicafu/invoiceflow/internal/invoice/domain"
	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
	"github.com/davicafu/invoiceflow/internal/shared/infra/dispatch"
	sharedUtils "github.com/davicafu/invoiceflow/internal/shared/infra/utils"
)

// Colas y tipos que consume el módulo de facturas.
const (
	ExtractionQueue     = "invoice-extracted-queue"
	SuspiciousQueue     = "suspicious-invoice-queue"
	InvoicePaymentQueue = "invoice-payment-queue"

	ClassificationCompleted = "ClassificationCompletedEvent"
	FraudDetected           = "FraudDetectedEvent"
	PaymentCompleted        = "PaymentCompletedEvent"
)

const (
	ExtractedBy    = "AI-Assistant"
	FraudFlaggedBy = "AI-Fraud-Detection"
)

// InvoiceService es lo que los consumidores necesitan del módulo.
type InvoiceService interface {
	CreateFromExtraction(ctx context.Context, cmd application.ExtractionCommand) (*invoiceDomain.Invoice, bool, error)
	LoadInvoice(ctx context.Context, id uuid.UUID) (*invoiceDomain.Invoice, error)
	GetByClassificationID(ctx context.Context, classificationID uuid.UUID) (*invoiceDomain.Invoice, error)
	Flag(ctx context.Context, id uuid.UUID, reason, flaggedBy string) (*invoiceDomain.Invoice, error)
	MarkAsPaid(ctx context.Context, id, paymentID uuid.UUID) (*invoiceDomain.Invoice, error)
}

// ---------------- Extracción ----------------

type classificationCompletedDTO struct {
	EventID          uuid.UUID        `json:"eventId"`
	ClassificationID uuid.UUID        `json:"classificationId"`
	InvoiceNumber    *string          `json:"invoiceNumber"`
	VendorName       *string          `json:"vendorName"`
	TotalAmount      *decimal.Decimal `json:"totalAmount"`
	ConfidenceScore  float64          `json:"confidenceScore"`
}

// ExtractionConsumer crea un borrador por cada documento clasificado como factura.
type ExtractionConsumer struct {
	service      InvoiceService
	demoVendorID uuid.UUID
	clock        sharedDomain.Clock
	log          *zap.Logger
}

func NewExtractionConsumer(service InvoiceService, demoVendorID uuid.UUID, clock sharedDomain.Clock, log *zap.Logger) *ExtractionConsumer {
	return &ExtractionConsumer{service: service, demoVendorID: demoVendorID, clock: clock, log: log}
}

func (c *ExtractionConsumer) Subscription() dispatch.Subscription {
	return dispatch.Subscription{Queue: ExtractionQueue, EventTypes: []string{ClassificationCompleted}}
}

func (c *ExtractionConsumer) Handle(ctx context.Context, _ string, payload []byte) error {
	evt, err := sharedUtils.DecodeEvent[classificationCompletedDTO](payload)
	if err != nil {
		return dispatch.Permanent(err)
	}
	if evt.ClassificationID == uuid.Nil {
		return dispatch.Permanent(errors.New("classificationId is required"))
	}

	now := c.clock.Now()
	number := ""
	if evt.InvoiceNumber != nil {
		number = strings.TrimSpace(*evt.InvoiceNumber)
	}
	if number == "" {
		// Derivado de la clasificación: una reentrega produce el mismo número.
		number = "AI-" + evt.ClassificationID.String()[:8]
	}
	total := decimal.Zero
	if evt.TotalAmount != nil {
		total = *evt.TotalAmount
	}

	inv, created, err := c.service.CreateFromExtraction(ctx, application.ExtractionCommand{
		ClassificationID: evt.ClassificationID,
		InvoiceNumber:    number,
		VendorID:         c.demoVendorID,
		IssueDate:        now,
		DueDate:          now.AddDate(0, 0, 30),
		TotalAmount:      total,
		Currency:         invoiceDomain.DefaultCurrency,
		ConfidenceScore:  evt.ConfidenceScore,
		ExtractedBy:      ExtractedBy,
	})
	if err != nil {
		if errors.Is(err, invoiceDomain.ErrInvalidInvoice) {
			return dispatch.Permanent(err)
		}
		return err
	}

	c.log.Info("📄 Factura en borrador desde extracción",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("classification_id", evt.ClassificationID.String()),
		zap.Bool("created", created),
		zap.Stringp("vendor_name", evt.VendorName),
	)
	return nil
}

// ---------------- Fraude ----------------

type fraudDetectedDTO struct {
	EventID          uuid.UUID `json:"eventId"`
	ClassificationID uuid.UUID `json:"classificationId"`
	Reason           string    `json:"reason"`
}

// FraudConfig acota la espera a que la factura extraída sea visible.
type FraudConfig struct {
	Attempts int
	Delay    time.Duration
}

func (c FraudConfig) withDefaults() FraudConfig {
	if c.Attempts <= 0 {
		c.Attempts = 5
	}
	if c.Delay <= 0 {
		c.Delay = 2 * time.Second
	}
	return c
}

// FraudConsumer marca para revisión la factura de un documento sospechoso.
// La alerta puede llegar antes que la factura: se consulta con reintentos acotados.
type FraudConsumer struct {
	service InvoiceService
	cfg     FraudConfig
	log     *zap.Logger
}

func NewFraudConsumer(service InvoiceService, cfg FraudConfig, log *zap.Logger) *FraudConsumer {
	return &FraudConsumer{service: service, cfg: cfg.withDefaults(), log: log}
}

func (c *FraudConsumer) Subscription() dispatch.Subscription {
	return dispatch.Subscription{Queue: SuspiciousQueue, EventTypes: []string{FraudDetected}}
}

func (c *FraudConsumer) Handle(ctx context.Context, _ string, payload []byte) error {
	evt, err := sharedUtils.DecodeEvent[fraudDetectedDTO](payload)
	if err != nil {
		return dispatch.Permanent(err)
	}
	if evt.ClassificationID == uuid.Nil {
		return dispatch.Permanent(errors.New("classificationId is required"))
	}
	log := c.log.With(zap.String("classification_id", evt.ClassificationID.String()))

	var inv *invoiceDomain.Invoice
	err = sharedUtils.Retry(ctx, c.cfg.Attempts, c.cfg.Delay, func(attempt int) error {
		found, err := c.service.GetByClassificationID(ctx, evt.ClassificationID)
		if err != nil {
			log.Debug("Factura aún no visible", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		inv = found
		return nil
	})
	if err != nil {
		return fmt.Errorf("invoice for classification %s not found after %d attempts: %w",
			evt.ClassificationID, c.cfg.Attempts, err)
	}

	if inv.Status == invoiceDomain.StatusFlaggedForReview {
		log.Info("Factura ya marcada para revisión", zap.String("invoice_id", inv.ID.String()))
		return nil
	}

	reason := "AI detected potential fraud: " + evt.Reason
	if _, err := c.service.Flag(ctx, inv.ID, reason, FraudFlaggedBy); err != nil {
		if errors.Is(err, invoiceDomain.ErrInvalidTransition) {
			log.Warn("⚠️ No se pudo marcar la factura para revisión",
				zap.String("invoice_id", inv.ID.String()),
				zap.String("status", string(inv.Status)),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	log.Warn("🚩 Factura marcada por posible fraude",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("reason", evt.Reason),
	)
	return nil
}

// ---------------- Pago completado ----------------

type paymentCompletedDTO struct {
	EventID   uuid.UUID `json:"eventId"`
	PaymentID uuid.UUID `json:"paymentId"`
	InvoiceID uuid.UUID `json:"invoiceId"`
}

// PaymentCompletedConsumer cierra la factura cuando su pago se completa.
type PaymentCompletedConsumer struct {
	service InvoiceService
	log     *zap.Logger
}

func NewPaymentCompletedConsumer(service InvoiceService, log *zap.Logger) *PaymentCompletedConsumer {
	return &PaymentCompletedConsumer{service: service, log: log}
}

func (c *PaymentCompletedConsumer) Subscription() dispatch.Subscription {
	return dispatch.Subscription{Queue: InvoicePaymentQueue, EventTypes: []string{PaymentCompleted}}
}

func (c *PaymentCompletedConsumer) Handle(ctx context.Context, _ string, payload []byte) error {
	evt, err := sharedUtils.DecodeEvent[paymentCompletedDTO](payload)
	if err != nil {
		return dispatch.Permanent(err)
	}
	if evt.InvoiceID == uuid.Nil {
		return dispatch.Permanent(errors.New("invoiceId is required"))
	}

	_, err = c.service.MarkAsPaid(ctx, evt.InvoiceID, evt.PaymentID)
	if errors.Is(err, invoiceDomain.ErrInvalidTransition) {
		current, getErr := c.service.LoadInvoice(ctx, evt.InvoiceID)
		if getErr != nil {
			return getErr
		}
		if current.Status == invoiceDomain.StatusPaid {
			c.log.Info("Factura ya pagada", zap.String("invoice_id", evt.InvoiceID.String()))
			return nil
		}
		return dispatch.Permanent(err)
	}
	if err != nil {
		return err
	}

	c.log.Info("💰 Factura pagada",
		zap.String("invoice_id", evt.InvoiceID.String()),
		zap.String("payment_id", evt.PaymentID.String()),
	)
	return nil
}

var (
	_ dispatch.EventHandler = (*ExtractionConsumer)(nil)
	_ dispatch.EventHandler = (*FraudConsumer)(nil)
	_ dispatch.EventHandler = (*PaymentCompletedConsumer)(nil)
)
