package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	paymentDomain "github.com/davicafu/invoiceflow/internal/payment/domain"
	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
	sharedCache "github.com/davicafu/invoiceflow/internal/shared/infra/platform/cache"
)

const cacheTTL = 60 * time.Second

type SchedulePaymentCommand struct {
	InvoiceID     uuid.UUID
	VendorID      uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	ScheduledDate time.Time
	CreatedBy     string
}

// PaymentService define los casos de uso de pagos.
type PaymentService struct {
	uow   sharedDomain.UnitOfWork
	repo  paymentDomain.PaymentRepository
	cache sharedCache.Cache
	clock sharedDomain.Clock
	log   *zap.Logger
}

func NewPaymentService(uow sharedDomain.UnitOfWork, repo paymentDomain.PaymentRepository, cache sharedCache.Cache, clock sharedDomain.Clock, log *zap.Logger) *PaymentService {
	return &PaymentService{uow: uow, repo: repo, cache: cache, clock: clock, log: log}
}

// SchedulePayment falla con ErrPaymentAlreadyExists si la factura ya tiene pago.
func (s *PaymentService) SchedulePayment(ctx context.Context, cmd SchedulePaymentCommand) (*paymentDomain.Payment, error) {
	var payment *paymentDomain.Payment
	err := s.uow.Do(ctx, func(ctx context.Context) error {
		exists, err := s.repo.ExistsForInvoice(ctx, cmd.InvoiceID)
		if err != nil {
			return err
		}
		if exists {
			return paymentDomain.ErrPaymentAlreadyExists
		}

		payment, err = paymentDomain.SchedulePayment(cmd.InvoiceID, cmd.VendorID, cmd.Amount, cmd.Currency,
			cmd.ScheduledDate, cmd.CreatedBy, s.clock.Now())
		if err != nil {
			return err
		}
		return s.repo.Create(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Pago programado",
		zap.String("payment_id", payment.ID.String()),
		zap.String("invoice_id", cmd.InvoiceID.String()),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("currency", payment.Currency),
	)
	sharedCache.AsyncCacheSet(s.cache, paymentDomain.PaymentCacheKeyByID(payment.ID), payment, cacheTTL, s.log)
	return payment, nil
}

func (s *PaymentService) StartProcessing(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	return s.mutate(ctx, id, func(p *paymentDomain.Payment) error {
		return p.StartProcessing(s.clock.Now())
	})
}

func (s *PaymentService) CompletePayment(ctx context.Context, id uuid.UUID, transactionReference string) (*paymentDomain.Payment, error) {
	return s.mutate(ctx, id, func(p *paymentDomain.Payment) error {
		return p.Complete(transactionReference, s.clock.Now())
	})
}

func (s *PaymentService) FailPayment(ctx context.Context, id uuid.UUID, reason string) (*paymentDomain.Payment, error) {
	return s.mutate(ctx, id, func(p *paymentDomain.Payment) error {
		return p.Fail(reason, s.clock.Now())
	})
}

func (s *PaymentService) CancelPayment(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	return s.mutate(ctx, id, func(p *paymentDomain.Payment) error {
		return p.Cancel()
	})
}

func (s *PaymentService) ReschedulePayment(ctx context.Context, id uuid.UUID, date time.Time) (*paymentDomain.Payment, error) {
	return s.mutate(ctx, id, func(p *paymentDomain.Payment) error {
		return p.Reschedule(date, s.clock.Now())
	})
}

// MarkOverdue no falla si el pago aún no ha vencido: simplemente no cambia.
func (s *PaymentService) MarkOverdue(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	return s.mutate(ctx, id, func(p *paymentDomain.Payment) error {
		p.MarkAsOverdue(s.clock.Now())
		return nil
	})
}

func (s *PaymentService) mutate(ctx context.Context, id uuid.UUID, fn func(p *paymentDomain.Payment) error) (*paymentDomain.Payment, error) {
	var payment *paymentDomain.Payment
	err := s.uow.Do(ctx, func(ctx context.Context) error {
		var err error
		payment, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(payment); err != nil {
			return err
		}
		return s.repo.Update(ctx, payment)
	})
	if err != nil {
		return nil, err
	}
	sharedCache.InvalidateCache(ctx, s.cache, paymentDomain.PaymentCacheKeyByID(id), s.log)
	return payment, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	key := paymentDomain.PaymentCacheKeyByID(id)
	if s.cache != nil {
		var cached paymentDomain.Payment
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	payment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, paymentDomain.ErrPaymentNotFound) {
			s.log.Error("Failed to fetch payment", zap.String("payment_id", id.String()), zap.Error(err))
		}
		return nil, err
	}
	sharedCache.AsyncCacheSet(s.cache, key, payment, cacheTTL, s.log)
	return payment, nil
}

func (s *PaymentService) GetByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*paymentDomain.Payment, error) {
	return s.repo.GetByInvoiceID(ctx, invoiceID)
}
