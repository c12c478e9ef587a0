package sqlstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
)

// UnitOfWork abre una transacción por operación de negocio. Antes de confirmar,
// captura los eventos de los agregados registrados y los inserta en el outbox
// dentro de la misma transacción.
type UnitOfWork struct {
	store  *Store
	outbox *OutboxRepo
	log    *zap.Logger
}

func NewUnitOfWork(store *Store, outbox *OutboxRepo, log *zap.Logger) *UnitOfWork {
	return &UnitOfWork{store: store, outbox: outbox, log: log}
}

func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	// Anidada: se une a la transacción exterior.
	if u.store.TxFrom(ctx) != nil {
		return fn(ctx)
	}

	tx, err := u.store.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}
	defer func() {
		// Un panic en fn no puede dejar la conexión del módulo dentro de una transacción.
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	tracker := sharedDomain.NewTracker()
	txCtx := sharedDomain.WithTracker(u.store.withTx(ctx, tx), tracker)

	if err = fn(txCtx); err != nil {
		return err
	}

	records, err := sharedDomain.CaptureEvents(tracker.Aggregates())
	if err != nil {
		return err
	}
	if err = u.outbox.Insert(txCtx, records); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit unit of work: %w", err)
	}

	tracker.ClearAll()
	if len(records) > 0 {
		u.log.Debug("Eventos capturados en outbox", zap.Int("count", len(records)))
	}
	return nil
}

var _ sharedDomain.UnitOfWork = (*UnitOfWork)(nil)
