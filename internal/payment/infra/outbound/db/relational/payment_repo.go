package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davicafu/invoiceflow/internal/payment/domain"
	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
	"github.com/davicafu/invoiceflow/internal/shared/infra/platform/db/sqlstore"
)

const paymentColumns = `id, invoice_id, vendor_id, amount, currency, status, scheduled_date, processed_date,
	completed_date, transaction_reference, failure_reason, created_by, created_at, version`

// PaymentRepo: invoice_id es UNIQUE, así una factura nunca tiene dos pagos
// aunque dos entregas del mismo evento lleguen a la vez.
type PaymentRepo struct {
	store *sqlstore.Store
	table string
}

func NewPaymentRepo(store *sqlstore.Store) *PaymentRepo {
	return &PaymentRepo{store: store, table: store.Table("payments")}
}

func (r *PaymentRepo) InitSchema(ctx context.Context) error {
	ts := r.store.TimestampType()
	money := "TEXT"
	if r.store.Dialect == sqlstore.Postgres {
		money = "NUMERIC(18,4)"
	}
	return r.store.Exec(ctx,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT PRIMARY KEY,
			invoice_id TEXT NOT NULL UNIQUE,
			vendor_id TEXT NOT NULL,
			amount %[3]s NOT NULL,
			currency VARCHAR(3) NOT NULL,
			status VARCHAR(32) NOT NULL,
			scheduled_date %[2]s NOT NULL,
			processed_date %[2]s NULL,
			completed_date %[2]s NULL,
			transaction_reference TEXT NOT NULL,
			failure_reason TEXT NOT NULL,
			created_by TEXT NOT NULL,
			created_at %[2]s NOT NULL,
			version INTEGER NOT NULL
		)`, r.table, ts, money),
	)
}

func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	if err := sharedDomain.Track(ctx, p); err != nil {
		return err
	}
	_, err := r.store.Conn(ctx).ExecContext(ctx, r.store.Rebind(fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, r.table, paymentColumns)),
		p.ID.String(), p.InvoiceID.String(), p.VendorID.String(), p.Amount, p.Currency, string(p.Status),
		p.ScheduledDate.UTC(), nullTime(p.ProcessedDate), nullTime(p.CompletedDate),
		p.TransactionReference, p.FailureReason, p.CreatedBy, p.CreatedAt.UTC(), 1,
	)
	if err != nil {
		if sqlstore.IsUniqueViolation(err) {
			return domain.ErrPaymentAlreadyExists
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	p.Version = 1
	return nil
}

func (r *PaymentRepo) Update(ctx context.Context, p *domain.Payment) error {
	if err := sharedDomain.Track(ctx, p); err != nil {
		return err
	}
	conn := r.store.Conn(ctx)
	res, err := conn.ExecContext(ctx, r.store.Rebind(fmt.Sprintf(
		`UPDATE %s SET status = ?, scheduled_date = ?, processed_date = ?, completed_date = ?,
			transaction_reference = ?, failure_reason = ?, version = version + 1
		 WHERE id = ? AND version = ?`, r.table)),
		string(p.Status), p.ScheduledDate.UTC(), nullTime(p.ProcessedDate), nullTime(p.CompletedDate),
		p.TransactionReference, p.FailureReason, p.ID.String(), p.Version,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		if _, err := r.GetByID(ctx, p.ID); err != nil {
			return err
		}
		return domain.ErrConcurrentUpdate
	}
	p.Version++
	return nil
}

func (r *PaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return r.getOne(ctx, "id", id)
}

func (r *PaymentRepo) GetByInvoiceID(ctx context.Context, invoiceID uuid.UUID) (*domain.Payment, error) {
	return r.getOne(ctx, "invoice_id", invoiceID)
}

func (r *PaymentRepo) ExistsForInvoice(ctx context.Context, invoiceID uuid.UUID) (bool, error) {
	var n int
	err := r.store.Conn(ctx).QueryRowContext(ctx, r.store.Rebind(fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE invoice_id = ?`, r.table)), invoiceID.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("payment exists: %w", err)
	}
	return n > 0, nil
}

func (r *PaymentRepo) getOne(ctx context.Context, column string, id uuid.UUID) (*domain.Payment, error) {
	var (
		p         domain.Payment
		status    string
		processed sql.NullTime
		completed sql.NullTime
	)
	err := r.store.Conn(ctx).QueryRowContext(ctx, r.store.Rebind(fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s = ?`, paymentColumns, r.table, column)), id.String(),
	).Scan(&p.ID, &p.InvoiceID, &p.VendorID, &p.Amount, &p.Currency, &status, &p.ScheduledDate,
		&processed, &completed, &p.TransactionReference, &p.FailureReason, &p.CreatedBy, &p.CreatedAt, &p.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}

	p.Status = domain.PaymentStatus(status)
	p.ScheduledDate = p.ScheduledDate.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	p.ProcessedDate = fromNullTime(processed)
	p.CompletedDate = fromNullTime(completed)
	return &p, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func fromNullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	at := t.Time.UTC()
	return &at
}

var _ domain.PaymentRepository = (*PaymentRepo)(nil)
