package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/davicafu/invoiceflow/internal/reporting/domain"
	"github.com/davicafu/invoiceflow/internal/shared/infra/platform/db/sqlstore"
	sharedQuery "github.com/davicafu/invoiceflow/internal/shared/infra/platform/query"
)

const reportColumns = `invoice_id, invoice_number, vendor_id, status, total_amount, currency, last_event_at, updated_at`

type ReportRepo struct {
	store *sqlstore.Store
	table string
}

func NewReportRepo(store *sqlstore.Store) *ReportRepo {
	return &ReportRepo{store: store, table: store.Table("invoice_reports")}
}

func (r *ReportRepo) InitSchema(ctx context.Context) error {
	ts := r.store.TimestampType()
	money := "TEXT"
	if r.store.Dialect == sqlstore.Postgres {
		money = "NUMERIC(18,4)"
	}
	prefix := "reporting"
	if r.store.Dialect == sqlstore.Postgres && r.store.Schema != "" {
		prefix = r.store.Schema + "_reporting"
	}
	return r.store.Exec(ctx,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
			invoice_id TEXT PRIMARY KEY,
			invoice_number TEXT NOT NULL,
			vendor_id TEXT NOT NULL,
			status VARCHAR(32) NOT NULL,
			total_amount %[3]s NOT NULL,
			currency VARCHAR(3) NOT NULL,
			last_event_at %[2]s NOT NULL,
			updated_at %[2]s NOT NULL
		)`, r.table, ts, money),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_status ON %s (status)`, prefix, r.table),
	)
}

// Save es un upsert: la fila ya viene fusionada por el dominio.
func (r *ReportRepo) Save(ctx context.Context, rep *domain.InvoiceReport) error {
	_, err := r.store.Conn(ctx).ExecContext(ctx, r.store.Rebind(fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (invoice_id) DO UPDATE SET
			invoice_number = excluded.invoice_number,
			vendor_id = excluded.vendor_id,
			status = excluded.status,
			total_amount = excluded.total_amount,
			currency = excluded.currency,
			last_event_at = excluded.last_event_at,
			updated_at = excluded.updated_at`, r.table, reportColumns)),
		rep.InvoiceID.String(), rep.InvoiceNumber, rep.VendorID.String(), rep.Status, rep.TotalAmount,
		rep.Currency, rep.LastEventAt.UTC(), rep.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save invoice report: %w", err)
	}
	return nil
}

func (r *ReportRepo) Get(ctx context.Context, invoiceID uuid.UUID) (*domain.InvoiceReport, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE invoice_id = ?`, reportColumns, r.table)
	if r.store.Dialect == sqlstore.Postgres && r.store.TxFrom(ctx) != nil {
		query += " FOR UPDATE"
	}
	row := r.store.Conn(ctx).QueryRowContext(ctx, r.store.Rebind(query), invoiceID.String())
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrReportNotFound
	}
	return rep, err
}

func (r *ReportRepo) List(ctx context.Context, status string, page sharedQuery.OffsetPagination) ([]*domain.InvoiceReport, error) {
	page = page.Normalize()
	where, args := "", []any{}
	if status != "" {
		where = "WHERE status = ?"
		args = append(args, status)
	}
	args = append(args, page.Limit, page.Offset)
	return r.query(ctx, fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY last_event_at DESC, invoice_id LIMIT ? OFFSET ?`,
		reportColumns, r.table, where), args...)
}

// All carga la proyección completa; el resumen se agrega en Go para no sumar dinero como float en SQLite.
func (r *ReportRepo) All(ctx context.Context) ([]*domain.InvoiceReport, error) {
	return r.query(ctx, fmt.Sprintf(`SELECT %s FROM %s`, reportColumns, r.table))
}

func (r *ReportRepo) query(ctx context.Context, query string, args ...any) ([]*domain.InvoiceReport, error) {
	rows, err := r.store.Conn(ctx).QueryContext(ctx, r.store.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list invoice reports: %w", err)
	}
	defer rows.Close()

	var out []*domain.InvoiceReport
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (*domain.InvoiceReport, error) {
	var rep domain.InvoiceReport
	if err := s.Scan(&rep.InvoiceID, &rep.InvoiceNumber, &rep.VendorID, &rep.Status, &rep.TotalAmount,
		&rep.Currency, &rep.LastEventAt, &rep.UpdatedAt); err != nil {
		return nil, err
	}
	return &rep, nil
}
