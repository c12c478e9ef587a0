package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davicafu/invoiceflow/internal/invoice/domain"
	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
	"github.com/davicafu/invoiceflow/internal/shared/infra/platform/db/sqlstore"
	sharedQuery "github.com/davicafu/invoiceflow/internal/shared/infra/platform/query"
)

var (
	filterableFields = map[string]bool{
		"status":         true,
		"vendor_id":      true,
		"invoice_number": true,
		"due_date":       true,
	}
	sortableFields = map[string]bool{
		"created_at":     true,
		"due_date":       true,
		"invoice_number": true,
		"status":         true,
	}
)

const invoiceColumns = `id, invoice_number, vendor_id, classification_id, status, issue_date, due_date,
	currency, sub_total, tax_amount, total_amount, notes, rejection_reason, created_by, created_at,
	approved_at, approved_by, version`

// InvoiceRepo guarda facturas y líneas en el store del módulo (SQLite o Postgres).
type InvoiceRepo struct {
	store    *sqlstore.Store
	invoices string
	items    string
}

func NewInvoiceRepo(store *sqlstore.Store) *InvoiceRepo {
	return &InvoiceRepo{
		store:    store,
		invoices: store.Table("invoices"),
		items:    store.Table("invoice_line_items"),
	}
}

// InitSchema crea las tablas del agregado. Las de outbox/inbox las crea el store.
func (r *InvoiceRepo) InitSchema(ctx context.Context) error {
	ts := r.store.TimestampType()
	money := "TEXT"
	if r.store.Dialect == sqlstore.Postgres {
		money = "NUMERIC(18,4)"
	}

	return r.store.Exec(ctx,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT PRIMARY KEY,
			invoice_number TEXT NOT NULL,
			vendor_id TEXT NOT NULL,
			classification_id TEXT NULL UNIQUE,
			status VARCHAR(32) NOT NULL,
			issue_date %[2]s NOT NULL,
			due_date %[2]s NOT NULL,
			currency VARCHAR(3) NOT NULL,
			sub_total %[3]s NOT NULL,
			tax_amount %[3]s NOT NULL,
			total_amount %[3]s NOT NULL,
			notes TEXT NOT NULL,
			rejection_reason TEXT NOT NULL,
			created_by TEXT NOT NULL,
			created_at %[2]s NOT NULL,
			approved_at %[2]s NULL,
			approved_by TEXT NOT NULL,
			version INTEGER NOT NULL
		)`, r.invoices, ts, money),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			invoice_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			description TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			unit_price %s NOT NULL,
			currency VARCHAR(3) NOT NULL
		)`, r.items, money),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_invoice_line_items_invoice ON %s (invoice_id)`, r.items),
	)
}

// Create inserta la factura y la registra en la unidad de trabajo.
func (r *InvoiceRepo) Create(ctx context.Context, inv *domain.Invoice) error {
	if err := sharedDomain.Track(ctx, inv); err != nil {
		return err
	}
	conn := r.store.Conn(ctx)

	_, err := conn.ExecContext(ctx, r.store.Rebind(fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.invoices, invoiceColumns)),
		inv.ID.String(), inv.InvoiceNumber, inv.VendorID.String(), nullUUID(inv.ClassificationID),
		string(inv.Status), inv.IssueDate.UTC(), inv.DueDate.UTC(),
		inv.Currency, inv.SubTotal, inv.TaxAmount, inv.TotalAmount,
		inv.Notes, inv.RejectionReason, inv.CreatedBy, inv.CreatedAt.UTC(),
		nullTime(inv.ApprovedAt), inv.ApprovedBy, 1,
	)
	if err != nil {
		if sqlstore.IsUniqueViolation(err) {
			return domain.ErrInvoiceAlreadyExists
		}
		return fmt.Errorf("insert invoice: %w", err)
	}

	if err := r.insertLineItems(ctx, conn, inv); err != nil {
		return err
	}
	inv.Version = 1
	return nil
}

// Update aplica bloqueo optimista sobre version y reescribe las líneas.
func (r *InvoiceRepo) Update(ctx context.Context, inv *domain.Invoice) error {
	if err := sharedDomain.Track(ctx, inv); err != nil {
		return err
	}
	conn := r.store.Conn(ctx)

	res, err := conn.ExecContext(ctx, r.store.Rebind(fmt.Sprintf(
		`UPDATE %s SET status = ?, currency = ?, sub_total = ?, tax_amount = ?, total_amount = ?,
			notes = ?, rejection_reason = ?, approved_at = ?, approved_by = ?, version = version + 1
		 WHERE id = ? AND version = ?`, r.invoices)),
		string(inv.Status), inv.Currency, inv.SubTotal, inv.TaxAmount, inv.TotalAmount,
		inv.Notes, inv.RejectionReason, nullTime(inv.ApprovedAt), inv.ApprovedBy,
		inv.ID.String(), inv.Version,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		var n int
		if err := conn.QueryRowContext(ctx, r.store.Rebind(fmt.Sprintf(
			`SELECT COUNT(*) FROM %s WHERE id = ?`, r.invoices)), inv.ID.String()).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrInvoiceNotFound
		}
		return domain.ErrConcurrentUpdate
	}

	if _, err := conn.ExecContext(ctx, r.store.Rebind(fmt.Sprintf(
		`DELETE FROM %s WHERE invoice_id = ?`, r.items)), inv.ID.String()); err != nil {
		return fmt.Errorf("delete line items: %w", err)
	}
	if err := r.insertLineItems(ctx, conn, inv); err != nil {
		return err
	}
	inv.Version++
	return nil
}

func (r *InvoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	return r.getOne(ctx, "id", id.String())
}

func (r *InvoiceRepo) GetByClassificationID(ctx context.Context, classificationID uuid.UUID) (*domain.Invoice, error) {
	return r.getOne(ctx, "classification_id", classificationID.String())
}

func (r *InvoiceRepo) getOne(ctx context.Context, column, value string) (*domain.Invoice, error) {
	conn := r.store.Conn(ctx)
	row := conn.QueryRowContext(ctx, r.store.Rebind(fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s = ?`, invoiceColumns, r.invoices, column)), value)

	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, err
	}
	if err := r.loadLineItems(ctx, conn, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// ListByCriteria filtra con criterios del dominio. Sólo acepta columnas conocidas.
func (r *InvoiceRepo) ListByCriteria(ctx context.Context, criteria sharedDomain.Criteria, page sharedQuery.OffsetPagination, sort sharedQuery.Sort) ([]*domain.Invoice, error) {
	where, args, err := r.store.ApplyCriteria(criteria, filterableFields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInvoice, err)
	}
	if where != "" {
		where = " WHERE " + where
	}
	tail, tailArgs := sqlstore.OrderAndPage(sort, page, sortableFields, "created_at")
	args = append(args, tailArgs...)

	conn := r.store.Conn(ctx)
	rows, err := conn.QueryContext(ctx, r.store.Rebind(fmt.Sprintf(
		`SELECT %s FROM %s%s%s`, invoiceColumns, r.invoices, where, tail)), args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	var invoices []*domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Se cierra antes de cargar las líneas: SQLite trabaja con una sola conexión.
	rows.Close()

	for _, inv := range invoices {
		if err := r.loadLineItems(ctx, conn, inv); err != nil {
			return nil, err
		}
	}
	return invoices, nil
}

func (r *InvoiceRepo) insertLineItems(ctx context.Context, conn sqlstore.Executor, inv *domain.Invoice) error {
	query := r.store.Rebind(fmt.Sprintf(
		`INSERT INTO %s (id, invoice_id, position, description, quantity, unit_price, currency)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`, r.items))

	for pos, li := range inv.LineItems {
		if _, err := conn.ExecContext(ctx, query,
			li.ID.String(), inv.ID.String(), pos, li.Description, li.Quantity, li.UnitPrice, li.Currency,
		); err != nil {
			return fmt.Errorf("insert line item: %w", err)
		}
	}
	return nil
}

func (r *InvoiceRepo) loadLineItems(ctx context.Context, conn sqlstore.Executor, inv *domain.Invoice) error {
	rows, err := conn.QueryContext(ctx, r.store.Rebind(fmt.Sprintf(
		`SELECT id, description, quantity, unit_price, currency FROM %s WHERE invoice_id = ? ORDER BY position`,
		r.items)), inv.ID.String())
	if err != nil {
		return fmt.Errorf("load line items: %w", err)
	}
	defer rows.Close()

	inv.LineItems = []domain.LineItem{}
	for rows.Next() {
		var li domain.LineItem
		if err := rows.Scan(&li.ID, &li.Description, &li.Quantity, &li.UnitPrice, &li.Currency); err != nil {
			return fmt.Errorf("scan line item: %w", err)
		}
		inv.LineItems = append(inv.LineItems, li)
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvoice(s scanner) (*domain.Invoice, error) {
	var (
		inv            domain.Invoice
		status         string
		classification sql.NullString
		approvedAt     sql.NullTime
	)
	err := s.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.VendorID, &classification, &status, &inv.IssueDate, &inv.DueDate,
		&inv.Currency, &inv.SubTotal, &inv.TaxAmount, &inv.TotalAmount, &inv.Notes, &inv.RejectionReason,
		&inv.CreatedBy, &inv.CreatedAt, &approvedAt, &inv.ApprovedBy, &inv.Version,
	)
	if err != nil {
		return nil, err
	}

	inv.Status = domain.InvoiceStatus(status)
	inv.IssueDate = inv.IssueDate.UTC()
	inv.DueDate = inv.DueDate.UTC()
	inv.CreatedAt = inv.CreatedAt.UTC()
	if classification.Valid {
		cid, err := uuid.Parse(classification.String)
		if err != nil {
			return nil, fmt.Errorf("invalid classification id in DB: %w", err)
		}
		inv.ClassificationID = &cid
	}
	if approvedAt.Valid {
		at := approvedAt.Time.UTC()
		inv.ApprovedAt = &at
	}
	return &inv, nil
}

func nullUUID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

var _ domain.InvoiceRepository = (*InvoiceRepo)(nil)
