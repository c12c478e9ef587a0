package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
)

// OutboxRepo es la tabla outbox_messages de un módulo.
type OutboxRepo struct {
	store *Store
	table string
}

func NewOutboxRepo(store *Store) *OutboxRepo {
	return &OutboxRepo{store: store, table: store.Table("outbox_messages")}
}

// Insert escribe los registros capturados usando la transacción del contexto.
func (r *OutboxRepo) Insert(ctx context.Context, records []sharedDomain.OutboxRecord) error {
	if len(records) == 0 {
		return nil
	}
	conn := r.store.Conn(ctx)
	query := r.store.Rebind(fmt.Sprintf(
		`INSERT INTO %s (id, type, content, occurred_on_utc, processed_on_utc, error) VALUES (?, ?, ?, ?, ?, ?)`,
		r.table))

	for _, rec := range records {
		if _, err := conn.ExecContext(ctx, query,
			rec.ID.String(), rec.Type, rec.Content, rec.OccurredOnUtc.UTC(),
			nullTime(rec.ProcessedOnUtc), nullString(rec.Error),
		); err != nil {
			return fmt.Errorf("insert outbox %s: %w", rec.Type, err)
		}
	}
	return nil
}

// FetchPendingOutbox reclama los registros pendientes más antiguos.
// En Postgres abre una transacción y bloquea las filas con SKIP LOCKED hasta Commit o Rollback.
// En SQLite sólo lee: la única conexión queda libre mientras se publica y Commit
// escribe los resultados en una transacción corta.
func (r *OutboxRepo) FetchPendingOutbox(ctx context.Context, limit int) (sharedDomain.OutboxBatch, error) {
	query := fmt.Sprintf(
		`SELECT id, type, content, occurred_on_utc, processed_on_utc, error
		 FROM %s
		 WHERE processed_on_utc IS NULL
		 ORDER BY occurred_on_utc, %s
		 LIMIT ?`, r.table, r.tiebreak())

	if r.store.Dialect != Postgres {
		rows, err := r.store.DB.QueryContext(ctx, r.store.Rebind(query), limit)
		if err != nil {
			return nil, fmt.Errorf("fetch pending outbox: %w", err)
		}
		records, err := scanOutbox(rows)
		if err != nil {
			return nil, err
		}
		return &outboxBatch{repo: r, records: records}, nil
	}

	tx, err := r.store.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin outbox batch: %w", err)
	}
	rows, err := tx.QueryContext(ctx, r.store.Rebind(query+` FOR UPDATE SKIP LOCKED`), limit)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("fetch pending outbox: %w", err)
	}
	records, err := scanOutbox(rows)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	return &outboxBatch{repo: r, tx: tx, records: records}, nil
}

func (r *OutboxRepo) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.store.Conn(ctx).QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE processed_on_utc IS NULL`, r.table),
	).Scan(&n)
	return n, err
}

// List devuelve los registros más recientes, procesados o no.
func (r *OutboxRepo) List(ctx context.Context, limit, offset int) ([]sharedDomain.OutboxRecord, error) {
	rows, err := r.store.Conn(ctx).QueryContext(ctx, r.store.Rebind(fmt.Sprintf(
		`SELECT id, type, content, occurred_on_utc, processed_on_utc, error
		 FROM %s ORDER BY occurred_on_utc DESC, %s DESC LIMIT ? OFFSET ?`, r.table, r.tiebreak())),
		limit, offset)
	if err != nil {
		return nil, err
	}
	return scanOutbox(rows)
}

func (r *OutboxRepo) tiebreak() string {
	if r.store.Dialect == Postgres {
		return "seq"
	}
	return "rowid"
}

func scanOutbox(rows *sql.Rows) ([]sharedDomain.OutboxRecord, error) {
	defer rows.Close()

	var records []sharedDomain.OutboxRecord
	for rows.Next() {
		var (
			rec       sharedDomain.OutboxRecord
			processed sql.NullTime
			errMsg    sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Content, &rec.OccurredOnUtc, &processed, &errMsg); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		rec.OccurredOnUtc = rec.OccurredOnUtc.UTC()
		if processed.Valid {
			t := processed.Time.UTC()
			rec.ProcessedOnUtc = &t
		}
		if errMsg.Valid {
			msg := errMsg.String
			rec.Error = &msg
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// outboxBatch guarda el lote reclamado. tx sólo existe en Postgres.
type outboxBatch struct {
	repo    *OutboxRepo
	tx      *sql.Tx
	records []sharedDomain.OutboxRecord
	done    bool
}

func (b *outboxBatch) Records() []sharedDomain.OutboxRecord {
	return b.records
}

// Commit escribe el resultado de cada registro y confirma. processed_on_utc nunca se borra.
func (b *outboxBatch) Commit(ctx context.Context, records []sharedDomain.OutboxRecord) error {
	if b.done {
		return sql.ErrTxDone
	}
	b.done = true

	tx := b.tx
	if tx == nil {
		var err error
		if tx, err = b.repo.store.DB.BeginTx(ctx, nil); err != nil {
			return fmt.Errorf("begin outbox update: %w", err)
		}
	}

	query := b.repo.store.Rebind(fmt.Sprintf(
		`UPDATE %s SET processed_on_utc = COALESCE(processed_on_utc, ?), error = ? WHERE id = ?`,
		b.repo.table))

	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, query,
			nullTime(rec.ProcessedOnUtc), nullString(rec.Error), rec.ID.String(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("update outbox %s: %w", rec.ID, err)
		}
	}
	return tx.Commit()
}

func (b *outboxBatch) Rollback() error {
	if b.done {
		return nil
	}
	b.done = true
	if b.tx == nil {
		return nil
	}
	if err := b.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

var (
	_ sharedDomain.OutboxStore = (*OutboxRepo)(nil)
	_ sharedDomain.OutboxBatch = (*outboxBatch)(nil)
)
