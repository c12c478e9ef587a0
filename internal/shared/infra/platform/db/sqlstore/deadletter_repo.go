package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"

	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
)

// DeadLetterRepo guarda los mensajes que el despachador dejó de reintentar.
type DeadLetterRepo struct {
	store *Store
	table string
}

func NewDeadLetterRepo(store *Store) *DeadLetterRepo {
	return &DeadLetterRepo{store: store, table: store.Table("dead_letters")}
}

// InitSchema crea la tabla de dead-letters en el store que la aloja.
func (r *DeadLetterRepo) InitSchema(ctx context.Context) error {
	return r.store.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		queue TEXT NOT NULL,
		type VARCHAR(500) NOT NULL,
		body TEXT NOT NULL,
		headers TEXT NOT NULL,
		deliveries INTEGER NOT NULL,
		error VARCHAR(2000) NOT NULL,
		failed_on_utc %s NOT NULL
	)`, r.table, r.store.TimestampType()))
}

func (r *DeadLetterRepo) Save(ctx context.Context, dl sharedDomain.DeadLetter) error {
	headers, err := json.Marshal(dl.Headers)
	if err != nil {
		return err
	}
	_, err = r.store.Conn(ctx).ExecContext(ctx, r.store.Rebind(fmt.Sprintf(
		`INSERT INTO %s (id, queue, type, body, headers, deliveries, error, failed_on_utc)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, r.table)),
		dl.ID.String(), dl.Queue, dl.Type, dl.Body, string(headers), dl.Deliveries,
		sharedDomain.TruncateError(dl.Error), dl.FailedOnUtc.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save dead letter: %w", err)
	}
	return nil
}

func (r *DeadLetterRepo) List(ctx context.Context, limit, offset int) ([]sharedDomain.DeadLetter, error) {
	rows, err := r.store.Conn(ctx).QueryContext(ctx, r.store.Rebind(fmt.Sprintf(
		`SELECT id, queue, type, body, headers, deliveries, error, failed_on_utc
		 FROM %s ORDER BY failed_on_utc DESC LIMIT ? OFFSET ?`, r.table)),
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sharedDomain.DeadLetter
	for rows.Next() {
		var (
			dl      sharedDomain.DeadLetter
			headers string
		)
		if err := rows.Scan(&dl.ID, &dl.Queue, &dl.Type, &dl.Body, &headers, &dl.Deliveries, &dl.Error, &dl.FailedOnUtc); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(headers), &dl.Headers); err != nil {
			return nil, fmt.Errorf("invalid headers in dead letter %s: %w", dl.ID, err)
		}
		dl.FailedOnUtc = dl.FailedOnUtc.UTC()
		out = append(out, dl)
	}
	return out, rows.Err()
}

var _ sharedDomain.DeadLetterStore = (*DeadLetterRepo)(nil)
