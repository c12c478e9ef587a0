package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/davicafu/invoiceflow/internal/reporting/domain"
)

// EventLogRepo escribe el log de auditoría en ClickHouse.
type EventLogRepo struct {
	db *sql.DB
}

// NewEventLogRepo abre la conexión y comprueba que responde.
func NewEventLogRepo(ctx context.Context, addr, database string) (*EventLogRepo, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
	})

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}
	return &EventLogRepo{db: conn}, nil
}

// InitSchema crea la tabla si no existe. ReplacingMergeTree colapsa las reentregas
// del mismo evento; las consultas cuentan event_id distintos para no depender del merge.
func (r *EventLogRepo) InitSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS platform_events_log (
			event_id    UUID,
			event_type  LowCardinality(String),
			body        String,
			occurred_on DateTime64(3, 'UTC'),
			logged_at   DateTime64(3, 'UTC')
		) ENGINE = ReplacingMergeTree(logged_at)
		PARTITION BY toYYYYMM(occurred_on)
		ORDER BY (event_type, event_id)
	`)
	return err
}

// LogBatch inserta el lote en una sola transacción: ClickHouse rinde mejor con inserciones por lotes.
func (r *EventLogRepo) LogBatch(ctx context.Context, entries []domain.EventLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO platform_events_log (event_id, event_type, body, occurred_on, logged_at)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.EventID, e.Type, e.Body, e.OccurredOn, e.LoggedAt); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to exec statement for event %s: %w", e.EventID, err)
		}
	}
	return tx.Commit()
}

func (r *EventLogRepo) CountByType(ctx context.Context, from, to time.Time) ([]domain.EventTypeCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_type, uniqExact(event_id) AS total
		FROM platform_events_log
		WHERE occurred_on >= ? AND occurred_on < ?
		GROUP BY event_type
		ORDER BY total DESC, event_type
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []domain.EventTypeCount
	for rows.Next() {
		var c domain.EventTypeCount
		if err := rows.Scan(&c.Type, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *EventLogRepo) Close() error {
	return r.db.Close()
}

var _ domain.EventLogRepository = (*EventLogRepo)(nil)
