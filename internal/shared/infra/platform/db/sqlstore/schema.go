package sqlstore

import (
	"context"
	"fmt"
)

// InitSchema crea las tablas de infraestructura del módulo: outbox e inbox.
// dead_letters vive sólo en el store de plataforma, ver DeadLetterRepo.InitSchema.
func (s *Store) InitSchema(ctx context.Context) error {
	return s.Exec(ctx, s.outboxDDL()...)
}

// Exec ejecuta sentencias DDL en orden. Los módulos lo usan para sus propias tablas.
func (s *Store) Exec(ctx context.Context, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

// TimestampType es el tipo de columna para instantes UTC en este dialecto.
func (s *Store) TimestampType() string {
	return s.Dialect.timestampType()
}

func (s *Store) outboxDDL() []string {
	ts := s.TimestampType()
	outbox := s.Table("outbox_messages")
	inbox := s.Table("inbox_messages")

	// seq desempata registros con el mismo occurred_on_utc; en SQLite se usa rowid.
	seq := ""
	if s.Dialect == Postgres {
		seq = "seq BIGSERIAL,"
	}

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			%s
			type VARCHAR(500) NOT NULL,
			content TEXT NOT NULL,
			occurred_on_utc %s NOT NULL,
			processed_on_utc %s NULL,
			error VARCHAR(2000) NULL
		)`, outbox, seq, ts, ts),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_pending ON %s (processed_on_utc, occurred_on_utc)`,
			s.indexPrefix(), outbox),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			consumer TEXT NOT NULL,
			event_id TEXT NOT NULL,
			event_type VARCHAR(500) NOT NULL,
			processed_on_utc %s NOT NULL,
			PRIMARY KEY (consumer, event_id)
		)`, inbox, ts),
	}
}

// indexPrefix evita colisiones de nombres de índice entre esquemas.
func (s *Store) indexPrefix() string {
	if s.Dialect == Postgres && s.Schema != "" {
		return s.Schema + "_outbox"
	}
	return "outbox"
}
