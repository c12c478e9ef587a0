package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect selecciona el motor SQL. Las consultas se escriben con '?' y se reescriben con Rebind.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	}
	return "", fmt.Errorf("unsupported storage driver %q", s)
}

// DriverName devuelve el nombre registrado en database/sql.
func (d Dialect) DriverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// Rebind convierte los '?' en '$n' para Postgres.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) timestampType() string {
	if d == Postgres {
		return "TIMESTAMPTZ"
	}
	return "DATETIME"
}

// Store agrupa la conexión de un módulo con su dialecto y su esquema.
type Store struct {
	DB      *sql.DB
	Dialect Dialect
	Schema  string
}

// Open abre la base de datos del módulo. En Postgres crea el esquema si no existe.
func Open(ctx context.Context, dialect Dialect, dsn, schema string) (*Store, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == SQLite {
		// Un único escritor: evita "database is locked" y hace que :memory: sea una sola base.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	s := &Store{DB: db, Dialect: dialect, Schema: schema}
	if dialect == Postgres && schema != "" {
		if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema)); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema %s: %w", schema, err)
		}
	}
	return s, nil
}

// Table cualifica el nombre con el esquema del módulo (sólo Postgres).
func (s *Store) Table(name string) string {
	if s.Dialect == Postgres && s.Schema != "" {
		return s.Schema + "." + name
	}
	return name
}

func (s *Store) Rebind(query string) string {
	return s.Dialect.Rebind(query)
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// Executor es lo común entre *sql.DB y *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{ store *Store }

func (s *Store) withTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{store: s}, tx)
}

// TxFrom devuelve la transacción abierta por la unidad de trabajo de este store, si la hay.
func (s *Store) TxFrom(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{store: s}).(*sql.Tx)
	return tx
}

// Conn devuelve la transacción del contexto o, si no hay, la conexión directa.
func (s *Store) Conn(ctx context.Context) Executor {
	if tx := s.TxFrom(ctx); tx != nil {
		return tx
	}
	return s.DB
}

// IsUniqueViolation detecta violaciones de clave única en ambos motores.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
