// Package pgx is the PostgreSQL backend. It implements store.Storage with
// plain SQL over a pgx connection and adds the vector capability through
// pgvector.
package pgx

import (
	"context"
	"embed"
	"errors"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// Store is a store.Storage backed by PostgreSQL. Writes that touch multiple
// rows run inside a transaction. The mutex serializes write batches so that
// callers can share one connection.
type Store struct {
	conn   pgxIConn
	dbLock sync.Mutex
}

// New wraps an existing connection or pool. The caller owns the connection
// lifecycle.
func New(conn pgxIConn) *Store {
	return &Store{conn: conn}
}

// Migrate applies the embedded schema migrations against databaseURL. It is
// a no-op when the schema is already current.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
