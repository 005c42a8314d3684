package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

//go:embed migrations.sql
var migrationSQL string

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// PostgresStore is a Store backed by Postgres. A store returned to an InTx
// callback runs every statement on that transaction.
type PostgresStore struct {
	DB *sql.DB

	tx *sql.Tx
}

// NewPostgresStore opens a connection pool using driver "postgres" (lib/pq)
// or "pgx" (jackc/pgx) and checks that the database answers.
func NewPostgresStore(ctx context.Context, driver, dsn string) (*PostgresStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{DB: db}, nil
}

func (s *PostgresStore) Close() error { return s.DB.Close() }

// Migrate applies the embedded schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, migrationSQL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) conn() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.DB
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	return s.inTx(ctx, func(tx *PostgresStore) error { return fn(tx) })
}

// inTx joins the current transaction when there is one.
func (s *PostgresStore) inTx(ctx context.Context, fn func(tx *PostgresStore) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// ensure rollback on early return
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&PostgresStore{DB: s.DB, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return translateCode(err, string(pqErr.Code), pqErr.Constraint)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return translateCode(err, pgErr.Code, pgErr.ConstraintName)
	}
	return err
}

func translateCode(err error, code, constraint string) error {
	switch code {
	case uniqueViolation:
		return fmt.Errorf("%w: %s", ErrDuplicate, constraint)
	case foreignKeyViolation:
		return fmt.Errorf("%w: %s", ErrMissingReference, constraint)
	}
	return err
}

// expectOne turns a zero-row update or delete into ErrNotFound.
func expectOne(res sql.Result) error {
	ra, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if ra == 0 {
		return ErrNotFound
	}
	return nil
}
