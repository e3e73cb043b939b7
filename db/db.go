package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/PankindProjects/pankind"
	"github.com/cenkalti/backoff/v4"
	"github.com/exaring/otelpgx"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

func init() {
	// Set dollar placeholder format for squirrel
	squirrel.StatementBuilder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

type DB struct {
	conn *pgxpool.Pool
}

func (s *DB) Close() error {
	s.conn.Close()
	return nil
}

func NewDB(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 20
	cfg.ConnConfig.Tracer = otelpgx.NewTracer(otelpgx.WithTrimSQLInSpanName())
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		// Money columns are NUMERIC(12,2), make them scan into decimals
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	conn, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, err
	}

	return &DB{conn}, nil
}

// InTx runs fn inside a transaction. Serialization failures, deadlocks and
// connection hiccups are retried a few times with exponential backoff, after
// that the caller gets ErrTransientStore. Anything fn rejects on its own is
// returned as-is, without retrying.
func (s *DB) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	bo := backoff.WithContext(backoff.WithMaxRetries(newTxBackoff(), 3), ctx)
	err := backoff.Retry(func() error {
		err := pgx.BeginFunc(ctx, s.conn, fn)
		if err != nil && !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
	if err != nil && isTransient(err) {
		return errors.Join(pankind.ErrTransientStore, err)
	}
	return err
}

func newTxBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond
	return bo
}

func isTransient(err error) bool {
	if pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23514"
}

func FormatLimitOffset(limit int, offset int) string {
	if limit > 0 && offset > 0 {
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	}

	if limit > 0 {
		return fmt.Sprintf("LIMIT %d", limit)
	}

	if offset > 0 {
		return fmt.Sprintf("OFFSET %d", offset)
	}

	return ""
}
