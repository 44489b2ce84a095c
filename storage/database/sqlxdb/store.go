// Package sqlxdb is the durable ledger store on PostgreSQL, over either lib/pq or pgx.
package sqlxdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/qsnap/core"
	"github.com/trezcool/qsnap/core/question"
)

type (
	Store struct {
		db core.DB
	}

	txKey struct{}
)

var _ question.Store = (*Store)(nil)

func NewStore(db core.DB) *Store {
	return &Store{db: db}
}

func (s *Store) tx(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx, ok
}

// exec returns the running transaction, or the pool outside of one.
func (s *Store) exec(ctx context.Context) core.DBExecutor {
	if tx, ok := s.tx(ctx); ok {
		return tx
	}
	return s.db
}

// forUpdate locks the selected rows until the end of the running transaction.
func (s *Store) forUpdate(ctx context.Context) string {
	if _, ok := s.tx(ctx); ok {
		return " FOR UPDATE"
	}
	return ""
}

// WithinTx runs fn in a database transaction, committed only if fn succeeds.
// A nested call joins the running transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := s.tx(ctx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapErr(err, "beginning transaction")
	}
	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return wrapErr(tx.Commit(), "committing transaction")
}

// database/sql does not export the error it returns once the pool is closed.
const dbClosedMsg = "sql: database is closed"

// ErrClosed is returned once the connection pool has been closed: the store is gone for good.
var ErrClosed = core.NewShutdownError("database connection pool is closed")

// wrapErr wraps err with msg; connectivity failures become core.ErrStoreUnavailable.
func wrapErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	if strings.HasSuffix(err.Error(), dbClosedMsg) {
		return errors.Wrap(ErrClosed, msg)
	}
	if isUnavailable(err) {
		return errors.Wrapf(core.ErrStoreUnavailable, "%s: %v", msg, err)
	}
	return errors.Wrap(err, msg)
}

func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// 08: connection exception, 53: insufficient resources, 57P: operator intervention
	unavailableCode := func(code string) bool {
		return strings.HasPrefix(code, "08") || strings.HasPrefix(code, "53") || strings.HasPrefix(code, "57P")
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return unavailableCode(string(pqErr.Code))
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return unavailableCode(pgErr.Code)
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}
