// Package inmemdb is the in-memory ledger store, used in offline mode and in tests.
package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/qsnap/core"
	"github.com/trezcool/qsnap/core/account"
	"github.com/trezcool/qsnap/core/question"
)

type (
	DB struct {
		mutex  sync.RWMutex
		data   *tables
		closed bool
	}

	tables struct {
		accounts  map[string]account.Account
		questions map[string]question.Question
	}

	txKey struct{}

	// tx is the working copy of a running transaction.
	tx struct {
		db   *DB
		data *tables
	}
)

var _ question.Store = (*DB)(nil)

// ErrClosed is returned by every operation once the DB is closed.
var ErrClosed = core.NewShutdownError("in-memory store is closed")

func Open() *DB {
	return &DB{
		data: &tables{
			accounts:  make(map[string]account.Account),
			questions: make(map[string]question.Question),
		},
	}
}

// clone copies the tables. Stored values are never mutated in place, so a shallow copy is enough.
func (t *tables) clone() *tables {
	c := &tables{
		accounts:  make(map[string]account.Account, len(t.accounts)),
		questions: make(map[string]question.Question, len(t.questions)),
	}
	for k, v := range t.accounts {
		c.accounts[k] = v
	}
	for k, v := range t.questions {
		c.questions[k] = v
	}
	return c
}

// Close drops the data. The DB cannot be reopened.
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.closed = true
	db.data = &tables{}
	return nil
}

func (db *DB) txFrom(ctx context.Context) (*tx, bool) {
	t, ok := ctx.Value(txKey{}).(*tx)
	if !ok || t.db != db {
		return nil, false
	}
	return t, true
}

// WithinTx runs fn on a working copy of the data, swapped in only if fn succeeds.
// Transactions are serialized; a nested call joins the running one.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := db.txFrom(ctx); ok {
		return fn(ctx)
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()
	if db.closed {
		return ErrClosed
	}

	work := &tx{db: db, data: db.data.clone()}
	if err := fn(context.WithValue(ctx, txKey{}, work)); err != nil {
		return err
	}
	db.data = work.data
	return nil
}

func (db *DB) read(ctx context.Context, fn func(t *tables) error) error {
	if t, ok := db.txFrom(ctx); ok {
		return fn(t.data)
	}
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	if db.closed {
		return ErrClosed
	}
	return fn(db.data)
}

func (db *DB) write(ctx context.Context, fn func(t *tables) error) error {
	if t, ok := db.txFrom(ctx); ok {
		return fn(t.data)
	}
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if db.closed {
		return ErrClosed
	}
	return fn(db.data)
}
