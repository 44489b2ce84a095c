package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/qsnap/core/account"
)

func (db *DB) GetAccount(ctx context.Context, id string) (acc account.Account, err error) {
	err = db.read(ctx, func(t *tables) error {
		var ok bool
		if acc, ok = t.accounts[id]; !ok {
			return account.ErrNotFound
		}
		return nil
	})
	return acc, err
}

func (db *DB) SaveAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	err := db.write(ctx, func(t *tables) error {
		if orig, ok := t.accounts[acc.ID]; ok {
			// only the credential and grade are overwritten
			orig.PasswordHash = acc.PasswordHash
			orig.Grade = acc.Grade
			acc = orig
		}
		t.accounts[acc.ID] = acc
		return nil
	})
	return acc, err
}

func (db *DB) QueryAccounts(ctx context.Context, filter account.QueryFilter) ([]account.Account, error) {
	accs := make([]account.Account, 0)
	err := db.read(ctx, func(t *tables) error {
		for _, acc := range t.accounts {
			if filter.Role == "" || acc.Role == filter.Role {
				accs = append(accs, acc)
			}
		}
		return nil
	})
	sort.Slice(accs, func(i, j int) bool { return accs[i].ID < accs[j].ID })
	return accs, err
}

func (db *DB) GetBalance(ctx context.Context, id string) (int, error) {
	acc, err := db.GetAccount(ctx, id)
	if err != nil {
		return 0, err
	}
	return acc.Balance(), nil
}

func (db *DB) SetBalance(ctx context.Context, id string, minutes int) error {
	if minutes < 0 {
		minutes = 0
	}
	return db.write(ctx, func(t *tables) error {
		acc, ok := t.accounts[id]
		if !ok {
			return account.ErrNotFound
		}
		acc.RemainingMinutes = account.IntPtr(minutes)
		t.accounts[id] = acc
		return nil
	})
}

func (db *DB) GetAnswerCount(ctx context.Context, id string) (int, error) {
	acc, err := db.GetAccount(ctx, id)
	if err != nil {
		return 0, err
	}
	return acc.AnswerCount, nil
}

func (db *DB) IncrementAnswerCount(ctx context.Context, id string) error {
	return db.write(ctx, func(t *tables) error {
		acc, ok := t.accounts[id]
		if !ok {
			return account.ErrNotFound
		}
		acc.AnswerCount++
		t.accounts[id] = acc
		return nil
	})
}

func (db *DB) DeleteCredential(ctx context.Context, id string) error {
	return db.write(ctx, func(t *tables) error {
		if _, ok := t.accounts[id]; !ok {
			return account.ErrNotFound
		}
		delete(t.accounts, id)
		return nil
	})
}
