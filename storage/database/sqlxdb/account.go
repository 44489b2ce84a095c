package sqlxdb

import (
	"context"
	"database/sql"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/qsnap/core/account"
)

const accountColumns = "id, password, role, grade, remaining_minutes, answer_count, created_at"

type accountRow struct {
	ID               string    `db:"id"`
	Password         string    `db:"password"`
	Role             string    `db:"role"`
	Grade            string    `db:"grade"`
	RemainingMinutes null.Int  `db:"remaining_minutes"`
	AnswerCount      int       `db:"answer_count"`
	CreatedAt        time.Time `db:"created_at"`
}

func newAccountRow(acc account.Account) accountRow {
	return accountRow{
		ID:               acc.ID,
		Password:         string(acc.PasswordHash),
		Role:             acc.Role,
		Grade:            acc.Grade,
		RemainingMinutes: null.IntFromPtr(acc.RemainingMinutes),
		AnswerCount:      acc.AnswerCount,
		CreatedAt:        acc.CreatedAt,
	}
}

func (row accountRow) account() account.Account {
	return account.Account{
		ID:               row.ID,
		Role:             row.Role,
		Grade:            row.Grade,
		PasswordHash:     []byte(row.Password),
		RemainingMinutes: row.RemainingMinutes.Ptr(),
		AnswerCount:      row.AnswerCount,
		CreatedAt:        row.CreatedAt.UTC(),
	}
}

func (s *Store) GetAccount(ctx context.Context, id string) (account.Account, error) {
	var row accountRow
	q := "SELECT " + accountColumns + " FROM qsnap_users WHERE id = $1" + s.forUpdate(ctx)
	if err := s.exec(ctx).GetContext(ctx, &row, q, id); err != nil {
		if err == sql.ErrNoRows {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, wrapErr(err, "selecting account")
	}
	return row.account(), nil
}

func (s *Store) SaveAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}
	row := newAccountRow(acc)

	q := `
		INSERT INTO qsnap_users (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET password = EXCLUDED.password, grade = EXCLUDED.grade
		RETURNING ` + accountColumns
	err := s.exec(ctx).GetContext(ctx, &row, q,
		row.ID, row.Password, row.Role, row.Grade, row.RemainingMinutes, row.AnswerCount, row.CreatedAt)
	if err != nil {
		return account.Account{}, wrapErr(err, "saving account")
	}
	return row.account(), nil
}

func (s *Store) QueryAccounts(ctx context.Context, filter account.QueryFilter) ([]account.Account, error) {
	rows := make([]accountRow, 0)
	q := "SELECT " + accountColumns + " FROM qsnap_users WHERE ($1 = '' OR role = $1) ORDER BY id"
	if err := s.exec(ctx).SelectContext(ctx, &rows, q, filter.Role); err != nil {
		return nil, wrapErr(err, "selecting accounts")
	}

	accs := make([]account.Account, 0, len(rows))
	for _, row := range rows {
		accs = append(accs, row.account())
	}
	return accs, nil
}

func (s *Store) GetBalance(ctx context.Context, id string) (int, error) {
	var balance int
	q := "SELECT COALESCE(remaining_minutes, 0) FROM qsnap_users WHERE id = $1"
	if err := s.exec(ctx).GetContext(ctx, &balance, q, id); err != nil {
		if err == sql.ErrNoRows {
			return 0, account.ErrNotFound
		}
		return 0, wrapErr(err, "selecting balance")
	}
	return balance, nil
}

func (s *Store) SetBalance(ctx context.Context, id string, minutes int) error {
	q := "UPDATE qsnap_users SET remaining_minutes = GREATEST(0, $2::integer) WHERE id = $1"
	return s.updateOne(ctx, "setting balance", q, id, minutes)
}

func (s *Store) GetAnswerCount(ctx context.Context, id string) (int, error) {
	var count int
	q := "SELECT answer_count FROM qsnap_users WHERE id = $1"
	if err := s.exec(ctx).GetContext(ctx, &count, q, id); err != nil {
		if err == sql.ErrNoRows {
			return 0, account.ErrNotFound
		}
		return 0, wrapErr(err, "selecting answer count")
	}
	return count, nil
}

func (s *Store) IncrementAnswerCount(ctx context.Context, id string) error {
	q := "UPDATE qsnap_users SET answer_count = answer_count + 1 WHERE id = $1"
	return s.updateOne(ctx, "incrementing answer count", q, id)
}

func (s *Store) DeleteCredential(ctx context.Context, id string) error {
	return s.updateOne(ctx, "deleting account", "DELETE FROM qsnap_users WHERE id = $1", id)
}

// updateOne executes a statement expected to touch the single account row of args[0].
func (s *Store) updateOne(ctx context.Context, msg, q string, args ...interface{}) error {
	res, err := s.exec(ctx).ExecContext(ctx, q, args...)
	if err != nil {
		return wrapErr(err, msg)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(err, msg)
	}
	if n == 0 {
		return account.ErrNotFound
	}
	return nil
}
