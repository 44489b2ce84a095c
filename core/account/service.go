package account

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/qsnap/core"
	"github.com/trezcool/qsnap/core/metering"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNotFound     = errors.New("account not found")
	ErrAuth         = errors.New("invalid id, password or role")
	ErrRoleMismatch = errors.New("an account with this id already exists with another role")
	ErrNotStudent   = errors.New("only student accounts hold a minutes balance")
	ErrInvalidUnits = errors.New("at least one top-up unit is required")
)

type (
	// Repository is the account half of the ledger store.
	Repository interface {
		GetAccount(ctx context.Context, id string) (Account, error)
		// SaveAccount inserts acc, or overwrites the credential and grade of the existing account with the same id.
		SaveAccount(ctx context.Context, acc Account) (Account, error)
		QueryAccounts(ctx context.Context, filter QueryFilter) ([]Account, error)
		GetBalance(ctx context.Context, id string) (int, error)
		// SetBalance stores `minutes`, clamped at zero.
		SetBalance(ctx context.Context, id string, minutes int) error
		GetAnswerCount(ctx context.Context, id string) (int, error)
		IncrementAnswerCount(ctx context.Context, id string) error
		DeleteCredential(ctx context.Context, id string) error
	}

	Store interface {
		Repository
		core.Transactor
	}

	Service struct {
		store  Store
		policy metering.Policy
	}
)

func NewService(store Store, policy metering.Policy) *Service {
	return &Service{store: store, policy: policy}
}

// Register creates an account, or overwrites the credential of an existing one.
// The role of an existing account never changes.
func (svc *Service) Register(ctx context.Context, na NewAccount) (Account, error) {
	var saved Account
	err := svc.store.WithinTx(ctx, func(ctx context.Context) error {
		acc, err := svc.store.GetAccount(ctx, na.ID)
		switch {
		case err == nil:
			if acc.Role != na.Role {
				return core.NewValidationError(ErrRoleMismatch, core.FieldError{Field: "role", Error: ErrRoleMismatch.Error()})
			}
			if na.Grade != "" {
				acc.Grade = na.Grade
			}
		case errors.Cause(err) == ErrNotFound:
			acc = Account{
				ID:        na.ID,
				Role:      na.Role,
				Grade:     na.Grade,
				CreatedAt: nowFunc().UTC(),
			}
			if acc.IsStudent() {
				acc.RemainingMinutes = IntPtr(svc.policy.DefaultBalance)
			}
		default:
			return errors.Wrap(err, "getting account")
		}

		if err = acc.SetPassword(na.Password); err != nil {
			return errors.Wrap(err, "setting password")
		}
		saved, err = svc.store.SaveAccount(ctx, acc)
		return errors.Wrap(err, "saving account")
	})
	return saved, err
}

// Authenticate checks the credential of account `id` for the expected `role`.
// Unknown ids, wrong passwords and role mismatches all fail with ErrAuth.
// A student logging in for the first time is granted the default balance.
func (svc *Service) Authenticate(ctx context.Context, id, pwd, role string) (Account, error) {
	acc, err := svc.store.GetAccount(ctx, core.CleanString(id))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Account{}, ErrAuth
		}
		return Account{}, errors.Wrap(err, "getting account")
	}
	if acc.Role != role || acc.CheckPassword(pwd) != nil {
		return Account{}, ErrAuth
	}

	if acc.IsStudent() && acc.RemainingMinutes == nil {
		if err = svc.store.SetBalance(ctx, acc.ID, svc.policy.DefaultBalance); err != nil {
			return Account{}, errors.Wrap(err, "setting default balance")
		}
		acc.RemainingMinutes = IntPtr(svc.policy.DefaultBalance)
	}
	return acc, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Account, error) {
	return svc.store.GetAccount(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Account, error) {
	return svc.store.QueryAccounts(ctx, filter)
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetPassword) error {
	return svc.store.WithinTx(ctx, func(ctx context.Context) error {
		acc, err := svc.store.GetAccount(ctx, rp.ID)
		if err != nil {
			return err
		}
		if err = acc.SetPassword(rp.Password); err != nil {
			return errors.Wrap(err, "setting password")
		}
		_, err = svc.store.SaveAccount(ctx, acc)
		return errors.Wrap(err, "saving account")
	})
}

// Delete removes the credential of account `id`; its questions are kept.
func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.store.DeleteCredential(ctx, id)
}

func (svc *Service) Balance(ctx context.Context, id string) (int, error) {
	return svc.store.GetBalance(ctx, id)
}

// CreditTopUp credits `units` purchased top-up units to student `id` and returns the new balance.
func (svc *Service) CreditTopUp(ctx context.Context, id string, units int) (int, error) {
	if units < 1 {
		return 0, ErrInvalidUnits
	}

	var balance int
	err := svc.store.WithinTx(ctx, func(ctx context.Context) error {
		acc, err := svc.store.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		if !acc.IsStudent() {
			return ErrNotStudent
		}
		balance = svc.policy.TopUp(acc.Balance(), units)
		return errors.Wrap(svc.store.SetBalance(ctx, id, balance), "setting balance")
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}
