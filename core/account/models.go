package account

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/qsnap/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleTutor   = "tutor"
	RoleAdmin   = "admin"
)

var AllRoles = []string{RoleStudent, RoleTutor, RoleAdmin}

type Account struct {
	ID           string `json:"id"`
	Role         string `json:"role"`
	Grade        string `json:"grade,omitempty"`
	PasswordHash []byte `json:"-"`
	// RemainingMinutes is nil until the student's first login grants the default balance.
	RemainingMinutes *int      `json:"remaining_minutes,omitempty"`
	AnswerCount      int       `json:"answer_count"`
	CreatedAt        time.Time `json:"created_at"` // UTC
}

func (acc *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	acc.PasswordHash = hash
	return nil
}

func (acc *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(pwd))
}

// Balance returns the remaining minutes, 0 when unset.
func (acc *Account) Balance() int {
	if acc.RemainingMinutes == nil {
		return 0
	}
	return *acc.RemainingMinutes
}

func (acc *Account) IsStudent() bool { return acc.Role == RoleStudent }
func (acc *Account) IsTutor() bool   { return acc.Role == RoleTutor }
func (acc *Account) IsAdmin() bool   { return acc.Role == RoleAdmin }

// NewAccount contains information needed to register an Account.
type NewAccount struct {
	ID       string `json:"id" validate:"required,max=255,alphanum_"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,allroles"`
	Grade    string `json:"grade" validate:"max=50"`
}

func (na *NewAccount) Validate(validate *validator.Validate) error {
	na.ID = core.CleanString(na.ID)
	na.Role = core.CleanString(na.Role, true /* lower */)
	na.Grade = core.CleanString(na.Grade)
	return validate.Struct(na)
}

// ResetPassword defines a new credential for an existing Account.
type ResetPassword struct {
	ID       string `json:"id" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (rp *ResetPassword) Validate(validate *validator.Validate) error {
	rp.ID = core.CleanString(rp.ID)
	return validate.Struct(rp)
}

type QueryFilter struct {
	Role string `query:"role"`
}

func (qf *QueryFilter) Clean() {
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}

func IntPtr(i int) *int { return &i }
