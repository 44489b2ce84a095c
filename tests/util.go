package testutil

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/trezcool/qsnap/core"
	"github.com/trezcool/qsnap/core/account"
)

const OverrideSecret = "admin"

// Image is a tiny valid attachment payload.
var Image = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\nqsnap"))

// NewConfig returns the configuration used by tests: debug mode, default metering.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:   "QSnap",
		Env:       "TEST",
		Debug:     true,
		TestMode:  true,
		SecretKey: "test-secret-key",
		Server: core.ServerConfig{
			FrontendBaseURL:           "http://localhost:3000",
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
		},
		Metering: core.MeteringConfig{
			QuestionCost:   15,
			TopUpMinutes:   60,
			DefaultBalance: 120,
			ListWindow:     30 * 24 * time.Hour,
			MaxImageBytes:  1 << 10,
		},
		Poll: core.PollConfig{Interval: 10 * time.Millisecond},
	}
}

// CreateAccount saves an account straight into repo. Students get `minutes` (default 120).
func CreateAccount(t *testing.T, repo account.Repository, id, pwd, role string, minutes ...int) account.Account {
	t.Helper()

	acc := account.Account{
		ID:        id,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if role == account.RoleStudent {
		balance := 120
		if len(minutes) > 0 {
			balance = minutes[0]
		}
		acc.RemainingMinutes = account.IntPtr(balance)
	}
	if err := acc.SetPassword(pwd); err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	acc, err := repo.SaveAccount(context.Background(), acc)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	return acc
}

// Logger discards everything.
type Logger struct{}

var _ core.Logger = Logger{}

func (Logger) Debug(string, ...interface{}) {}
func (Logger) Info(string, ...interface{})  {}
func (Logger) Warn(string, ...interface{})  {}
func (Logger) Error(string, ...interface{}) {}
func (Logger) Fatal(string, ...interface{}) {}
