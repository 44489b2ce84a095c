package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func TestNewConfig_debugByEnv(t *testing.T) {
	tests := []struct {
		env       string
		wantEnv   string
		wantDebug bool
	}{
		{env: "", wantEnv: "DEV", wantDebug: true},
		{env: "dev", wantEnv: "DEV", wantDebug: true},
		{env: "TEST", wantEnv: "TEST", wantDebug: false},
		{env: "QA", wantEnv: "QA", wantDebug: false},
		{env: "PROD", wantEnv: "PROD", wantDebug: false},
	}
	for _, tc := range tests {
		t.Run(tc.wantEnv+"/"+tc.env, func(t *testing.T) {
			t.Setenv("ENV", tc.env)
			conf := NewConfig()
			assert.Equal(t, tc.wantEnv, conf.Env)
			assert.Equal(t, tc.wantDebug, conf.Debug)
		})
	}
}

func TestConfig_CheckOverrideSecret(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("0verride!"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		env    string
		hash   string
		secret string
		want   bool
	}{
		{name: "DEV fallback", env: "DEV", secret: devOverrideSecret, want: true},
		{name: "TEST fallback", env: "TEST", secret: devOverrideSecret, want: true},
		{name: "QA has no fallback", env: "QA", secret: devOverrideSecret, want: false},
		{name: "PROD has no fallback", env: "PROD", secret: devOverrideSecret, want: false},
		{name: "empty secret", env: "DEV", secret: "", want: false},
		{name: "hash replaces fallback", env: "DEV", hash: string(hash), secret: devOverrideSecret, want: false},
		{name: "PROD with hash", env: "PROD", hash: string(hash), secret: "0verride!", want: true},
		{name: "PROD wrong secret", env: "PROD", hash: string(hash), secret: "nope", want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conf := &Config{Env: tc.env, Admin: AdminConfig{OverrideSecretHash: tc.hash}}
			assert.Equal(t, tc.want, conf.CheckOverrideSecret(tc.secret))
		})
	}
}

func TestNewConfig_prodRejectsDevSecret(t *testing.T) {
	t.Setenv("ENV", "PROD")
	t.Setenv("PROD_ADMIN_OVERRIDESECRETHASH", "")

	conf := NewConfig()
	assert.False(t, conf.Debug)
	assert.False(t, conf.CheckOverrideSecret(devOverrideSecret))
	assert.Equal(t, ErrMissingOverrideSecret, conf.CheckSecrets())
}

func TestConfig_CheckSecrets(t *testing.T) {
	tests := []struct {
		name string
		conf Config
		want error
	}{
		{name: "DEV with fallbacks", conf: Config{Env: "DEV", SecretKey: defaultSecretKey}},
		{name: "TEST with fallbacks", conf: Config{Env: "TEST", SecretKey: defaultSecretKey}},
		{name: "PROD without hash", conf: Config{Env: "PROD", SecretKey: "s3cr3t"}, want: ErrMissingOverrideSecret},
		{
			name: "QA with default key",
			conf: Config{Env: "QA", SecretKey: defaultSecretKey, Admin: AdminConfig{OverrideSecretHash: "$2a$"}},
			want: ErrDefaultSecretKey,
		},
		{name: "PROD configured", conf: Config{Env: "PROD", SecretKey: "s3cr3t", Admin: AdminConfig{OverrideSecretHash: "$2a$"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.conf.CheckSecrets())
		})
	}
}
