package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/qsnap/core/account"
	"github.com/trezcool/qsnap/tests"
)

func Test_accountApi(t *testing.T) {
	app := setup(t)
	admin := testutil.CreateAccount(t, app.db, "root", "adm1n-pwd", account.RoleAdmin)
	student := testutil.CreateAccount(t, app.db, "amani", "s3cr3t-pwd", account.RoleStudent)
	adminToken := app.getToken(t, admin)
	permDenied := marchallObj(t, httpErr{Error: "permission denied"})

	tests := []httpTest{
		{name: "auth required", path: "/v1/accounts", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "admin required", path: "/v1/accounts", token: app.getToken(t, student), wantCode: http.StatusForbidden, wantData: permDenied},
		{
			name: "invalid account", method: http.MethodPost, path: "/v1/accounts", token: adminToken,
			body:     marchallObj(t, account.NewAccount{ID: "no spaces!", Password: "abc", Role: account.RoleTutor}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"id":       "only alphanumeric characters, dashes and underscores are allowed",
				"password": "password must contain at least 6 characters",
			}),
		},
		{
			name: "role cannot change", method: http.MethodPost, path: "/v1/accounts", token: adminToken,
			body:     marchallObj(t, account.NewAccount{ID: "amani", Password: "n3w-s3cr3t", Role: account.RoleTutor}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"role": account.ErrRoleMismatch.Error()}),
		},
		{name: "cannot delete self", method: http.MethodDelete, path: "/v1/accounts/root", token: adminToken, wantCode: http.StatusForbidden, wantData: permDenied},
		{
			name: "delete unknown", method: http.MethodDelete, path: "/v1/accounts/ghost", token: adminToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: account.ErrNotFound.Error()}),
		},
		{name: "filter by role", path: "/v1/accounts?role=STUDENT", token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, []account.Account{student})},
	}
	runHTTPTests(t, app, tests)

	rec := app.do(t, http.MethodPost, "/v1/accounts", adminToken,
		marchallObj(t, account.NewAccount{ID: "baraka", Password: "t3ach-m3", Role: account.RoleTutor, Grade: "physics"}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tutor account.Account
	unmarchallObj(t, rec, &tutor)
	assert.Equal(t, account.RoleTutor, tutor.Role)
	assert.Nil(t, tutor.RemainingMinutes)

	rec = app.do(t, http.MethodPut, "/v1/accounts/baraka/password", adminToken, marchallObj(t, account.ResetPassword{Password: "n3w-s3cr3t"}))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	_, err := app.accSvc.Authenticate(context.Background(), "baraka", "n3w-s3cr3t", account.RoleTutor)
	assert.NoError(t, err)

	rec = app.do(t, http.MethodDelete, "/v1/accounts/amani", adminToken)
	require.Equal(t, http.StatusNoContent, rec.Code)
	// the credential is gone
	rec = app.do(t, http.MethodGet, "/v1/me", app.getToken(t, student))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
