package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"

	. "github.com/trezcool/qsnap/apps/api/echo"
	"github.com/trezcool/qsnap/core"
	"github.com/trezcool/qsnap/core/account"
	"github.com/trezcool/qsnap/core/metering"
	"github.com/trezcool/qsnap/core/question"
	"github.com/trezcool/qsnap/services/payment"
	"github.com/trezcool/qsnap/storage/database/inmem"
	"github.com/trezcool/qsnap/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*Server
	conf    *core.Config
	db      *inmemdb.DB
	accSvc  *account.Service
	qSvc    *question.Service
	payment core.PaymentService
}

// setup builds the app on an in-memory store; opts may edit the server dependencies first.
func setup(t *testing.T, opts ...func(deps *ServerDeps)) *testApp {
	conf := testutil.NewConfig()

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	question.InitValidators(validate, translator)

	app := &testApp{conf: conf, db: inmemdb.Open()}
	app.accSvc = account.NewService(app.db, metering.NewPolicy(conf.Metering))
	app.qSvc = question.NewService(app.db, conf)
	app.payment = paymentsvc.NewDummyService(conf)

	deps := ServerDeps{
		Conf:        conf,
		Logger:      testutil.Logger{},
		Validate:    validate,
		Translator:  translator,
		AccountSvc:  app.accSvc,
		QuestionSvc: app.qSvc,
		Notifier:    question.NewPoller(app.qSvc, conf.Poll.Interval, testutil.Logger{}),
		PaymentSvc:  app.payment,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	app.Server = NewServer(deps)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (app *testApp) do(t *testing.T, method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	t.Helper()
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) getToken(t *testing.T, acc account.Account) string {
	token, err := GenerateToken(GetAccountClaims(acc, app.conf), app.conf.SecretKey)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func unmarchallObj(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarchallObj(%s): %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := app.do(t, method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
