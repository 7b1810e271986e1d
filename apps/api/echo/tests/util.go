package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/Bigestdave/LCUPrep/apps/api/echo"
	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/course"
	"github.com/Bigestdave/LCUPrep/core/payment"
	"github.com/Bigestdave/LCUPrep/core/purchase"
	"github.com/Bigestdave/LCUPrep/core/session"
	"github.com/Bigestdave/LCUPrep/core/user"
	appfs "github.com/Bigestdave/LCUPrep/fs"
	emailsvc "github.com/Bigestdave/LCUPrep/services/email"
	dummypay "github.com/Bigestdave/LCUPrep/services/payment/dummy"
	sqlxrepos "github.com/Bigestdave/LCUPrep/storage/database/sqlx"
	"github.com/Bigestdave/LCUPrep/tests"
)

type testEnv struct {
	app          *Server
	conf         *core.Config
	usrRepo      user.Repository
	courseRepo   course.Repository
	purchaseRepo purchase.Repository
	gateway      *dummypay.Gateway
}

// setup serves the whole API over a fresh in-memory SQLite database.
func setup(t *testing.T) *testEnv {
	t.Helper()
	conf := core.NewTestConfig()

	// set up DB & repos
	db := testutil.PrepareDB(t)
	env := &testEnv{
		conf:         conf,
		usrRepo:      sqlxrepos.NewUserRepository(db),
		courseRepo:   sqlxrepos.NewCourseRepository(db),
		purchaseRepo: sqlxrepos.NewPurchaseRepository(db),
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	if err := user.InitValidators(validate, translator, appfs.FS); err != nil {
		t.Fatalf("user.InitValidators() failed: %v", err)
	}
	templates, err := core.ParseEmailTemplates(appfs.FS, conf)
	if err != nil {
		t.Fatalf("core.ParseEmailTemplates() failed: %v", err)
	}

	// set up services
	logger := testutil.NopLogger{}
	mailSvc := emailsvc.NewConsoleServiceMock(conf, templates)
	emailsvc.ClearSentMessages()
	t.Cleanup(emailsvc.ClearSentMessages)

	usrSvc := user.NewService(env.usrRepo, mailSvc, conf)
	courseSvc := course.NewService(env.courseRepo)
	purchaseSvc := purchase.NewService(env.purchaseRepo, mailSvc, logger)
	env.gateway = dummypay.NewGateway(func(ctx context.Context, id string) (int, error) {
		c, err := courseSvc.Get(ctx, id)
		return c.Price, err
	}, conf.Payment.Currency)

	// set up server
	env.app = NewServer(ServerDeps{
		Conf:        conf,
		Logger:      logger,
		UserSvc:     usrSvc,
		CourseSvc:   courseSvc,
		PurchaseSvc: purchaseSvc,
		PaymentSvc:  payment.NewService(env.gateway, conf.Payment.PublicKey, conf.Payment.Currency),
		Sessions:    session.NewLoader(usrSvc, purchaseSvc, session.RetryConfigFrom(conf.Session), logger),
		Validate:    validate,
		Translator:  translator,
	})
	return env
}

func (env *testEnv) serve(req *http.Request, rec *httptest.ResponseRecorder) {
	env.app.ServeHTTP(rec, req)
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

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errNotFound     = httpErr{Error: "not found"}
	errForbidden    = httpErr{Error: "permission denied"}
)

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

func (env *testEnv) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	tokens := env.app.Tokens()
	token, err := tokens.GenerateToken(tokens.UserClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarchall[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var obj T
	if err := json.Unmarshal(rec.Body.Bytes(), &obj); err != nil {
		t.Fatalf("unmarchall() failed: %v; body %s", err, rec.Body.String())
	}
	return obj
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func (env *testEnv) runHTTPTests(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			env.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}
