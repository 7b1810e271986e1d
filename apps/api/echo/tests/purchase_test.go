package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bigestdave/LCUPrep/core/payment"
	"github.com/Bigestdave/LCUPrep/core/purchase"
	emailsvc "github.com/Bigestdave/LCUPrep/services/email"
	"github.com/Bigestdave/LCUPrep/tests"
)

func Test_purchaseApi_create(t *testing.T) {
	env := setup(t)
	ada := testutil.CreateUser(t, env.usrRepo, "ada@lcuprep.test", testPwd, "Ada Obi", false, true)
	irm := testutil.CreateCourse(t, env.courseRepo, "IRM 102", "Risk Management", "IRM", "100L", 1000, 3)
	testutil.CreateCourse(t, env.courseRepo, "GST 101", "Use of English", "IRM", "100L", 1500, 2)
	token := env.getToken(t, ada)

	env.gateway.Add(payment.Transaction{Reference: "gst101_failed", Status: "failed", Amount: 150000, CourseID: "gst101"})
	env.gateway.Add(payment.Transaction{Reference: "gst101_short", Status: payment.StatusSuccess, Amount: 100, CourseID: "gst101"})
	env.gateway.Add(payment.Transaction{Reference: "irm102_other", Status: payment.StatusSuccess, Amount: 150000, CourseID: "irm102"})
	env.gateway.Add(payment.Transaction{Reference: "gst101_usd", Status: payment.StatusSuccess, Amount: 150000, Currency: "USD", CourseID: "gst101"})

	errNotVerified := marchallObj(t, httpErr{Error: "payment could not be verified"})
	env.runHTTPTests(t, []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/purchases", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "required fields", method: http.MethodPost, path: "/v1/purchases", token: token,
			body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"reference":"this field is required","course_id":"this field is required"}`),
		},
		{
			name: "unknown course", method: http.MethodPost, path: "/v1/purchases", token: token,
			body: []byte(`{"reference":"nope_1","course_id":"nope"}`), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "unknown reference", method: http.MethodPost, path: "/v1/purchases", token: token,
			body: []byte(`{"reference":"garbage","course_id":"gst101"}`), wantCode: http.StatusPaymentRequired, wantData: errNotVerified,
		},
		{
			name: "failed payment", method: http.MethodPost, path: "/v1/purchases", token: token,
			body: []byte(`{"reference":"gst101_failed","course_id":"gst101"}`), wantCode: http.StatusPaymentRequired, wantData: errNotVerified,
		},
		{
			name: "short payment", method: http.MethodPost, path: "/v1/purchases", token: token,
			body: []byte(`{"reference":"gst101_short","course_id":"gst101"}`), wantCode: http.StatusPaymentRequired, wantData: errNotVerified,
		},
		{
			name: "paid for another course", method: http.MethodPost, path: "/v1/purchases", token: token,
			body: []byte(`{"reference":"irm102_other","course_id":"gst101"}`), wantCode: http.StatusPaymentRequired, wantData: errNotVerified,
		},
		{
			name: "paid in another currency", method: http.MethodPost, path: "/v1/purchases", token: token,
			body: []byte(`{"reference":"gst101_usd","course_id":"gst101"}`), wantCode: http.StatusPaymentRequired, wantData: errNotVerified,
		},
	})
	require.Empty(t, emailsvc.SentMessages)

	var first purchase.Purchase
	t.Run("success", func(t *testing.T) {
		body := []byte(`{"reference":"irm102_1700000000000","course_id":" IRM102 "}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/purchases", token, body)
		env.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		first = unmarchall[purchase.Purchase](t, rec)
		assert.NotEmpty(t, first.ID)
		assert.Equal(t, ada.ID, first.UserID)
		assert.Equal(t, irm.ID, first.CourseID)
		assert.Equal(t, "irm102_1700000000000", first.Reference)
		assert.Equal(t, 100000, first.Amount)

		msg, ok := emailsvc.LastSentMessage()
		require.True(t, ok)
		assert.Equal(t, "Purchase Receipt", msg.Subject)
		assert.Equal(t, "ada@lcuprep.test", msg.To[0].Address)
		assert.Contains(t, msg.TextContent, "Hi Ada,")
		assert.Contains(t, msg.TextContent, "IRM 102 - Risk Management")
		assert.Contains(t, msg.TextContent, "Amount: 1000.00")
		assert.Contains(t, msg.TextContent, env.conf.FrontendBaseURL+"/course/irm102")
	})

	t.Run("repeat is a no-op", func(t *testing.T) {
		body := []byte(`{"reference":"irm102_1700000009999","course_id":"irm102"}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/purchases", token, body)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		stored := unmarchall[purchase.Purchase](t, rec)
		assert.Equal(t, first.ID, stored.ID)
		assert.Equal(t, first.Reference, stored.Reference)
		assert.Len(t, emailsvc.SentMessages, 1)
	})

	t.Run("entitlements", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/purchases", token)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, purchase.Entitlements{"irm102"}, unmarchall[purchase.Entitlements](t, rec))
	})

	t.Run("unlocks questions", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/irm102/questions/2", token)
		env.serve(req, rec)
		assert.Equal(t, http.StatusOK, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, "/v1/courses/gst101/questions/1", token)
		env.serve(req, rec)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("reference replayed by another user", func(t *testing.T) {
		bob := testutil.CreateUser(t, env.usrRepo, "bob@lcuprep.test", testPwd, "Bob Eze", false, true)
		bobToken := env.getToken(t, bob)

		body := []byte(`{"reference":"irm102_1700000000000","course_id":"irm102"}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/purchases", bobToken, body)
		env.serve(req, rec)
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		assert.JSONEq(t, string(errNotVerified), rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, "/v1/courses/irm102/questions/2", bobToken)
		env.serve(req, rec)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		purchases, err := env.purchaseRepo.ListPurchases(context.Background(), bob.ID)
		require.NoError(t, err)
		assert.Empty(t, purchases)
		assert.Len(t, emailsvc.SentMessages, 1)
	})
}

func Test_purchaseApi_query(t *testing.T) {
	env := setup(t)
	ada := testutil.CreateUser(t, env.usrRepo, "ada@lcuprep.test", testPwd, "Ada Obi", false, true)
	bob := testutil.CreateUser(t, env.usrRepo, "bob@lcuprep.test", testPwd, "", false, true)
	irm := testutil.CreateCourse(t, env.courseRepo, "IRM 102", "Risk Management", "IRM", "100L", 1000, 1)
	gst := testutil.CreateCourse(t, env.courseRepo, "GST 101", "Use of English", "IRM", "100L", 1000, 1)
	testutil.CreatePurchase(t, env.purchaseRepo, ada, gst)
	testutil.CreatePurchase(t, env.purchaseRepo, ada, irm)

	env.runHTTPTests(t, []httpTest{
		{name: "auth required", path: "/v1/purchases", wantCode: http.StatusUnauthorized},
		{name: "none", path: "/v1/purchases", token: env.getToken(t, bob), wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{name: "oldest first", path: "/v1/purchases", token: env.getToken(t, ada), wantCode: http.StatusOK, wantData: []byte(`["gst101","irm102"]`)},
	})
}
