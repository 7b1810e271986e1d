package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bigestdave/LCUPrep/tests"
)

func Test_server_home(t *testing.T) {
	env := setup(t)

	req, rec := newRequest(http.MethodGet, "/v1")
	env.serve(req, rec)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to LCUPrep API!", rec.Body.String())

	req, rec = newRequest(http.MethodGet, "/v1/nowhere")
	env.serve(req, rec)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_server_metrics(t *testing.T) {
	env := setup(t)
	ada := testutil.CreateUser(t, env.usrRepo, "ada@lcuprep.test", testPwd, "Ada Obi", false, true)
	testutil.CreateCourse(t, env.courseRepo, "IRM 102", "Risk Management", "IRM", "100L", 1000, 1)
	token := env.getToken(t, ada)

	for _, path := range []string{"/v1/courses", "/v1/courses/nope"} {
		req, rec := newAuthRequest(http.MethodGet, path, token)
		env.serve(req, rec)
	}
	req, rec := newAuthRequest(http.MethodPost, "/v1/purchases", token, []byte(`{"reference":"bogus","course_id":"irm102"}`))
	env.serve(req, rec)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	req, rec = newRequest(http.MethodGet, "/metrics")
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `lcuprep_http_requests_total{code="200",method="GET",route="/v1/courses"} 1`)
	assert.Contains(t, body, `lcuprep_http_requests_total{code="404",method="GET",route="/v1/courses/:id"} 1`)
	assert.Contains(t, body, `lcuprep_http_requests_total{code="402",method="POST",route="/v1/purchases"} 1`)
	assert.Contains(t, body, `lcuprep_payments_rejected_total 1`)
}
