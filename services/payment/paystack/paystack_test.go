package paystack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/payment"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

const successBody = `{
  "status": true,
  "message": "Verification successful",
  "data": {
    "reference": "irm102_1700000000000",
    "status": "success",
    "amount": 100000,
    "currency": "NGN",
    "paid_at": "2024-03-01T10:00:00.000Z",
    "metadata": {"course_id": "irm102", "course_code": "IRM 102", "custom_fields": []},
    "customer": {"email": "ada@lcuprep.test"}
  }
}`

func newTestGateway(t *testing.T, handler http.HandlerFunc) *gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gw := NewGateway(core.PaymentConfig{BaseURL: srv.URL, SecretKey: "sk_test"}, nopLogger{})
	gw.maxRetries = 1
	return gw
}

func TestGateway_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/transaction/verify/irm102_1700000000000", r.URL.Path)
			assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(successBody))
		})

		tx, err := gw.Verify(ctx, "irm102_1700000000000")
		require.NoError(t, err)
		assert.Equal(t, payment.Transaction{
			Reference: "irm102_1700000000000",
			Status:    payment.StatusSuccess,
			Amount:    100000,
			Currency:  "NGN",
			Email:     "ada@lcuprep.test",
			CourseID:  "irm102",
			PaidAt:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		}, tx)
	})

	t.Run("empty metadata", func(t *testing.T) {
		gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":{"reference":"x_1","status":"abandoned","amount":0,"metadata":""}}`))
		})

		tx, err := gw.Verify(ctx, "x_1")
		require.NoError(t, err)
		assert.Equal(t, "abandoned", tx.Status)
		assert.Empty(t, tx.CourseID)
		assert.True(t, tx.PaidAt.IsZero())
	})

	t.Run("unknown reference", func(t *testing.T) {
		gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
		})

		_, err := gw.Verify(ctx, "nope")
		assert.Equal(t, payment.ErrTransactionNotFound, errors.Cause(err))
	})

	t.Run("gateway down is retried", func(t *testing.T) {
		var calls atomic.Int32
		gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := gw.Verify(ctx, "irm102_1")
		assert.Equal(t, payment.ErrGatewayUnavailable, errors.Cause(err))
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("recovers after a transient failure", func(t *testing.T) {
		var calls atomic.Int32
		gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(successBody))
		})

		tx, err := gw.Verify(ctx, "irm102_1700000000000")
		require.NoError(t, err)
		assert.Equal(t, "irm102", tx.CourseID)
	})
}
