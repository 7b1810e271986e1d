package dummypay

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bigestdave/LCUPrep/core/payment"
)

func TestGateway_Verify(t *testing.T) {
	ctx := context.Background()
	prices := map[string]int{"irm102": 1500}
	gw := NewGateway(func(_ context.Context, id string) (int, error) {
		if p, ok := prices[id]; ok {
			return p, nil
		}
		return 0, errors.New("no such course")
	}, "NGN")

	tx, err := gw.Verify(ctx, "irm102_1700000000000")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, tx.Status)
	assert.Equal(t, 150000, tx.Amount)
	assert.Equal(t, "irm102", tx.CourseID)

	for _, ref := range []string{"", "irm102", "_123", "gst101_1"} {
		_, err = gw.Verify(ctx, ref)
		assert.Equal(t, payment.ErrTransactionNotFound, errors.Cause(err), ref)
	}

	gw.Add(payment.Transaction{Reference: "irm102_failed", Status: "failed", CourseID: "irm102"})
	tx, err = gw.Verify(ctx, "irm102_failed")
	require.NoError(t, err)
	assert.Equal(t, "failed", tx.Status)
	assert.Equal(t, "NGN", tx.Currency)

	gw.Add(payment.Transaction{Reference: "irm102_usd", Status: payment.StatusSuccess, Currency: "USD", CourseID: "irm102"})
	tx, err = gw.Verify(ctx, "irm102_usd")
	require.NoError(t, err)
	assert.Equal(t, "USD", tx.Currency)
}
