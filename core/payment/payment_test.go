package payment

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bigestdave/LCUPrep/core/course"
)

var irm102 = course.Course{ID: "irm102", Code: "IRM 102", Title: "Principles of Insurance", Price: 1500}

func TestCheckout(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	conf := Checkout(irm102, "ada@test.ng", "pk_test", "NGN", now)

	assert.Equal(t, CheckoutConfig{
		Reference: "irm102_1700000000123",
		Email:     "ada@test.ng",
		Amount:    150000,
		PublicKey: "pk_test",
		Currency:  "NGN",
		Metadata: Metadata{
			CourseID:   "irm102",
			CourseCode: "IRM 102",
			CustomFields: []CustomField{
				{DisplayName: "Course", VariableName: "course", Value: "Principles of Insurance"},
			},
		},
	}, conf)
}

func TestCheckTransaction(t *testing.T) {
	tests := []struct {
		name    string
		tx      Transaction
		wantErr bool
	}{
		{name: "paid", tx: Transaction{Status: StatusSuccess, Amount: 150000, Currency: "NGN", CourseID: "irm102"}},
		{name: "overpaid", tx: Transaction{Status: StatusSuccess, Amount: 200000, Currency: "NGN", CourseID: "irm102"}},
		{name: "failed", tx: Transaction{Status: "failed", Amount: 150000, Currency: "NGN", CourseID: "irm102"}, wantErr: true},
		{name: "abandoned", tx: Transaction{Status: "abandoned", Amount: 150000, Currency: "NGN", CourseID: "irm102"}, wantErr: true},
		{name: "underpaid", tx: Transaction{Status: StatusSuccess, Amount: 100000, Currency: "NGN", CourseID: "irm102"}, wantErr: true},
		{name: "currency case", tx: Transaction{Status: StatusSuccess, Amount: 150000, Currency: "ngn", CourseID: "irm102"}},
		{name: "other currency", tx: Transaction{Status: StatusSuccess, Amount: 150000, Currency: "USD", CourseID: "irm102"}, wantErr: true},
		{name: "no currency", tx: Transaction{Status: StatusSuccess, Amount: 150000, CourseID: "irm102"}, wantErr: true},
		{name: "other course", tx: Transaction{Status: StatusSuccess, Amount: 150000, Currency: "NGN", CourseID: "gst101"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTransaction(tt.tx, irm102, "NGN")
			if tt.wantErr {
				assert.Equal(t, ErrPaymentNotVerified, errors.Cause(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

type gatewayMock map[string]Transaction

func (g gatewayMock) Verify(_ context.Context, reference string) (Transaction, error) {
	if reference == "boom" {
		return Transaction{}, ErrGatewayUnavailable
	}
	tx, ok := g[reference]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return tx, nil
}

func TestService_Verify(t *testing.T) {
	svc := NewService(gatewayMock{
		"irm102_1":   {Reference: "irm102_1", Status: StatusSuccess, Amount: 150000, Currency: "NGN", CourseID: "irm102"},
		"irm102_usd": {Reference: "irm102_usd", Status: StatusSuccess, Amount: 150000, Currency: "USD", CourseID: "irm102"},
	}, "pk_test", "NGN")
	ctx := context.Background()

	tx, err := svc.Verify(ctx, "irm102_1", irm102)
	require.NoError(t, err)
	assert.Equal(t, "irm102_1", tx.Reference)

	_, err = svc.Verify(ctx, "", irm102)
	assert.Equal(t, ErrPaymentNotVerified, errors.Cause(err))

	_, err = svc.Verify(ctx, "unknown", irm102)
	assert.Equal(t, ErrPaymentNotVerified, errors.Cause(err))

	_, err = svc.Verify(ctx, "irm102_usd", irm102)
	assert.Equal(t, ErrPaymentNotVerified, errors.Cause(err))

	_, err = svc.Verify(ctx, "boom", irm102)
	assert.Equal(t, ErrGatewayUnavailable, errors.Cause(err))
}

func TestService_Checkout(t *testing.T) {
	svc := NewService(gatewayMock{}, "pk_test", "NGN")
	svc.nowFunc = func() time.Time { return time.UnixMilli(42) }

	conf := svc.Checkout(irm102, "ada@test.ng")
	assert.Equal(t, "irm102_42", conf.Reference)
	assert.Equal(t, "pk_test", conf.PublicKey)
	assert.Equal(t, 150000, conf.Amount)
}
