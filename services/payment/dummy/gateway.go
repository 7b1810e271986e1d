// Package dummypay is a payment gateway for local runs and tests: every well-formed
// reference is reported as paid in full.
package dummypay

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Bigestdave/LCUPrep/core/payment"
)

// PriceFunc returns the price of a course in naira.
type PriceFunc func(ctx context.Context, courseID string) (int, error)

type Gateway struct {
	mu       sync.Mutex
	txs      map[string]payment.Transaction
	priceFor PriceFunc
	currency string
}

var _ payment.Gateway = (*Gateway)(nil) // interface compliance check

func NewGateway(priceFor PriceFunc, currency string) *Gateway {
	return &Gateway{
		txs:      make(map[string]payment.Transaction),
		priceFor: priceFor,
		currency: currency,
	}
}

// Add registers a transaction, overriding the derived one for its reference. An empty
// currency is the gateway's.
func (gw *Gateway) Add(tx payment.Transaction) {
	if tx.Currency == "" {
		tx.Currency = gw.currency
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.txs[tx.Reference] = tx
}

// Verify returns the registered transaction for reference or, for references of the form
// `<courseID>_<suffix>`, a successful payment of the course's full price.
func (gw *Gateway) Verify(ctx context.Context, reference string) (payment.Transaction, error) {
	gw.mu.Lock()
	tx, ok := gw.txs[reference]
	gw.mu.Unlock()
	if ok {
		return tx, nil
	}

	courseID, _, found := strings.Cut(reference, "_")
	if !found || courseID == "" || gw.priceFor == nil {
		return payment.Transaction{}, payment.ErrTransactionNotFound
	}
	price, err := gw.priceFor(ctx, courseID)
	if err != nil {
		return payment.Transaction{}, errors.Wrap(payment.ErrTransactionNotFound, err.Error())
	}
	return payment.Transaction{
		Reference: reference,
		Status:    payment.StatusSuccess,
		Amount:    price * 100,
		Currency:  gw.currency,
		CourseID:  courseID,
		PaidAt:    time.Now().UTC(),
	}, nil
}
