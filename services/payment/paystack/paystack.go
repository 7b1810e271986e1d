// Package paystack verifies widget payments against the Paystack transactions API.
package paystack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/payment"
)

const verifyEndpoint = "/transaction/verify/"

type (
	verifyResponse struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Reference string          `json:"reference"`
			Status    string          `json:"status"`
			Amount    int             `json:"amount"`
			Currency  string          `json:"currency"`
			PaidAt    *time.Time      `json:"paid_at"`
			Metadata  json.RawMessage `json:"metadata"`
			Customer  struct {
				Email string `json:"email"`
			} `json:"customer"`
		} `json:"data"`
	}

	gateway struct {
		client     *rest.Client
		baseURL    string
		secretKey  string
		maxRetries uint64
		logger     core.Logger
	}
)

var _ payment.Gateway = (*gateway)(nil) // interface compliance check

func NewGateway(conf core.PaymentConfig, logger core.Logger) *gateway {
	return &gateway{
		client:     &rest.Client{HTTPClient: &http.Client{Timeout: 15 * time.Second}},
		baseURL:    conf.BaseURL,
		secretKey:  conf.SecretKey,
		maxRetries: 2,
		logger:     logger,
	}
}

func (gw *gateway) Verify(ctx context.Context, reference string) (payment.Transaction, error) {
	req := rest.Request{
		Method:  rest.Get,
		BaseURL: gw.baseURL + verifyEndpoint + url.PathEscape(reference),
		Headers: map[string]string{
			"Authorization": "Bearer " + gw.secretKey,
			"Accept":        "application/json",
		},
	}

	send := func() (*rest.Response, error) {
		res, err := gw.client.SendWithContext(ctx, req)
		if err != nil {
			return nil, errors.Wrap(payment.ErrGatewayUnavailable, err.Error())
		}
		if res.StatusCode >= http.StatusInternalServerError {
			return nil, errors.Wrapf(payment.ErrGatewayUnavailable, "status %d", res.StatusCode)
		}
		return res, nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), gw.maxRetries), ctx)
	res, err := backoff.RetryWithData(send, bo)
	if err != nil {
		gw.logger.Error("verifying paystack transaction", err, map[string]interface{}{"reference": reference})
		return payment.Transaction{}, err
	}
	return parseVerifyResponse(reference, res)
}

func parseVerifyResponse(reference string, res *rest.Response) (payment.Transaction, error) {
	var body verifyResponse
	if err := json.Unmarshal([]byte(res.Body), &body); err != nil {
		return payment.Transaction{}, errors.Wrap(err, "decoding paystack response")
	}

	switch {
	case res.StatusCode == http.StatusNotFound,
		res.StatusCode == http.StatusBadRequest && !body.Status:
		return payment.Transaction{}, errors.Wrap(payment.ErrTransactionNotFound, body.Message)
	case res.StatusCode >= http.StatusBadRequest:
		return payment.Transaction{}, errors.Errorf("paystack status %d: %s", res.StatusCode, body.Message)
	case !body.Status:
		return payment.Transaction{}, errors.Wrap(payment.ErrTransactionNotFound, body.Message)
	}

	tx := payment.Transaction{
		Reference: body.Data.Reference,
		Status:    body.Data.Status,
		Amount:    body.Data.Amount,
		Currency:  body.Data.Currency,
		Email:     body.Data.Customer.Email,
		CourseID:  metadataCourseID(body.Data.Metadata),
	}
	if tx.Reference == "" {
		tx.Reference = reference
	}
	if body.Data.PaidAt != nil {
		tx.PaidAt = body.Data.PaidAt.UTC()
	}
	return tx, nil
}

// metadataCourseID reads course_id from the metadata object, which Paystack sends as an
// empty string when none was attached.
func metadataCourseID(raw json.RawMessage) string {
	var meta payment.Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return ""
	}
	return meta.CourseID
}
