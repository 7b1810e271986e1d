package payment

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Bigestdave/LCUPrep/core/course"
)

const StatusSuccess = "success"

var (
	// errors
	ErrPaymentNotVerified   = errors.New("payment could not be verified")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrGatewayUnavailable   = errors.New("payment gateway unavailable")
	errMissingReferenceText = "reference is required"
)

type (
	CustomField struct {
		DisplayName  string `json:"display_name"`
		VariableName string `json:"variable_name"`
		Value        string `json:"value"`
	}

	Metadata struct {
		CourseID     string        `json:"course_id"`
		CourseCode   string        `json:"course_code"`
		CustomFields []CustomField `json:"custom_fields"`
	}

	// CheckoutConfig initializes the client payment widget.
	CheckoutConfig struct {
		Reference string   `json:"reference"`
		Email     string   `json:"email"`
		Amount    int      `json:"amount"` // kobo
		PublicKey string   `json:"public_key"`
		Currency  string   `json:"currency"`
		Metadata  Metadata `json:"metadata"`
	}

	// Transaction is the gateway's view of a payment.
	Transaction struct {
		Reference string
		Status    string
		Amount    int // kobo
		Currency  string
		Email     string
		CourseID  string
		PaidAt    time.Time
	}

	// Gateway verifies payments made through the widget.
	Gateway interface {
		// Verify returns ErrTransactionNotFound for unknown references.
		Verify(ctx context.Context, reference string) (Transaction, error)
	}
)

// AmountFor returns the price of a course in kobo.
func AmountFor(c course.Course) int {
	return c.Price * 100
}

// Reference returns a unique payment reference for a course checkout.
func Reference(courseID string, now time.Time) string {
	return courseID + "_" + strconv.FormatInt(now.UnixMilli(), 10)
}

// Checkout returns the widget configuration for buying c.
func Checkout(c course.Course, email, publicKey, currency string, now time.Time) CheckoutConfig {
	return CheckoutConfig{
		Reference: Reference(c.ID, now),
		Email:     email,
		Amount:    AmountFor(c),
		PublicKey: publicKey,
		Currency:  currency,
		Metadata: Metadata{
			CourseID:   c.ID,
			CourseCode: c.Code,
			CustomFields: []CustomField{
				{DisplayName: "Course", VariableName: "course", Value: c.Title},
			},
		},
	}
}

// CheckTransaction reports whether tx pays for c in full, in currency.
func CheckTransaction(tx Transaction, c course.Course, currency string) error {
	switch {
	case tx.Status != StatusSuccess:
		return errors.Wrapf(ErrPaymentNotVerified, "status %q", tx.Status)
	case !strings.EqualFold(tx.Currency, currency):
		return errors.Wrapf(ErrPaymentNotVerified, "paid in %q, want %q", tx.Currency, currency)
	case tx.Amount < AmountFor(c):
		return errors.Wrapf(ErrPaymentNotVerified, "amount %d below %d", tx.Amount, AmountFor(c))
	case tx.CourseID != c.ID:
		return errors.Wrapf(ErrPaymentNotVerified, "paid for course %q", tx.CourseID)
	}
	return nil
}

// Service verifies widget payments with the configured gateway.
type Service struct {
	gateway   Gateway
	publicKey string
	currency  string
	nowFunc   func() time.Time
}

func NewService(gateway Gateway, publicKey, currency string) *Service {
	return &Service{gateway: gateway, publicKey: publicKey, currency: currency, nowFunc: time.Now}
}

func (svc *Service) Checkout(c course.Course, email string) CheckoutConfig {
	return Checkout(c, email, svc.publicKey, svc.currency, svc.nowFunc())
}

// Verify fetches the transaction behind reference and checks that it pays for c.
func (svc *Service) Verify(ctx context.Context, reference string, c course.Course) (Transaction, error) {
	if reference == "" {
		return Transaction{}, errors.Wrap(ErrPaymentNotVerified, errMissingReferenceText)
	}
	tx, err := svc.gateway.Verify(ctx, reference)
	if err != nil {
		if errors.Cause(err) == ErrTransactionNotFound {
			return Transaction{}, errors.Wrap(ErrPaymentNotVerified, err.Error())
		}
		return Transaction{}, errors.Wrap(err, "verifying transaction")
	}
	if err = CheckTransaction(tx, c, svc.currency); err != nil {
		return tx, err
	}
	return tx, nil
}
