package purchase

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Bigestdave/LCUPrep/core"
)

// ErrReferenceUsed is returned when a payment reference already backs another purchase.
var ErrReferenceUsed = errors.New("payment reference already used")

type (
	Repository interface {
		// ListPurchases returns the purchases of a user, oldest first.
		ListPurchases(ctx context.Context, userID string) ([]Purchase, error)
		// CreatePurchase inserts p unless the (user, course) pair already exists, in which
		// case the stored row is returned with created false. A reference stored for any
		// other purchase yields ErrReferenceUsed.
		CreatePurchase(ctx context.Context, p Purchase) (stored Purchase, created bool, err error)
	}

	// Receipt describes a committed purchase to the buyer.
	Receipt struct {
		To          mail.Address
		CourseID    string
		CourseCode  string
		CourseTitle string
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, logger: logger}
}

// Entitlements returns the course IDs the user has purchased. Store errors are logged and
// yield an empty set.
func (svc *Service) Entitlements(ctx context.Context, userID string) Entitlements {
	purchases, err := svc.repo.ListPurchases(ctx, userID)
	if err != nil {
		svc.logger.Error("fetching entitlements", errors.Wrap(err, "listing purchases"))
		return Entitlements{}
	}
	return FromPurchases(purchases)
}

// Commit records the purchase of a course. Committing an already owned course is a no-op
// returning the stored purchase and created false. Each reference pays for one purchase
// only: reusing it for another user or course fails with ErrReferenceUsed.
func (svc *Service) Commit(ctx context.Context, userID, courseID, reference string, amount int) (Purchase, bool, error) {
	p, created, err := svc.repo.CreatePurchase(ctx, Purchase{
		ID:        uuid.NewString(),
		UserID:    userID,
		CourseID:  courseID,
		Reference: reference,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Purchase{}, false, errors.Wrap(err, "creating purchase")
	}
	return p, created, nil
}

// SendReceipt mails a receipt for a newly committed purchase.
func (svc *Service) SendReceipt(p Purchase, rcpt Receipt) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{rcpt.To},
		Subject:      "Purchase Receipt",
		TemplateName: "purchase_receipt",
		TemplateData: map[string]string{
			"Name":        rcpt.To.Name,
			"CourseID":    rcpt.CourseID,
			"CourseCode":  rcpt.CourseCode,
			"CourseTitle": rcpt.CourseTitle,
			"Reference":   p.Reference,
			"Amount":      fmt.Sprintf("%d.%02d", p.Amount/100, p.Amount%100),
		},
	})
}
