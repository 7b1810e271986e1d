package echoapi

import (
	"net/http"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/course"
	"github.com/Bigestdave/LCUPrep/core/payment"
	"github.com/Bigestdave/LCUPrep/core/purchase"
	"github.com/Bigestdave/LCUPrep/core/user"
)

type purchaseApi struct {
	courseSvc  *course.Service
	svc        *purchase.Service
	paymentSvc *payment.Service
	validate   *validator.Validate
	metrics    *metrics
	logger     core.Logger
}

func registerPurchaseAPI(
	g *echo.Group,
	auth echo.MiddlewareFunc,
	courseSvc *course.Service,
	svc *purchase.Service,
	paymentSvc *payment.Service,
	validate *validator.Validate,
	m *metrics,
	logger core.Logger,
) {
	api := purchaseApi{
		courseSvc:  courseSvc,
		svc:        svc,
		paymentSvc: paymentSvc,
		validate:   validate,
		metrics:    m,
		logger:     logger,
	}

	pg := g.Group("/purchases", auth)
	pg.GET("", api.query)
	pg.POST("", api.create)
}

// Handlers

func (api *purchaseApi) query(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	return ctx.JSON(http.StatusOK, sess.Entitlements())
}

// create verifies the payment behind a widget reference and records the purchase.
func (api *purchaseApi) create(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}

	var data PurchaseRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PurchaseRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()

	c, err := api.courseSvc.Get(reqCtx, data.CourseID)
	if err != nil {
		return errors.Wrap(err, "getting course")
	}

	tx, err := api.paymentSvc.Verify(reqCtx, data.Reference, c)
	if err != nil {
		if errors.Cause(err) == payment.ErrPaymentNotVerified {
			api.rejectPayment(sess.User, data.Reference, err)
		}
		return errors.Wrap(err, "verifying payment")
	}

	p, created, err := api.svc.Commit(reqCtx, sess.User.ID, c.ID, data.Reference, tx.Amount)
	if err != nil {
		if errors.Cause(err) == purchase.ErrReferenceUsed {
			api.rejectPayment(sess.User, data.Reference, err)
		}
		return errors.Wrap(err, "committing purchase")
	}
	sess.Grant(c.ID)

	if !created {
		api.metrics.purchases.WithLabelValues("existing").Inc()
		return ctx.JSON(http.StatusOK, p)
	}
	api.metrics.purchases.WithLabelValues("created").Inc()
	api.svc.SendReceipt(p, purchase.Receipt{
		To:          mail.Address{Name: sess.FirstName(), Address: sess.User.Email},
		CourseID:    c.ID,
		CourseCode:  c.Code,
		CourseTitle: c.Title,
	})
	return ctx.JSON(http.StatusCreated, p)
}

func (api *purchaseApi) rejectPayment(usr user.User, reference string, err error) {
	api.metrics.paymentsRejected.Inc()
	api.logger.Warn("payment not verified", err, usr, map[string]interface{}{"reference": reference})
}

type PurchaseRequest struct {
	Reference string `json:"reference" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
}

func (pr *PurchaseRequest) Validate(validate *validator.Validate) error {
	pr.Reference = core.CleanString(pr.Reference)
	pr.CourseID = core.CleanString(pr.CourseID, true /* lower */)
	return validate.Struct(pr)
}
