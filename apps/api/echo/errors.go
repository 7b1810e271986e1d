package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/course"
	"github.com/Bigestdave/LCUPrep/core/payment"
	"github.com/Bigestdave/LCUPrep/core/purchase"
	"github.com/Bigestdave/LCUPrep/core/user"
)

var (
	errInvalidToken = errors.New("invalid or expired jwt")

	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errMissingToken         = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed jwt")
	errInvalidTokenHTTP     = echo.NewHTTPError(http.StatusUnauthorized, errInvalidToken.Error())
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
	errQuestionLocked       = echo.NewHTTPError(http.StatusForbidden, "question locked")
	errAlreadyOwned         = echo.NewHTTPError(http.StatusConflict, "course already purchased")
	errPaymentNotVerified   = echo.NewHTTPError(http.StatusPaymentRequired, payment.ErrPaymentNotVerified.Error())
	errGatewayUnavailable   = echo.NewHTTPError(http.StatusBadGateway, payment.ErrGatewayUnavailable.Error())
)

// domainHTTPError maps domain sentinels to their HTTP counterpart.
func domainHTTPError(err error) (*echo.HTTPError, bool) {
	switch errors.Cause(err) {
	case user.ErrNotFound, course.ErrNotFound:
		return errHttpNotFound, true
	case course.ErrLocked:
		return errQuestionLocked, true
	case user.ErrAuthenticationFailed:
		return errAuthenticationFailed, true
	case user.ErrAccountDeactivated:
		return errAccountDeactivated, true
	case payment.ErrPaymentNotVerified, payment.ErrTransactionNotFound, purchase.ErrReferenceUsed:
		return errPaymentNotVerified, true
	case payment.ErrGatewayUnavailable:
		return errGatewayUnavailable, true
	}
	return nil, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if herr, ok := domainHTTPError(err); ok {
			err = errors.Wrap(herr, err.Error())
		}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if flds := origErr.FieldMap(); flds != nil {
				message = flds
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if sess, sErr := getContextSession(ctx); sErr == nil {
				usr = sess.User
			} else if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
