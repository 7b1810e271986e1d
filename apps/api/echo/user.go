package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/purchase"
	"github.com/Bigestdave/LCUPrep/core/session"
	"github.com/Bigestdave/LCUPrep/core/user"
)

const passwordResetRequestedMsg = "If the email address supplied is associated with an active account on this system, " +
	"an email will arrive in your inbox shortly with instructions to reset your password."

type userApi struct {
	svc          *user.Service
	tokens       *TokenIssuer
	validate     *validator.Validate
	cookieSecure bool
}

func registerUserAPI(
	g *echo.Group,
	auth echo.MiddlewareFunc,
	tokens *TokenIssuer,
	svc *user.Service,
	validate *validator.Validate,
	cookieSecure bool,
) {
	api := userApi{
		svc:          svc,
		tokens:       tokens,
		validate:     validate,
		cookieSecure: cookieSecure,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/signup", api.signup)
	ag.POST("/login", api.login)
	ag.POST("/logout", api.logout)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag.POST("/token-refresh", api.refreshToken, auth)
	ag.PUT("/password", api.updatePassword, auth)
	g.GET("/me", api.me, auth)
}

// Handlers

func (api *userApi) signup(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.validate, api.svc); err != nil {
		return err
	}

	usr, prof, err := api.svc.Signup(reqCtx, data)
	if err != nil {
		if errors.Cause(err) == user.ErrEmailExists {
			return core.NewFieldError("email", user.ErrEmailExists)
		}
		return errors.Wrap(err, "signing up")
	}

	token, err := api.issueToken(ctx, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, SignupResponse{
		Token:   token,
		User:    usr,
		Profile: &prof,
	})
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := api.issueToken(ctx, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) logout(ctx echo.Context) error {
	ctx.SetCookie(expiredSessionCookie(api.cookieSecure))
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: passwordResetRequestedMsg})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) updatePassword(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}

	var data user.UpdatePassword
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePassword")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if err = api.svc.UpdatePassword(ctx.Request().Context(), sess.User.ID, data); err != nil {
		return errors.Wrap(err, "updating password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been updated."})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}

	// check if refresh has not expired
	if !api.tokens.refreshable(claims) {
		return errRefreshExpired
	}

	token, err := api.tokens.GenerateToken(api.tokens.UserClaims(sess.User, claims.OrigIssuedAt))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	ctx.SetCookie(api.tokens.sessionCookie(token, api.cookieSecure))
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) me(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

func (api *userApi) issueToken(ctx echo.Context, usr user.User) (string, error) {
	token, err := api.tokens.GenerateToken(api.tokens.UserClaims(usr))
	if err != nil {
		return "", errors.Wrap(err, "generating token")
	}
	ctx.SetCookie(api.tokens.sessionCookie(token, api.cookieSecure))
	return token, nil
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	SignupResponse struct {
		Token   string        `json:"token"`
		User    user.User     `json:"user"`
		Profile *user.Profile `json:"profile"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	SessionResponse struct {
		User         user.User             `json:"user"`
		Profile      *user.Profile         `json:"profile"`
		ProfileError string                `json:"profile_error,omitempty"`
		Purchases    purchase.Entitlements `json:"purchases"`
		Watermark    string                `json:"watermark"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

func newSessionResponse(sess *session.Session) SessionResponse {
	res := SessionResponse{
		User:      sess.User,
		Profile:   sess.Profile,
		Purchases: sess.Entitlements(),
		Watermark: sess.Watermark(),
	}
	if sess.ProfileErr != nil {
		res.ProfileError = session.ErrProfileUnavailable.Error()
	}
	return res
}
