package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/session"
	"github.com/Bigestdave/LCUPrep/core/user"
)

const (
	sessionCookieName = "session"
	contextClaimsKey  = "claims"
	contextSessionKey = "session"
	tokenAudience     = "students"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Email        string `json:"email,omitempty"`
	IsAdmin      bool   `json:"is_admin,omitempty"`
}

// TokenIssuer signs and parses session tokens (HS256).
type TokenIssuer struct {
	signingKey        []byte
	issuer            string
	expiration        time.Duration
	refreshExpiration time.Duration
	nowFunc           func() time.Time
}

func NewTokenIssuer(conf *core.Config) *TokenIssuer {
	return &TokenIssuer{
		signingKey:        []byte(conf.SecretKey),
		issuer:            conf.AppName,
		expiration:        conf.Server.JWTExpirationDelta,
		refreshExpiration: conf.Server.JWTRefreshExpirationDelta,
		nowFunc:           time.Now,
	}
}

func (ti *TokenIssuer) UserClaims(usr user.User, origIat ...int64) *Claims {
	now := ti.nowFunc()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   usr.ID,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Unix(nownix, 0)),
		},
		OrigIssuedAt: oriat,
		Email:        usr.Email,
		IsAdmin:      usr.IsAdmin,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func (ti *TokenIssuer) GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(ti.signingKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (ti *TokenIssuer) ParseToken(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(
		tokenStr,
		claims,
		func(*jwt.Token) (interface{}, error) { return ti.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ti.issuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithTimeFunc(ti.nowFunc),
	)
	if err != nil {
		return nil, errors.Wrap(errInvalidToken, err.Error())
	}
	return claims, nil
}

// refreshable reports whether a new token may still be issued for claims.
func (ti *TokenIssuer) refreshable(claims Claims) bool {
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(ti.refreshExpiration)
	return !ti.nowFunc().After(expTime)
}

func (ti *TokenIssuer) sessionCookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ti.expiration.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func expiredSessionCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// tokenFromRequest reads the bearer token, falling back on the session cookie.
func tokenFromRequest(ctx echo.Context) string {
	if auth := ctx.Request().Header.Get(echo.HeaderAuthorization); auth != "" {
		if scheme, token, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := ctx.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*Claims); ok {
		return *claims, nil
	}
	return Claims{}, errUnauthorized
}

func getContextSession(ctx echo.Context) (*session.Session, error) {
	if sess, ok := ctx.Get(contextSessionKey).(*session.Session); ok {
		return sess, nil
	}
	return nil, errUnauthorized
}

// authMiddleware loads the session of the token bearer. When required is false, requests
// without a valid token (or whose user is gone or deactivated) go through anonymously.
func authMiddleware(tokens *TokenIssuer, loader *session.Loader, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			tokenStr := tokenFromRequest(ctx)
			if tokenStr == "" {
				if required {
					return errMissingToken
				}
				return next(ctx)
			}

			claims, err := tokens.ParseToken(tokenStr)
			if err != nil {
				if required {
					return errInvalidTokenHTTP
				}
				return next(ctx)
			}

			sess, err := loader.Load(ctx.Request().Context(), claims.Subject)
			if err != nil {
				if errors.Cause(err) != user.ErrNotFound {
					return errors.Wrap(err, "loading session")
				}
				if required {
					return errInvalidTokenHTTP
				}
				return next(ctx)
			}
			if !sess.User.IsActive {
				if required {
					return errAccountDeactivated
				}
				return next(ctx)
			}

			ctx.Set(contextClaimsKey, claims)
			ctx.Set(contextSessionKey, sess)
			return next(ctx)
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := getContextSession(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context session")
			}
			if sess.User.IsAdmin {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
