package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/course"
	"github.com/Bigestdave/LCUPrep/core/payment"
	"github.com/Bigestdave/LCUPrep/core/purchase"
	"github.com/Bigestdave/LCUPrep/core/session"
	"github.com/Bigestdave/LCUPrep/core/user"
)

const metricsNamespace = "lcuprep"

type (
	ServerDeps struct {
		Conf        *core.Config
		Logger      core.Logger
		UserSvc     *user.Service
		CourseSvc   *course.Service
		PurchaseSvc *purchase.Service
		PaymentSvc  *payment.Service
		Sessions    *session.Loader
		Validate    *validator.Validate
		Translator  ut.Translator
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		tokens   *TokenIssuer
		metrics  *metrics
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		tokens:   NewTokenIssuer(deps.Conf),
		metrics:  newMetrics(metricsNamespace),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(s.metrics.middleware())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/metrics", s.metrics.handler())

	optionalAuth := authMiddleware(s.tokens, s.deps.Sessions, false)
	requiredAuth := authMiddleware(s.tokens, s.deps.Sessions, true)

	registerViews(s.app, optionalAuth, s.deps.Conf, s.deps.CourseSvc)

	v1 := s.app.Group("/v1")
	v1.GET("", home)
	registerUserAPI(v1, requiredAuth, s.tokens, s.deps.UserSvc, s.deps.Validate, conf.Server.CookieSecure)
	registerCourseAPI(v1, requiredAuth, s.deps.CourseSvc, s.deps.PaymentSvc)
	registerPurchaseAPI(v1, requiredAuth, s.deps.CourseSvc, s.deps.PurchaseSvc, s.deps.PaymentSvc, s.deps.Validate, s.metrics, s.deps.Logger)
	registerAdminAPI(v1, requiredAuth, s.deps.CourseSvc, s.deps.Validate)
}

// Start blocks until the server stops. Errors other than a graceful close are sent to Errors().
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// Tokens exposes the issuer of session tokens.
func (s *Server) Tokens() *TokenIssuer {
	return s.tokens
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to LCUPrep API!")
}
