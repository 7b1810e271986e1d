package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	echoapi "github.com/Bigestdave/LCUPrep/apps/api/echo"
	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/course"
	"github.com/Bigestdave/LCUPrep/core/payment"
	"github.com/Bigestdave/LCUPrep/core/purchase"
	"github.com/Bigestdave/LCUPrep/core/session"
	"github.com/Bigestdave/LCUPrep/core/user"
	appfs "github.com/Bigestdave/LCUPrep/fs"
	emailsvc "github.com/Bigestdave/LCUPrep/services/email"
	logsvc "github.com/Bigestdave/LCUPrep/services/logger"
	dummypay "github.com/Bigestdave/LCUPrep/services/payment/dummy"
	"github.com/Bigestdave/LCUPrep/services/payment/paystack"
	"github.com/Bigestdave/LCUPrep/storage/database"
	inmemdb "github.com/Bigestdave/LCUPrep/storage/database/inmem"
	sqlxrepos "github.com/Bigestdave/LCUPrep/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %+v", err)
	}

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB & repos
	repos, err := setUpRepos(conf)
	if err != nil {
		dbLogger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	if err = user.InitValidators(validate, translator, appfs.FS); err != nil {
		logger.Fatal(fmt.Sprintf("initializing validators: %v", err), err)
	}

	templates, err := core.ParseEmailTemplates(appfs.FS, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, templates)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, templates, logger)
	}
	usrSvc := user.NewService(repos.users, mailSvc, conf)
	courseSvc := course.NewService(repos.courses)
	purchaseSvc := purchase.NewService(repos.purchases, mailSvc, logger)
	gateway, err := newGateway(conf, courseSvc, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up payment gateway: %v", err), err)
	}
	paymentSvc := payment.NewService(gateway, conf.Payment.PublicKey, conf.Payment.Currency)

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			UserSvc:     usrSvc,
			CourseSvc:   courseSvc,
			PurchaseSvc: purchaseSvc,
			PaymentSvc:  paymentSvc,
			Sessions:    session.NewLoader(usrSvc, purchaseSvc, session.RetryConfigFrom(conf.Session), logger),
			Validate:    validate,
			Translator:  translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

type repositories struct {
	users     user.Repository
	courses   course.Repository
	purchases purchase.Repository
	io.Closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// setUpRepos opens & migrates the configured database. The memory engine keeps everything
// in process and loses it on exit.
func setUpRepos(conf *core.Config) (repositories, error) {
	if conf.Database.Engine == database.EngineMemory {
		db := inmemdb.NewDB()
		return repositories{
			users:     inmemdb.NewUserRepository(db),
			courses:   inmemdb.NewCourseRepository(db),
			purchases: inmemdb.NewPurchaseRepository(db),
			Closer:    nopCloser{},
		}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return repositories{}, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return repositories{}, err
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return repositories{}, errors.Wrap(err, "migrating")
	}
	return repositories{
		users:     sqlxrepos.NewUserRepository(db),
		courses:   sqlxrepos.NewCourseRepository(db),
		purchases: sqlxrepos.NewPurchaseRepository(db),
		Closer:    db,
	}, nil
}

func newGateway(conf *core.Config, courseSvc *course.Service, logger core.Logger) (payment.Gateway, error) {
	if err := conf.Payment.Validate(conf.Env); err != nil {
		return nil, err
	}
	if conf.Payment.Provider == core.PaymentProviderPaystack {
		return paystack.NewGateway(conf.Payment, logger), nil
	}
	logger.Warn("using the dummy payment gateway: every well-formed reference is reported as paid")
	return dummypay.NewGateway(func(ctx context.Context, courseID string) (int, error) {
		c, err := courseSvc.Get(ctx, courseID)
		return c.Price, err
	}, conf.Payment.Currency), nil
}
