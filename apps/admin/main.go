package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/Bigestdave/LCUPrep/core"
	"github.com/Bigestdave/LCUPrep/core/course"
	"github.com/Bigestdave/LCUPrep/core/purchase"
	"github.com/Bigestdave/LCUPrep/core/user"
	appfs "github.com/Bigestdave/LCUPrep/fs"
	logsvc "github.com/Bigestdave/LCUPrep/services/logger"
	"github.com/Bigestdave/LCUPrep/storage/database"
	sqlxrepos "github.com/Bigestdave/LCUPrep/storage/database/sqlx"
)

func main() {
	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	if err != nil {
		stdLogger.Fatalf("loading config: %+v", err)
	}
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(false)

	// set up DB
	if err = database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer func() { _ = db.Close() }()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	if err = user.InitValidators(validate, translator, appfs.FS); err != nil {
		logger.Fatal("initializing validators", err)
	}

	// start CLI
	purchaseRepo := sqlxrepos.NewPurchaseRepository(db)
	cli := commandLine{
		db:          db,
		usrRepo:     sqlxrepos.NewUserRepository(db),
		courseSvc:   course.NewService(sqlxrepos.NewCourseRepository(db)),
		purchaseSvc: purchase.NewService(purchaseRepo, nil /* grants send no receipt */, logger),
		validate:    validate,
		translator:  translator,
		out:         os.Stdout,
	}
	if err = cli.run(os.Args[1:]); err != nil {
		stdLogger.Printf("error: %s", err)
		_ = db.Close()
		os.Exit(1)
	}
}
