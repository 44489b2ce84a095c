package main

import (
	"context"
	"expvar"
	"fmt"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	echoapi "github.com/trezcool/qsnap/apps/api/echo"
	"github.com/trezcool/qsnap/core"
	"github.com/trezcool/qsnap/core/account"
	"github.com/trezcool/qsnap/core/metering"
	"github.com/trezcool/qsnap/core/question"
	logsvc "github.com/trezcool/qsnap/services/logger"
	paymentsvc "github.com/trezcool/qsnap/services/payment"
	"github.com/trezcool/qsnap/storage/database"
	inmemdb "github.com/trezcool/qsnap/storage/database/inmem"
	"github.com/trezcool/qsnap/storage/database/sqlxdb"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger, err := logsvc.NewLogger(conf)
	if err != nil {
		log.Fatalf("setting up logger: %v", err)
	}
	defer logger.Close()

	if err = conf.CheckSecrets(); err != nil {
		logger.Fatal(fmt.Sprintf("checking %s secrets: %v", conf.Env, err), err)
	}

	// set up DB
	store, closer, err := setUpStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = closer.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// set up services
	accSvc := account.NewService(store, metering.NewPolicy(conf.Metering))
	qSvc := question.NewService(store, conf)
	notifier := question.NewPoller(qSvc, conf.Poll.Interval, logger)
	// the dummy provider credits any intent it is called back with: never expose it outside DEV|TEST
	var paymentSvc core.PaymentService
	if conf.IsDevelopment() {
		paymentSvc = paymentsvc.NewDummyService(conf)
	} else {
		logger.Warn(fmt.Sprintf("no payment provider for %s: top-ups are disabled", conf.Env))
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	question.InitValidators(validate, translator)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:        conf,
		Logger:      logger,
		Validate:    validate,
		Translator:  translator,
		AccountSvc:  accSvc,
		QuestionSvc: qSvc,
		Notifier:    notifier,
		PaymentSvc:  paymentSvc,
	})

	go server.Start()

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

// setUpStore opens the ledger store: in memory, or postgres with the migrations applied.
func setUpStore(conf *core.Config) (question.Store, io.Closer, error) {
	if conf.Database.InMemory {
		db := inmemdb.Open()
		return db, db, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, nil, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening database")
	}
	if err = database.Migrate(context.Background(), db.DB); err != nil {
		_ = db.Close()
		return nil, nil, errors.Wrap(err, "migrating database")
	}
	return sqlxdb.NewStore(db), db, nil
}
