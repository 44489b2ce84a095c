package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/qsnap/core"
	"github.com/trezcool/qsnap/core/account"
	"github.com/trezcool/qsnap/core/metering"
	logsvc "github.com/trezcool/qsnap/services/logger"
	"github.com/trezcool/qsnap/storage/database"
	inmemdb "github.com/trezcool/qsnap/storage/database/inmem"
	"github.com/trezcool/qsnap/storage/database/sqlxdb"
)

func main() {
	conf := core.NewConfig()

	logger, err := logsvc.NewLogger(conf)
	if err != nil {
		log.Fatalf("setting up logger: %v", err)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)

	cli := commandLine{validate: validate, out: os.Stdout}

	// set up DB
	var store account.Store
	if conf.Database.InMemory {
		store = inmemdb.Open()
	} else {
		db, err := database.Open(conf)
		if err != nil {
			logger.Fatal("setting up database", err)
		}
		defer db.Close()
		store = sqlxdb.NewStore(db)
		cli.db = db.DB
	}
	cli.accSvc = account.NewService(store, metering.NewPolicy(conf.Metering))

	// start CLI
	err = cli.run(os.Args)
	logger.Close()
	if err != nil {
		if err != errHelp {
			log.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
