package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/learnlink/backend/core"
	"github.com/learnlink/backend/core/account"
	"github.com/learnlink/backend/core/session"
	emailsvc "github.com/learnlink/backend/services/email"
	logsvc "github.com/learnlink/backend/services/logger"
	"github.com/learnlink/backend/storage/database"
	mongorepos "github.com/learnlink/backend/storage/database/mongo"
	sqlxrepos "github.com/learnlink/backend/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")

	ctx := context.Background()
	cli := commandLine{conf: conf}

	// set up DB
	switch conf.Database.Engine {
	case "postgres":
		db, err := database.Open(ctx, conf)
		errAndDie(logger, err)
		defer func() { _ = db.Close() }()
		cli.db = db.DB
		cli.repo = sqlxrepos.NewAccountRepository(db)
	case "mongo":
		db, err := mongorepos.Open(ctx, conf)
		errAndDie(logger, err)
		defer func() { _ = db.Client().Disconnect(ctx) }()
		cli.repo = mongorepos.NewAccountRepository(db)
	default:
		errAndDie(logger, fmt.Errorf("database engine %q is not persistent", conf.Database.Engine))
	}

	validate, translator := core.NewValidator()
	account.InitValidators(validate, translator)
	cli.accSvc = account.NewService(
		conf,
		cli.repo,
		account.NewBcryptHasher(conf),
		session.NewIssuer(conf),
		emailsvc.NewConsoleService(conf, logger),
		logger,
		validate,
		translator,
	)

	// start CLI
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
