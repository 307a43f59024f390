package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/learnlink/backend/apps/api/echo"
	"github.com/learnlink/backend/core"
	"github.com/learnlink/backend/core/account"
	"github.com/learnlink/backend/core/session"
	emailsvc "github.com/learnlink/backend/services/email"
	logsvc "github.com/learnlink/backend/services/logger"
	"github.com/learnlink/backend/storage/database"
	inmemdb "github.com/learnlink/backend/storage/database/inmem"
	mongorepos "github.com/learnlink/backend/storage/database/mongo"
	sqlxrepos "github.com/learnlink/backend/storage/database/sqlx"
)

// supported storage engines
const (
	EnginePostgres = "postgres"
	EngineMongo    = "mongo"
	EngineMemory   = "memory"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// DBCloser releases the storage backing the account.Repository.
type DBCloser func(ctx context.Context) error

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newRepository(conf *core.Config, loggerParam DBLoggerParam) (account.Repository, DBCloser) {
	ctx := context.Background()
	logger := loggerParam.Logger

	switch conf.Database.Engine {
	case EngineMemory:
		logger.Warn("using the in-memory store: data is lost on restart")
		return inmemdb.NewAccountRepository(inmemdb.Open()), func(context.Context) error { return nil }

	case EngineMongo:
		db, err := mongorepos.Open(ctx, conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up mongo: %v", err), err)
		}
		return mongorepos.NewAccountRepository(db), db.Client().Disconnect

	case EnginePostgres:
		setUp := func() (*sqlx.DB, error) {
			if err := database.CreateIfNotExist(ctx, conf); err != nil {
				return nil, err
			}
			db, err := database.Open(ctx, conf)
			if err != nil {
				return nil, err
			}
			if err = database.Migrate(db.DB); err != nil {
				_ = db.Close()
				return nil, err
			}
			return db, nil
		}
		db, err := setUp()
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		return sqlxrepos.NewAccountRepository(db), func(context.Context) error { return db.Close() }

	default:
		logger.Fatal(fmt.Sprintf("unknown database engine %q", conf.Database.Engine))
		return nil, nil
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug && !conf.MailEnabled() {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf)
}

type validation struct {
	dig.Out
	Validate   *validator.Validate
	Translator ut.Translator
}

func newValidation() validation {
	validate, translator := core.NewValidator()
	account.InitValidators(validate, translator)
	return validation{Validate: validate, Translator: translator}
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	svc *account.Service,
	issuer *session.Issuer,
	metrics *echoapi.Metrics,
) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:       conf,
		Logger:     logger,
		AccountSvc: svc,
		Issuer:     issuer,
		Metrics:    metrics,
	})
}

// New returns a new dependency injection dig.Container.
// newConf defaults to core.NewConfig.
func New(newConf ...func() *core.Config) *dig.Container {
	c := dig.New()

	confFunc := core.NewConfig
	if len(newConf) > 0 {
		confFunc = newConf[0]
	}

	must(c.Provide(confFunc))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepository))
	must(c.Provide(newEmailService))
	must(c.Provide(newValidation))
	must(c.Provide(account.NewBcryptHasher, dig.As(new(account.Hasher))))
	must(c.Provide(session.NewIssuer))
	must(c.Provide(account.NewService))
	must(c.Provide(echoapi.NewMetrics))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
