package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/learnlink/backend/core"
	"github.com/learnlink/backend/core/account"
)

// RollbarLogger reports entries to rollbar and echoes them to std.
// An account.Account argument is attached as the rollbar person, never printed in full.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// personName is the handle shown in rollbar: the uniqueId, or the role for accounts without one.
func personName(acc account.Account) string {
	if acc.Identifier != "" {
		return acc.Identifier
	}
	return acc.Role
}

// prepare turns args into rollbar arguments: msg first, the acting Account's role merged
// into the extras map and the Account itself set as the person.
// expected fmt: msg | error, map[string]interface{}, account.Account
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var (
		acc    *account.Account
		extras map[string]interface{}
	)
	newArgs := make([]interface{}, 0, len(args)+2)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case account.Account:
			if acc == nil { // only the first Account acts
				acc = &a
			}
		case map[string]interface{}:
			extras = a
		default:
			newArgs = append(newArgs, arg)
		}
	}

	if acc == nil {
		rollbar.ClearPerson()
		if extras != nil {
			newArgs = append(newArgs, extras)
		}
		return newArgs
	}

	rollbar.SetPerson(acc.ID, personName(*acc), acc.Email)
	merged := make(map[string]interface{}, len(extras)+1)
	for k, v := range extras {
		merged[k] = v
	}
	merged["role"] = acc.Role
	return append(newArgs, merged)
}

func (l RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("[%s] %s\n", level, msg)
	for _, arg := range args {
		if acc, ok := arg.(account.Account); ok {
			l.std.Printf("account: %s %s <%s> (%s)\n", acc.ID, personName(acc), acc.Email, acc.Role)
			continue
		}
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) log(level, msg string, args []interface{}) {
	rollbar.Log(level, l.prepare(msg, args)...)
	l.print(level, msg, args)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.log(rollbar.DEBUG, msg, args) }
func (l RollbarLogger) Info(msg string, args ...interface{})  { l.log(rollbar.INFO, msg, args) }
func (l RollbarLogger) Warn(msg string, args ...interface{})  { l.log(rollbar.WARN, msg, args) }
func (l RollbarLogger) Error(msg string, args ...interface{}) { l.log(rollbar.ERR, msg, args) }

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
