package logsvc

import (
	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/qsnap/core"
	"github.com/trezcool/qsnap/core/account"
)

// rollbarReporter forwards warnings and errors to Rollbar.
type rollbarReporter struct{}

func newRollbarReporter(conf *core.Config) rollbarReporter {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return rollbarReporter{}
}

// prepare builds the rollbar args: msg | error, map[string]interface{}. An account.Account sets the person.
func (rollbarReporter) prepare(msg string, args []interface{}) []interface{} {
	var accSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case account.Account:
			if !accSet { // only set one Account
				rollbar.SetPerson(a.ID, a.ID, "")
				accSet = true
			}
		case error, map[string]interface{}:
			newArgs = append(newArgs, a)
		}
	}
	if !accSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (r rollbarReporter) warn(msg string, args []interface{}) {
	rollbar.Warning(r.prepare(msg, args)...)
}

func (r rollbarReporter) error(msg string, args []interface{}) {
	rollbar.Error(r.prepare(msg, args)...)
}

func (r rollbarReporter) critical(msg string, args []interface{}) {
	rollbar.Critical(r.prepare(msg, args)...)
	rollbar.Wait()
}

func (rollbarReporter) close() {
	rollbar.Wait()
}
