// Package logsvc implements core.Logger on zap, reporting warnings and errors to Rollbar.
package logsvc

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trezcool/qsnap/core"
	"github.com/trezcool/qsnap/core/account"
)

type Logger struct {
	zap     *zap.Logger
	rollbar rollbarReporter
}

var _ core.Logger = (*Logger)(nil)

func NewLogger(conf *core.Config) (*Logger, error) {
	var zapConf zap.Config
	if conf.Env == "PROD" {
		zapConf = zap.NewProductionConfig()
	} else {
		zapConf = zap.NewDevelopmentConfig()
		zapConf.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapConf.OutputPaths = []string{"stdout"}

	if conf.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(conf.LogLevel)
		if err != nil {
			return nil, errors.Wrap(err, "parsing log level")
		}
		zapConf.Level = level
	}

	zl, err := zapConf.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, errors.Wrap(err, "building logger")
	}
	zl = zl.With(zap.String("app", conf.AppName), zap.String("build", conf.Build))

	return &Logger{zap: zl, rollbar: newRollbarReporter(conf)}, nil
}

// Zap exposes the underlying logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// Close flushes both outputs.
func (l *Logger) Close() {
	_ = l.zap.Sync()
	l.rollbar.close()
}

// fields converts the logger args: error, map[string]interface{}, account.Account, anything else.
func fields(args []interface{}) []zap.Field {
	fs := make([]zap.Field, 0, len(args))
	for i, arg := range args {
		switch a := arg.(type) {
		case error:
			fs = append(fs, zap.Error(a))
		case map[string]interface{}:
			for k, v := range a {
				fs = append(fs, zap.Any(k, v))
			}
		case account.Account:
			fs = append(fs, zap.String("account", a.ID), zap.String("role", a.Role))
		default:
			fs = append(fs, zap.Any(fmt.Sprintf("arg%d", i), a))
		}
	}
	return fs
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.zap.Debug(msg, fields(args)...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.zap.Info(msg, fields(args)...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.rollbar.warn(msg, args)
	l.zap.Warn(msg, fields(args)...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.rollbar.error(msg, args)
	l.zap.Error(msg, fields(args)...)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.rollbar.critical(msg, args)
	l.zap.Fatal(msg, fields(args)...)
}
