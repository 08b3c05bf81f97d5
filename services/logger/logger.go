package logsvc

import (
	"fmt"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/mdii/portal/core"
	"github.com/mdii/portal/core/session"
)

const redacted = "[REDACTED]"

// Logger writes structured logs with zap and reports warnings and errors to Rollbar.
type Logger struct {
	sugar  *zap.SugaredLogger
	redact bool
}

var _ core.Logger = (*Logger)(nil)

// New builds the logger: a development console logger in debug mode, production JSON otherwise.
// Rollbar is only enabled outside debug and test mode, when a token is configured.
func New(conf *core.Config) (*Logger, error) {
	var cfg zap.Config
	if conf.Debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(!conf.Debug && !conf.TestMode && conf.RollbarToken != "")

	return &Logger{sugar: zl.Sugar(), redact: !conf.Debug}, nil
}

// NewWithZap wraps an existing zap logger, with Rollbar left as configured.
func NewWithZap(zl *zap.Logger, redact bool) *Logger {
	return &Logger{sugar: zl.Sugar(), redact: redact}
}

func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

type prepared struct {
	kvs    []interface{}
	extras map[string]interface{}
	err    error
	sess   *session.Session
}

// prepare splits args into zap key/values and Rollbar extras.
// expected fmt: key, value pairs | error | session.Session
func (l *Logger) prepare(args []interface{}) prepared {
	p := prepared{kvs: make([]interface{}, 0, len(args)), extras: make(map[string]interface{})}
	for i := 0; i < len(args); i++ {
		switch v := args[i].(type) {
		case session.Session:
			if p.sess == nil { // only set one session
				sess := v
				p.sess = &sess
				p.kvs = append(p.kvs, "viewer_email", l.sanitize("viewer_email", v.Email), "viewer_admin", v.IsAdmin)
			}
			continue
		case error:
			if p.err == nil {
				p.err = v
			}
			p.kvs = append(p.kvs, "error", v)
			continue
		}
		if i == len(args)-1 {
			p.kvs = append(p.kvs, "extra", args[i])
			break
		}
		key := fmt.Sprint(args[i])
		val := args[i+1]
		if err, ok := val.(error); ok && p.err == nil {
			p.err = err
		}
		val = l.sanitize(key, val)
		p.kvs = append(p.kvs, key, val)
		p.extras[key] = val
		i++
	}
	return p
}

func (l *Logger) sanitize(key string, val interface{}) interface{} {
	if !l.redact {
		return val
	}
	key = strings.ToLower(key)
	for _, s := range []string{"email", "token", "authorization", "secret", "password"} {
		if strings.Contains(key, s) {
			return redacted
		}
	}
	return val
}

func (l *Logger) report(send func(...interface{}), msg string, p prepared) {
	if p.sess != nil {
		rollbar.SetPerson(p.sess.Email, p.sess.Role(), p.sess.Email)
	} else {
		rollbar.ClearPerson()
	}
	args := []interface{}{msg}
	if p.err != nil {
		args = append(args, p.err)
	}
	if len(p.extras) > 0 {
		args = append(args, p.extras)
	}
	send(args...)
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.sugar.Debugw(msg, l.prepare(args).kvs...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.sugar.Infow(msg, l.prepare(args).kvs...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	p := l.prepare(args)
	l.report(rollbar.Warning, msg, p)
	l.sugar.Warnw(msg, p.kvs...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	p := l.prepare(args)
	l.report(rollbar.Error, msg, p)
	l.sugar.Errorw(msg, p.kvs...)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	p := l.prepare(args)
	l.report(rollbar.Critical, msg, p)
	rollbar.Wait()
	l.sugar.Fatalw(msg, p.kvs...)
}
