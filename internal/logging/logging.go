// Package logging configures the process-wide structured logger and hands
// out component-scoped entries, the way the teacher's pkg/log is set up
// once at startup and then referenced by short-lived component loggers.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once sync.Once
	base = logrus.New()
)

// Level mirrors the subset of logrus levels codequest's settings file is
// allowed to name.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Configure sets the base logger's level and output. It is safe to call
// more than once (later calls win); tests typically call it with io.Discard.
func Configure(level Level, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	base.SetOutput(out)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	base.SetLevel(toLogrusLevel(level))
}

func toLogrusLevel(l Level) logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func ensureDefault() {
	once.Do(func() {
		Configure(LevelInfo, os.Stderr)
	})
}

// For returns a logger entry scoped to component, e.g. logging.For("engine").
func For(component string) *logrus.Entry {
	ensureDefault()
	return base.WithField("component", component)
}
