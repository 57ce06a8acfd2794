// Package logrus adapts github.com/sirupsen/logrus to reccache.Logger.
package logrus

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/reccache"
)

var _ reccache.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New returns a JSON logger on stderr at the given level.
func New(level string) (LogrusLogger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return LogrusLogger{}, fmt.Errorf("logrus level: %w", err)
	}
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(lvl)
	return LogrusLogger{E: logrus.NewEntry(l)}, nil
}

func (l LogrusLogger) Debug(msg string, f reccache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Debug(msg)
}
func (l LogrusLogger) Info(msg string, f reccache.Fields) { l.E.WithFields(logrus.Fields(f)).Info(msg) }
func (l LogrusLogger) Warn(msg string, f reccache.Fields) { l.E.WithFields(logrus.Fields(f)).Warn(msg) }
func (l LogrusLogger) Error(msg string, f reccache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Error(msg)
}
