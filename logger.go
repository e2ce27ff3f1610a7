package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logrus maps the -log levels onto logrus. None still lets panics through.
func (l LogLevel) Logrus() logrus.Level {
	switch {
	case l <= LogLevelNone:
		return logrus.PanicLevel
	case l == LogLevelError:
		return logrus.ErrorLevel
	case l == LogLevelWarn:
		return logrus.WarnLevel
	case l == LogLevelInfo:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}

func NewLogger(level LogLevel) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(level.Logrus())
	return log
}
