package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	log  *logrus.Logger
	once sync.Once
)

// Init configures the global logger. Safe to call once at startup;
// subsequent calls are no-ops.
func Init(level string) {
	once.Do(func() {
		log = logrus.New()
		log.SetOutput(os.Stdout)
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})

		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			lvl = logrus.InfoLevel
		}
		log.SetLevel(lvl)
	})
}

// GetLogger returns the global logger, initializing it with defaults if
// Init has not been called (keeps library packages usable from tests).
func GetLogger() *logrus.Logger {
	if log == nil {
		Init("info")
	}
	return log
}
