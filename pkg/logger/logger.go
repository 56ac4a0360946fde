package logger

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/soloking1412/Unicorn-Launchpad/pkg/config"
)

// The standard logger is shared so that packages logging through logrus
// directly get the same level and formatter.
var logger = logrus.StandardLogger()

func Init(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	logger.SetOutput(os.Stdout)

	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return nil
}

func NewSublogger(tag string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{"module": "unicorn." + tag})
}
