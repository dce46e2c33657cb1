package log

import (
	"os"
	"path/filepath"

	"github.com/gisops/canload/conf"
	"github.com/sirupsen/logrus"
)

var (
	Export  logrus.FieldLogger
	Extract logrus.FieldLogger
)

func init() {
	SetupLoggers()
}

// SetupLoggers (re)builds the package loggers from the current configuration.
// Called once at init; tests call it again after changing the log paths.
func SetupLoggers() {
	Export = Logger(logrus.New(), conf.GetEnv("CANLOAD_ERROR_LOG"),
		"export", conf.GetEnv("ENVIRONMENT"))
	Extract = Logger(logrus.New(), conf.GetEnv("CANLOAD_ERROR_LOG"),
		"extract", conf.GetEnv("ENVIRONMENT"))
}

func Logger(logger *logrus.Logger, outputFile string,
	application, environment string) logrus.FieldLogger {

	logger.SetFormatter(&logrus.JSONFormatter{})

	if outputFile != "" {
		if file, err := os.OpenFile(filepath.Clean(outputFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640); err == nil {
			logger.SetOutput(file)
		} else {
			logger.Infof("Failed to open output file %s. Will use stderr. %s",
				outputFile, err.Error())
		}
	}

	return logger.WithFields(logrus.Fields{
		"application": application,
		"environment": environment})
}
