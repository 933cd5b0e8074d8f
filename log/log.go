// Package log provides the process-wide leveled logger used across the
// edge node. It wraps logrus with the same printf-style, level-suffixed
// call shape (Infoln/Warnln/Errorln/Debugln) used throughout the codebase.
package log

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
	SILENT
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "debug"
	case INFO:
		return "info"
	case WARNING:
		return "warning"
	case ERROR:
		return "error"
	default:
		return "none"
	}
}

func ParseLevel(s string) LogLevel {
	switch s {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warning", "warn":
		return WARNING
	case "error":
		return ERROR
	default:
		return SILENT
	}
}

var logger = logrus.New()

func init() {
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.PanicLevel) // SILENT by default until SetLevel is called
}

// SetLevel configures the global logger. SILENT disables all output.
func SetLevel(level LogLevel) {
	switch level {
	case DEBUG:
		logger.SetLevel(logrus.DebugLevel)
	case INFO:
		logger.SetLevel(logrus.InfoLevel)
	case WARNING:
		logger.SetLevel(logrus.WarnLevel)
	case ERROR:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.PanicLevel)
	}
}

func Debugln(format string, v ...interface{}) {
	logger.Debugln(fmt.Sprintf(format, v...))
}

func Infoln(format string, v ...interface{}) {
	logger.Infoln(fmt.Sprintf(format, v...))
}

func Warnln(format string, v ...interface{}) {
	logger.Warnln(fmt.Sprintf(format, v...))
}

func Errorln(format string, v ...interface{}) {
	logger.Errorln(fmt.Sprintf(format, v...))
}
