package logger

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

func Init(level, format string) error {
	log = logrus.New()

	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	switch format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	log.SetOutput(os.Stdout)

	return nil
}

func Debug(args ...any) {
	if log != nil {
		log.Debug(args...)
	}
}

func Debugf(format string, args ...any) {
	if log != nil {
		log.Debugf(format, args...)
	}
}

func Info(args ...any) {
	if log != nil {
		log.Info(args...)
	}
}

func Infof(format string, args ...any) {
	if log != nil {
		log.Infof(format, args...)
	}
}

func Warn(args ...any) {
	if log != nil {
		log.Warn(args...)
	}
}

func Warnf(format string, args ...any) {
	if log != nil {
		log.Warnf(format, args...)
	}
}

func Error(args ...any) {
	if log != nil {
		log.Error(args...)
	}
}

func Errorf(format string, args ...any) {
	if log != nil {
		log.Errorf(format, args...)
	} else {
		fmt.Printf("ERROR: "+format+"\n", args...)
	}
}

func Fatalf(format string, args ...any) {
	if log != nil {
		log.Fatalf(format, args...)
	} else {
		fmt.Printf("FATAL: "+format+"\n", args...)
		os.Exit(1)
	}
}
