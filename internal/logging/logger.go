package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/2beens/blogpanel/pkg"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logFileMaxSizeMB   = 50
	logFileMaxBackups  = 10
	sentryFlushTimeout = 5 * time.Second
)

type LoggerSetupParams struct {
	LogFileName      string
	LogToStdout      bool
	LogLevel         string
	LogFormatJSON    bool
	Environment      string
	SentryEnabled    bool
	SentryDSN        string
	SentryServerName string
}

// Setup configures the global logrus logger. The returned func flushes sentry
// and closes the log file; call it last on shutdown.
func Setup(params LoggerSetupParams) func() {
	if params.LogFormatJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	logrus.SetLevel(GetLevel(params.LogLevel))

	sentryActive := setupSentry(params)

	output, logFile := logOutput(params)
	logrus.SetOutput(output)

	return func() {
		if sentryActive && !sentry.Flush(sentryFlushTimeout) {
			logrus.Warnln("sentry flush timed out")
		}
		if logFile != nil {
			_ = logFile.Close()
		}
	}
}

func setupSentry(params LoggerSetupParams) bool {
	if !params.SentryEnabled {
		return false
	}
	if params.SentryDSN == "" {
		logrus.Warnln("sentry enabled, but the DSN is empty, use SENTRY_DSN to set it")
		return false
	}

	err := sentry.Init(sentry.ClientOptions{
		Environment:      params.Environment,
		Dsn:              params.SentryDSN,
		TracesSampleRate: 1.0,
		ServerName:       params.SentryServerName,
	})
	if err != nil {
		logrus.Errorf("sentry.Init: %s", err)
		return false
	}

	logrus.AddHook(NewSentryHook([]logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
	}))
	logrus.Infoln("sentry set up successfully")
	return true
}

// logOutput picks stdout, a rotated log file or both; the file is returned
// separately so it can be closed
func logOutput(params LoggerSetupParams) (io.Writer, *lumberjack.Logger) {
	if params.LogFileName == "" {
		logrus.Println("writing logs only to STDOUT")
		return os.Stdout, nil
	}

	fileName := params.LogFileName
	if !strings.HasSuffix(fileName, ".log") {
		fileName += ".log"
	}

	logFile := &lumberjack.Logger{
		Filename:   fileName,
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileMaxBackups,
		LocalTime:  false, // UTC
		Compress:   true,
	}

	if params.LogToStdout {
		logrus.Println("writing logs to file and STDOUT")
		return pkg.NewCombinedWriter(os.Stdout, logFile), logFile
	}
	return logFile, logFile
}

// GetLevel parses a config log level, anything unknown means trace
func GetLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.TraceLevel
	}
	return parsed
}
