package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, GetLevel("debug"))
	assert.Equal(t, logrus.InfoLevel, GetLevel("INFO"))
	assert.Equal(t, logrus.WarnLevel, GetLevel("warn"))
	assert.Equal(t, logrus.ErrorLevel, GetLevel("error"))
	assert.Equal(t, logrus.FatalLevel, GetLevel("fatal"))
	assert.Equal(t, logrus.TraceLevel, GetLevel("trace"))
	assert.Equal(t, logrus.WarnLevel, GetLevel(" warning "))
	assert.Equal(t, logrus.TraceLevel, GetLevel("whatever"))
}

func TestSetup_SentryWithoutDSN(t *testing.T) {
	defer logrus.SetOutput(os.Stderr)

	closeLogs := Setup(LoggerSetupParams{
		LogLevel:      "debug",
		SentryEnabled: true,
	})
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	// sentry was never initialized, closing must not block on a flush
	closeLogs()
}

func TestSetup_LogFile(t *testing.T) {
	defer logrus.SetOutput(os.Stderr)

	logPath := filepath.Join(t.TempDir(), "panel")
	closeLogs := Setup(LoggerSetupParams{
		LogFileName: logPath,
		LogLevel:    "info",
	})
	defer closeLogs()
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())

	logrus.Infoln("hello from the panel")
	logrus.Debugln("not written")

	logBytes, err := os.ReadFile(logPath + ".log")
	require.NoError(t, err)
	assert.Contains(t, string(logBytes), "hello from the panel")
	assert.NotContains(t, string(logBytes), "not written")
}

func TestSentryHook(t *testing.T) {
	hook := NewSentryHook([]logrus.Level{logrus.ErrorLevel})
	assert.Equal(t, []logrus.Level{logrus.ErrorLevel}, hook.Levels())

	// no client bound, must not fail
	entry := logrus.NewEntry(logrus.StandardLogger()).WithField("path", "/editor")
	entry.Message = "something failed"
	entry.Level = logrus.ErrorLevel
	assert.NoError(t, hook.Fire(entry))

	assert.Equal(t, sentry.LevelFatal, sentryLevel(logrus.PanicLevel))
	assert.Equal(t, sentry.LevelError, sentryLevel(logrus.ErrorLevel))
	assert.Equal(t, sentry.LevelWarning, sentryLevel(logrus.WarnLevel))
	assert.Equal(t, sentry.LevelDebug, sentryLevel(logrus.TraceLevel))
}
