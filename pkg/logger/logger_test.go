package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestInitLogger_Levels(t *testing.T) {
	log := InitLogger("warn", false)
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
	assert.Same(t, log, GetLogger())

	log = InitLogger("not-a-level", true)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestInitLogger_DevelopmentDefaultsToDebug(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")

	log := InitLogger("", true)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func TestWithService_Fields(t *testing.T) {
	InitLogger("info", false)

	entry := WithService("rotation-optimizer")
	assert.Equal(t, "rotation-optimizer", entry.Data["service"])
	assert.Same(t, GetLogger(), entry.Logger)
}
