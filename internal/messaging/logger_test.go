package messaging_test

import (
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/serroba/throttle/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := messaging.NewZapLogger(zap.New(core))

	logger.Info("info message", watermill.LogFields{"topic": "a"})
	logger.Debug("debug message", nil)
	logger.Trace("trace message", nil)
	logger.Error("error message", errors.New("boom"), watermill.LogFields{"attempt": 2})
	logger.With(watermill.LogFields{"subscriber": "s1"}).Info("scoped message", nil)

	entries := logs.All()
	require.Len(t, entries, 5)

	assert.Equal(t, "info message", entries[0].Message)
	assert.Equal(t, "watermill", entries[0].LoggerName)
	assert.Equal(t, "a", entries[0].ContextMap()["topic"])

	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)

	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "boom", entries[3].ContextMap()["error"])
	assert.EqualValues(t, 2, entries[3].ContextMap()["attempt"])

	assert.Equal(t, "s1", entries[4].ContextMap()["subscriber"])
}
