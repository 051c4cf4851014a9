package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return &Logger{
		zapLogger: zap.New(core),
		zapLevel:  zap.NewAtomicLevelAt(toZapLevel(level)),
	}, logs
}

func TestLevelFiltering(t *testing.T) {
	l, logs := observed(LevelWarn)
	l.Info("dropped")
	l.Warn("kept", String("property", "Scale"), Err(errors.New("boom")))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "kept", entry.Message)
	assert.Equal(t, "Scale", entry.ContextMap()["property"])
}

func TestWithCarriesFields(t *testing.T) {
	l, logs := observed(LevelDebug)
	l.With(String("class", "Entity")).Debug("decoded", Int("properties", 2))

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "Entity", ctx["class"])
	assert.Equal(t, int64(2), ctx["properties"])
}

func TestSilentLevel(t *testing.T) {
	l, logs := observed(LevelDebug)
	l.SetLevel(LevelSilent)
	l.Error("nothing")
	assert.Equal(t, 0, logs.Len())
	assert.Equal(t, LevelSilent, l.GetLevel())
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"debug": LevelDebug, "": LevelInfo, "WARN": LevelWarn, "error": LevelError, "off": LevelSilent}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
