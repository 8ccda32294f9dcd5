package wplog

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerTextOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: InfoLevel, Format: TextFormat, Output: &buf, Component: "core"})

	l.Info("pool started")

	out := buf.String()
	assert.Contains(t, out, "[INFO]")
	assert.Contains(t, out, "pool started")
	assert.Contains(t, out, "component=core")
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: WarnLevel, Output: &buf})

	l.Debug("dropped")
	l.Info("dropped too")
	assert.Empty(t, buf.String())

	l.SetLevel(DebugLevel)
	l.Debug("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: InfoLevel, Format: JSONFormat, Output: &buf})

	l.WithField("pool_id", "abc").Error("overflow")

	var e Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.Equal(t, "ERROR", e.Level)
	assert.Equal(t, "overflow", e.Message)
	assert.Equal(t, "abc", e.Fields["pool_id"])
}

func TestFieldLoggerMergesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: InfoLevel, Format: JSONFormat, Output: &buf})

	l.WithField("a", 1).WithField("b", 2).Info("both")

	var e Entry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &e))
	assert.EqualValues(t, 1, e.Fields["a"])
	assert.EqualValues(t, 2, e.Fields["b"])
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Info("nothing happens")
	l.SetLevel(DebugLevel)
	l.WithComponent("x").Warn("still nothing")
	l.WithField("k", "v").Error("nor this")
}

func TestDiscardDropsEverything(t *testing.T) {
	l := Discard()
	l.Error("never seen")
	l.WithField("k", "v").Error("never seen either")
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "INFO", InfoLevel.String())
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "ERROR", ErrorLevel.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}
