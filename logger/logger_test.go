package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevel_ToCharmlogLevel(t *testing.T) {
	testCases := []struct {
		level    LogLevel
		expected int
	}{
		{DebugLevel, -4},
		{InfoLevel, 0},
		{WarnLevel, 4},
		{ErrorLevel, 8},
		{LogLevel("unknown"), 0},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, int(tc.level.ToCharmlogLevel()), "level %s", tc.level)
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
}

func TestNewLogger_JSONWithFields(t *testing.T) {
	// GIVEN: A JSON logger writing to a buffer
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: InfoLevel, Output: &buf, JSON: true})

	// WHEN: A child logger adds fields
	log.With("run_id", "r1").Info("run finished", "rows", 3)

	// THEN: Message and every field are in the record
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "run finished", rec["msg"])
	assert.Equal(t, "r1", rec["run_id"])
	assert.EqualValues(t, 3, rec["rows"])
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: WarnLevel, Output: &buf})

	log.Info("hidden")
	log.Debug("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.True(t, strings.Contains(buf.String(), "shown"))
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	log.Error("dropped")
	log.With("k", "v").Warn("dropped")
}
