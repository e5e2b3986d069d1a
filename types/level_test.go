package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelOrdering(t *testing.T) {
	assert.True(t, LevelDebug < LevelInfo)
	assert.True(t, LevelInfo < LevelWarning)
	assert.True(t, LevelWarning < LevelError)
	assert.True(t, LevelError < LevelCritical)
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarning, "WARNING"},
		{LevelError, "ERROR"},
		{LevelCritical, "CRITICAL"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}

	assert.Equal(t, "LogLevel(42)", LogLevel(42).String())
}

func TestParseLogLevel(t *testing.T) {
	for _, name := range []string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"} {
		level, err := ParseLogLevel(name)
		require.NoError(t, err)
		assert.Equal(t, name, level.String())
	}

	_, err := ParseLogLevel("TRACE")
	assert.Error(t, err)

	_, err = ParseLogLevel("debug")
	assert.Error(t, err, "level names are case sensitive")
}

func TestLogLevelJSONRoundTrip(t *testing.T) {
	levels := []LogLevel{LevelDebug, LevelInfo, LevelWarning, LevelError, LevelCritical}

	data, err := json.Marshal(levels)
	require.NoError(t, err)
	assert.JSONEq(t, `["DEBUG","INFO","WARNING","ERROR","CRITICAL"]`, string(data))

	var decoded []LogLevel
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, levels, decoded)
}

func TestLogLevelUnmarshalUnknown(t *testing.T) {
	var level LogLevel
	err := json.Unmarshal([]byte(`"VERBOSE"`), &level)
	assert.Error(t, err)
}

func TestLogLevelMarshalInvalid(t *testing.T) {
	_, err := json.Marshal(LogLevel(99))
	assert.Error(t, err)
}
