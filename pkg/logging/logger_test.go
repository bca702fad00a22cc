package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offlinefirst/eyetrace/pkg/config"
)

func TestJSONLoggerWritesUTCTimestamps(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Debug("stream opened", "kind", "gaze")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "stream opened", record["msg"])
	assert.Equal(t, "gaze", record["kind"])
	ts, ok := record["time"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(ts, "Z"), ts)
}

func TestLevelFiltersLowerRecords(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "warning", Format: "text"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "trace"}, nil)
	assert.Error(t, err)
	_, err = New(config.LoggingConfig{Format: "xml"}, nil)
	assert.Error(t, err)
}

func TestConsoleFormatWritesText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Format: "console"}, &buf)
	require.NoError(t, err)

	logger.Debug("hidden at default level")
	logger.Info("session started", "prefix", "20240314092653")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=\"session started\" prefix=20240314092653")
}
