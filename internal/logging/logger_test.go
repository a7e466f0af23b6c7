package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/autobid/auction-api/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONWithDefaultFields(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{
		Server: config.ServerConfig{Environment: "test"},
		Log:    config.LogConfig{Level: "debug", Format: "json"},
	}

	logger := NewWithOutput(cfg, &buf)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	WithUserID(logger, 42).Info("bid placed")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "bid placed", line["msg"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "auction-api", line["service"])
	assert.Equal(t, "test", line["environment"])
	assert.EqualValues(t, 42, line["user_id"])
	assert.Contains(t, line, "ts")
}

func TestNewFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{Log: config.LogConfig{Level: "loud", Format: "text"}}

	logger := NewWithOutput(cfg, &buf)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
