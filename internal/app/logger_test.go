package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", AppEnv: "production"})
	logger.Info("order submitted", "purchase_id", 1000)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "order submitted", line["msg"])
	require.Equal(t, "marketbasket", line["service"])
	require.EqualValues(t, 1000, line["purchase_id"])
}

func TestNewLoggerDebugOutsideProduction(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "pretty", AppEnv: "development"})
	logger.Debug("cache miss")
	require.Contains(t, buf.String(), "cache miss")
}
