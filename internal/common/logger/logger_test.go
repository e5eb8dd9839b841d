package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesServiceAndAction(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "debug", JSON: true, Output: &buf})
	t.Cleanup(func() { Init(Options{Level: "info", JSON: true}) })

	New("order-service").Error("status_update_failed", errors.New("boom"), map[string]any{"order_id": 42})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "order-service", entry["service"])
	assert.Equal(t, "status_update_failed", entry["action"])
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "boom", entry["error"])
	assert.EqualValues(t, 42, entry["order_id"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "warn", JSON: true, Output: &buf})
	t.Cleanup(func() { Init(Options{Level: "info", JSON: true}) })

	New("x").Info("ignored", nil)
	assert.Zero(t, buf.Len())
}
