package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	lg := NewWithWriter("order-service", &buf)

	lg.Info("order_completed", map[string]any{"order_id": "ORD-1"})
	lg.Error("publish_failed", errors.New("broker down"), map[string]any{"locker_id": "locker-001"})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "order-service", lines[0]["service"])
	assert.Equal(t, "order_completed", lines[0]["action"])
	assert.Equal(t, "order_completed", lines[0]["message"])
	assert.Equal(t, "ORD-1", lines[0]["order_id"])
	assert.Contains(t, lines[0], "timestamp")
	assert.Contains(t, lines[0], "hostname")

	assert.Equal(t, "ERROR", lines[1]["level"])
	errField, ok := lines[1]["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "broker down", errField["msg"])
	assert.Equal(t, "*errors.errorString", errField["type"])
}

func TestDebugIsGated(t *testing.T) {
	var buf bytes.Buffer
	lg := NewWithWriter("cart", &buf)

	SetDebug(false)
	lg.Debug("cart_saved", nil)
	assert.Empty(t, buf.String())

	SetDebug(true)
	defer SetDebug(false)
	lg.Debug("cart_saved", nil)
	assert.Contains(t, buf.String(), `"level":"DEBUG"`)
}

func TestWithAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("shop-service", &buf).With("cart").Warn("storage_reload", nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "cart", lines[0]["component"])
	assert.Equal(t, "WARN", lines[0]["level"])
}
