package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

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

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologAdapter(&buf, "debug", false)

	logger.Info("unit of work finished",
		String("status", "COMPLETED"),
		Int("succeeded", 3),
		Any("bytes", int64(42)),
		Any("retried", true),
		Duration("duration", 1500*time.Millisecond),
		Err(errors.New("boom")),
	)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "unit of work finished", line["message"])
	assert.Equal(t, "COMPLETED", line["status"])
	assert.Equal(t, 3.0, line["succeeded"])
	assert.Equal(t, 42.0, line["bytes"])
	assert.Equal(t, true, line["retried"])
	assert.Equal(t, "boom", line["error"])
	assert.Contains(t, line, "time")
}

func TestZerologAdapter_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologAdapter(&buf, "warn", false)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	logger.Error("shown too")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "error", lines[1]["level"])
}

func TestZerologAdapter_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologAdapter(&buf, "verbose", false)

	logger.Debug("hidden")
	logger.Info("shown")

	assert.Len(t, decodeLines(t, &buf), 1)
}

func TestZerologAdapter_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologAdapter(&buf, "info", false).With(UnitOfWorkID("limits-1"))

	logger.Info("started")
	logger.Info("finished")

	for _, line := range decodeLines(t, &buf) {
		assert.Equal(t, "limits-1", line["unit_of_work_id"])
	}
}

func TestZerologAdapter_Pretty(t *testing.T) {
	var buf bytes.Buffer
	NewZerologAdapter(&buf, "info", true).Info("hello", String("k", "v"))

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "k=v")
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NewNoopLogger()
	l.Info("ignored", String("k", "v"))
	assert.NotNil(t, l.With(String("a", "b")))
}
