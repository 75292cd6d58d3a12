package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LogLevelDebug, false},
		{"INFO", LogLevelInfo, false},
		{"", LogLevelInfo, false},
		{"warning", LogLevelWarn, false},
		{"error", LogLevelError, false},
		{"loud", LogLevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBeehiveLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf}).
		WithComponent("engine").
		WithInvocation("inv-1").
		WithContext("agent", "supervisor")

	l.Debug("hidden")
	l.Info("engine.invoke.start", "available_agents", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "engine.invoke.start", rec["msg"])
	assert.Equal(t, "engine", rec["component"])
	assert.Equal(t, "inv-1", rec["invocation_id"])
	assert.Equal(t, "supervisor", rec["agent"])
	assert.EqualValues(t, 2, rec["available_agents"])
}

func TestBeehiveLogger_CloneIsolation(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: "text", Output: &buf})
	child := base.WithContext("k", "v")

	base.Warn("base")
	assert.NotContains(t, buf.String(), "k=v")

	buf.Reset()
	child.Error("child")
	assert.Contains(t, buf.String(), "k=v")
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, nil)))
	l.Info("platform.connect.start", "url", "http://127.0.0.1:8333/mcp/sse")
	assert.Contains(t, buf.String(), "platform.connect.start")
	assert.Contains(t, buf.String(), "url=")
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NoOpLogger{}
	assert.NotPanics(t, func() {
		l.Debug("x")
		l.Info("x")
		l.Warn("x")
		l.Error("x")
	})
}
