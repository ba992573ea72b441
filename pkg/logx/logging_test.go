package logx

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestZeroLoggerIsNoop(t *testing.T) {
	var l Logger
	require.True(t, l.IsZero())
	l.Info("nothing happens", String("k", "v"))
	require.False(t, Nop().IsZero())
}

func TestNewWriterEmitsJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "debug").With(String("comp", "test"))

	l.Error("send failed", Int("port", 5004), Bool("ok", false))

	var m map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m))
	require.Equal(t, "error", m["level"])
	require.Equal(t, "send failed", m["message"])
	require.Equal(t, "test", m["comp"])
	require.EqualValues(t, 5004, m["port"])
	require.Contains(t, m["caller"], "logging_test.go")
}

func TestNewWriterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "warn")
	l.Info("hidden")
	l.Debug("hidden")
	require.Empty(t, buf.String())
	require.False(t, l.Enabled(LevelInfo))
	require.True(t, l.Enabled(LevelError))
}

func TestServiceApplyWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "speechspy.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	log.Info("unit-test-log", String("component", "logging"))
	require.NoError(t, svc.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), `"message":"unit-test-log"`)
	require.Contains(t, string(b), `"component":"logging"`)
}

func TestValidLevel(t *testing.T) {
	for _, lvl := range []string{"", "debug", "INFO", "warning", "error", "trace"} {
		require.True(t, ValidLevel(lvl), lvl)
	}
	require.False(t, ValidLevel("loud"))
}

func TestThrottleCountsSuppressed(t *testing.T) {
	th := NewThrottle(time.Hour, 1)

	ok, suppressed := th.Allow()
	require.True(t, ok)
	require.Zero(t, suppressed)

	for i := 0; i < 3; i++ {
		ok, _ = th.Allow()
		require.False(t, ok)
	}
	require.EqualValues(t, 3, th.suppressed.Load())
}

func TestNilThrottleAlwaysAllows(t *testing.T) {
	var th *Throttle
	ok, _ := th.Allow()
	require.True(t, ok)
}
