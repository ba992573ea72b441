package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultHotkeyCombo   = "ctrl+alt+b"
	DefaultDebugAddr     = "127.0.0.1:6061"
	DefaultDebugPrefix   = "/debug/pprof/"
	DefaultPruneSchedule = "@daily"
	DefaultRetention     = 30 * 24 * time.Hour
	socketName           = "speechspy.sock"
)

// RuntimeSocketPath is the default control socket location:
// $XDG_RUNTIME_DIR/speechspy.sock, or the temp dir when unset.
func RuntimeSocketPath() string {
	dir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, socketName)
}

// SocketPath resolves the configured socket, applying the default.
// It returns "" when the socket is disabled.
func (c IPCConfig) SocketPath() string {
	if c.Disabled() {
		return ""
	}
	if s := strings.TrimSpace(c.Socket); s != "" {
		return s
	}
	return RuntimeSocketPath()
}

func (c HotkeyConfig) ComboOrDefault() string {
	if s := strings.TrimSpace(c.Combo); s != "" {
		return s
	}
	return DefaultHotkeyCombo
}

func (c AuditConfig) ScheduleOrDefault() string {
	if s := strings.TrimSpace(c.PruneSchedule); s != "" {
		return s
	}
	return DefaultPruneSchedule
}

func (c AuditConfig) RetentionOrDefault() time.Duration {
	d, err := ParseDurationOrDefault("audit.retention", c.Retention, DefaultRetention)
	if err != nil {
		return DefaultRetention
	}
	return d
}
