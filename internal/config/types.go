package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"speechspy/internal/settings"
)

// Config is the process configuration file.
//
// Unknown fields are rejected, so typos surface on load and on every reload.
type Config struct {
	Logging LoggingConfig  `json:"logging"`
	Storage *StorageConfig `json:"storage,omitempty"`
	IPC     IPCConfig      `json:"ipc"`
	Debug   DebugConfig    `json:"debug,omitempty"`
	Hotkey  HotkeyConfig   `json:"hotkey"`
	Audit   AuditConfig    `json:"audit"`
	Sender  SenderConfig   `json:"sender"`

	// Broadcast seeds the settings store. Omitted keys leave stored values alone.
	Broadcast *BroadcastConfig `json:"broadcast,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls persistence of settings and the audit trail.
// A nil section keeps settings in memory only.
//
//	"storage": { "driver": "sqlite", "path": "./speechspy.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// IPCConfig controls the control socket. Socket "-" disables it.
type IPCConfig struct {
	Socket string `json:"socket,omitempty"`
}

// DisabledSocket turns the control socket off.
const DisabledSocket = "-"

func (c IPCConfig) Disabled() bool { return strings.TrimSpace(c.Socket) == DisabledSocket }

// DebugConfig controls the optional HTTP server exposing /metrics, /healthz and pprof.
//
// Prefer a loopback address. A non-loopback bind requires a token or allow_insecure.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`   // default: "127.0.0.1:6061"
	Prefix        string `json:"prefix,omitempty"` // default: "/debug/pprof/"
	Token         string `json:"token,omitempty"`  // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	ReadTimeout   string `json:"read_timeout,omitempty"`
	IdleTimeout   string `json:"idle_timeout,omitempty"`
}

type HotkeyConfig struct {
	Enabled bool   `json:"enabled"`
	Combo   string `json:"combo,omitempty"` // default: "ctrl+alt+b"
}

// AuditConfig controls the state-change audit trail. Needs storage.
type AuditConfig struct {
	Enabled       bool   `json:"enabled"`
	PruneSchedule string `json:"prune_schedule,omitempty"` // cron spec, default "@daily"
	Retention     string `json:"retention,omitempty"`      // Go duration, default "720h"
}

// SenderConfig selects how the multicast socket is opened. Changes need a restart.
type SenderConfig struct {
	Interface string `json:"interface,omitempty"`
	Loopback  *bool  `json:"loopback,omitempty"` // default true
}

func (c SenderConfig) LoopbackEnabled() bool { return c.Loopback == nil || *c.Loopback }

type BroadcastConfig struct {
	Group           *Value `json:"group,omitempty"`
	Port            *Value `json:"port,omitempty"`
	TTL             *Value `json:"ttl,omitempty"`
	Separator       *Value `json:"separator,omitempty"`
	CustomSeparator *Value `json:"custom_separator,omitempty"`
}

// Settings returns the present values keyed by settings key.
func (b *BroadcastConfig) Settings() map[string]string {
	out := map[string]string{}
	if b == nil {
		return out
	}
	for key, v := range map[string]*Value{
		settings.KeyGroup:           b.Group,
		settings.KeyPort:            b.Port,
		settings.KeyTTL:             b.TTL,
		settings.KeySeparator:       b.Separator,
		settings.KeyCustomSeparator: b.CustomSeparator,
	} {
		if v != nil {
			out[key] = string(*v)
		}
	}
	return out
}

// Value is a settings value written as a string or a number.
type Value string

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Value(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*v = Value(n.String())
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) { return json.Marshal(string(v)) }
