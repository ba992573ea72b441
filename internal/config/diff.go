package config

import (
	"reflect"
	"sort"
	"strings"

	logx "speechspy/pkg/logx"
)

// SummarizeConfigChange returns the changed section names and safe
// structured attrs for logging. Tokens are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		driver := ""
		if newCfg.Storage != nil {
			driver = strings.TrimSpace(newCfg.Storage.Driver)
		}
		attrs = append(attrs, logx.String("storage.driver", driver))
	}

	if oldCfg.IPC != newCfg.IPC {
		changed = append(changed, "ipc")
		attrs = append(attrs, logx.Bool("ipc.disabled", newCfg.IPC.Disabled()))
	}

	// token compared by presence only
	oldDbg, newDbg := oldCfg.Debug, newCfg.Debug
	oldTok, newTok := strings.TrimSpace(oldDbg.Token) != "", strings.TrimSpace(newDbg.Token) != ""
	oldDbg.Token, newDbg.Token = "", ""
	if oldDbg != newDbg || oldTok != newTok {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", newDbg.Enabled),
			logx.String("debug.addr", strings.TrimSpace(newDbg.Addr)),
			logx.Bool("debug.token_set", newTok),
		)
	}

	if oldCfg.Hotkey != newCfg.Hotkey {
		changed = append(changed, "hotkey")
		attrs = append(attrs,
			logx.Bool("hotkey.enabled", newCfg.Hotkey.Enabled),
			logx.String("hotkey.combo", newCfg.Hotkey.ComboOrDefault()),
		)
	}

	if oldCfg.Audit != newCfg.Audit {
		changed = append(changed, "audit")
		attrs = append(attrs,
			logx.Bool("audit.enabled", newCfg.Audit.Enabled),
			logx.String("audit.prune_schedule", newCfg.Audit.ScheduleOrDefault()),
			logx.Duration("audit.retention", newCfg.Audit.RetentionOrDefault()),
		)
	}

	if !reflect.DeepEqual(oldCfg.Sender, newCfg.Sender) {
		changed = append(changed, "sender")
		attrs = append(attrs,
			logx.String("sender.interface", newCfg.Sender.Interface),
			logx.Bool("sender.loopback", newCfg.Sender.LoopbackEnabled()),
		)
	}

	if !reflect.DeepEqual(oldCfg.Broadcast.Settings(), newCfg.Broadcast.Settings()) {
		changed = append(changed, "broadcast")
		keys := make([]string, 0, 5)
		for k := range newCfg.Broadcast.Settings() {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		attrs = append(attrs, logx.String("broadcast.keys", strings.Join(keys, ",")))
	}

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired lists changed sections that only take effect after a restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		switch s {
		case "storage", "ipc", "sender", "audit":
			out = append(out, s)
		}
	}
	return out
}
