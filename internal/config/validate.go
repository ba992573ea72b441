package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"

	"speechspy/internal/hotkey"
	"speechspy/internal/storage"
	logx "speechspy/pkg/logx"
)

// Validate checks the parts of cfg that would otherwise fail late.
// The broadcast section is not validated here: invalid values disable
// broadcasting at apply time instead.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if !logx.ValidLevel(cfg.Logging.Level) {
		add(fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}

	if s := cfg.Storage; s != nil {
		if !storage.ValidDriver(s.Driver) {
			add(fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		d := strings.ToLower(strings.TrimSpace(s.Driver))
		if (d == "file" || d == "sqlite" || d == "sqlite3") && strings.TrimSpace(s.Path) == "" {
			add(fmt.Errorf("storage.path: required for driver %q", s.Driver))
		}
		_, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout)
		add(err)
	}

	if cfg.Debug.Enabled {
		if addr := strings.TrimSpace(cfg.Debug.Addr); addr != "" {
			if _, _, err := net.SplitHostPort(addr); err != nil {
				add(fmt.Errorf("debug.addr: %w", err))
			}
		}
		_, err := ParseDurationField("debug.read_timeout", cfg.Debug.ReadTimeout)
		add(err)
		_, err = ParseDurationField("debug.idle_timeout", cfg.Debug.IdleTimeout)
		add(err)
	}

	if cfg.Hotkey.Enabled {
		if _, err := hotkey.ParseCombo(cfg.Hotkey.ComboOrDefault()); err != nil {
			add(fmt.Errorf("hotkey.combo: %w", err))
		}
	}

	if cfg.Audit.Enabled {
		if cfg.Storage == nil || strings.EqualFold(strings.TrimSpace(cfg.Storage.Driver), "none") {
			add(errors.New("audit.enabled: requires a storage section"))
		}
		if _, err := cron.ParseStandard(cfg.Audit.ScheduleOrDefault()); err != nil {
			add(fmt.Errorf("audit.prune_schedule: %w", err))
		}
		_, err := ParseDurationField("audit.retention", cfg.Audit.Retention)
		add(err)
	}

	return errors.Join(errs...)
}
