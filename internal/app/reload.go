package app

import (
	"context"
	"errors"
	"strings"

	"speechspy/internal/config"
	"speechspy/internal/hotkey"
	logx "speechspy/pkg/logx"
)

// reloadLoop applies each published config. Bursts are coalesced to the newest.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					drained = true
				}
			}
			a.applyConfig(ctx, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	log := a.log.With(logx.String("comp", "app"))
	sections, attrs := config.SummarizeConfigChange(prev, next)

	if a.logs != nil {
		a.logs.Apply(mapLogConfig(next))
	}

	if dc, err := mapDebugConfig(next); err != nil {
		log.Warn("invalid debug config; keeping previous", logx.Err(err))
	} else {
		a.debug.Reconfigure(ctx, dc)
	}

	a.applyHotkey(ctx, next.Hotkey)

	if seed := changedBroadcastSettings(prev, next); len(seed) > 0 {
		a.settings.Update(seed)
	}
	a.bc.MarkDirty()

	if restart := config.RestartRequired(sections); len(restart) > 0 {
		log.Warn("config change requires restart to take effect", logx.String("sections", strings.Join(restart, ",")))
	}
	if len(sections) > 0 {
		fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
		log.Info("config reloaded", fields...)
	} else {
		log.Info("config reloaded (no changes)")
	}
}

// changedBroadcastSettings returns the broadcast keys whose file value differs
// between prev and next. Keys the file did not touch keep their stored value.
func changedBroadcastSettings(prev, next *config.Config) map[string]string {
	var before map[string]string
	if prev != nil {
		before = prev.Broadcast.Settings()
	}
	out := map[string]string{}
	if next == nil {
		return out
	}
	for k, v := range next.Broadcast.Settings() {
		if old, ok := before[k]; !ok || old != v {
			out[k] = v
		}
	}
	return out
}

// applyHotkey starts, stops or rebinds the toggle gesture to match cfg.
func (a *App) applyHotkey(ctx context.Context, cfg config.HotkeyConfig) {
	a.hkMu.Lock()
	defer a.hkMu.Unlock()

	log := a.log.With(logx.String("comp", "hotkey"))
	if a.hk != nil && cfg.Enabled && a.hkCfg.ComboOrDefault() == cfg.ComboOrDefault() {
		a.hkCfg = cfg
		return
	}
	if a.hk != nil {
		a.hk.Stop()
		a.hk = nil
	}
	a.hkCfg = cfg
	if !cfg.Enabled {
		return
	}

	l, err := hotkey.NewListener(cfg.ComboOrDefault(), log)
	if err != nil {
		log.Warn("hotkey combo rejected", logx.Err(err))
		return
	}
	err = l.Start(ctx, func() {
		mode, notice := a.toggle()
		log.Info(string(notice), logx.String("mode", string(mode)))
	})
	switch {
	case errors.Is(err, hotkey.ErrUnsupported):
		log.Warn("hotkey requested but this build has no hotkey support (build with -tags hotkey)")
	case err != nil:
		log.Warn("hotkey registration failed", logx.String("combo", l.Combo()), logx.Err(err))
	default:
		a.hk = l
	}
}
