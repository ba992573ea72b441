package app

import (
	"context"
	"errors"
	"fmt"

	"speechspy/internal/broadcast"
	"speechspy/internal/config"
	"speechspy/internal/ipc"
	"speechspy/internal/speech"
	logx "speechspy/pkg/logx"
)

// handle serves one control socket request.
func (a *App) handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CmdToggle:
		mode, notice := a.toggle()
		return ipc.Response{OK: true, State: string(mode), Message: string(notice)}

	case ipc.CmdStatus:
		return statusResponse(a.bc.Status())

	case ipc.CmdSpeak:
		seq, err := ipc.ToSequence(req.Sequence)
		if err != nil {
			return errResponse(fmt.Errorf("speak: %w", err))
		}
		opts := speech.Options{
			Priority:    speech.ParsePriority(req.Priority),
			SymbolLevel: req.SymbolLevel,
		}
		if err := a.hook.Speak(seq, opts); err != nil {
			return errResponse(fmt.Errorf("speak: %w", err))
		}
		return ipc.Response{OK: true}

	case ipc.CmdSettings:
		if len(req.Settings) > 0 {
			a.saveSettings(req.Settings)
		}
		return ipc.Response{OK: true, Settings: a.settings.Snapshot()}

	case ipc.CmdReload:
		_, err := a.cfgm.Reload(ctx)
		switch {
		case errors.Is(err, config.ErrUnchanged):
			a.bc.MarkDirty()
			return ipc.Response{OK: true, Message: "config unchanged; settings will be re-read"}
		case err != nil:
			return errResponse(fmt.Errorf("reload: %w", err))
		}
		a.bc.MarkDirty()
		return ipc.Response{OK: true, Message: "config reloaded"}

	case ipc.CmdSeparators:
		choices := broadcast.Separators()
		out := make([]ipc.Separator, 0, len(choices))
		for _, c := range choices {
			out = append(out, ipc.Separator{Tag: c.Tag, Label: c.Label})
		}
		return ipc.Response{OK: true, Separators: out}

	default:
		return errResponse(fmt.Errorf("unknown command %q", req.Command))
	}
}

// toggle is shared by the control socket and the hotkey.
func (a *App) toggle() (broadcast.Mode, broadcast.Notice) {
	return a.bc.Toggle()
}

// saveSettings writes values and forces a re-read before the next utterance.
// Keys are already checked by the control socket server.
func (a *App) saveSettings(values map[string]string) {
	changed := a.settings.Update(values)
	a.bc.MarkDirty()
	a.log.Info("settings saved", logx.String("comp", "app"), logx.Bool("changed", changed), logx.Int("keys", len(values)))
}

func statusResponse(st broadcast.Status) ipc.Response {
	resp := ipc.Response{OK: true, State: string(st.Mode), Message: st.LastError}
	if st.Target != nil {
		ttl := st.Target.TTL
		resp.Target = st.Target.Addr()
		resp.TTL = &ttl
	}
	return resp
}

func errResponse(err error) ipc.Response {
	return ipc.Response{OK: false, Error: err.Error()}
}
