//go:build hotkey && (linux || darwin || windows)

package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

// osBackend wraps golang.design/x/hotkey. The hotkey.Hotkey is created in
// Register so nothing touches the OS until the listener starts.
type osBackend struct {
	mods []hotkey.Modifier
	key  hotkey.Key

	hk        *hotkey.Hotkey
	keyCh     chan struct{}
	closeOnce sync.Once
}

func newBackend(c Combo) (backend, error) {
	key, ok := osKeys[c.Key]
	if !ok {
		return nil, fmt.Errorf("%w: key %q not available on this platform", ErrInvalid, c.Key)
	}
	mods := make([]hotkey.Modifier, 0, len(c.Modifiers))
	for _, m := range c.Modifiers {
		om, ok := osModifiers[m]
		if !ok {
			return nil, fmt.Errorf("%w: modifier %q not available on this platform", ErrInvalid, m)
		}
		mods = append(mods, om)
	}
	return &osBackend{mods: mods, key: key}, nil
}

func (b *osBackend) Register() error {
	b.hk = hotkey.New(b.mods, b.key)
	if err := b.hk.Register(); err != nil {
		_ = b.hk.Unregister()
		b.hk = nil
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	b.keyCh = make(chan struct{}, 4)
	src := b.hk.Keydown()
	go func() {
		for range src {
			select {
			case b.keyCh <- struct{}{}:
			default:
			}
		}
		b.closeOnce.Do(func() { close(b.keyCh) })
	}()
	return nil
}

func (b *osBackend) Unregister() error {
	if b.hk == nil {
		return nil
	}
	hk := b.hk
	b.hk = nil
	return hk.Unregister()
}

func (b *osBackend) Keydown() <-chan struct{} { return b.keyCh }

var osKeys = map[string]hotkey.Key{
	"space":  hotkey.KeySpace,
	"tab":    hotkey.KeyTab,
	"return": hotkey.KeyReturn,
	"escape": hotkey.KeyEscape,
	"a":      hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,
	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3, "f4": hotkey.KeyF4,
	"f5": hotkey.KeyF5, "f6": hotkey.KeyF6, "f7": hotkey.KeyF7, "f8": hotkey.KeyF8,
	"f9": hotkey.KeyF9, "f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
}
