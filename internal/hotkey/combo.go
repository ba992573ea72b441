// Package hotkey binds a global keyboard gesture to a callback.
//
// Parsing is platform independent. The OS registration backend is only
// compiled with the "hotkey" build tag; other builds report ErrUnsupported
// from Start.
package hotkey

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalid is returned when a combo string cannot be parsed.
	ErrInvalid = errors.New("hotkey: invalid key combination")
	// ErrConflict is returned when the OS refuses the registration.
	ErrConflict = errors.New("hotkey: key combination already registered")
	// ErrUnsupported is returned by builds without a registration backend.
	ErrUnsupported = errors.New("hotkey: not supported by this build")
)

// Modifier is a platform-neutral modifier name.
type Modifier string

const (
	ModCtrl  Modifier = "ctrl"
	ModShift Modifier = "shift"
	ModAlt   Modifier = "alt"
	ModSuper Modifier = "super"
)

var modAliases = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"shift":   ModShift,
	"alt":     ModAlt,
	"option":  ModAlt,
	"super":   ModSuper,
	"cmd":     ModSuper,
	"command": ModSuper,
	"win":     ModSuper,
}

var keyAliases = map[string]string{
	"space":  "space",
	"tab":    "tab",
	"return": "return",
	"enter":  "return",
	"esc":    "escape",
	"escape": "escape",
}

// Combo is a parsed key combination: at least one modifier plus one key.
type Combo struct {
	Modifiers []Modifier
	Key       string
}

// String renders the canonical form, e.g. "ctrl+alt+b".
func (c Combo) String() string {
	parts := make([]string, 0, len(c.Modifiers)+1)
	for _, m := range c.Modifiers {
		parts = append(parts, string(m))
	}
	parts = append(parts, c.Key)
	return strings.Join(parts, "+")
}

// ParseCombo parses strings like "ctrl+alt+b" or "Control+Shift+F5".
// Duplicate modifiers are collapsed; modifiers come back in a stable order.
func ParseCombo(s string) (Combo, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	if len(parts) < 2 {
		return Combo{}, fmt.Errorf("%w: %q (need at least one modifier)", ErrInvalid, s)
	}
	keyPart := strings.TrimSpace(parts[len(parts)-1])
	key, ok := normalizeKey(keyPart)
	if !ok {
		return Combo{}, fmt.Errorf("%w: unknown key %q", ErrInvalid, keyPart)
	}

	seen := map[Modifier]bool{}
	var mods []Modifier
	for _, p := range parts[:len(parts)-1] {
		p = strings.TrimSpace(p)
		m, ok := modAliases[p]
		if !ok {
			return Combo{}, fmt.Errorf("%w: unknown modifier %q", ErrInvalid, p)
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		mods = append(mods, m)
	}
	sort.Slice(mods, func(i, j int) bool { return modRank(mods[i]) < modRank(mods[j]) })
	return Combo{Modifiers: mods, Key: key}, nil
}

func modRank(m Modifier) int {
	switch m {
	case ModCtrl:
		return 0
	case ModShift:
		return 1
	case ModAlt:
		return 2
	default:
		return 3
	}
}

func normalizeKey(k string) (string, bool) {
	if v, ok := keyAliases[k]; ok {
		return v, true
	}
	if len(k) == 1 {
		c := k[0]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			return k, true
		}
		return "", false
	}
	if len(k) >= 2 && len(k) <= 3 && k[0] == 'f' {
		n := 0
		for _, c := range k[1:] {
			if c < '0' || c > '9' {
				return "", false
			}
			n = n*10 + int(c-'0')
		}
		if n >= 1 && n <= 12 {
			return k, true
		}
	}
	return "", false
}
