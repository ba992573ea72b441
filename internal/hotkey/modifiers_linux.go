//go:build hotkey

package hotkey

import "golang.design/x/hotkey"

// X11: Mod1 is Alt, Mod4 is Super.
var osModifiers = map[Modifier]hotkey.Modifier{
	ModCtrl:  hotkey.ModCtrl,
	ModShift: hotkey.ModShift,
	ModAlt:   hotkey.Mod1,
	ModSuper: hotkey.Mod4,
}
