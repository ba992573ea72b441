//go:build !hotkey || !(linux || darwin || windows)

package hotkey

func newBackend(Combo) (backend, error) { return nil, ErrUnsupported }
