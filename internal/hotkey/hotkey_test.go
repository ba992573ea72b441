package hotkey

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "speechspy/pkg/logx"
)

func TestParseCombo(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ctrl+alt+b", "ctrl+alt+b"},
		{"Control+Option+B", "ctrl+alt+b"},
		{"alt+ctrl+b", "ctrl+alt+b"},
		{"ctrl+ctrl+space", "ctrl+space"},
		{"cmd+shift+f5", "shift+super+f5"},
		{" ctrl + enter ", "ctrl+return"},
		{"win+esc", "super+escape"},
		{"ctrl+0", "ctrl+0"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			c, err := ParseCombo(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, c.String())
		})
	}
}

func TestParseComboInvalid(t *testing.T) {
	for _, in := range []string{"", "b", "ctrl+", "hyper+b", "ctrl+f13", "ctrl+f0", "ctrl+fx", "ctrl+\u00e9", "ctrl+ab"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseCombo(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}
}

type fakeBackend struct {
	registerErr  error
	ch           chan struct{}
	unregistered atomic.Int32
}

func (f *fakeBackend) Register() error          { return f.registerErr }
func (f *fakeBackend) Unregister() error        { f.unregistered.Add(1); return nil }
func (f *fakeBackend) Keydown() <-chan struct{} { return f.ch }

func newTestListener(t *testing.T, be *fakeBackend) *Listener {
	t.Helper()
	l, err := NewListener("ctrl+alt+b", logx.Nop())
	require.NoError(t, err)
	l.factory = func(Combo) (backend, error) { return be, nil }
	return l
}

func TestListenerTriggersUntilStopped(t *testing.T) {
	be := &fakeBackend{ch: make(chan struct{}, 4)}
	l := newTestListener(t, be)

	var hits atomic.Int32
	require.NoError(t, l.Start(context.Background(), func() { hits.Add(1) }))
	assert.True(t, l.Registered())

	be.ch <- struct{}{}
	be.ch <- struct{}{}
	require.Eventually(t, func() bool { return hits.Load() == 2 }, time.Second, 5*time.Millisecond)

	l.Stop()
	assert.False(t, l.Registered())
	assert.Equal(t, int32(1), be.unregistered.Load())

	// second Stop is a no-op
	l.Stop()
	assert.Equal(t, int32(1), be.unregistered.Load())
}

func TestListenerStopsWithContext(t *testing.T) {
	be := &fakeBackend{ch: make(chan struct{})}
	l := newTestListener(t, be)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.Start(ctx, nil))
	cancel()
	require.Eventually(t, func() bool { return !l.Registered() }, time.Second, 5*time.Millisecond)
}

func TestListenerRegisterConflict(t *testing.T) {
	be := &fakeBackend{registerErr: ErrConflict}
	l := newTestListener(t, be)
	err := l.Start(context.Background(), func() {})
	require.ErrorIs(t, err, ErrConflict)
	assert.False(t, l.Registered())
}

func TestNewListenerRejectsBadCombo(t *testing.T) {
	_, err := NewListener("b", logx.Nop())
	require.ErrorIs(t, err, ErrInvalid)
}
