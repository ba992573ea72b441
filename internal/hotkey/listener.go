package hotkey

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	logx "speechspy/pkg/logx"
)

// backend abstracts OS registration so the listener can be tested without a display.
type backend interface {
	Register() error
	Unregister() error
	Keydown() <-chan struct{}
}

// Listener owns one registered combo and calls a trigger on every key press.
type Listener struct {
	combo   Combo
	log     logx.Logger
	factory func(Combo) (backend, error)

	mu      sync.Mutex
	be      backend
	cancel  context.CancelFunc
	doneCh  chan struct{}
	running atomic.Bool
}

// NewListener validates combo; registration happens in Start.
func NewListener(combo string, log logx.Logger) (*Listener, error) {
	c, err := ParseCombo(combo)
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Listener{combo: c, log: log, factory: newBackend}, nil
}

func (l *Listener) Combo() string { return l.combo.String() }

// Registered reports whether the combo is currently held.
func (l *Listener) Registered() bool { return l.running.Load() }

// Start registers the combo and calls onTrigger for each press until ctx is
// done or Stop is called.
func (l *Listener) Start(ctx context.Context, onTrigger func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running.Load() {
		return nil
	}

	be, err := l.factory(l.combo)
	if err != nil {
		return err
	}
	if err := be.Register(); err != nil {
		return err
	}
	l.be = be
	l.running.Store(true)
	l.log.Info("hotkey registered", logx.String("combo", l.combo.String()))

	lctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	done := make(chan struct{})
	l.doneCh = done
	keydown := be.Keydown()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				l.log.Error("hotkey listener panicked", logx.Any("panic", r))
			}
			_ = be.Unregister()
			l.running.Store(false)
			close(done)
		}()
		for {
			select {
			case <-lctx.Done():
				return
			case _, ok := <-keydown:
				if !ok {
					return
				}
				l.log.Debug("hotkey triggered", logx.String("combo", l.combo.String()))
				if onTrigger != nil {
					onTrigger()
				}
			}
		}
	}()
	return nil
}

// Stop releases the registration and waits briefly for the listener to exit.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	done := l.doneCh
	l.cancel = nil
	l.doneCh = nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
		l.log.Info("hotkey unregistered", logx.String("combo", l.combo.String()))
	case <-time.After(200 * time.Millisecond):
		l.log.Warn("hotkey listener did not exit in time", logx.String("combo", l.combo.String()))
	}
}
