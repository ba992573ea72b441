package speech

import (
	"fmt"
	"runtime/debug"
	"sync"

	logx "speechspy/pkg/logx"
)

// Speaker is the host's speech emission entry point.
type Speaker interface {
	Speak(seq Sequence, opts Options) error
}

// SpeakerFunc adapts a function to the Speaker interface.
type SpeakerFunc func(seq Sequence, opts Options) error

func (f SpeakerFunc) Speak(seq Sequence, opts Options) error { return f(seq, opts) }

// Capturer observes an utterance before it is spoken.
// Implementations must not block.
type Capturer interface {
	CaptureSpeech(seq Sequence)
}

// CapturerFunc adapts a function to the Capturer interface.
type CapturerFunc func(seq Sequence)

func (f CapturerFunc) CaptureSpeech(seq Sequence) { f(seq) }

// Interceptor wraps a Speaker: every call runs the capture side effect first,
// then reaches the wrapped speaker with the same arguments and returns its result.
// A panicking capturer is recovered and logged; the speak call proceeds regardless.
type Interceptor struct {
	mu      sync.RWMutex
	next    Speaker
	capture Capturer
	log     logx.Logger
}

func NewInterceptor(next Speaker, capture Capturer, log logx.Logger) *Interceptor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Interceptor{next: next, capture: capture, log: log}
}

func (i *Interceptor) Speak(seq Sequence, opts Options) error {
	i.observe(seq)
	next := i.Unwrap()
	if next == nil {
		return nil
	}
	return next.Speak(seq, opts)
}

// Unwrap returns the speaker this interceptor delegates to.
func (i *Interceptor) Unwrap() Speaker {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.next
}

func (i *Interceptor) setNext(sp Speaker) {
	i.mu.Lock()
	i.next = sp
	i.mu.Unlock()
}

func (i *Interceptor) observe(seq Sequence) {
	if i.capture == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			i.log.Error("speech capture panicked",
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
		}
	}()
	i.capture.CaptureSpeech(seq)
}

// Hook is the host's single speak extension point. The host calls Speak;
// plugins install interceptors around whatever speaker is currently registered.
type Hook struct {
	mu      sync.RWMutex
	current Speaker
}

// NewHook registers base as the original speaker.
func NewHook(base Speaker) *Hook {
	return &Hook{current: base}
}

// Speak routes through the currently installed speaker chain.
func (h *Hook) Speak(seq Sequence, opts Options) error {
	h.mu.RLock()
	sp := h.current
	h.mu.RUnlock()
	if sp == nil {
		return fmt.Errorf("speech hook has no speaker")
	}
	return sp.Speak(seq, opts)
}

// Current returns the speaker the hook currently dispatches to.
func (h *Hook) Current() Speaker {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Install wraps the current speaker with an Interceptor feeding capture.
// The returned uninstall restores exactly the speaker that was registered before
// Install; calling it more than once is a no-op.
//
// If another interceptor was installed on top of ours in the meantime, uninstall
// splices ours out of the chain instead of discarding the later one.
func (h *Hook) Install(capture Capturer, log logx.Logger) (uninstall func()) {
	h.mu.Lock()
	ic := NewInterceptor(h.current, capture, log)
	h.current = ic
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if h.current == Speaker(ic) {
				h.current = ic.Unwrap()
				return
			}
			// Walk the chain for the interceptor that wraps ours.
			for sp := h.current; sp != nil; {
				outer, ok := sp.(*Interceptor)
				if !ok {
					return
				}
				next := outer.Unwrap()
				if next == Speaker(ic) {
					outer.setNext(ic.Unwrap())
					return
				}
				sp = next
			}
		})
	}
}
