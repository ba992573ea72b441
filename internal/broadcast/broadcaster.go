package broadcast

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"speechspy/internal/eventbus"
	"speechspy/internal/settings"
	"speechspy/internal/speech"
	logx "speechspy/pkg/logx"
)

// Sender is the outbound transport. Send must not block for long and must
// swallow its own errors.
type Sender interface {
	Configure(ttl int) error
	Send(payload []byte, group string, port int)
}

// Recorder receives broadcast outcomes, typically a metrics collector.
type Recorder interface {
	Utterance(outcome string)
	Toggled(to string)
	Reconfigured(ok bool, mode string)
}

// Status is a point-in-time view for the status command.
type Status struct {
	Mode      Mode    `json:"mode"`
	Target    *Target `json:"target,omitempty"`
	Separator string  `json:"separator"`
	Dirty     bool    `json:"dirty"`
	LastError string  `json:"last_error,omitempty"`
}

type Option func(*Broadcaster)

// WithBus publishes toggle and reconfiguration events.
func WithBus(bus eventbus.Bus) Option {
	return func(b *Broadcaster) { b.bus = bus }
}

func WithRecorder(r Recorder) Option {
	return func(b *Broadcaster) { b.rec = r }
}

// Broadcaster turns captured utterances into datagrams.
//
// The dirty flag may be set from any goroutine; it is consumed at the top of
// CaptureSpeech, Toggle and Status under applyMu, so a caller never reads the
// state while another goroutine is still applying it. The state mutex is never
// held across a send.
type Broadcaster struct {
	settings settings.Provider
	sender   Sender
	log      logx.Logger
	bus      eventbus.Bus
	rec      Recorder

	dirty   atomic.Bool
	applyMu sync.Mutex

	mu      sync.Mutex
	state   State
	lastErr error
}

var _ speech.Capturer = (*Broadcaster)(nil)

// New returns a Broadcaster in its initial state with the dirty flag set,
// so the first utterance applies the stored config.
func New(p settings.Provider, sender Sender, log logx.Logger, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		settings: p,
		sender:   sender,
		log:      log,
		state:    InitialState(),
	}
	for _, o := range opts {
		if o != nil {
			o(b)
		}
	}
	b.dirty.Store(true)
	return b
}

// MarkDirty schedules a config re-read before the next utterance.
func (b *Broadcaster) MarkDirty() { b.dirty.Store(true) }

func (b *Broadcaster) Dirty() bool { return b.dirty.Load() }

// ApplyUserConfigIfNeeded re-derives the state if the dirty flag is set.
func (b *Broadcaster) ApplyUserConfigIfNeeded() {
	b.applyMu.Lock()
	defer b.applyMu.Unlock()
	if b.dirty.CompareAndSwap(true, false) {
		_ = b.applyLocked()
	}
}

// ApplyUserConfig validates the settings, applies the TTL and swaps in the
// resulting state. Any error leaves the broadcaster disabled; the user's
// pause choice is kept so broadcasting resumes once the config is fixed.
func (b *Broadcaster) ApplyUserConfig() error {
	b.applyMu.Lock()
	defer b.applyMu.Unlock()
	return b.applyLocked()
}

func (b *Broadcaster) applyLocked() error {
	target, err := ParseTarget(b.settings)
	if err == nil {
		if cerr := b.sender.Configure(target.TTL); cerr != nil {
			err = fmt.Errorf("%w: %w", ErrSocketOption, cerr)
		}
	}
	sep, sepErr := ResolveSeparator(b.settings.Get(settings.KeySeparator), b.settings.Get(settings.KeyCustomSeparator))
	if sepErr != nil {
		b.log.Error("separator not recognised", logx.Err(sepErr))
	}

	b.mu.Lock()
	prev := b.state.Mode()
	b.state.Separator = sep
	if err != nil {
		b.state.LogBroadcast = false
		b.state.Target = nil
	} else {
		b.state.LogBroadcast = true
		b.state.Target = &target
	}
	b.lastErr = errors.Join(err, sepErr)
	next := b.state.Mode()
	b.mu.Unlock()

	change := eventbus.StateChange{From: string(prev), To: string(next)}
	if err != nil {
		change.Err = err.Error()
		b.log.Error("broadcast disabled", logx.Err(err))
	} else {
		change.Target = target.Addr()
		b.log.Info("broadcast config applied",
			logx.String("target", target.Addr()),
			logx.Int("ttl", target.TTL),
			logx.String("mode", string(next)),
		)
	}
	if b.rec != nil {
		b.rec.Reconfigured(err == nil, string(next))
	}
	b.publish(eventbus.TypeReconfigured, change)
	return err
}

// ParseTarget reads group, port and ttl from p.
func ParseTarget(p settings.Provider) (Target, error) {
	group := strings.TrimSpace(p.Get(settings.KeyGroup))
	portS := strings.TrimSpace(p.Get(settings.KeyPort))
	ttlS := strings.TrimSpace(p.Get(settings.KeyTTL))

	var missing []string
	for _, f := range []struct{ k, v string }{
		{settings.KeyGroup, group},
		{settings.KeyPort, portS},
		{settings.KeyTTL, ttlS},
	} {
		if f.v == "" {
			missing = append(missing, f.k)
		}
	}
	if len(missing) > 0 {
		return Target{}, fmt.Errorf("%w: missing %s", ErrConfigInvalid, strings.Join(missing, ", "))
	}

	port, err := strconv.Atoi(portS)
	if err != nil || port < 1 || port > 65535 {
		return Target{}, fmt.Errorf("%w: port %q is not a port number", ErrConfigParse, portS)
	}
	ttl, err := strconv.Atoi(ttlS)
	if err != nil || ttl < 0 || ttl > 255 {
		return Target{}, fmt.Errorf("%w: ttl %q is not an integer in 0..255", ErrConfigParse, ttlS)
	}
	return Target{Group: group, Port: port, TTL: ttl}, nil
}

// CaptureSpeech broadcasts the text fragments of seq when active.
func (b *Broadcaster) CaptureSpeech(seq speech.Sequence) {
	b.ApplyUserConfigIfNeeded()

	b.mu.Lock()
	st := b.state
	b.mu.Unlock()

	if st.Mode() != ModeActive {
		b.record("skipped")
		return
	}
	if !seq.HasText() {
		b.record("empty")
		return
	}
	b.sender.Send([]byte(seq.Join(st.Separator)), st.Target.Group, st.Target.Port)
	b.record("sent")
}

// Toggle flips the user pause flag and returns the resulting mode and notice.
func (b *Broadcaster) Toggle() (Mode, Notice) {
	b.ApplyUserConfigIfNeeded()

	b.mu.Lock()
	prev := b.state.Mode()
	next, notice := Toggle(b.state)
	b.state = next
	b.mu.Unlock()

	mode := next.Mode()
	b.log.Info("toggle", logx.String("from", string(prev)), logx.String("to", string(mode)), logx.String("notice", string(notice)))
	if b.rec != nil {
		b.rec.Toggled(string(mode))
	}
	b.publish(eventbus.TypeToggled, eventbus.StateChange{From: string(prev), To: string(mode), Message: string(notice)})
	return mode, notice
}

func (b *Broadcaster) Status() Status {
	b.ApplyUserConfigIfNeeded()

	b.mu.Lock()
	defer b.mu.Unlock()
	st := Status{
		Mode:      b.state.Mode(),
		Separator: b.state.Separator,
		Dirty:     b.dirty.Load(),
	}
	if b.state.Target != nil {
		t := *b.state.Target
		st.Target = &t
	}
	if b.lastErr != nil {
		st.LastError = b.lastErr.Error()
	}
	return st
}

func (b *Broadcaster) record(outcome string) {
	if b.rec != nil {
		b.rec.Utterance(outcome)
	}
}

func (b *Broadcaster) publish(typ string, change eventbus.StateChange) {
	if b.bus != nil {
		b.bus.Publish(eventbus.Event{Type: typ, Data: change})
	}
}
