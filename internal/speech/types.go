// Package speech models the host's speech pipeline entry point: the utterance
// passed to a single speak call, the speaker contract, and the interceptor
// that observes every utterance before the host speaks it.
package speech

import (
	"strings"
)

// Fragment is one element of an utterance: either Text or a Command.
type Fragment interface {
	isFragment()
}

// Text is literal text to be spoken.
type Text string

func (Text) isFragment() {}

// CommandKind names a non-text speech directive.
type CommandKind string

const (
	CommandPitch   CommandKind = "pitch"
	CommandRate    CommandKind = "rate"
	CommandVolume  CommandKind = "volume"
	CommandPause   CommandKind = "pause"
	CommandBreak   CommandKind = "break"
	CommandIndex   CommandKind = "index"
	CommandLang    CommandKind = "lang"
	CommandBeep    CommandKind = "beep"
	CommandPhoneme CommandKind = "phoneme"
)

// Known reports whether k is one of the directives the host emits.
func (k CommandKind) Known() bool {
	switch k {
	case CommandPitch, CommandRate, CommandVolume, CommandPause, CommandBreak,
		CommandIndex, CommandLang, CommandBeep, CommandPhoneme:
		return true
	}
	return false
}

// Command is a non-text control marker (pitch change, pause, index mark...).
// It never participates in broadcast.
type Command struct {
	Kind  CommandKind
	Value string
}

func (Command) isFragment() {}

// Sequence is one utterance: the ordered fragments passed to a single speak call.
type Sequence []Fragment

// Texts returns the text fragments in order, skipping commands.
func (s Sequence) Texts() []string {
	out := make([]string, 0, len(s))
	for _, f := range s {
		if t, ok := f.(Text); ok {
			out = append(out, string(t))
		}
	}
	return out
}

// HasText reports whether at least one fragment is text.
func (s Sequence) HasText() bool {
	for _, f := range s {
		if _, ok := f.(Text); ok {
			return true
		}
	}
	return false
}

// Join concatenates the text fragments with sep.
func (s Sequence) Join(sep string) string {
	return strings.Join(s.Texts(), sep)
}

// Priority mirrors the host's speech priority levels.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityNext
	PriorityNow
)

func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "normal"
	case PriorityNext:
		return "next"
	case PriorityNow:
		return "now"
	default:
		return "unknown"
	}
}

// ParsePriority maps a wire name to a Priority; unknown names are normal.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "next":
		return PriorityNext
	case "now":
		return PriorityNow
	default:
		return PriorityNormal
	}
}

// Options carries the remaining arguments of the host speak call.
// SymbolLevel is nil when the caller did not specify one.
type Options struct {
	SymbolLevel *int
	Priority    Priority
}
