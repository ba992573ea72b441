package broadcast

import (
	"net"
	"strconv"
)

type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeActive   Mode = "active"
	ModePaused   Mode = "paused"
)

// Target is the validated network destination.
type Target struct {
	Group string `json:"group"`
	Port  int    `json:"port"`
	TTL   int    `json:"ttl"`
}

func (t Target) Addr() string { return net.JoinHostPort(t.Group, strconv.Itoa(t.Port)) }

// State is the runtime state owned by one Broadcaster.
type State struct {
	// LogBroadcast is true iff the config is valid and the TTL was applied.
	LogBroadcast bool
	// LocalActive is false while the user has paused broadcasting.
	LocalActive bool
	Separator   string
	Target      *Target
}

// InitialState is the state before any config has been applied.
func InitialState() State {
	return State{LocalActive: true, Separator: TwoSpaces}
}

func (s State) Mode() Mode {
	switch {
	case !s.LogBroadcast || s.Target == nil:
		return ModeDisabled
	case s.LocalActive:
		return ModeActive
	default:
		return ModePaused
	}
}

// Notice is the user-visible message produced by a toggle.
type Notice string

const (
	NoticeStopped  Notice = "Stopped logging local speech."
	NoticeStarted  Notice = "Started logging local speech."
	NoticeDisabled Notice = "Local speech logging has been disabled by an error or your configuration."
)

// Toggle flips between active and paused. A disabled state is returned unchanged.
func Toggle(s State) (State, Notice) {
	switch s.Mode() {
	case ModeActive:
		s.LocalActive = false
		return s, NoticeStopped
	case ModePaused:
		s.LocalActive = true
		return s, NoticeStarted
	default:
		return s, NoticeDisabled
	}
}
