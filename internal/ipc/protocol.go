// Package ipc is the newline-delimited JSON protocol spoken over the control
// socket: one request line, one response line, then the connection closes.
package ipc

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"speechspy/internal/settings"
	"speechspy/internal/speech"
)

const (
	CmdToggle     = "toggle"
	CmdStatus     = "status"
	CmdSpeak      = "speak"
	CmdSettings   = "settings"
	CmdReload     = "reload"
	CmdSeparators = "separators"
)

// ErrBadRequest marks a request rejected before it reaches the handler.
var ErrBadRequest = errors.New("bad request")

var commands = map[string]bool{
	CmdToggle:     true,
	CmdStatus:     true,
	CmdSpeak:      true,
	CmdSettings:   true,
	CmdReload:     true,
	CmdSeparators: true,
}

type Request struct {
	Command string `json:"command"`

	// speak
	Sequence    []Fragment `json:"sequence,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	SymbolLevel *int       `json:"symbol_level,omitempty"`

	// settings: values to write; empty means read only
	Settings map[string]string `json:"settings,omitempty"`
}

// Normalize lowercases and trims the command name.
func (r *Request) Normalize() {
	r.Command = strings.ToLower(strings.TrimSpace(r.Command))
}

// Validate checks the request against the command set: speak needs a
// non-empty sequence of known fragments, settings only takes known keys.
func (r Request) Validate() error {
	cmd := strings.ToLower(strings.TrimSpace(r.Command))
	if !commands[cmd] {
		return fmt.Errorf("%w: unknown command %q", ErrBadRequest, r.Command)
	}
	switch cmd {
	case CmdSpeak:
		if len(r.Sequence) == 0 {
			return fmt.Errorf("%w: speak: empty sequence", ErrBadRequest)
		}
		if _, err := ToSequence(r.Sequence); err != nil {
			return fmt.Errorf("%w: speak: %w", ErrBadRequest, err)
		}
		switch strings.ToLower(strings.TrimSpace(r.Priority)) {
		case "", "normal", "next", "now":
		default:
			return fmt.Errorf("%w: speak: unknown priority %q", ErrBadRequest, r.Priority)
		}
	case CmdSettings:
		var unknown []string
		for k := range r.Settings {
			if !settings.Known(k) {
				unknown = append(unknown, k)
			}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			return fmt.Errorf("%w: unknown setting(s): %s (known: %s)", ErrBadRequest,
				strings.Join(unknown, ", "), strings.Join(settings.Keys(), ", "))
		}
	}
	return nil
}

type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	Target     string            `json:"target,omitempty"`
	TTL        *int              `json:"ttl,omitempty"`
	Settings   map[string]string `json:"settings,omitempty"`
	Separators []Separator       `json:"separators,omitempty"`
}

// Err returns the response error, or nil when the request succeeded.
func (r Response) Err() error {
	if r.OK {
		return nil
	}
	if r.Error == "" {
		return errors.New("request failed")
	}
	return errors.New(r.Error)
}

type Separator struct {
	Tag   string `json:"tag"`
	Label string `json:"label"`
}

// Fragment is one wire element of an utterance. A fragment with an empty
// Command is text.
type Fragment struct {
	Text    string `json:"text,omitempty"`
	Command string `json:"command,omitempty"`
	Value   string `json:"value,omitempty"`
}

// ToSequence converts wire fragments. Command fragments must name a known kind.
func ToSequence(frags []Fragment) (speech.Sequence, error) {
	seq := make(speech.Sequence, 0, len(frags))
	for i, f := range frags {
		if f.Command == "" {
			seq = append(seq, speech.Text(f.Text))
			continue
		}
		kind := speech.CommandKind(strings.ToLower(f.Command))
		if !kind.Known() {
			return nil, fmt.Errorf("fragment %d: unknown command kind %q", i, f.Command)
		}
		seq = append(seq, speech.Command{Kind: kind, Value: f.Value})
	}
	return seq, nil
}

func FromSequence(seq speech.Sequence) []Fragment {
	out := make([]Fragment, 0, len(seq))
	for _, f := range seq {
		switch x := f.(type) {
		case speech.Text:
			out = append(out, Fragment{Text: string(x)})
		case speech.Command:
			out = append(out, Fragment{Command: string(x.Kind), Value: x.Value})
		}
	}
	return out
}
