package eventbus

// Event types published by the broadcaster.
const (
	TypeToggled      = "broadcast.toggled"
	TypeReconfigured = "broadcast.reconfigured"
)

// StateChange is the payload of every broadcast event.
type StateChange struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Target  string `json:"target,omitempty"`
	Message string `json:"message,omitempty"`
	Err     string `json:"err,omitempty"`
}
