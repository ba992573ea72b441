package broadcast

import "errors"

var (
	// ErrConfigInvalid: a required field (group, port, ttl) is empty.
	ErrConfigInvalid = errors.New("broadcast config invalid")
	// ErrConfigParse: port or ttl is not an integer in range, or the separator tag is unknown.
	ErrConfigParse = errors.New("broadcast config unparsable")
	// ErrSocketOption: the multicast TTL could not be applied to the socket.
	ErrSocketOption = errors.New("multicast socket option failed")
)
