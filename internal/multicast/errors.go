package multicast

import "errors"

var (
	ErrTransmit = errors.New("multicast transmit failed")
	ErrClosed   = errors.New("multicast sender closed")
)
