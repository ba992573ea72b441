// Package multicast owns the single outbound UDP socket used for speech
// rebroadcast. The socket lives for the whole process; only its multicast
// options change at runtime.
package multicast

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/net/ipv4"

	logx "speechspy/pkg/logx"
)

// DefaultTTL is applied when the socket is created, before any user config.
const DefaultTTL = 2

// Config selects the outbound interface and loopback behaviour.
type Config struct {
	Interface string // empty: let the kernel choose
	Loopback  bool
}

// Observer receives per-datagram outcomes. Implementations must be cheap.
type Observer interface {
	DatagramSent(bytes int)
	DatagramDropped()
}

type packetConn interface {
	SetMulticastTTL(ttl int) error
	WriteTo(b []byte, dst net.Addr) (int, error)
	Close() error
}

type ipv4Conn struct {
	pc *ipv4.PacketConn
}

func (c ipv4Conn) SetMulticastTTL(ttl int) error { return c.pc.SetMulticastTTL(ttl) }
func (c ipv4Conn) WriteTo(b []byte, dst net.Addr) (int, error) {
	return c.pc.WriteTo(b, nil, dst)
}
func (c ipv4Conn) Close() error { return c.pc.Close() }

// Sender transmits best-effort datagrams. Safe for concurrent use.
type Sender struct {
	conn     packetConn
	log      logx.Logger
	throttle *logx.Throttle
	obs      Observer

	ttl    atomic.Int64
	closed atomic.Bool
}

type Option func(*Sender)

// WithObserver reports send outcomes to o.
func WithObserver(o Observer) Option {
	return func(s *Sender) { s.obs = o }
}

// WithThrottle replaces the transmit-error log limiter.
func WithThrottle(t *logx.Throttle) Option {
	return func(s *Sender) { s.throttle = t }
}

// Open creates the socket and applies DefaultTTL.
func Open(cfg Config, log logx.Logger, opts ...Option) (*Sender, error) {
	c, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return nil, fmt.Errorf("multicast socket: %w", err)
	}
	pc := ipv4.NewPacketConn(c)

	if name := strings.TrimSpace(cfg.Interface); name != "" {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("multicast interface %q: %w", name, err)
		}
		if err := pc.SetMulticastInterface(ifi); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("multicast interface %q: %w", name, err)
		}
	}
	if err := pc.SetMulticastLoopback(cfg.Loopback); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("multicast loopback: %w", err)
	}

	s := newSender(ipv4Conn{pc: pc}, log, opts...)
	if err := s.Configure(DefaultTTL); err != nil {
		_ = pc.Close()
		return nil, err
	}
	return s, nil
}

func newSender(conn packetConn, log logx.Logger, opts ...Option) *Sender {
	s := &Sender{
		conn:     conn,
		log:      log,
		throttle: logx.NewThrottle(5*time.Second, 3),
	}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	return s
}

// Configure sets IP_MULTICAST_TTL on the existing socket.
func (s *Sender) Configure(ttl int) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.conn.SetMulticastTTL(ttl); err != nil {
		return fmt.Errorf("set multicast ttl %d: %w", ttl, err)
	}
	s.ttl.Store(int64(ttl))
	return nil
}

// TTL returns the last successfully applied hop limit.
func (s *Sender) TTL() int { return int(s.ttl.Load()) }

// Send transmits one datagram to group:port. Errors are logged and dropped.
func (s *Sender) Send(payload []byte, group string, port int) {
	if err := s.send(payload, group, port); err != nil {
		s.dropped(err, group, port)
		return
	}
	if s.obs != nil {
		s.obs.DatagramSent(len(payload))
	}
}

func (s *Sender) send(payload []byte, group string, port int) error {
	if s.closed.Load() {
		return fmt.Errorf("%w: %w", ErrTransmit, ErrClosed)
	}
	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(group, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("%w: resolve: %w", ErrTransmit, err)
	}
	if _, err := s.conn.WriteTo(payload, addr); err != nil {
		return fmt.Errorf("%w: %w", ErrTransmit, err)
	}
	return nil
}

func (s *Sender) dropped(err error, group string, port int) {
	if s.obs != nil {
		s.obs.DatagramDropped()
	}
	ok, suppressed := s.throttle.Allow()
	if !ok {
		return
	}
	fields := []logx.Field{logx.String("group", group), logx.Int("port", port), logx.Err(err)}
	if suppressed > 0 {
		fields = append(fields, logx.Uint64("suppressed", suppressed))
	}
	s.log.Error("datagram dropped", fields...)
}

// Close releases the socket. Later sends are dropped.
func (s *Sender) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.conn.Close()
}
