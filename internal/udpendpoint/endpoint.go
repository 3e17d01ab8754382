// Package udpendpoint implements the UDP transport layer: address-reuse
// socket setup, multicast group join, and a bounded-timeout receive loop
// shape shared by every stream direction.
package udpendpoint

import (
	"context"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// DefaultReadTimeout is the short receive deadline every Endpoint applies
// so a Receiver goroutine can check its running flag without blocking
// shutdown indefinitely.
const DefaultReadTimeout = 100 * time.Millisecond

// Config describes how to bind one stream's UDP socket.
type Config struct {
	// LocalAddr is the address:port to bind. For multicast receive this
	// is typically ":5004"; for unicast broadcast-codec interop it is
	// the local reply port this engine listens on.
	LocalAddr string
	// MulticastGroup is the AES67 multicast group to join, or nil for
	// unicast.
	MulticastGroup net.IP
	// Interface selects which network interface to join the multicast
	// group on. Nil selects the system default.
	Interface *net.Interface
	// RemoteAddr is the fixed send target (FixedRemote), used for unicast
	// broadcast-codec interop (Telos Z/IP ONE-style reciprocal ports).
	// No send target is derived from MulticastGroup: an endpoint with
	// RemoteAddr nil, as for receive-only streams, has no fixed remote.
	RemoteAddr *net.UDPAddr
	// ReadTimeout overrides DefaultReadTimeout; zero uses the default.
	ReadTimeout time.Duration
}

// Endpoint is a bound, address-reuse-enabled UDP socket, optionally
// joined to a multicast group.
type Endpoint struct {
	conn        *net.UDPConn
	remote      *net.UDPAddr
	readTimeout time.Duration
	multicast   bool
}

// New binds cfg's socket with SO_REUSEADDR and SO_REUSEPORT set ahead of
// bind (so multiple streams can share one multicast port),
// then joins the multicast group if configured.
func New(cfg Config) (*Endpoint, error) {
	laddr, err := net.ResolveUDPAddr("udp4", cfg.LocalAddr)
	if err != nil {
		return nil, fmt.Errorf("udpendpoint: resolve local addr %q: %w", cfg.LocalAddr, err)
	}

	lc := net.ListenConfig{Control: setReuseAddrAndPort}
	pc, err := lc.ListenPacket(context.Background(), "udp4", laddr.String())
	if err != nil {
		return nil, fmt.Errorf("udpendpoint: bind %s: %w", cfg.LocalAddr, err)
	}
	conn := pc.(*net.UDPConn)

	isMulticast := cfg.MulticastGroup != nil
	if isMulticast {
		pconn := ipv4.NewPacketConn(conn)
		ifi := cfg.Interface
		group := &net.UDPAddr{IP: cfg.MulticastGroup}
		if err := pconn.JoinGroup(ifi, group); err != nil {
			conn.Close()
			return nil, fmt.Errorf("udpendpoint: join multicast group %s: %w", cfg.MulticastGroup, err)
		}
	}

	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	return &Endpoint{
		conn:        conn,
		remote:      cfg.RemoteAddr,
		readTimeout: timeout,
		multicast:   isMulticast,
	}, nil
}

// Close releases the underlying socket.
func (e *Endpoint) Close() error {
	return e.conn.Close()
}

// ReadFrom blocks for up to the configured read timeout waiting for one
// datagram. A timeout is reported via the returned error satisfying
// net.Error.Timeout() — callers loop on their running flag when they see
// one.
func (e *Endpoint) ReadFrom(buf []byte) (n int, from *net.UDPAddr, err error) {
	if err := e.conn.SetReadDeadline(time.Now().Add(e.readTimeout)); err != nil {
		return 0, nil, fmt.Errorf("udpendpoint: set read deadline: %w", err)
	}
	n, from, err = e.conn.ReadFromUDP(buf)
	return n, from, err
}

// WriteTo sends buf to addr. For unicast reciprocal-port interop, callers
// pass the address learned from ReadFrom (symmetric RTP); for multicast
// transmit they pass the group address fixed at stream configuration.
func (e *Endpoint) WriteTo(buf []byte, addr *net.UDPAddr) (int, error) {
	return e.conn.WriteToUDP(buf, addr)
}

// FixedRemote returns the configured fixed remote address, or nil if
// Config.RemoteAddr was left unset.
func (e *Endpoint) FixedRemote() *net.UDPAddr { return e.remote }

// LocalAddr returns the bound local address.
func (e *Endpoint) LocalAddr() *net.UDPAddr {
	return e.conn.LocalAddr().(*net.UDPAddr)
}

func setReuseAddrAndPort(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			sockErr = fmt.Errorf("SO_REUSEADDR: %w", err)
			return
		}
		// SO_REUSEPORT is not available on every platform (Linux/BSD
		// only); best-effort, since Windows lacks the option and
		// SO_REUSEADDR alone is sufficient there.
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
