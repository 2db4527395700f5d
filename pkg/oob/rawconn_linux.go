//go:build linux

package oob

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/anderbubble/prrte/pkg/procid"
)

// rawConn wraps a non-blocking raw socket file descriptor. It is the
// production Conn implementation; reactor_linux.go and this file are the
// only places in the module that touch golang.org/x/sys/unix directly,
// following the teacher's syscall_linux.go convention of small, focused
// wrapper functions around raw unix.* calls.
type rawConn struct {
	fd int
}

func (c *rawConn) Fd() int { return c.fd }

func (c *rawConn) Close() error {
	return unix.Close(c.fd)
}

// classifyErrno turns a raw syscall errno into the sentinel errors
// iokernel.go retries or surfaces. Linux's EWOULDBLOCK is EAGAIN; a
// production rawConn can therefore only ever observe ErrAgain, never
// ErrWouldBlock — see the design note on EAGAIN vs EWOULDBLOCK in
// DESIGN.md. ErrWouldBlock stays reachable through fake Conns in tests.
func classifyErrno(err error) error {
	switch err {
	case nil:
		return nil
	case unix.EINTR:
		return ErrInterrupted
	case unix.EAGAIN:
		return ErrAgain
	default:
		return err
	}
}

func (c *rawConn) Read(p []byte) (int, error) {
	n, err := unix.Read(c.fd, p)
	if err != nil {
		return 0, classifyErrno(err)
	}
	return n, nil
}

func (c *rawConn) Write(iovs [][]byte) (int, error) {
	n, err := unix.Writev(c.fd, iovs)
	if err != nil {
		return 0, classifyErrno(err)
	}
	return n, nil
}

// rawDialer opens non-blocking outbound TCP connections. addrOf resolves
// a ProcId to a dialable "host:port" string; in production this comes
// from the RML's contact-information exchange (out of scope for this
// module — §1), so rawDialer is handed a resolver function rather than
// owning that lookup itself.
type rawDialer struct {
	addrOf func(procid.ProcId) (string, error)
}

// NewRawDialer builds a Dialer over raw non-blocking sockets, resolving
// peer contact addresses through addrOf.
func NewRawDialer(addrOf func(procid.ProcId) (string, error)) Dialer {
	return &rawDialer{addrOf: addrOf}
}

func (d *rawDialer) Dial(name procid.ProcId) (Conn, error) {
	addr, err := d.addrOf(name)
	if err != nil {
		return nil, fmt.Errorf("oob: resolve address for %s: %w", name, err)
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("oob: bad peer address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("oob: bad peer port %q: %w", portStr, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil, fmt.Errorf("oob: resolve host %q: %w", host, err)
		}
		ip = ips[0]
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("oob: socket: %w", err)
	}
	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ip.To4())

	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("oob: connect %s: %w", addr, err)
	}
	return &rawConn{fd: fd}, nil
}

// rawListener accepts inbound connections on a bound, listening,
// non-blocking socket.
type rawListener struct {
	fd int
}

// ListenRaw opens a non-blocking listening socket on addr ("host:port").
func ListenRaw(addr string) (*rawListener, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("oob: bad listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("oob: bad listen port %q: %w", portStr, err)
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("oob: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("oob: setsockopt SO_REUSEADDR: %w", err)
	}
	sa := &unix.SockaddrInet4{Port: port}
	if host != "" {
		ip := net.ParseIP(host)
		if ip != nil {
			copy(sa.Addr[:], ip.To4())
		}
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("oob: bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("oob: listen %s: %w", addr, err)
	}
	return &rawListener{fd: fd}, nil
}

func (l *rawListener) Fd() int { return l.fd }

// Accept accepts one pending connection, returning (nil, ErrAgain) when
// none is ready.
func (l *rawListener) Accept() (Conn, error) {
	fd, _, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK)
	if err != nil {
		return nil, classifyErrno(err)
	}
	return &rawConn{fd: fd}, nil
}

func (l *rawListener) Close() error {
	return unix.Close(l.fd)
}
