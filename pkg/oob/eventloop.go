package oob

import (
	"time"

	"github.com/anderbubble/prrte/pkg/procid"
)

// EventLoop is the reactor surface the transport needs: level-triggered
// readable/writable registration per file descriptor, plus a one-shot
// timer used only during CONNECT_ACK (§5). *reactor.Reactor satisfies this
// interface; tests use a synchronous fake that invokes callbacks inline.
type EventLoop interface {
	// Register arms writable and/or readable interest on fd. cb is
	// invoked with the edges that fired; it must not block.
	Register(fd int, writable, readable bool, cb func(writable, readable bool)) error
	// Modify changes which edges are armed for an already-registered fd.
	Modify(fd int, writable, readable bool) error
	// Remove deregisters fd. After Remove returns, cb will not be
	// invoked again for fd.
	Remove(fd int) error
	// ArmTimer schedules cb to run once after d unless CancelTimer(fd)
	// is called first.
	ArmTimer(fd int, d time.Duration, cb func()) error
	// CancelTimer cancels a pending timer armed by ArmTimer, if any.
	CancelTimer(fd int) error
}

// Dialer starts a non-blocking outbound connection to a peer. Dial must
// not block waiting for the TCP handshake to complete; the returned Conn
// becomes usable once the EventLoop reports it writable.
type Dialer interface {
	Dial(name procid.ProcId) (Conn, error)
}

// Handshaker performs the connection-establishment exchange consumed
// opaquely by this module (§1 Out of scope: "the connection-establishment
// handshake byte format"). It is invoked on each readable edge while a
// peer is in CONNECT_ACK: after a dialed socket has become writable
// (active side), or once accepted (passive side).
type Handshaker interface {
	// Handshake attempts to complete the handshake on conn, non-blocking.
	// A Busy/WouldBlock result means try again on the next readable
	// event; Unreach is non-fatal per §4.1.
	Handshake(conn Conn) (Status, error)
}
