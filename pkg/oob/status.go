package oob

import "fmt"

// Status is the result of one writeOnce or readExact attempt.
type Status int

const (
	// StatusDone means the whole frame (or the requested segment) has
	// been fully written/read.
	StatusDone Status = iota
	// StatusBusy means the operation made partial progress, or hit a
	// bounded run of EAGAIN, and should be retried when the event
	// re-fires.
	StatusBusy
	// StatusWouldBlock is StatusBusy's sibling for the EWOULDBLOCK path;
	// see the note on ErrWouldBlock in conn.go.
	StatusWouldBlock
	// StatusFatal means the I/O failed for a reason other than
	// transient blocking; the peer must be torn down.
	StatusFatal
	// StatusPeerClosed means a read returned 0: the peer closed its
	// write side. Internally distinguishable from StatusWouldBlock, but
	// the recv handler's outward behavior on this path intentionally
	// mirrors StatusWouldBlock's "just return" shape (see recv.go) to
	// preserve the legacy aliasing called out in the design notes.
	StatusPeerClosed
	// StatusUnreach means the handshake read could not reach the peer;
	// non-fatal during CONNECT_ACK.
	StatusUnreach
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "Done"
	case StatusBusy:
		return "Busy"
	case StatusWouldBlock:
		return "WouldBlock"
	case StatusFatal:
		return "Fatal"
	case StatusPeerClosed:
		return "PeerClosed"
	case StatusUnreach:
		return "Unreach"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}
