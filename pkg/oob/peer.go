package oob

import (
	"fmt"
	"sync"

	"github.com/anderbubble/prrte/pkg/procid"
)

// PeerState is the connection-manager state of a remote process. Go has no
// sum types, so the handlers switch on it with a default branch that logs
// the unexpected state instead of panicking; nothing is checked at compile
// time.
type PeerState byte

const (
	PeerClosed PeerState = iota
	PeerConnecting
	PeerConnectAck
	PeerConnected
	PeerAccepting
	PeerFailed
)

func (s PeerState) String() string {
	switch s {
	case PeerClosed:
		return "CLOSED"
	case PeerConnecting:
		return "CONNECTING"
	case PeerConnectAck:
		return "CONNECT_ACK"
	case PeerConnected:
		return "CONNECTED"
	case PeerAccepting:
		return "ACCEPTING"
	case PeerFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("PeerState(%d)", byte(s))
	}
}

// Peer is the per-remote-ProcId transport state described in §3. All
// mutation happens on the transport's single event-loop goroutine; the
// mutex exists only to guard the narrow cross-goroutine paths (Submit
// called from a caller outside the loop, and the bounded-connect
// semaphore's callback).
type Peer struct {
	mu sync.Mutex

	Name  procid.ProcId
	Conn  Conn
	State PeerState

	sendOnDeck *SendRequest
	sendQueue  []*SendRequest

	currentRecv *RecvBuffer

	sendEventActive  bool
	recvEventActive  bool
	timerEventActive bool
}

func newPeer(name procid.ProcId) *Peer {
	return &Peer{Name: name, State: PeerClosed}
}

// Snapshot returns p's name and current state under lock, for diagnostics
// (e.g. a periodic peer-table sweep) that must not race the event loop.
func (p *Peer) Snapshot() (procid.ProcId, PeerState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Name, p.State
}

// checkInvariants validates the per-boundary invariants from §3. It is
// not called from the production hot paths, which keeps the cost of
// exhaustive assertions off the event loop; no code in this package calls
// it at present.
func (p *Peer) checkInvariants() error {
	if p.sendOnDeck == nil && len(p.sendQueue) > 0 && p.State == PeerConnected {
		return fmt.Errorf("oob: peer %s has queued sends but no on-deck message while CONNECTED", p.Name)
	}
	if p.sendEventActive && !(p.State == PeerConnected && p.sendOnDeck != nil) {
		return fmt.Errorf("oob: peer %s has sendEvent active outside CONNECTED+on-deck", p.Name)
	}
	if p.recvEventActive && !(p.State == PeerConnectAck || p.State == PeerConnected) {
		return fmt.Errorf("oob: peer %s has recvEvent active outside CONNECT_ACK/CONNECTED", p.Name)
	}
	return nil
}
