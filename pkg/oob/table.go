// Package oob implements the out-of-band TCP transport: a per-peer,
// event-driven, length-prefixed message pipe. See SPEC_FULL.md §4 for the
// component design this package follows.
package oob

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/datawire/dlib/dlog"

	"github.com/anderbubble/prrte/pkg/procid"
	"github.com/anderbubble/prrte/pkg/rml"
)

// maxConcurrentConnects bounds how many outbound connect attempts the
// table drives at once, so activating many peers at job-launch time does
// not open unbounded simultaneous connect() calls (§5, "bounded concurrent
// connects").
const maxConcurrentConnects = 64

// Table is the peer table: the transport's single owner of all Peer
// state, addressed by ProcId. It plays the role connpool.Pool plays for
// connpool.ConnID in the teacher.
type Table struct {
	mu    sync.Mutex
	peers map[procid.ProcId]*Peer

	self       procid.ProcId
	deliverer  rml.Deliverer
	dialer     Dialer
	handshaker Handshaker
	loop       EventLoop

	connectSem *semaphore.Weighted
}

// NewTable builds an empty peer table. self is this process's own ProcId,
// used by the dispatch decision (§4.7) to tell local delivery from relay.
func NewTable(self procid.ProcId, deliverer rml.Deliverer, dialer Dialer, handshaker Handshaker, loop EventLoop) *Table {
	return &Table{
		peers:      make(map[procid.ProcId]*Peer),
		self:       self,
		deliverer:  deliverer,
		dialer:     dialer,
		handshaker: handshaker,
		loop:       loop,
		connectSem: semaphore.NewWeighted(maxConcurrentConnects),
	}
}

func (t *Table) getOrCreate(name procid.ProcId) *Peer {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.peers[name]; ok {
		return p
	}
	p := newPeer(name)
	t.peers[name] = p
	return p
}

// Get returns the peer for name, if one has been created.
func (t *Table) Get(name procid.ProcId) (*Peer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[name]
	return p, ok
}

// Peers returns a snapshot of every peer currently tracked, for
// diagnostics and idle sweeping. Callers must not rely on ordering.
func (t *Table) Peers() []*Peer {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, p)
	}
	return out
}

// SweepClosed drops peer entries left in PeerClosed state with no pending
// work, bounding the table's memory growth in a long-running process that
// sees many peers churn through CLOSED over its lifetime. Returns the
// number of entries dropped.
func (t *Table) SweepClosed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	dropped := 0
	for name, p := range t.peers {
		p.mu.Lock()
		idle := p.State == PeerClosed && p.sendOnDeck == nil && len(p.sendQueue) == 0
		p.mu.Unlock()
		if idle {
			delete(t.peers, name)
			dropped++
		}
	}
	return dropped
}

// Submit implements §4.2 (queue_msg): enqueue sr onto the peer named by
// dst, and drive connection/event activation if sr.Activate is set.
// Submit never blocks and performs no I/O itself.
func (t *Table) Submit(ctx context.Context, dst procid.ProcId, sr *SendRequest) error {
	p := t.getOrCreate(dst)

	p.mu.Lock()
	if p.sendOnDeck == nil {
		p.sendOnDeck = sr
	} else {
		p.sendQueue = append(p.sendQueue, sr)
	}
	needConnect := false
	needActivateSend := false
	if sr.Activate {
		if p.State != PeerConnected {
			if p.State == PeerClosed {
				p.State = PeerConnecting
				needConnect = true
			}
		} else if !p.sendEventActive {
			p.sendEventActive = true
			needActivateSend = true
		}
	}
	p.mu.Unlock()

	if needActivateSend {
		if err := t.loop.Modify(p.Conn.Fd(), true, true); err != nil {
			return errors.Wrap(err, "oob: activate send event")
		}
	}
	if needConnect {
		go t.connect(ctx, p)
	}
	return nil
}

// connect runs the CLOSED→CONNECTING transition's "begin connect" action
// on a bounded worker goroutine (§5's bounded-concurrent-connects
// requirement), then hands the established socket to the event loop so
// the rest of §4.1 proceeds as ordinary callback dispatch.
func (t *Table) connect(ctx context.Context, p *Peer) {
	if err := t.connectSem.Acquire(ctx, 1); err != nil {
		dlog.Errorf(ctx, "oob: %s: connect semaphore: %v", p.Name, err)
		return
	}
	defer t.connectSem.Release(1)

	conn, err := t.dialer.Dial(p.Name)
	if err != nil {
		dlog.Errorf(ctx, "oob: %s: dial failed: %v", p.Name, err)
		t.failPeer(ctx, p)
		return
	}

	p.mu.Lock()
	p.Conn = conn
	p.mu.Unlock()

	if err := t.loop.Register(conn.Fd(), true, false, t.eventCallback(ctx, p)); err != nil {
		dlog.Errorf(ctx, "oob: %s: register connect event: %v", p.Name, err)
		t.failPeer(ctx, p)
	}
}

// eventCallback builds the single dispatch function the event loop calls
// on each readable/writable edge for p's socket, routing to the send or
// recv handler (or both, if both edges fired in the same poll).
func (t *Table) eventCallback(ctx context.Context, p *Peer) func(writable, readable bool) {
	return func(writable, readable bool) {
		if writable {
			t.sendHandler(ctx, p)
		}
		if readable {
			t.recvHandler(ctx, p)
		}
	}
}

// RegisterAccepted adopts a passively-accepted connection into the table,
// mirroring the active side's connect() but skipping straight to
// CONNECT_ACK since the TCP handshake is already complete (the listener's
// accept() collaborator did that part).
func (t *Table) RegisterAccepted(ctx context.Context, name procid.ProcId, conn Conn) {
	p := t.getOrCreate(name)
	p.mu.Lock()
	p.Conn = conn
	p.State = PeerConnectAck
	p.recvEventActive = true
	p.timerEventActive = true
	p.mu.Unlock()

	if err := t.loop.Register(conn.Fd(), false, true, t.eventCallback(ctx, p)); err != nil {
		dlog.Errorf(ctx, "oob: %s: register accepted conn: %v", name, err)
		t.failPeer(ctx, p)
		return
	}
	if err := t.loop.ArmTimer(conn.Fd(), handshakeTimeout, func() {
		dlog.Warnf(ctx, "oob: %s: handshake timed out on accepted conn", name)
		t.failPeer(ctx, p)
	}); err != nil {
		dlog.Errorf(ctx, "oob: %s: arm accept handshake timer: %v", name, err)
	}
}

// failPeer implements the FAILED transition (§4.1: "disable recv, signal
// COMM_FAILED") before running the same teardown every other path into
// closed state uses.
func (t *Table) failPeer(ctx context.Context, p *Peer) {
	dlog.Errorf(ctx, "oob: %s: transport failure", p.Name)
	p.mu.Lock()
	p.State = PeerFailed
	p.recvEventActive = false
	p.mu.Unlock()
	t.deliverer.SignalJobState(ctx, rml.JobStateCommFailed, p.Name)
	t.closePeer(ctx, p)
}

// closePeer implements the "any → close()" transition: release all event
// registrations and drop in-flight state. It returns the underlying
// conn's Close error, if any, so callers tearing down many peers at once
// can aggregate failures.
func (t *Table) closePeer(ctx context.Context, p *Peer) error {
	p.mu.Lock()
	conn := p.Conn
	onDeck := p.sendOnDeck
	queue := p.sendQueue
	p.sendOnDeck = nil
	p.sendQueue = nil
	p.currentRecv = nil
	p.sendEventActive = false
	p.recvEventActive = false
	p.timerEventActive = false
	p.State = PeerClosed
	p.mu.Unlock()

	var closeErr error
	if conn != nil {
		_ = t.loop.Remove(conn.Fd())
		_ = t.loop.CancelTimer(conn.Fd())
		closeErr = conn.Close()
	}

	for _, sr := range allPending(onDeck, queue) {
		t.completeSend(ctx, sr, rml.StatusCommFailure)
	}
	return closeErr
}

// Shutdown tears down every peer still connected, aggregating per-peer
// close errors via go-multierror. It is the transport's counterpart to a
// graceful process exit with live OOB peers.
func (t *Table) Shutdown(ctx context.Context) error {
	var result *multierror.Error
	for _, p := range t.Peers() {
		name, state := p.Snapshot()
		if state == PeerClosed {
			continue
		}
		dlog.Infof(ctx, "oob: %s: closing live peer on shutdown (state=%s)", name, state)
		if err := t.closePeer(ctx, p); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "oob: close peer %s", name))
		}
	}
	return result.ErrorOrNil()
}

func allPending(onDeck *SendRequest, queue []*SendRequest) []*SendRequest {
	if onDeck == nil {
		return queue
	}
	out := make([]*SendRequest, 0, len(queue)+1)
	out = append(out, onDeck)
	out = append(out, queue...)
	return out
}

// completeSend applies the completion policy from §4.3: a relay request
// is simply released; an RML-owned message gets sendComplete fired
// exactly once.
func (t *Table) completeSend(ctx context.Context, sr *SendRequest, status rml.Status) {
	if sr.IsRelay() {
		return
	}
	t.deliverer.SendComplete(ctx, sr.RMLMsg(), status)
}
