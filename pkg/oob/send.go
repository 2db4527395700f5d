package oob

import (
	"context"
	"time"

	"github.com/datawire/dlib/dlog"

	"github.com/anderbubble/prrte/pkg/rml"
)

// handshakeTimeout bounds the CONNECT_ACK timer_event (§5 "Timeouts").
const handshakeTimeout = 10 * time.Second

// sendHandler is the writable-edge callback (§4.3).
func (t *Table) sendHandler(ctx context.Context, p *Peer) {
	p.mu.Lock()
	state := p.State
	p.mu.Unlock()

	switch state {
	case PeerConnecting, PeerClosed:
		t.completeConnect(ctx, p)
	case PeerConnected:
		t.driveSend(ctx, p)
	default:
		dlog.Warnf(ctx, "oob: %s: send_handler called in state %s", p.Name, state)
		p.mu.Lock()
		p.sendEventActive = false
		p.mu.Unlock()
		_ = t.loop.Modify(p.Conn.Fd(), false, p.recvEventActive)
	}
}

// completeConnect finishes the active-side TCP connect and moves the peer
// into CONNECT_ACK to await the handshake read (§4.1).
func (t *Table) completeConnect(ctx context.Context, p *Peer) {
	p.mu.Lock()
	p.State = PeerConnectAck
	p.sendEventActive = false
	p.recvEventActive = true
	p.timerEventActive = true
	fd := p.Conn.Fd()
	p.mu.Unlock()

	if err := t.loop.Modify(fd, false, true); err != nil {
		dlog.Errorf(ctx, "oob: %s: arm recv for handshake: %v", p.Name, err)
	}
	if err := t.loop.ArmTimer(fd, handshakeTimeout, func() {
		dlog.Warnf(ctx, "oob: %s: handshake timed out, restarting connect", p.Name)
		t.restartConnect(ctx, p)
	}); err != nil {
		dlog.Errorf(ctx, "oob: %s: arm handshake timer: %v", p.Name, err)
	}
}

func (t *Table) restartConnect(ctx context.Context, p *Peer) {
	p.mu.Lock()
	p.State = PeerConnecting
	p.mu.Unlock()
	go t.connect(ctx, p)
}

// driveSend runs writeOnce against the on-deck message and interprets the
// result per §4.3's dispatch table.
func (t *Table) driveSend(ctx context.Context, p *Peer) {
	p.mu.Lock()
	sr := p.sendOnDeck
	conn := p.Conn
	p.mu.Unlock()

	if sr == nil {
		return
	}

	status, err := writeOnce(conn, sr)
	switch status {
	case StatusDone:
		if !sr.done() {
			dlog.Errorf(ctx, "oob: %s: writeOnce reported Done with payload outstanding (%d/%d bytes)",
				p.Name, sr.payloadCursor, len(sr.payload()))
			return
		}
		t.completeSend(ctx, sr, rml.StatusOK)
		t.advanceSendQueue(ctx, p)
	case StatusBusy, StatusWouldBlock:
		// Callback fires again; nothing to do.
	case StatusFatal:
		dlog.Errorf(ctx, "oob: %s: send failed: %v", p.Name, err)
		t.completeSend(ctx, sr, rml.StatusCommFailure)
		p.mu.Lock()
		p.sendOnDeck = nil
		p.sendEventActive = false
		p.mu.Unlock()
		t.failPeer(ctx, p)
	default:
		dlog.Errorf(ctx, "oob: %s: unexpected send status %s", p.Name, status)
		p.mu.Lock()
		p.sendEventActive = false
		p.mu.Unlock()
	}
}

// advanceSendQueue promotes the queue head onto on-deck, matching §4.3's
// "promote queue head to on-deck; if no on-deck remains, deactivate
// sendEvent". It returns to the loop without looping over further
// messages itself: the fairness contract from §4.3.
func (t *Table) advanceSendQueue(ctx context.Context, p *Peer) {
	p.mu.Lock()
	if len(p.sendQueue) > 0 {
		p.sendOnDeck = p.sendQueue[0]
		p.sendQueue = p.sendQueue[1:]
	} else {
		p.sendOnDeck = nil
		p.sendEventActive = false
	}
	fd := p.Conn.Fd()
	wantWritable := p.sendEventActive
	wantReadable := p.recvEventActive
	p.mu.Unlock()

	if err := t.loop.Modify(fd, wantWritable, wantReadable); err != nil {
		dlog.Errorf(ctx, "oob: %s: modify send event: %v", p.Name, err)
	}
}

// activateQueueOnConnect drains the queue onto on-deck if empty and
// activates the send event if an on-deck message exists, per the
// CONNECT_ACK→CONNECTED transition's action column.
func activateQueueOnConnect(p *Peer) (activateSend bool) {
	if p.sendOnDeck == nil && len(p.sendQueue) > 0 {
		p.sendOnDeck = p.sendQueue[0]
		p.sendQueue = p.sendQueue[1:]
	}
	if p.sendOnDeck != nil {
		p.sendEventActive = true
		return true
	}
	return false
}
