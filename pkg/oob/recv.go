package oob

import (
	"context"

	"github.com/datawire/dlib/dlog"

	"github.com/anderbubble/prrte/pkg/procid"
	"github.com/anderbubble/prrte/pkg/rml"
)

// recvHandler is the readable-edge callback (§4.5).
func (t *Table) recvHandler(ctx context.Context, p *Peer) {
	p.mu.Lock()
	state := p.State
	conn := p.Conn
	p.mu.Unlock()

	switch state {
	case PeerConnectAck:
		t.recvHandshake(ctx, p, conn)
	case PeerConnected:
		t.recvFrame(ctx, p, conn)
	default:
		dlog.Warnf(ctx, "oob: %s: recv_handler called in state %s", p.Name, state)
	}
}

func (t *Table) recvHandshake(ctx context.Context, p *Peer, conn Conn) {
	status, err := t.handshaker.Handshake(conn)
	switch status {
	case StatusDone:
		fd := conn.Fd()
		p.mu.Lock()
		p.State = PeerConnected
		p.recvEventActive = true
		p.timerEventActive = false
		activateSend := activateQueueOnConnect(p)
		p.mu.Unlock()

		_ = t.loop.CancelTimer(fd)
		if err := t.loop.Modify(fd, activateSend, true); err != nil {
			dlog.Errorf(ctx, "oob: %s: arm post-handshake events: %v", p.Name, err)
		}
	case StatusBusy, StatusWouldBlock:
		// retry on next readable edge
	case StatusUnreach:
		// Deliberately non-fatal: stay in CONNECT_ACK, let the timer or
		// an external retry policy re-drive the connect (§4.1, §9).
		dlog.Warnf(ctx, "oob: %s: handshake UNREACH, retry pending", p.Name)
	default:
		dlog.Errorf(ctx, "oob: %s: handshake failed: %v", p.Name, err)
		p.mu.Lock()
		p.recvEventActive = false
		p.mu.Unlock()
		t.failPeer(ctx, p)
	}
}

func (t *Table) recvFrame(ctx context.Context, p *Peer, conn Conn) {
	p.mu.Lock()
	if p.currentRecv == nil {
		p.currentRecv = newRecvBuffer()
	}
	rb := p.currentRecv
	p.mu.Unlock()

	if !rb.hdrRecvd {
		status, err := readExact(conn, rb.hdrBuf[:], &rb.hdrCursor)
		switch status {
		case StatusDone:
			hdr, uerr := procid.UnmarshalHeader(rb.hdrBuf[:])
			if uerr != nil {
				dlog.Errorf(ctx, "oob: %s: %v", p.Name, uerr)
				t.failPeer(ctx, p)
				return
			}
			rb.Hdr = hdr
			rb.hdrRecvd = true
			if hdr.PayloadBytes == 0 {
				rb.Payload = nil
			} else {
				rb.Payload = make([]byte, hdr.PayloadBytes)
			}
			// fall through to the body read below
		case StatusBusy, StatusWouldBlock:
			return
		case StatusPeerClosed:
			t.teardownOnPeerClosed(ctx, p)
			return
		case StatusFatal:
			dlog.Errorf(ctx, "oob: %s: header read failed: %v", p.Name, err)
			p.mu.Lock()
			p.currentRecv = nil
			p.mu.Unlock()
			t.closePeer(ctx, p)
			return
		}
	}

	if rb.Hdr.PayloadBytes > 0 {
		status, err := readExact(conn, rb.Payload, &rb.payloadCursor)
		switch status {
		case StatusDone:
			// fall through to dispatch
		case StatusBusy, StatusWouldBlock:
			return
		case StatusPeerClosed:
			t.teardownOnPeerClosed(ctx, p)
			return
		case StatusFatal:
			dlog.Errorf(ctx, "oob: %s: payload read failed: %v", p.Name, err)
			p.mu.Lock()
			p.recvEventActive = false
			p.currentRecv = nil
			p.mu.Unlock()
			t.failPeer(ctx, p)
			return
		}
	}

	payload := rb.Payload
	hdr := rb.Hdr
	p.mu.Lock()
	p.currentRecv = nil
	p.mu.Unlock()
	t.dispatch(ctx, hdr, payload)
}

// teardownOnPeerClosed implements §4.6's "rc == 0" terminal path: tear
// down all three events, release currentRecv, close the peer. Internally
// this is StatusPeerClosed, but externally the recv handler simply
// returns here exactly as it would for StatusWouldBlock — the legacy
// aliasing the design notes call out — while closePeer guarantees the
// event loop can never re-arm this peer again.
func (t *Table) teardownOnPeerClosed(ctx context.Context, p *Peer) {
	dlog.Debugf(ctx, "oob: %s: peer closed", p.Name)
	t.closePeer(ctx, p)
}

// dispatch implements §4.7: deliver locally, or forward.
func (t *Table) dispatch(ctx context.Context, hdr procid.Header, payload []byte) {
	dst := hdr.Dst()
	if dst == t.self {
		t.deliverer.DeliverLocal(ctx, hdr.Origin(), hdr.Tag, hdr.SeqNum, payload)
		return
	}

	msg := &rml.Message{
		Origin:  hdr.Origin(),
		Dst:     dst,
		Tag:     hdr.Tag,
		SeqNum:  hdr.SeqNum,
		Payload: payload,
	}
	if err := t.deliverer.SubmitOOB(ctx, msg); err != nil {
		dlog.Errorf(ctx, "oob: forward to %s failed: %v", dst, err)
	}
}
