package oob

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/anderbubble/prrte/pkg/procid"
	"github.com/anderbubble/prrte/pkg/rml"
)

// fakeConn is an adversarial, in-memory Conn: writeLimit/readLimit bound
// how many bytes a single Write/Read call accepts or returns, letting
// tests exercise the partial-write and partial-read paths deterministically
// without real sockets (§10, Test tooling).
type fakeConn struct {
	mu sync.Mutex

	writeBuf   bytes.Buffer
	writeLimit int

	readData   []byte
	readCursor int
	readLimit  int
	peerClosed bool

	fd int
}

var fakeConnFdCounter int

func newFakeConn() *fakeConn {
	fakeConnFdCounter++
	return &fakeConn{fd: fakeConnFdCounter}
}

func (c *fakeConn) Fd() int    { return c.fd }
func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Write(iovs [][]byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, seg := range iovs {
		total += len(seg)
	}
	limit := total
	if c.writeLimit > 0 && c.writeLimit < limit {
		limit = c.writeLimit
	}
	written := 0
	for _, seg := range iovs {
		if written >= limit {
			break
		}
		take := len(seg)
		if written+take > limit {
			take = limit - written
		}
		c.writeBuf.Write(seg[:take])
		written += take
		if take < len(seg) {
			break
		}
	}
	return written, nil
}

func (c *fakeConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining := len(c.readData) - c.readCursor
	if remaining <= 0 {
		if c.peerClosed {
			return 0, nil
		}
		return 0, ErrAgain
	}
	n := remaining
	if c.readLimit > 0 && c.readLimit < n {
		n = c.readLimit
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, c.readData[c.readCursor:c.readCursor+n])
	c.readCursor += n
	return n, nil
}

// fakeEventLoop is a synchronous EventLoop: Register invokes the callback
// immediately (inline) if the requested edges are satisfied, the way a
// socket that is already connected/readable would fire right away on a
// real epoll instance. Tests that need finer control call fire directly.
type fakeEventLoop struct {
	mu     sync.Mutex
	regs   map[int]func(writable, readable bool)
	timers map[int]func()
}

func newFakeEventLoop() *fakeEventLoop {
	return &fakeEventLoop{
		regs:   make(map[int]func(writable, readable bool)),
		timers: make(map[int]func()),
	}
}

func (l *fakeEventLoop) Register(fd int, writable, readable bool, cb func(writable, readable bool)) error {
	l.mu.Lock()
	l.regs[fd] = cb
	l.mu.Unlock()
	if writable || readable {
		cb(writable, readable)
	}
	return nil
}

func (l *fakeEventLoop) Modify(fd int, writable, readable bool) error {
	return nil
}

func (l *fakeEventLoop) Remove(fd int) error {
	l.mu.Lock()
	delete(l.regs, fd)
	l.mu.Unlock()
	return nil
}

func (l *fakeEventLoop) ArmTimer(fd int, d time.Duration, cb func()) error {
	l.mu.Lock()
	l.timers[fd] = cb
	l.mu.Unlock()
	return nil
}

func (l *fakeEventLoop) CancelTimer(fd int) error {
	l.mu.Lock()
	delete(l.timers, fd)
	l.mu.Unlock()
	return nil
}

func (l *fakeEventLoop) fire(fd int, writable, readable bool) {
	l.mu.Lock()
	cb := l.regs[fd]
	l.mu.Unlock()
	if cb != nil {
		cb(writable, readable)
	}
}

// fakeDialer hands back a pre-built fakeConn, or err when one is set.
type fakeDialer struct {
	conn *fakeConn
	err  error
}

func (d *fakeDialer) Dial(name procid.ProcId) (Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

// fakeHandshaker reports whatever status and error it was built with.
type fakeHandshaker struct {
	status Status
	err    error
}

func (h *fakeHandshaker) Handshake(conn Conn) (Status, error) {
	return h.status, h.err
}

// fakeDeliverer records every call the transport makes upward, so tests
// can assert on ordering and exactly-once completion (§8).
type fakeDeliverer struct {
	mu sync.Mutex

	delivered []deliveredFrame
	completed []completedSend
	failed    []procid.ProcId
	forwarded []*rml.Message
}

type deliveredFrame struct {
	Origin  procid.ProcId
	Tag     int32
	SeqNum  uint32
	Payload []byte
}

type completedSend struct {
	Msg    *rml.Message
	Status rml.Status
}

func (d *fakeDeliverer) DeliverLocal(ctx context.Context, origin procid.ProcId, tag int32, seqNum uint32, payload []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delivered = append(d.delivered, deliveredFrame{origin, tag, seqNum, payload})
}

func (d *fakeDeliverer) SendComplete(ctx context.Context, msg *rml.Message, status rml.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.completed = append(d.completed, completedSend{msg, status})
}

func (d *fakeDeliverer) SignalJobState(ctx context.Context, state rml.JobState, peer procid.ProcId) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failed = append(d.failed, peer)
}

func (d *fakeDeliverer) SubmitOOB(ctx context.Context, msg *rml.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.forwarded = append(d.forwarded, msg)
	return nil
}
