//go:build linux

// Package reactor is a minimal epoll-based level-triggered event loop. It
// knows nothing about peers, frames, or the mapper; it only multiplexes
// readable/writable readiness across file descriptors, the way the
// teacher's own low-level OS glue (pkg/client/daemon/tun/syscall_linux.go)
// wraps golang.org/x/sys/unix directly instead of reaching for a
// higher-level abstraction that would hide the readiness edges the
// transport's partial-write/partial-read kernels depend on.
//
// This package is Linux-only, following the teacher's own convention of
// splitting OS-specific code into GOOS-suffixed files (route_linux.go /
// route_darwin.go, tuntap_linux.go, server_linux.go / server_darwin.go):
// the cluster job launcher this module belongs to only ever runs on Linux
// compute nodes, so no second platform file is added.
package reactor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/datawire/dlib/dlog"
)

const maxEvents = 256

type registration struct {
	writable bool
	readable bool
	cb       func(writable, readable bool)
}

// Reactor wraps a single epoll instance.
type Reactor struct {
	epfd int

	mu    sync.Mutex
	regs  map[int]*registration
	timers map[int]*time.Timer
}

// New creates an epoll instance.
func New() (*Reactor, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	return &Reactor{
		epfd:   fd,
		regs:   make(map[int]*registration),
		timers: make(map[int]*time.Timer),
	}, nil
}

func eventMask(writable, readable bool) uint32 {
	var mask uint32
	if readable {
		mask |= unix.EPOLLIN
	}
	if writable {
		mask |= unix.EPOLLOUT
	}
	return mask
}

// Register arms fd for the given edges; cb is invoked (off the calling
// goroutine, from Run) whenever the kernel reports readiness.
func (r *Reactor) Register(fd int, writable, readable bool, cb func(writable, readable bool)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg := &registration{writable: writable, readable: readable, cb: cb}
	r.regs[fd] = reg
	ev := unix.EpollEvent{Events: eventMask(writable, readable), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		delete(r.regs, fd)
		return fmt.Errorf("reactor: epoll_ctl(ADD, %d): %w", fd, err)
	}
	return nil
}

// Modify changes which edges are armed for fd.
func (r *Reactor) Modify(fd int, writable, readable bool) error {
	r.mu.Lock()
	reg, ok := r.regs[fd]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("reactor: modify unknown fd %d", fd)
	}
	reg.writable, reg.readable = writable, readable
	r.mu.Unlock()

	ev := unix.EpollEvent{Events: eventMask(writable, readable), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("reactor: epoll_ctl(MOD, %d): %w", fd, err)
	}
	return nil
}

// Remove deregisters fd.
func (r *Reactor) Remove(fd int) error {
	r.mu.Lock()
	delete(r.regs, fd)
	r.mu.Unlock()
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil && err != unix.ENOENT {
		return fmt.Errorf("reactor: epoll_ctl(DEL, %d): %w", fd, err)
	}
	return nil
}

// ArmTimer schedules a one-shot timer keyed by fd (reusing the peer's
// socket fd as the timer's identity, since §5 only ever arms one timer per
// peer).
func (r *Reactor) ArmTimer(fd int, d time.Duration, cb func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.timers[fd]; ok {
		existing.Stop()
	}
	r.timers[fd] = time.AfterFunc(d, cb)
	return nil
}

// CancelTimer cancels a pending timer for fd, if any.
func (r *Reactor) CancelTimer(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.timers[fd]; ok {
		t.Stop()
		delete(r.timers, fd)
	}
	return nil
}

// Run polls until ctx is canceled, dispatching readiness callbacks
// synchronously from this goroutine — the single-threaded cooperative
// event loop required by §5.
func (r *Reactor) Run(ctx context.Context) error {
	events := make([]unix.EpollEvent, maxEvents)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, err := unix.EpollWait(r.epfd, events, 250)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("reactor: epoll_wait: %w", err)
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			r.mu.Lock()
			reg, ok := r.regs[fd]
			r.mu.Unlock()
			if !ok {
				continue
			}
			writable := events[i].Events&unix.EPOLLOUT != 0
			readable := events[i].Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0
			if !writable && !readable {
				continue
			}
			reg.cb(writable, readable)
		}
	}
}

// Close releases the epoll fd. Any remaining timers are stopped.
func (r *Reactor) Close() error {
	r.mu.Lock()
	for fd, t := range r.timers {
		t.Stop()
		delete(r.timers, fd)
	}
	r.mu.Unlock()
	if err := unix.Close(r.epfd); err != nil {
		dlog.Errorf(context.Background(), "reactor: close epoll fd: %v", err)
		return err
	}
	return nil
}
