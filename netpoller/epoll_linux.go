//go:build linux

package netpoller

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/sigma957/MaxScale/dcb"
)

// Poller is the epoll-backed implementation of dcb.Poller.
type Poller struct {
	svc *dcb.Service

	epfd int

	reg     *registry
	workers workerSet

	mu      sync.Mutex
	running int
}

// New creates a Poller bound to svc, which its Run workers use to drain
// writeq on write-readiness (see dispatch).
func New(svc *dcb.Service) (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("netpoller: epoll_create1: %w", err)
	}
	return &Poller{
		svc:  svc,
		epfd: epfd,
		reg:  newFDRegistry(),
	}, nil
}

// Add registers d's fd for read/write readiness (spec §4.3 step 4).
func (p *Poller) Add(d *dcb.DCB) error {
	fd := d.FD()
	if fd < 0 {
		return dcb.ErrClosed
	}
	ev := &unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLRDHUP, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return fmt.Errorf("netpoller: epoll_ctl add: %w", err)
	}
	p.reg.set(fd, entry{dcb: d, events: dcb.EventRead | dcb.EventWrite})
	return nil
}

// Remove deregisters d's fd (spec §4.6 step 2). Safe to call more than
// once, including after the fd has already been closed.
func (p *Poller) Remove(d *dcb.DCB) error {
	fd := d.FD()
	if fd < 0 {
		return nil
	}
	p.reg.delete(fd)
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		// ENOENT/EBADF means it's already gone, which is fine for an
		// idempotent Remove.
		if err == unix.ENOENT || err == unix.EBADF {
			return nil
		}
		return fmt.Errorf("netpoller: epoll_ctl del: %w", err)
	}
	return nil
}

// LiveWorkers reports which worker ids are currently inside Run's loop.
func (p *Poller) LiveWorkers() dcb.WorkerSet {
	return p.workers.snapshot()
}

// Run blocks, dispatching readiness events to worker until ctx-like
// stop is requested via Close. worker is this goroutine's id, used only
// to populate LiveWorkers' bitmask (spec §4.7's per-worker bit).
func (p *Poller) Run(worker int) error {
	if worker < 0 || worker >= dcb.MaxWorkers {
		return fmt.Errorf("netpoller: worker id %d out of range", worker)
	}

	p.mu.Lock()
	p.running++
	p.mu.Unlock()
	p.workers.markLive(worker)
	defer p.workers.markDead(worker)
	defer func() {
		p.mu.Lock()
		p.running--
		p.mu.Unlock()
	}()

	var events [256]unix.EpollEvent
	for {
		n, err := unix.EpollWait(p.epfd, events[:], -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("netpoller: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			e, ok := p.reg.get(fd)
			if !ok {
				continue
			}
			dispatch(p.svc, p, e.dcb, epollToEvents(events[i].Events))
		}

		// spec §4.7: every polling worker clears its own bit from the
		// zombie list once per poll cycle, regardless of whether this
		// tick delivered any events for it.
		p.svc.ProcessZombies(worker)
	}
}

// Close shuts down the underlying epoll fd; every blocked Run worker
// returns an error once this happens.
func (p *Poller) Close() error {
	return unix.Close(p.epfd)
}

func epollToEvents(mask uint32) dcb.IOEvents {
	var ev dcb.IOEvents
	if mask&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
		ev |= dcb.EventRead
	}
	if mask&unix.EPOLLOUT != 0 {
		ev |= dcb.EventWrite
	}
	if mask&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		ev |= dcb.EventHangup
	}
	if mask&unix.EPOLLERR != 0 {
		ev |= dcb.EventError
	}
	return ev
}
