//go:build darwin

package netpoller

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/sigma957/MaxScale/dcb"
)

// Poller is the kqueue-backed implementation of dcb.Poller.
type Poller struct {
	svc *dcb.Service

	kq int

	reg     *registry
	workers workerSet

	mu      sync.Mutex
	running int
}

// New creates a Poller bound to svc, which its Run workers use to drain
// writeq on write-readiness (see dispatch).
func New(svc *dcb.Service) (*Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("netpoller: kqueue: %w", err)
	}
	unix.CloseOnExec(kq)
	return &Poller{
		svc: svc,
		kq:  kq,
		reg: newFDRegistry(),
	}, nil
}

// Add registers d's fd for read/write readiness (spec §4.3 step 4).
func (p *Poller) Add(d *dcb.DCB) error {
	fd := d.FD()
	if fd < 0 {
		return dcb.ErrClosed
	}
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_ENABLE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD | unix.EV_ENABLE},
	}
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
		return fmt.Errorf("netpoller: kevent add: %w", err)
	}
	p.reg.set(fd, entry{dcb: d, events: dcb.EventRead | dcb.EventWrite})
	return nil
}

// Remove deregisters d's fd (spec §4.6 step 2). Safe to call more than
// once, including after the fd has already been closed (the kernel
// drops the filters automatically on close, so an error here is
// swallowed).
func (p *Poller) Remove(d *dcb.DCB) error {
	fd := d.FD()
	if fd < 0 {
		return nil
	}
	p.reg.delete(fd)
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, _ = unix.Kevent(p.kq, changes, nil, nil)
	return nil
}

// LiveWorkers reports which worker ids are currently inside Run's loop.
func (p *Poller) LiveWorkers() dcb.WorkerSet {
	return p.workers.snapshot()
}

// Run blocks, dispatching readiness events until Close is called.
// worker is this goroutine's id, used only to populate LiveWorkers'
// bitmask (spec §4.7's per-worker bit).
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

	var events [256]unix.Kevent_t
	for {
		n, err := unix.Kevent(p.kq, nil, events[:], nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("netpoller: kevent wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Ident)
			e, ok := p.reg.get(fd)
			if !ok {
				continue
			}
			dispatch(p.svc, p, e.dcb, keventToEvents(&events[i]))
		}

		// spec §4.7: every polling worker clears its own bit from the
		// zombie list once per poll cycle, regardless of whether this
		// tick delivered any events for it.
		p.svc.ProcessZombies(worker)
	}
}

// Close shuts down the underlying kqueue descriptor; every blocked Run
// worker returns an error once this happens.
func (p *Poller) Close() error {
	return unix.Close(p.kq)
}

func keventToEvents(ev *unix.Kevent_t) dcb.IOEvents {
	var out dcb.IOEvents
	switch ev.Filter {
	case unix.EVFILT_READ:
		out |= dcb.EventRead
	case unix.EVFILT_WRITE:
		out |= dcb.EventWrite
	}
	if ev.Flags&unix.EV_EOF != 0 {
		out |= dcb.EventHangup
	}
	if ev.Flags&unix.EV_ERROR != 0 {
		out |= dcb.EventError
	}
	return out
}
