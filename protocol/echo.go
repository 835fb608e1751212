//go:build linux

// Package protocol provides a reference dcb.Protocol implementation: a
// byte-for-byte echo server modelled on spec §8 scenario S1 ("happy
// echo"). The dcb package's own tests use their own fake protocols, not
// this one.
//
// Grounded on spec §6's Protocol vtable description; there is no
// equivalent in the teacher repo (eventloop has no wire protocol
// concept at all), so the shape here follows the dcb package's own
// plain, comment-light style rather than any specific teacher file.
package protocol

import (
	"context"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/sigma957/MaxScale/dcb"
)

// Echo implements dcb.Protocol by writing back whatever it reads. It
// holds the Service it was constructed with, which is how Read/Write
// reach the DCB core's non-blocking I/O paths (spec §6: protocols call
// back into the core, the core never calls into protocols' internals).
type Echo struct {
	svc *dcb.Service

	nextListenerID atomic.Uint64
}

// NewEcho constructs an Echo protocol bound to svc.
func NewEcho(svc *dcb.Service) *Echo {
	return &Echo{svc: svc}
}

// Connect dials server with a non-blocking TCP connect.
func (e *Echo) Connect(ctx context.Context, d *dcb.DCB, server *dcb.Server) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, err
	}

	addr, err := resolveSockaddr(server.Address, server.Port)
	if err != nil {
		_ = unix.Close(fd)
		return -1, err
	}

	if err := unix.Connect(fd, addr); err != nil && err != unix.EINPROGRESS {
		_ = unix.Close(fd)
		return -1, err
	}

	return fd, nil
}

// Accept completes a pending connection on a listening DCB.
func (e *Echo) Accept(ctx context.Context, listener *dcb.DCB) (*dcb.DCB, error) {
	fd, _, err := unix.Accept4(listener.FD(), unix.SOCK_NONBLOCK)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil, nil
		}
		return nil, err
	}

	client := e.svc.Alloc(dcb.RoleRequestHandler)
	client.SetProtocol(e)
	client.SetFD(fd)
	client.Remote = remoteAddrString(fd)
	client.SetState(dcb.StatePolling)

	return client, nil
}

// Read drains whatever is ready on d and writes it straight back out
// (spec §8 S1: the echo round trip). This is the simplest possible
// protocol handler: read path -> write path, no framing.
func (e *Echo) Read(d *dcb.DCB) error {
	chain := dcb.NewBufferChain()
	_, err := e.svc.Read(d, chain)
	if err != nil {
		e.svc.Close(d)
		return err
	}
	if chain.Empty() {
		return nil
	}
	e.svc.Write(d, chain)
	return nil
}

// Write is invoked for application-initiated sends; echo never
// originates its own writes outside of the read-then-echo path, so this
// simply forwards to the core write path.
func (e *Echo) Write(d *dcb.DCB, chain *dcb.BufferChain) error {
	e.svc.Write(d, chain)
	return nil
}

// Close runs no protocol-specific teardown; the DCB core's reclaimer
// handles the fd and session.
func (e *Echo) Close(d *dcb.DCB) {}

// Hangup treats a peer hangup as a close request.
func (e *Echo) Hangup(d *dcb.DCB) {
	e.svc.Close(d)
}

// Error treats a socket error as fatal, closing the DCB.
func (e *Echo) Error(d *dcb.DCB) {
	e.svc.Close(d)
}
