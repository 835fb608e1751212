package dcb

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errAssertBoom = errors.New("boom")

// fakePoller is a minimal dcb.Poller stand-in that records Add/Remove
// calls and lets tests control the live-workers snapshot directly,
// without any real fd or OS poller.
type fakePoller struct {
	mu        sync.Mutex
	added     map[int]*DCB
	removed   []int
	live      WorkerSet
	removeErr error
}

func newFakePoller() *fakePoller {
	return &fakePoller{added: make(map[int]*DCB)}
}

func (p *fakePoller) Add(d *DCB) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.added[d.FD()] = d
	return nil
}

func (p *fakePoller) Remove(d *DCB) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removed = append(p.removed, d.FD())
	delete(p.added, d.FD())
	return p.removeErr
}

func (p *fakePoller) LiveWorkers() WorkerSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

func (p *fakePoller) setLive(w WorkerSet) {
	p.mu.Lock()
	p.live = w
	p.mu.Unlock()
}

// fakeSession is a minimal dcb.Session for exercising Service.Close /
// finalFree without a real session package dependency.
type fakeSession struct {
	mu         sync.Mutex
	linked     bool
	refused    bool
	consumed   bool
	freedCount int
	instance   any
	rsession   any
}

func (s *fakeSession) Link(d *DCB) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refused {
		return false
	}
	s.linked = true
	return true
}

func (s *fakeSession) ConsumeAndCloseRouterSession(router Router) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.consumed {
		return false
	}
	s.consumed = true
	if router != nil {
		router.CloseSession(s.instance, s.rsession)
	}
	return true
}

func (s *fakeSession) Free() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freedCount++
}

type fakeRouter struct {
	mu     sync.Mutex
	closed int
}

func (r *fakeRouter) CloseSession(instance, rsession any) {
	r.mu.Lock()
	r.closed++
	r.mu.Unlock()
}

// TestService_Close_S4ConcurrentWorker models scenario S4: two workers
// with live bitmask {0,1} at close time; the DCB is only reclaimed once
// both have run ProcessZombies, and the underlying fd is closed exactly
// once.
func TestService_Close_S4ConcurrentWorker(t *testing.T) {
	a, _ := socketpairFDs(t)
	poller := newFakePoller()
	poller.setLive(WorkerBit(0) | WorkerBit(1))

	svc := NewService(poller, nil)
	d := svc.Alloc(RoleRequestHandler)
	d.setFD(a)
	ok, _ := d.SetState(StatePolling)
	require.True(t, ok)
	require.NoError(t, poller.Add(d))

	svc.Close(d)
	assert.Equal(t, StateZombie, d.State())
	assert.Equal(t, []int{a}, poller.removed)

	freed := svc.ProcessZombies(0)
	assert.Equal(t, 0, freed, "worker 1's bit is still set")
	assert.Equal(t, StateZombie, d.State())

	freed = svc.ProcessZombies(1)
	assert.Equal(t, 1, freed)
	assert.Equal(t, StateFreed, d.State())
	assert.Equal(t, -1, d.FD())
	assert.Equal(t, 0, svc.Diagnostics())
}

// TestService_Close_S5DoubleCloseIdempotent models scenario S5: a second
// Close after the DCB has reached zombie collapses into the
// nopolling->nopolling no-op and must not re-enqueue or touch the
// bitmask.
func TestService_Close_S5DoubleCloseIdempotent(t *testing.T) {
	a, _ := socketpairFDs(t)
	poller := newFakePoller()
	poller.setLive(WorkerBit(0))

	svc := NewService(poller, nil)
	d := svc.Alloc(RoleRequestHandler)
	d.setFD(a)
	ok, _ := d.SetState(StatePolling)
	require.True(t, ok)
	require.NoError(t, poller.Add(d))

	svc.Close(d)
	require.Equal(t, StateZombie, d.State())
	require.Len(t, poller.removed, 1)
	bitmaskBefore := d.memdata.bitmask.Load()

	svc.Close(d)
	svc.Close(d)

	assert.Equal(t, StateZombie, d.State())
	assert.Len(t, poller.removed, 1, "a second close must not remove the fd from the poller again")
	assert.Equal(t, bitmaskBefore, d.memdata.bitmask.Load(), "a second close must not re-snapshot the bitmask")

	freed := svc.ProcessZombies(0)
	assert.Equal(t, 1, freed)

	// Close after the DCB is already freed/disconnected must also be a
	// harmless no-op (close ∘ close = close).
	svc.Close(d)
	assert.Equal(t, StateFreed, d.State())
}

func TestService_Close_NilPollerIsSafe(t *testing.T) {
	svc := NewService(nil, nil)
	d := svc.Alloc(RoleRequestHandler)
	d.setFD(99999) // never actually touched since there's no real poller/fd op here
	ok, _ := d.SetState(StatePolling)
	require.True(t, ok)

	svc.Close(d)
	assert.Equal(t, StateZombie, d.State())
}

func TestService_ProcessZombies_EmptyListIsNoop(t *testing.T) {
	svc := NewService(nil, nil)
	assert.Equal(t, 0, svc.ProcessZombies(0))
}

// TestService_Reclaim_SessionClosedExactlyOnce exercises spec §4.7 step
// 4's session teardown: after one close and reclaim, Router.CloseSession
// has fired exactly once, Session.Free has run exactly once, and the
// DCB's session back-reference is cleared.
func TestService_Reclaim_SessionClosedExactlyOnce(t *testing.T) {
	a, _ := socketpairFDs(t)
	poller := newFakePoller()
	router := &fakeRouter{}
	svc := NewService(poller, nil, WithRouter(router))

	d := svc.Alloc(RoleRequestHandler)
	d.setFD(a)
	sess := &fakeSession{instance: "inst", rsession: "rsess"}
	d.setSession(sess)
	ok, _ := d.SetState(StatePolling)
	require.True(t, ok)

	svc.Close(d)
	freed := svc.ProcessZombies(0)
	require.Equal(t, 1, freed)

	assert.Equal(t, 1, router.closed)
	assert.Equal(t, 1, sess.freedCount)
	assert.Nil(t, d.Session())
}

func TestService_Connect_ProtocolLoadFailureFreesNothingLeaked(t *testing.T) {
	loader := ProtocolLoaderFunc(func(name string) (Protocol, error) {
		return nil, errAssertBoom
	})
	svc := NewService(nil, loader)
	before := svc.Diagnostics()

	d, err := svc.Connect(context.Background(), &Server{Address: "x"}, &fakeSession{}, "mysql")
	assert.Nil(t, d)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocolNotFound)
	assert.Equal(t, before, svc.Diagnostics(), "a failed Connect must not leave a DCB registered")
}

func TestService_Connect_SessionRemovedFreesTheDCB(t *testing.T) {
	a, _ := socketpairFDs(t)
	proto := &fakeConnectProtocol{fd: a}
	loader := ProtocolLoaderFunc(func(name string) (Protocol, error) { return proto, nil })
	svc := NewService(nil, loader)
	before := svc.Diagnostics()

	sess := &fakeSession{refused: true}
	d, err := svc.Connect(context.Background(), &Server{Address: "x"}, sess, "mysql")
	assert.Nil(t, d)
	require.ErrorIs(t, err, ErrSessionRemoved)
	assert.Equal(t, before, svc.Diagnostics())
}

func TestService_Connect_Success(t *testing.T) {
	a, _ := socketpairFDs(t)
	proto := &fakeConnectProtocol{fd: a}
	loader := ProtocolLoaderFunc(func(name string) (Protocol, error) { return proto, nil })
	poller := newFakePoller()
	svc := NewService(poller, loader)

	sess := &fakeSession{}
	d, err := svc.Connect(context.Background(), &Server{Address: "db1"}, sess, "mysql")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, StatePolling, d.State())
	assert.Equal(t, "db1", d.Remote)
	assert.True(t, sess.linked)
	assert.Contains(t, poller.added, a)
}

type fakeConnectProtocol struct {
	fd  int
	err error
}

func (p *fakeConnectProtocol) Connect(ctx context.Context, d *DCB, server *Server) (int, error) {
	return p.fd, p.err
}
func (p *fakeConnectProtocol) Accept(ctx context.Context, listener *DCB) (*DCB, error) {
	return nil, nil
}
func (p *fakeConnectProtocol) Read(d *DCB) error                      { return nil }
func (p *fakeConnectProtocol) Write(d *DCB, chain *BufferChain) error { return nil }
func (p *fakeConnectProtocol) Close(d *DCB)                           {}
func (p *fakeConnectProtocol) Hangup(d *DCB)                          {}
func (p *fakeConnectProtocol) Error(d *DCB)                           {}
