// Package session provides a minimal, reference-counted implementation
// of dcb.Session/dcb.Router, sufficient to exercise the DCB core's
// link/close/free protocol (spec §4.3, §4.6, §4.7) without pulling in a
// real routing engine.
//
// Grounded on spec §6's description of the Session/Router collaborator
// boundary; there is no equivalent in the teacher repo (eventloop has no
// session concept), so this package is original to this module, written
// in the same plain, lock-guarded style as dcb's own registry.go.
package session

import (
	"sync"

	"github.com/sigma957/MaxScale/dcb"
)

// Session is a reference-counted client/backend session: one or more
// DCBs (typically a client DCB and its backend DCBs) linked to a single
// router-level session object.
type Session struct {
	mu     sync.Mutex
	refs   int
	router dcb.Router
	// routerInstance/routerSession form the pair spec §4.7 step 4
	// consumes exactly once; both nil once consumed.
	routerInstance any
	routerSession  any
	dcbs           []*dcb.DCB
}

// New returns a Session with refcount 1, owning router session state
// (routerInstance, routerSession) that will be handed to router.CloseSession
// exactly once, by whichever DCB's reclaim happens to consume it first.
func New(router dcb.Router, routerInstance, routerSession any) *Session {
	return &Session{
		refs:           1,
		router:         router,
		routerInstance: routerInstance,
		routerSession:  routerSession,
	}
}

// Link associates d with this session and bumps the refcount, returning
// false if the session has already been fully consumed (spec §4.3 step
// 3).
func (s *Session) Link(d *dcb.DCB) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs == 0 {
		return false
	}
	s.refs++
	s.dcbs = append(s.dcbs, d)
	return true
}

// ConsumeAndCloseRouterSession implements the exactly-once swap-and-
// invoke of spec §4.7 step 4 / invariant 6: under the session's own
// latch, (routerInstance, routerSession) is swapped to nil, and
// router.CloseSession is invoked with the previous values only the
// first time this ever happens for this session.
func (s *Session) ConsumeAndCloseRouterSession(router dcb.Router) (closed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	instance, rs := s.routerInstance, s.routerSession
	s.routerInstance, s.routerSession = nil, nil

	if instance == nil && rs == nil {
		return false
	}
	if router == nil {
		router = s.router
	}
	if router != nil {
		router.CloseSession(instance, rs)
	}
	return true
}

// Free releases one reference. The session itself carries no further
// resources to release once its refcount reaches zero; DCBs that held a
// reference simply stop being able to Link new siblings.
func (s *Session) Free() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs > 0 {
		s.refs--
	}
}

// Refs returns the current reference count, for diagnostics/tests.
func (s *Session) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}
