package dcb

import "sync"

// State is an element of the DCB lifecycle state set (spec §4.1).
type State uint8

const (
	// StateUndefined is the zero value; never observed on a DCB returned
	// by [Service.Alloc]. Only bootstrap code may transition out of it to
	// any other state.
	StateUndefined State = iota
	// StateAlloc is the state of a freshly allocated DCB, not yet
	// connected, listening, or polled.
	StateAlloc
	// StatePolling means the DCB's fd is registered with the poller for
	// ordinary read/write readiness.
	StatePolling
	// StateListening means the DCB's fd is registered with the poller as
	// an accept-only listener.
	StateListening
	// StateNopolling means the fd has been removed from the poller but
	// the DCB has not yet been handed to the reclaimer.
	StateNopolling
	// StateZombie means the DCB is on the zombie list, awaiting
	// quiescence of every worker that might still hold a reference.
	StateZombie
	// StateDisconnected means the fd has been closed at the OS level.
	StateDisconnected
	// StateFreed is terminal: the DCB has been unlinked from every list
	// and its resources released.
	StateFreed
)

// String returns the lower-case name of the state, for logging.
func (s State) String() string {
	switch s {
	case StateUndefined:
		return "undefined"
	case StateAlloc:
		return "alloc"
	case StatePolling:
		return "polling"
	case StateListening:
		return "listening"
	case StateNopolling:
		return "nopolling"
	case StateZombie:
		return "zombie"
	case StateDisconnected:
		return "disconnected"
	case StateFreed:
		return "freed"
	default:
		return "unknown"
	}
}

// noop marks transitions that are accepted but do not change state —
// spec.md §9 OQ1 treats these as idempotence of close, not errors.
type transition struct {
	to   State
	noop bool
}

// legalTransitions is the table from spec §4.1, extended by one entry:
// listening → nopolling. The literal table only grants listening → polling,
// which would make a listener DCB unclosable; OQ4 (recorded in
// DESIGN.md) resolves this by granting close() the same access to
// listener DCBs as to client DCBs, since §4.6 close() is specified
// generically over "dcb" with no role distinction.
var legalTransitions = map[State][]transition{
	StateAlloc: {
		{to: StatePolling},
		{to: StateListening},
		{to: StateDisconnected},
	},
	StatePolling: {
		{to: StateNopolling},
		{to: StateListening},
	},
	StateListening: {
		{to: StatePolling},
		{to: StateNopolling},
	},
	StateNopolling: {
		{to: StateZombie},
		{to: StatePolling, noop: true},
	},
	StateZombie: {
		{to: StateDisconnected},
		{to: StatePolling, noop: true},
	},
	StateDisconnected: {
		{to: StateFreed},
	},
}

// StateMachine is the latched state holder embedded in a DCB. All
// transitions execute under the single latch, matching spec §4.1: "All
// transitions execute under init_lock."
type StateMachine struct {
	mu    sync.Mutex
	state State
}

// NewStateMachine returns a state machine in StateAlloc, matching the
// result of Service.Alloc (spec §4.2).
func NewStateMachine() *StateMachine {
	return &StateMachine{state: StateAlloc}
}

// Load returns the current state.
func (s *StateMachine) Load() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState attempts the transition to newState, returning (success,
// previous). A success of true with state left unchanged is a valid
// no-op transition (nopolling→polling, zombie→polling). Illegal
// transitions return (false, current) and are logged by the caller,
// never panicked.
//
// StateUndefined is bootstrap-only: any transition away from it succeeds
// unconditionally, matching "undefined → any (bootstrap only)".
func (s *StateMachine) SetState(newState State) (ok bool, previous State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous = s.state

	if s.state == StateUndefined {
		s.state = newState
		return true, previous
	}

	for _, t := range legalTransitions[s.state] {
		if t.to != newState {
			continue
		}
		if !t.noop {
			s.state = newState
		}
		return true, previous
	}

	return false, previous
}

// TryClose implements the close-path transition of spec §4.6 step 2: an
// attempt to move to nopolling that is a real transition exactly once per
// DCB (from polling or listening) and a safe no-op on every later call
// (from nopolling, zombie, or any other state reached after the first
// close). didTransition is true only the first time.
//
// onFirstClose, if non-nil, runs while init_lock is still held, exactly
// when didTransition is true — this is where the caller must remove the
// fd from the poller and snapshot the live-workers bitmask, so that the
// snapshot is taken atomically with the transition (spec §4.6 step 2,
// invariant 4).
func (s *StateMachine) TryClose(onFirstClose func()) (didTransition bool, previous State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous = s.state
	switch s.state {
	case StatePolling, StateListening:
		s.state = StateNopolling
		if onFirstClose != nil {
			onFirstClose()
		}
		return true, previous
	default:
		return false, previous
	}
}

// WithLock runs fn while holding the state machine's latch (init_lock),
// for callers that must read or mutate other DCB fields atomically with
// respect to state transitions (e.g. snapshotting the bitmask only under
// the same latch that performed the nopolling transition).
func (s *StateMachine) WithLock(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}
