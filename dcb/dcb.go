package dcb

import (
	"sync"
	"sync/atomic"
)

// memdata holds the fields only the close path and the reclaimer touch:
// the per-worker ownership bitmask and the zombie-list link (spec §3
// "memdata.bitmask", "memdata.next").
type memdata struct {
	bitmask Bitmask
	next    *DCB
}

// DCB is the Descriptor Control Block: the per-connection control object
// of spec §3. Exported fields are the scalars diagnostics may read under
// only the global-list latch (spec §4.8); everything mutable beyond that
// is reached through methods that take the appropriate latch.
type DCB struct {
	id   uint64 // stable identity for logging; assigned at alloc
	Role Role

	fd   atomic.Int64 // -1 when closed; int64 so it's usable as atomic
	sm   *StateMachine
	Remote string // immutable after construction (spec §4.8)

	protocol Protocol // immutable for the DCB's lifetime once set

	sessionMu sync.RWMutex
	session   Session

	writeqMu sync.Mutex
	writeq   *BufferChain

	delayqMu sync.Mutex
	delayq   *BufferChain

	Stats Stats // counters; only ever incremented, racy reads are fine for diagnostics

	memdata memdata

	// next links the DCB into the global all-DCBs list (spec §3 "next").
	// Only Registry mutates this, under the global-list latch.
	next *DCB
}

// newDCB constructs a zeroed DCB in state alloc (spec §4.2). Not exported:
// callers go through Service.Alloc so every DCB is registered in the
// global list before being handed out.
func newDCB(id uint64, role Role) *DCB {
	d := &DCB{
		id:     id,
		Role:   role,
		sm:     NewStateMachine(),
		writeq: NewBufferChain(),
		delayq: NewBufferChain(),
	}
	d.fd.Store(-1)
	return d
}

// ID returns the DCB's stable identity, used only for logging/diagnostics.
func (d *DCB) ID() uint64 { return d.id }

// State returns the DCB's current lifecycle state.
func (d *DCB) State() State { return d.sm.Load() }

// FD returns the current file descriptor, or -1 if none is assigned or
// the DCB has been closed.
func (d *DCB) FD() int { return int(d.fd.Load()) }

// setFD assigns the fd, called once by Connect/Accept/Listen.
func (d *DCB) setFD(fd int) { d.fd.Store(int64(fd)) }

// SetFD assigns the fd from outside the package, for Protocol
// implementations whose Accept mints the client DCB themselves (spec
// §4.2's passive-open variant).
func (d *DCB) SetFD(fd int) { d.setFD(fd) }

// clearFD marks the fd closed (spec invariant 3: "when state ==
// disconnected, fd has been closed").
func (d *DCB) clearFD() { d.fd.Store(-1) }

// Protocol returns the DCB's immutable protocol vtable.
func (d *DCB) Protocol() Protocol { return d.protocol }

// SetProtocol binds d's protocol vtable. Called once, by whichever
// collaborator constructs the DCB (Service.Connect, or a Protocol's own
// Accept implementation for passively-opened DCBs); never reassigned
// afterward (spec §3 "protocol ... immutable for the DCB's lifetime").
func (d *DCB) SetProtocol(p Protocol) { d.protocol = p }

// Session returns the DCB's session back-reference, or nil.
func (d *DCB) Session() Session {
	d.sessionMu.RLock()
	defer d.sessionMu.RUnlock()
	return d.session
}

// setSession sets the DCB's session back-reference.
func (d *DCB) setSession(s Session) {
	d.sessionMu.Lock()
	d.session = s
	d.sessionMu.Unlock()
}

// clearSession drops the DCB's reference to its session. Called by the
// reclaimer at final-free, before the session itself is released (spec
// invariant 6).
func (d *DCB) clearSession() {
	d.sessionMu.Lock()
	d.session = nil
	d.sessionMu.Unlock()
}

// SetState attempts a direct state transition, per the legal-transition
// table (spec §4.1). Most callers should prefer the named operations
// (Close, etc.); this is exposed for the cases spec §4.1 itself calls out
// as direct transitions: alloc→polling/listening, polling→listening,
// listening→polling, zombie→disconnected, disconnected→freed.
func (d *DCB) SetState(newState State) (ok bool, previous State) {
	ok, previous = d.sm.SetState(newState)
	if !ok {
		logIllegalTransition(nil, d.id, previous, newState)
	}
	return ok, previous
}
