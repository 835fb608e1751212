package dcb

import "context"

// Role distinguishes the three kinds of DCB named in spec §3.
type Role uint8

const (
	// RoleRequestHandler is an ordinary client/backend connection DCB.
	RoleRequestHandler Role = iota
	// RoleListener is an accept-only listening socket DCB.
	RoleListener
	// RoleInternal is a DCB with no real fd, used for internal routing.
	RoleInternal
)

func (r Role) String() string {
	switch r {
	case RoleListener:
		return "listener"
	case RoleInternal:
		return "internal"
	default:
		return "request_handler"
	}
}

// Server describes the remote endpoint Connect dials (spec §4.3).
type Server struct {
	Name    string
	Address string
	Port    int
}

// Stats are the per-DCB counters of spec §3.
type Stats struct {
	NReads    uint64
	NWrites   uint64
	NBuffered uint64
	NAccepts  uint64
}

// IOEvents is the readiness condition reported by a Poller dispatch,
// matching spec §6's read/write/hangup/error callback set.
type IOEvents uint32

const (
	EventRead IOEvents = 1 << iota
	EventWrite
	EventHangup
	EventError
)

// Protocol is the capability set borrowed from a named protocol module
// and considered immutable for a DCB's lifetime (spec §3, §6). The DCB
// core never interprets wire bytes itself; it only calls through this
// vtable.
type Protocol interface {
	// Connect creates the socket and initiates a non-blocking connect,
	// returning the new fd or an error. It does not register the fd with
	// the poller; Service.Connect does that after Connect returns.
	Connect(ctx context.Context, d *DCB, server *Server) (fd int, err error)
	// Accept is called on a listener DCB when it becomes readable; it
	// returns a newly allocated client DCB, or nil with no error if no
	// connection was actually ready (e.g. accept() returned EAGAIN).
	Accept(ctx context.Context, listener *DCB) (client *DCB, err error)
	// Read is invoked on read-readiness; implementations typically just
	// call Service.Read to run the DCB read path (spec §4.4) and then
	// interpret the resulting bytes.
	Read(d *DCB) error
	// Write is invoked by callers with application bytes to send;
	// implementations typically call Service.Write to run the write path
	// (spec §4.5).
	Write(d *DCB, chain *BufferChain) error
	// Close runs protocol-specific teardown during the reclaimer's final
	// free, after the DCB's fd has been closed.
	Close(d *DCB)
	// Hangup is invoked when the poller reports EventHangup.
	Hangup(d *DCB)
	// Error is invoked when the poller reports EventError.
	Error(d *DCB)
}

// ProtocolLoader resolves a protocol module by name (spec §4.3 step 2).
type ProtocolLoader interface {
	LoadProtocol(name string) (Protocol, error)
}

// ProtocolLoaderFunc adapts a function to a ProtocolLoader.
type ProtocolLoaderFunc func(name string) (Protocol, error)

func (f ProtocolLoaderFunc) LoadProtocol(name string) (Protocol, error) { return f(name) }

// Poller is the event-demultiplexer collaborator consumed by the DCB
// core (spec §6). Its internals are out of scope for this package; see
// the sibling netpoller package for a concrete epoll/kqueue
// implementation.
type Poller interface {
	// Add registers d's fd for readiness events, dispatching them back
	// into d's Protocol callbacks.
	Add(d *DCB) error
	// Remove deregisters d's fd. Safe to call more than once.
	Remove(d *DCB) error
	// LiveWorkers returns the set of worker ids that may currently be
	// executing a dispatch, for the close-path bitmask snapshot (spec
	// §4.6 step 2).
	LiveWorkers() WorkerSet
}

// Router is the upward collaborator that owns routing/session logic
// above the DCB layer (spec §6). CloseSession is invoked by the
// reclaimer, under the Session's own latch, with the router-session
// pointer already swapped to nil (spec §4.7 step 4).
type Router interface {
	CloseSession(routerInstance, routerSession any)
}

// Session is the upward, shared reference a DCB holds (spec §3 "session").
// The DCB-to-Session edge is non-owning; the Session-to-DCB edge (via
// Link) is owning, per spec §9's cyclic-back-pointer resolution.
type Session interface {
	// Link associates d with this session (spec §4.3 step 3, "link_dcb").
	// ok is false if the session has already been torn down.
	Link(d *DCB) (ok bool)
	// ConsumeAndCloseRouterSession atomically swaps the session's
	// (router_instance, router_session) pair to nil and, if it held a
	// non-nil pair, invokes router.CloseSession with the previous values
	// while still holding the session's own latch. Returns true only the
	// first time this actually closes something — this is what makes
	// double-close of a session impossible (spec §4.7 step 4, invariant
	// 6).
	ConsumeAndCloseRouterSession(router Router) (closed bool)
	// Free releases the session's own reference count (spec §6
	// "session_free").
	Free()
}
