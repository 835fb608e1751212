package dcb

import (
	"context"
	"sync"
)

// Service is the DCB subsystem's entry point: it owns the global and
// zombie registries, the configured Poller, and the protocol loader, and
// exposes the lifecycle operations of spec §4 (Alloc, Connect, Read,
// Write, Close, ProcessZombies). One Service typically corresponds to one
// running router instance; all of its methods are safe for concurrent
// use from multiple poller worker goroutines.
type Service struct {
	cfg      *config
	registry *registry
	poller   Poller
	loader   ProtocolLoader

	// readBufPool recycles the scratch buffers used by Read to shuttle
	// bytes off the socket before they're handed to BufferChain (grounded
	// on eventloop/ingress.go's chunkPool, re-scoped per-Service so that
	// WithMaxSegment sizes the pooled buffers correctly).
	readBufPool sync.Pool
}

// NewService constructs a Service bound to the given Poller and protocol
// loader. poller may be nil: SetPoller can attach one later, and until
// then Connect, AcceptListener and Close skip every poller step.
func NewService(poller Poller, loader ProtocolLoader, opts ...Option) *Service {
	cfg := resolveOptions(opts)
	s := &Service{
		cfg:      cfg,
		registry: newRegistry(),
		poller:   poller,
		loader:   loader,
	}
	maxSegment := cfg.maxSegment
	s.readBufPool.New = func() any {
		buf := make([]byte, maxSegment)
		return &buf
	}
	return s
}

// SetPoller attaches the Poller a Service was constructed without,
// for callers that must construct the Poller itself using the Service
// (as netpoller.New does) before the Service can register anything with
// it. Must be called before any Connect/AcceptListener.
func (s *Service) SetPoller(p Poller) {
	s.poller = p
}

// Alloc implements spec §4.2: reserve a DCB in the alloc state, not yet
// associated with a file descriptor or session.
func (s *Service) Alloc(role Role) *DCB {
	d := newDCB(s.registry.nextDCBID(), role)
	s.registry.insertGlobal(d)
	return d
}

// Connect implements spec §4.3: resolve the named protocol, allocate a
// DCB, link the session, ask the protocol to establish the outbound
// connection to server, register with the poller, and transition to
// polling.
//
// On any failure the partially-built DCB is torn down rather than left
// reachable from the registry (spec §4.3 "no DCB is left registered on
// failure"); a DCB that reaches step 4 (protocol connect) is transitioned
// to disconnected before being unlinked, per spec §4.3 step 5.
func (s *Service) Connect(ctx context.Context, server *Server, session Session, protocolName string) (*DCB, error) {
	proto, err := s.loader.LoadProtocol(protocolName)
	if err != nil {
		logProtocolLoadFailure(s.cfg.logger, protocolName, err)
		return nil, WrapError("load protocol "+protocolName, ErrProtocolNotFound)
	}

	d := s.Alloc(RoleRequestHandler)
	d.protocol = proto
	d.Remote = server.Address

	if ok := session.Link(d); !ok {
		s.registry.removeGlobal(d)
		return nil, ErrSessionRemoved
	}
	d.setSession(session)

	fd, err := proto.Connect(ctx, d, server)
	if err != nil {
		d.SetState(StateDisconnected)
		s.registry.removeGlobal(d)
		return nil, WrapError("connect", ErrConnectFailed)
	}
	d.setFD(fd)

	if s.poller != nil {
		if err := s.poller.Add(d); err != nil {
			_ = closeFD(fd)
			d.clearFD()
			d.SetState(StateDisconnected)
			s.registry.removeGlobal(d)
			return nil, WrapError("poller add", err)
		}
	}

	if ok, _ := d.SetState(StatePolling); !ok {
		_ = closeFD(fd)
		d.clearFD()
		d.SetState(StateDisconnected)
		s.registry.removeGlobal(d)
		return nil, ErrConnectFailed
	}

	return d, nil
}

// AcceptListener wires a listening DCB for role RoleListener: allocated,
// bound to the already-listening fd, registered with the poller, and
// transitioned straight to the listening state (spec §4.2's variant for
// passive-open DCBs, as referenced by §4.6's close handling of
// listening DCBs).
func (s *Service) AcceptListener(fd int) (*DCB, error) {
	d := s.Alloc(RoleListener)
	d.setFD(fd)
	if s.poller != nil {
		if err := s.poller.Add(d); err != nil {
			s.registry.removeGlobal(d)
			return nil, WrapError("poller add", err)
		}
	}
	if ok, _ := d.SetState(StateListening); !ok {
		s.registry.removeGlobal(d)
		return nil, ErrConnectFailed
	}
	return d, nil
}

// Diagnostics returns the number of DCBs currently tracked in the global
// registry, for introspection/metrics endpoints.
func (s *Service) Diagnostics() int {
	return s.registry.Count()
}

// Walk invokes fn for every DCB currently in the global registry.
func (s *Service) Walk(fn func(*DCB)) {
	s.registry.Walk(fn)
}
