// Package dcb implements the Descriptor Control Block subsystem of a
// MySQL/MariaDB-protocol proxy router: the per-connection object that
// mediates between a non-blocking socket poller and protocol/router code.
//
// # Architecture
//
// A [DCB] binds a file descriptor to a [Protocol] capability set, buffers
// outbound bytes in a [BufferChain] for edge-triggered draining, carries a
// formal lifecycle [State] machine, and participates in a multi-worker
// deferred-reclamation scheme (memdata.bitmask) so that a connection is
// never freed while a polling worker might still be dispatching on it.
//
// The subsystem is driven by a [Service], which owns the global DCB
// registry, the zombie list, and the configuration (see [Option]).
// Everything outside this package — the wire protocol, the router/session
// layer, and the poller itself — is a collaborator reached only through
// the [Protocol], [Session], [Router], and [Poller] interfaces.
//
// # Lifecycle
//
//	alloc → {polling, listening} → nopolling → zombie → disconnected → freed
//
// The full transition table is legalTransitions in state.go, applied by
// [StateMachine.SetState].
//
// # Thread safety
//
// Every exported [Service] and [DCB] method is safe to call from any
// goroutine, including concurrently from multiple polling workers. Latch
// ordering is init_lock → writeq_lock (never the reverse); the zombies
// latch and the global-list latch are both leaves.
//
// # Usage
//
//	svc := dcb.NewService(poller, loader, dcb.WithMaxSegment(64*1024))
//	d, err := svc.Connect(ctx, server, session, protocolName)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// on every poll tick, per worker:
//	svc.ProcessZombies(workerID)
package dcb
