package dcb

// Close implements spec §4.6. It is idempotent: invariant 4 requires that
// after Close returns once, any number of further calls are a no-op and
// never corrupt state.
func (s *Service) Close(d *DCB) {
	var didTransition bool

	// Step 1-3: acquire init_lock (via TryClose), attempt the transition,
	// and — only if this is the first close — remove the fd from the
	// poller and snapshot the live-workers bitmask, all before releasing
	// init_lock. This ordering is what makes the snapshot race-free: by
	// the time any worker can observe memdata.bitmask, the fd is already
	// off the poller (spec §4.7 "Correctness").
	didTransition, _ = d.sm.TryClose(func() {
		if s.poller != nil {
			_ = s.poller.Remove(d)
		}
		var live WorkerSet
		if s.poller != nil {
			live = s.poller.LiveWorkers()
		}
		d.memdata.bitmask.Snapshot(live)
	})

	if !didTransition {
		return
	}

	// Step 4: now in nopolling, enqueue to zombies.
	s.registry.addToZombies(d)
}
