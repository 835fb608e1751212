package dcb

// ProcessZombies implements spec §4.7: a poller worker, between dispatch
// batches, clears its own bit from every zombie's bitmask and finally-frees
// whichever zombies that leaves fully unowned. Returns the number of DCBs
// actually freed this call.
//
// Step 1 (the dirty-read fast path) is registry.zombiesEmpty(); the
// remaining steps run in registry.reclaimBatch and finalFree.
func (s *Service) ProcessZombies(worker int) int {
	if s.registry.zombiesEmpty() {
		return 0
	}

	victims := s.registry.reclaimBatch(worker, s.cfg.zombieReclaimBatch)
	for _, d := range victims {
		s.finalFree(d)
	}
	return len(victims)
}

// finalFree implements spec §4.7 step 4: close the fd at the OS level,
// transition disconnected -> freed, sever the session/protocol/remote
// references, and unlink the DCB from the global list. Invariant 6 (a
// session is closed at most once) is upheld by Session's own
// ConsumeAndCloseRouterSession, not by anything here.
func (s *Service) finalFree(d *DCB) {
	if ok, _ := d.SetState(StateDisconnected); ok {
		if fd := d.FD(); fd >= 0 {
			if err := closeFD(fd); err != nil {
				logFatalIO(s.cfg.logger, d.id, "close", fd, err)
			}
			d.clearFD()
		}
	}

	if proto := d.Protocol(); proto != nil {
		proto.Close(d)
	}

	if sess := d.Session(); sess != nil {
		// The router-session pointer is consumed (swapped to nil and, the
		// first time, handed to Router.CloseSession) before Free drops the
		// session's own refcount, matching spec §4.7 step 4's ordering.
		sess.ConsumeAndCloseRouterSession(s.cfg.router)
		sess.Free()
	}
	d.clearSession()

	d.SetState(StateFreed)
	s.registry.removeGlobal(d)

	logZombieReclaimed(s.cfg.logger, d.id, d.FD())
}
