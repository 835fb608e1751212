package dcb

// Write implements spec §4.5. Under writeq_lock: if writeq is non-empty,
// the new chain is appended and deferred to the poller's write-readiness
// drain (preserves in-order transmission); otherwise it sends
// opportunistically, buffering any residual as the new writeq.
//
// Ordering guarantee (spec §4.5, invariant 5): because both the
// "send-some" and "append-remainder" steps happen while holding
// writeq_lock, concurrent Write calls on the same DCB are serialized and
// bytes hit the wire in call order.
func (s *Service) Write(d *DCB, chain *BufferChain) (ok bool) {
	fd := d.FD()
	if fd < 0 {
		return false
	}

	d.writeqMu.Lock()
	defer d.writeqMu.Unlock()

	if !d.writeq.Empty() {
		d.writeq.Append(chain)
		d.Stats.NBuffered++
		return true
	}

	_, err := s.sendChain(d, fd, chain)
	d.writeq.Append(chain) // any residual left in chain becomes the new writeq
	d.Stats.NWrites++
	return err == nil
}

// DrainWriteq implements spec §4.5 drain_writeq: invoked on write-
// readiness, it repeatedly sends from the head of writeq until either
// the queue empties or the socket would block. Returns the number of
// bytes drained, and a non-nil error on a fatal write failure (spec §7
// Fatal I/O: "return error to caller, which triggers close") — the
// caller is expected to call Close when this returns an error.
func (s *Service) DrainWriteq(d *DCB) (int, error) {
	fd := d.FD()
	if fd < 0 {
		return 0, ErrClosed
	}

	d.writeqMu.Lock()
	defer d.writeqMu.Unlock()

	if d.writeq.Empty() {
		return 0, nil
	}

	before := d.writeq.Len()
	_, err := s.sendChain(d, fd, d.writeq)
	drained := before - d.writeq.Len()
	return drained, err
}

// sendChain attempts to send chain over fd, one write syscall per head
// segment, stopping on the first short write,
// EAGAIN/EWOULDBLOCK, or fatal error. Only bytes actually accepted by
// the socket are consumed from chain; whatever remains — including the
// unsent tail of a partially written segment — stays in chain, in order
// (spec §4.5: "on partial write, keep the remainder"). Caller holds
// d.writeqMu. A non-nil returned error is always a *FatalIOError.
func (s *Service) sendChain(d *DCB, fd int, chain *BufferChain) (ok bool, err error) {
	for !chain.Empty() {
		p := chain.Front()
		n, werr := writeFD(fd, p)
		if n > 0 {
			chain.Consume(n, nil)
		}

		if werr != nil {
			if isTransient(werr) {
				return true, nil // not a failure; remainder stays queued
			}
			logFatalIO(s.cfg.logger, d.id, "write", fd, werr)
			return false, &FatalIOError{Op: "write", FD: fd, Cause: werr}
		}

		if n < len(p) {
			// Partial write: the socket would block for the rest: stop
			// here and leave it queued, per the corrected EAGAIN/
			// EWOULDBLOCK predicate of OQ2.
			return true, nil
		}
	}
	return true, nil
}
