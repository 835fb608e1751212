package dcb

import (
	"errors"
	"syscall"
)

// isTransient reports whether err represents "no progress right now, not
// an error" (spec §7 Transient I/O). This is the corrected predicate from
// spec.md §9 OQ2: the source tested
// `saved_errno != EAGAIN || saved_errno != EWOULDBLOCK`, which is always
// true; the corrected check is whether the errno *is* EAGAIN or
// EWOULDBLOCK. EINTR is also reported as transient.
func isTransient(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EINTR)
}

// isInterrupted reports whether err is EINTR, which spec §4.4 step 2
// requires retrying rather than treating as progress or as an error.
func isInterrupted(err error) bool {
	return errors.Is(err, syscall.EINTR)
}

// Read implements the read path of spec §4.4: drain whatever is ready
// into chain without ever blocking. Returns the number of bytes
// appended, or an error if nothing could be read and the condition was
// fatal (not transient, not peer-close). A FIONREAD failure is always
// returned as an error, together with the bytes already appended.
//
// A zero-byte read (peer closed) returns (0, nil); callers distinguish
// "clean EOF" from "fatal" by checking err.
func (s *Service) Read(d *DCB, chain *BufferChain) (int, error) {
	fd := d.FD()
	if fd < 0 {
		return 0, ErrClosed
	}

	total := 0
	for {
		avail, err := availableBytes(fd)
		if err != nil {
			logFatalIO(s.cfg.logger, d.id, "fionread", fd, err)
			return total, &FatalIOError{Op: "fionread", FD: fd, Cause: err}
		}
		if avail <= 0 {
			return total, nil
		}

		segSize := avail
		if segSize > s.cfg.maxSegment {
			segSize = s.cfg.maxSegment
		}

		bufp := s.readBufPool.Get().(*[]byte)
		buf := *bufp
		if cap(buf) < segSize {
			buf = make([]byte, segSize)
		} else {
			buf = buf[:segSize]
		}

		n, rerr := readFD(fd, buf)

		if rerr != nil {
			if isInterrupted(rerr) {
				s.readBufPool.Put(bufp)
				continue // spec §4.4 step 2: restart on EINTR
			}
			if isTransient(rerr) {
				// EAGAIN/EWOULDBLOCK: clean end of readiness for now.
				s.readBufPool.Put(bufp)
				return total, nil
			}
			s.readBufPool.Put(bufp)
			logFatalIO(s.cfg.logger, d.id, "read", fd, rerr)
			if total > 0 {
				return total, nil
			}
			return 0, &FatalIOError{Op: "read", FD: fd, Cause: rerr}
		}

		if n == 0 {
			// Peer closed; free the unused segment and report what we
			// already had (spec §4.4 step 4).
			s.readBufPool.Put(bufp)
			return total, nil
		}

		// Ownership of buf[:n] moves into the chain; the pool slot
		// itself isn't returned (the backing array is still live,
		// referenced by the chain), so the pool simply allocates a
		// replacement next time it's drained.
		chain.appendSegmentBuf(buf, n)

		total += n
		d.Stats.NReads++

		// Re-query available bytes: the kernel buffer may have grown
		// during this call (spec §4.4 step 5).
	}
}
