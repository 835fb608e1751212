//go:build linux || darwin

package dcb

import "golang.org/x/sys/unix"

// closeFD closes a file descriptor at the OS level (spec §4.7 step 4
// "close(fd) at OS level").
func closeFD(fd int) error {
	return unix.Close(fd)
}

// readFD performs one non-blocking read.
func readFD(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

// writeFD performs one non-blocking write.
func writeFD(fd int, buf []byte) (int, error) {
	return unix.Write(fd, buf)
}

// availableBytes queries the number of bytes the kernel currently has
// buffered for fd, via FIONREAD (spec §4.4 step 1).
func availableBytes(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.FIONREAD)
}
