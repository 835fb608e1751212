//go:build linux

package protocol

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// resolveSockaddr turns a host:port pair into a unix.Sockaddr, resolving
// the host via the standard resolver (DNS is out of scope for the DCB
// core itself; this lives entirely in the protocol layer).
func resolveSockaddr(host string, port int) (unix.Sockaddr, error) {
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("protocol: resolve %q: %w", host, err)
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			var addr [4]byte
			copy(addr[:], v4)
			return &unix.SockaddrInet4{Port: port, Addr: addr}, nil
		}
	}
	return nil, fmt.Errorf("protocol: no IPv4 address for %q", host)
}

// Listen creates a non-blocking, bound and listening TCP socket, ready to
// be handed to dcb.Service.AcceptListener. backlog is passed straight to
// listen(2).
func Listen(host string, port int, backlog int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, err
	}

	addr, err := resolveSockaddr(host, port)
	if err != nil {
		_ = unix.Close(fd)
		return -1, err
	}

	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("protocol: bind: %w", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return -1, fmt.Errorf("protocol: listen: %w", err)
	}

	return fd, nil
}

// remoteAddrString returns a "host:port" description of fd's peer, best
// effort, for diagnostics (DCB.Remote).
func remoteAddrString(fd int) string {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return ""
	}
	if v4, ok := sa.(*unix.SockaddrInet4); ok {
		ip := net.IP(v4.Addr[:])
		return fmt.Sprintf("%s:%d", ip.String(), v4.Port)
	}
	return ""
}
