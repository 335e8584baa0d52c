// File: transport/tcp/listener.go
//go:build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MinBacklog is the smallest accept backlog the listener will request.
const MinBacklog = 10

// Listener wraps a bound, listening AF_INET socket descriptor.
type Listener struct {
	fd int
}

// Listen binds the IPv4 wildcard address on port and starts listening.
// Port 0 asks the kernel for an ephemeral port; see Port.
func Listen(port, backlog int) (*Listener, error) {
	if port < 0 || port > 65535 {
		return nil, errors.Errorf("port %d out of range", port)
	}
	if backlog < MinBacklog {
		backlog = MinBacklog
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrap(err, "socket")
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "setsockopt SO_REUSEADDR")
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "bind 0.0.0.0:%d", port)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "listen")
	}
	return &Listener{fd: fd}, nil
}

// FD returns the listening socket descriptor for io_uring submissions.
func (l *Listener) FD() int { return l.fd }

// Port reports the bound port, resolving kernel-assigned ephemeral ports.
func (l *Listener) Port() (int, error) {
	sa, err := unix.Getsockname(l.fd)
	if err != nil {
		return 0, errors.Wrap(err, "getsockname")
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, errors.Errorf("unexpected sockaddr type %T", sa)
	}
	return in4.Port, nil
}

// Close releases the listening socket.
func (l *Listener) Close() error {
	return unix.Close(l.fd)
}
