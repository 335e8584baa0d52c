// File: internal/session/registry.go
//go:build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/pool"
)

// MaxConnections is the fixed slot count. The table never grows.
const MaxConnections = 512

// SentinelFD marks an unused slot.
const SentinelFD = -1

// Registry owns one socket descriptor and one staging ring per handle.
// Handles are stable for the lifetime of a connection and reused after
// Remove, always preferring the lowest free index.
//
// A slot is active iff its descriptor is not the sentinel; an inactive
// slot's ring is always empty.
//
// Single-threaded by design; no internal locking.
type Registry struct {
	socks [MaxConnections]int
	rings [MaxConnections]*pool.MagicRing
}

// NewRegistry constructs every ring up front. If the k-th construction
// fails, the preceding k rings are destroyed before the error is returned.
func NewRegistry() (*Registry, error) {
	r := &Registry{}
	for i := range r.socks {
		r.socks[i] = SentinelFD
	}
	for i := range r.rings {
		ring, err := pool.NewMagicRing()
		if err != nil {
			for j := 0; j < i; j++ {
				_ = r.rings[j].Close()
			}
			return nil, errors.Wrapf(err, "construct ring for slot %d", i)
		}
		r.rings[i] = ring
	}
	return r, nil
}

// Add claims the lowest free slot for sock and returns its handle. When the
// table is full it returns ErrConnectionsLimit and the caller keeps
// ownership of sock.
func (r *Registry) Add(sock int) (int, error) {
	for i := range r.socks {
		if r.socks[i] == SentinelFD {
			r.socks[i] = sock
			return i, nil
		}
	}
	return 0, api.ErrConnectionsLimit
}

// Remove closes the slot's socket, restores the sentinel, and empties the
// ring. Removing an inactive or out-of-range handle is a no-op.
func (r *Registry) Remove(handle int) {
	if handle < 0 || handle >= MaxConnections || r.socks[handle] == SentinelFD {
		return
	}
	_ = unix.Close(r.socks[handle])
	r.socks[handle] = SentinelFD
	r.rings[handle].Reset()
}

// Sock returns the slot's socket descriptor, or the sentinel.
func (r *Registry) Sock(handle int) int {
	if handle < 0 || handle >= MaxConnections {
		return SentinelFD
	}
	return r.socks[handle]
}

// Ring returns the slot's staging ring.
func (r *Registry) Ring(handle int) *pool.MagicRing {
	return r.rings[handle]
}

// Active returns the number of occupied slots.
func (r *Registry) Active() int {
	n := 0
	for i := range r.socks {
		if r.socks[i] != SentinelFD {
			n++
		}
	}
	return n
}

// Close releases every active socket and destroys every ring. Called once
// at process shutdown.
func (r *Registry) Close() error {
	var first error
	for i := range r.socks {
		if r.socks[i] != SentinelFD {
			_ = unix.Close(r.socks[i])
			r.socks[i] = SentinelFD
		}
		if r.rings[i] != nil {
			if err := r.rings[i].Close(); err != nil && first == nil {
				first = err
			}
			r.rings[i] = nil
		}
	}
	return first
}
