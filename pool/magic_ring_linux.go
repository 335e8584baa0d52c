// File: pool/magic_ring_linux.go
//go:build linux

// Package pool: Linux magic ring buffer over memfd + double MAP_FIXED mapping.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-echo/api"
)

// Size is the logical ring capacity in bytes: exactly one page.
const Size = 4096

// MagicRing is a fixed-capacity FIFO byte queue whose single page of backing
// memory is mapped twice back-to-back. Any slice starting inside the first
// mapping may run past the wrap point and still read the right bytes, so
// neither producers nor consumers ever split an operation in two.
//
// Invariants: pos < Size, length <= Size, and data[i] aliases data[i+Size]
// for every i in [0, Size).
//
// Not safe for concurrent use. The reactor serializes all access per
// connection by keeping at most one kernel operation in flight.
type MagicRing struct {
	fd     int
	data   []byte // doubled view, length 2*Size
	pos    uint16 // head offset, always < Size
	length uint16 // filled byte count, <= Size
}

var _ api.ByteRing = (*MagicRing)(nil)

// NewMagicRing builds the double mapping:
//
//  1. memfd_create + ftruncate(Size) for the backing pages,
//  2. a PROT_NONE anonymous reservation of 2*Size to pin a contiguous
//     virtual range,
//  3. two MAP_SHARED|MAP_FIXED read/write maps of the same fd over the two
//     halves of the reservation.
//
// On partial failure the reservation is unmapped and the memfd closed before
// the error is returned.
func NewMagicRing() (*MagicRing, error) {
	if pg := unix.Getpagesize(); Size%pg != 0 {
		return nil, errors.Wrapf(api.ErrInvalidArgument,
			"ring size %d is not a multiple of the page size %d", Size, pg)
	}

	fd, err := unix.MemfdCreate("hioload-echo-ring", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "memfd_create")
	}
	if err := unix.Ftruncate(fd, Size); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "ftruncate ring backing file")
	}

	base, err := unix.MmapPtr(-1, 0, nil, 2*Size,
		unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "reserve doubled address range")
	}

	cleanup := func() {
		_ = unix.MunmapPtr(base, 2*Size)
		_ = unix.Close(fd)
	}

	if _, err := unix.MmapPtr(fd, 0, base, Size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_FIXED); err != nil {
		cleanup()
		return nil, errors.Wrap(err, "map first half")
	}
	if _, err := unix.MmapPtr(fd, 0, unsafe.Add(base, Size), Size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_FIXED); err != nil {
		cleanup()
		return nil, errors.Wrap(err, "map second half")
	}

	data := unsafe.Slice((*byte)(base), 2*Size)
	clear(data[:Size]) // mirrors into the second half

	return &MagicRing{fd: fd, data: data}, nil
}

// Slice returns the filled region as one contiguous view.
func (r *MagicRing) Slice() []byte {
	return r.data[int(r.pos) : int(r.pos)+int(r.length)]
}

// SizedSlice returns the first n bytes of the filled region. n must not
// exceed Len().
func (r *MagicRing) SizedSlice(n int) []byte {
	if n < 0 || n > int(r.length) {
		panic("pool: sized slice exceeds filled region")
	}
	return r.data[int(r.pos) : int(r.pos)+n]
}

// AvailSlice returns the free region as one contiguous writable view.
func (r *MagicRing) AvailSlice() []byte {
	return r.data[int(r.pos)+int(r.length) : int(r.pos)+Size]
}

// Push copies min(Free(), len(p)) bytes into the free region and publishes
// them, returning the number copied. Used by in-process producers; kernel
// producers write into AvailSlice and publish with CommitPush instead.
func (r *MagicRing) Push(p []byte) int {
	n := copy(r.AvailSlice(), p)
	r.length += uint16(n)
	return n
}

// CommitPush publishes n bytes already written into AvailSlice.
func (r *MagicRing) CommitPush(n int) error {
	if n < 0 || n > r.Free() {
		return errors.Wrapf(api.ErrNotEnoughSpace,
			"commit push %d with %d free", n, r.Free())
	}
	r.length += uint16(n)
	return nil
}

// CommitPop consumes n bytes off the front of the filled region. The head
// advances modulo Size; the fill count is an absolute count and is never
// reduced modulo anything.
func (r *MagicRing) CommitPop(n int) error {
	if n < 0 || n > int(r.length) {
		return errors.Wrapf(api.ErrNotEnoughSpace,
			"commit pop %d with %d filled", n, r.length)
	}
	r.pos = uint16((int(r.pos) + n) % Size)
	r.length -= uint16(n)
	return nil
}

// Len returns the number of filled bytes.
func (r *MagicRing) Len() int { return int(r.length) }

// Free returns the number of writable bytes.
func (r *MagicRing) Free() int { return Size - int(r.length) }

// Cap returns the fixed logical capacity.
func (r *MagicRing) Cap() int { return Size }

// Pos returns the current head offset. Exposed for diagnostics and tests.
func (r *MagicRing) Pos() int { return int(r.pos) }

// Reset empties the ring. The head offset is kept: any pos is legal while
// the ring is empty, and the next publish is relative to the current head.
func (r *MagicRing) Reset() {
	r.length = 0
}

// Close unmaps the doubled view and closes the backing descriptor. The ring
// must not be used afterwards.
func (r *MagicRing) Close() error {
	if r.data == nil {
		return nil
	}
	err := unix.MunmapPtr(unsafe.Pointer(&r.data[0]), 2*Size)
	r.data = nil
	if cerr := unix.Close(r.fd); err == nil {
		err = cerr
	}
	r.fd = -1
	return err
}
