// File: api/ring.go
// Author: momentics <momentics@gmail.com>
//
// Contiguous-view byte ring contract.
//
// Unlike a conventional ring buffer, both the filled and the free region are
// always observable as a single contiguous slice, regardless of where the
// head sits. Implementations achieve this by mapping the backing storage
// twice back-to-back in virtual memory.

package api

// ByteRing is a fixed-capacity FIFO byte queue whose filled and free regions
// are each exposed as one contiguous slice.
type ByteRing interface {
	// Slice returns a read-only view of the filled region. Its length equals
	// Len() and never exceeds Cap().
	Slice() []byte

	// SizedSlice returns the first n bytes of the filled region.
	// n must not exceed Len().
	SizedSlice(n int) []byte

	// AvailSlice returns a writable view of the free region. Its length
	// equals Free(). Producers write here, then publish with CommitPush.
	AvailSlice() []byte

	// Push copies min(Free(), len(p)) bytes of p into the free region and
	// publishes them, returning the number of bytes copied.
	Push(p []byte) int

	// CommitPush publishes n bytes already written into AvailSlice.
	CommitPush(n int) error

	// CommitPop consumes n bytes off the front of the filled region.
	CommitPop(n int) error

	// Len returns the number of filled bytes.
	Len() int

	// Free returns the number of writable bytes.
	Free() int

	// Cap returns the fixed logical capacity.
	Cap() int
}
