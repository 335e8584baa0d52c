// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for hioload-echo.
//
// Implements the magic ring buffer: a page-sized byte queue backed by an
// anonymous in-memory file mapped twice contiguously, so that the filled and
// free regions each appear as a single slice no matter where the queue wraps.
// See magic_ring_linux.go for implementation details.
package pool
