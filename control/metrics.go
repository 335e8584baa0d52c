// File: control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime counters for the echo server. The reactor thread is the only
// writer; atomics make the counters safely readable from the stats ticker
// goroutine without touching the hot loop's serialization model.

package control

import (
	"sync"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/atomic"
)

// historyDepth bounds the snapshot FIFO.
const historyDepth = 64

// Metrics aggregates the server's lifetime counters.
type Metrics struct {
	Accepted      atomic.Int64 // connections admitted into the table
	Rejected      atomic.Int64 // accepts dropped because the table was full
	Closed        atomic.Int64 // connections removed on EOF or error
	BytesIn       atomic.Int64 // bytes committed off recv completions
	BytesOut      atomic.Int64 // bytes committed off send completions
	SubmitRetries atomic.Int64 // SQE enqueues that needed a flush-and-retry

	mu      sync.Mutex
	history *queue.Queue // of Snapshot
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Taken         time.Time
	Accepted      int64
	Rejected      int64
	Closed        int64
	BytesIn       int64
	BytesOut      int64
	SubmitRetries int64
}

// NewMetrics creates an empty registry.
func NewMetrics() *Metrics {
	return &Metrics{history: queue.New()}
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Taken:         time.Now(),
		Accepted:      m.Accepted.Load(),
		Rejected:      m.Rejected.Load(),
		Closed:        m.Closed.Load(),
		BytesIn:       m.BytesIn.Load(),
		BytesOut:      m.BytesOut.Load(),
		SubmitRetries: m.SubmitRetries.Load(),
	}
}

// Record takes a snapshot and appends it to the bounded history, evicting
// the oldest entry once the depth is reached.
func (m *Metrics) Record() Snapshot {
	s := m.Snapshot()
	m.mu.Lock()
	m.history.Add(s)
	if m.history.Length() > historyDepth {
		m.history.Remove()
	}
	m.mu.Unlock()
	return s
}

// History returns the recorded snapshots, oldest first.
func (m *Metrics) History() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, 0, m.history.Length())
	for i := 0; i < m.history.Length(); i++ {
		out = append(out, m.history.Get(i).(Snapshot))
	}
	return out
}
