package control

import "testing"

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.Accepted.Inc()
	m.BytesIn.Add(100)
	m.BytesOut.Add(80)

	s := m.Snapshot()
	if s.Accepted != 1 || s.BytesIn != 100 || s.BytesOut != 80 {
		t.Errorf("snapshot = %+v", s)
	}
	if s.Rejected != 0 || s.Closed != 0 || s.SubmitRetries != 0 {
		t.Errorf("untouched counters drifted: %+v", s)
	}
}

func TestMetricsHistoryBound(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < historyDepth+10; i++ {
		m.Accepted.Inc()
		m.Record()
	}
	h := m.History()
	if len(h) != historyDepth {
		t.Fatalf("history length = %d, want %d", len(h), historyDepth)
	}
	// Oldest surviving snapshot is the 11th recorded.
	if h[0].Accepted != 11 {
		t.Errorf("oldest snapshot Accepted = %d, want 11", h[0].Accepted)
	}
	if h[len(h)-1].Accepted != int64(historyDepth+10) {
		t.Errorf("newest snapshot Accepted = %d", h[len(h)-1].Accepted)
	}
}

func TestProbes(t *testing.T) {
	p := NewProbes()
	p.Register("b", func() any { return 2 })
	p.Register("a", func() any { return 1 })

	names := p.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names = %v", names)
	}
	dump := p.Dump()
	if dump["a"] != 1 || dump["b"] != 2 {
		t.Errorf("Dump = %v", dump)
	}
}
