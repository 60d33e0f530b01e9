// Package manager provides business logic and entity management for the
// inventory backend.
//
// This file defines OpStats, per-operation call counters and latency
// quantiles for the engine.
package manager

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
)

// =============================================================================
// Operation Statistics
// =============================================================================

// opStat tracks one operation. Counters are atomic; the sketch is protected
// by mu.
type opStat struct {
	calls  atomic.Int64
	errors atomic.Int64

	mu     sync.Mutex
	sketch *ddsketch.DDSketch
}

// OpSnapshot is a point-in-time view of one operation's statistics.
// Latencies are in milliseconds.
type OpSnapshot struct {
	Op     string
	Calls  int64
	Errors int64
	P50Ms  float64
	P90Ms  float64
	P99Ms  float64
	MaxMs  float64
}

// OpStats records call counts and latency distributions per engine
// operation.
//
// OpStats is safe for concurrent use.
type OpStats struct {
	mu    sync.RWMutex
	stats map[string]*opStat
}

// NewOpStats creates an empty statistics set.
func NewOpStats() *OpStats {
	return &OpStats{stats: make(map[string]*opStat)}
}

func (s *OpStats) get(op string) *opStat {
	// Fast path: read lock
	s.mu.RLock()
	st, ok := s.stats[op]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok = s.stats[op]; ok {
		return st
	}
	// relative accuracy 1%; error only for accuracy outside (0,1)
	sketch, _ := ddsketch.NewDefaultDDSketch(0.01)
	st = &opStat{sketch: sketch}
	s.stats[op] = st
	return st
}

// Record adds one call of op that took d and ended with err.
func (s *OpStats) Record(op string, d time.Duration, err error) {
	if s == nil {
		return
	}
	st := s.get(op)
	st.calls.Add(1)
	if err != nil {
		st.errors.Add(1)
	}

	ms := float64(d) / float64(time.Millisecond)
	st.mu.Lock()
	_ = st.sketch.Add(ms)
	st.mu.Unlock()
}

// Snapshot returns the statistics of every operation seen so far, sorted by
// operation name.
func (s *OpStats) Snapshot() []OpSnapshot {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	ops := make([]string, 0, len(s.stats))
	for op := range s.stats {
		ops = append(ops, op)
	}
	s.mu.RUnlock()
	sort.Strings(ops)

	out := make([]OpSnapshot, 0, len(ops))
	for _, op := range ops {
		st := s.get(op)
		snap := OpSnapshot{
			Op:     op,
			Calls:  st.calls.Load(),
			Errors: st.errors.Load(),
		}

		st.mu.Lock()
		if !st.sketch.IsEmpty() {
			snap.P50Ms, _ = st.sketch.GetValueAtQuantile(0.50)
			snap.P90Ms, _ = st.sketch.GetValueAtQuantile(0.90)
			snap.P99Ms, _ = st.sketch.GetValueAtQuantile(0.99)
			snap.MaxMs, _ = st.sketch.GetMaxValue()
		}
		st.mu.Unlock()

		out = append(out, snap)
	}
	return out
}

// Reset drops all recorded statistics.
func (s *OpStats) Reset() {
	s.mu.Lock()
	s.stats = make(map[string]*opStat)
	s.mu.Unlock()
}
