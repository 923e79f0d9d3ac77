package engine

import (
	"sync"
	"time"
)

// StreamStats counts what happened to one definition's records.
type StreamStats struct {
	// Fetches is the number of paginated fetches started, one per parent
	// record for child definitions.
	Fetches int
	Emitted int
	Dropped int
}

// Summary reports a run.
type Summary struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Streams  map[string]*StreamStats
	Failures []StreamFailure
}

// Emitted returns the total number of records handed to the sink.
func (s *Summary) Emitted() int {
	n := 0
	for _, st := range s.Streams {
		n += st.Emitted
	}
	return n
}

// runState collects statistics from concurrently traversed subtrees.
type runState struct {
	mu      sync.Mutex
	summary *Summary
}

func newRunState(runID string, started time.Time) *runState {
	return &runState{summary: &Summary{
		RunID:   runID,
		Started: started,
		Streams: make(map[string]*StreamStats),
	}}
}

func (r *runState) stats(stream string) *StreamStats {
	st, ok := r.summary.Streams[stream]
	if !ok {
		st = &StreamStats{}
		r.summary.Streams[stream] = st
	}
	return st
}

func (r *runState) fetched(stream string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats(stream).Fetches++
}

func (r *runState) emitted(stream string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats(stream).Emitted++
	recordsEmittedTotal.WithLabelValues(stream).Inc()
}

func (r *runState) dropped(stream string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats(stream).Dropped++
	recordsDroppedTotal.WithLabelValues(stream).Inc()
}

func (r *runState) partial(stream string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats(stream).Emitted > 0
}

func (r *runState) anyEmitted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary.Emitted() > 0
}

func (r *runState) fail(f StreamFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.Failures = append(r.summary.Failures, f)
}
