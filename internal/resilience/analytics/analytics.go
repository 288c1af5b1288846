// Package analytics keeps a bounded rolling history of retry attempts and
// derives outcome metrics from it at read time. The history is a window,
// not a log: memory stays O(capacity) no matter how much traffic flows
// through the resilience layer.
package analytics

import (
	"sync"
	"time"

	"eventscout/internal/resilience/classify"
)

// DefaultHistorySize is the attempt ring capacity when none is configured.
const DefaultHistorySize = 1000

// Attempt is one executed attempt of one logical call. Budget and circuit
// rejections never appear here because the operation never ran.
type Attempt struct {
	// CallID groups the attempts of one logical call.
	CallID string

	// Service is the policy/breaker key the call ran under.
	Service string

	// Number is the 1-based attempt number within the call.
	Number int

	// Timestamp is when the attempt finished.
	Timestamp time.Time

	// Delay is the backoff wait applied before this attempt (zero for the
	// first attempt).
	Delay time.Duration

	// Kind classifies the failure. Meaningful only when Succeeded is false.
	Kind classify.Kind

	// Succeeded marks a successful attempt.
	Succeeded bool

	// Final marks the terminal attempt of the logical call, either a
	// success or the attempt the orchestrator gave up on.
	Final bool

	// Latency is how long the operation ran.
	Latency time.Duration
}

// Snapshot is the derived view over the current ring. It is recomputed on
// every read and never stored.
type Snapshot struct {
	TotalAttempts int            `json:"total_attempts"`
	Successes     int            `json:"successes"`
	Failures      int            `json:"failures"`
	SuccessRate   float64        `json:"success_rate"`
	ErrorKinds    map[string]int `json:"error_kinds"`
	AvgLatency    time.Duration  `json:"avg_latency_ns"`

	// CompletedCalls counts logical calls whose final attempt is still in
	// the window.
	CompletedCalls int `json:"completed_calls"`

	// AvgAttemptsPerCall is the average number of attempts a completed
	// logical call needed, computed over calls whose records are in the
	// window.
	AvgAttemptsPerCall float64 `json:"avg_attempts_per_call"`

	// WindowStart is the timestamp of the oldest record in the ring.
	WindowStart time.Time `json:"window_start,omitzero"`
}

// Recorder is the bounded attempt ring.
type Recorder struct {
	mu       sync.Mutex
	capacity int
	attempts []Attempt
}

// NewRecorder builds a recorder holding at most capacity attempts.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	if capacity < 2 {
		capacity = 2
	}
	return &Recorder{
		capacity: capacity,
		attempts: make([]Attempt, 0, capacity),
	}
}

// Record appends one attempt. Once the ring reaches capacity it is trimmed
// to half of capacity, dropping the oldest records first.
func (r *Recorder) Record(a Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.attempts) >= r.capacity {
		half := r.capacity / 2
		kept := make([]Attempt, half, r.capacity)
		copy(kept, r.attempts[len(r.attempts)-half:])
		r.attempts = kept
	}
	r.attempts = append(r.attempts, a)
}

// Snapshot reduces the current ring to derived metrics. Two calls without
// an interleaved Record return identical values.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		TotalAttempts: len(r.attempts),
		ErrorKinds:    make(map[string]int),
	}

	var latencySum time.Duration
	completed := make(map[string]bool)
	for _, a := range r.attempts {
		if a.Succeeded {
			snap.Successes++
		} else {
			snap.Failures++
			snap.ErrorKinds[a.Kind.String()]++
		}
		latencySum += a.Latency
		if a.Final && a.CallID != "" {
			completed[a.CallID] = true
		}
		if snap.WindowStart.IsZero() || a.Timestamp.Before(snap.WindowStart) {
			snap.WindowStart = a.Timestamp
		}
	}

	if snap.TotalAttempts > 0 {
		snap.SuccessRate = float64(snap.Successes) / float64(snap.TotalAttempts)
		snap.AvgLatency = latencySum / time.Duration(snap.TotalAttempts)
	}

	snap.CompletedCalls = len(completed)
	if snap.CompletedCalls > 0 {
		attemptsOfCompleted := 0
		for _, a := range r.attempts {
			if completed[a.CallID] {
				attemptsOfCompleted++
			}
		}
		snap.AvgAttemptsPerCall = float64(attemptsOfCompleted) / float64(snap.CompletedCalls)
	}

	return snap
}

// Reset clears the ring. Administrative action.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = make([]Attempt, 0, r.capacity)
}

// Len returns the number of attempts currently held.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attempts)
}
