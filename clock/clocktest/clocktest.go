// Package clocktest provides deterministic edge sources and pulse sinks for
// exercising the schedulers in package clock without hardware.
package clocktest

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"
)

// instants is a min-heap of edge times.
type instants []time.Time

func (h instants) Len() int           { return len(h) }
func (h instants) Less(i, j int) bool { return h[i].Before(h[j]) }
func (h instants) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *instants) Push(x any)        { *h = append(*h, x.(time.Time)) }
func (h *instants) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// EdgeQueue is an EdgeSource replaying a fixed set of edge instants.
// Instants already in the past when Wait is called are dropped, like edges
// a hardware input misses while nobody is waiting.
type EdgeQueue struct {
	mu     sync.Mutex
	events instants
}

// NewEdgeQueue creates a queue from absolute edge times in any order.
func NewEdgeQueue(at ...time.Time) *EdgeQueue {
	q := &EdgeQueue{events: append(instants(nil), at...)}
	heap.Init(&q.events)
	return q
}

// Len returns the number of edges not consumed or dropped yet.
func (q *EdgeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.events.Len()
}

// Wait implements clock.EdgeSource. It blocks until ctx is done once the
// queue is exhausted.
func (q *EdgeQueue) Wait(ctx context.Context) (time.Time, error) {
	q.mu.Lock()
	now := time.Now()
	for q.events.Len() > 0 && !q.events[0].After(now) {
		heap.Pop(&q.events)
	}
	var (
		next time.Time
		ok   bool
	)
	if q.events.Len() > 0 {
		next = heap.Pop(&q.events).(time.Time)
		ok = true
	}
	q.mu.Unlock()

	if !ok {
		<-ctx.Done()
		return time.Time{}, ctx.Err()
	}

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	case <-timer.C:
		return next, nil
	}
}

// Pulse is one pulse observed by a Recorder.
type Pulse struct {
	Start    time.Time
	Duration time.Duration
}

// ShortlyAfter reports whether the pulse started at or after t and no later
// than t+tol.
func (p Pulse) ShortlyAfter(t time.Time, tol time.Duration) error {
	if p.Start.Before(t) {
		return fmt.Errorf("pulse at %s is not after %s", p.Start.Format("15:04:05.000000"), t.Format("15:04:05.000000"))
	}
	if p.Start.After(t.Add(tol)) {
		return fmt.Errorf("pulse at %s is more than %s after %s", p.Start.Format("15:04:05.000000"), tol, t.Format("15:04:05.000000"))
	}
	return nil
}

// Recorder is a PulseSink remembering every pulse it emitted.
type Recorder struct {
	mu     sync.Mutex
	pulses []Pulse
}

// EmitPulse implements clock.PulseSink.
func (r *Recorder) EmitPulse(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.pulses = append(r.pulses, Pulse{Start: time.Now(), Duration: d})
	r.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Pulses returns a copy of the recorded pulses.
func (r *Recorder) Pulses() []Pulse {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Pulse(nil), r.pulses...)
}

// Len returns the number of recorded pulses.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pulses)
}
