// Package clock forwards, multiplies and generates trigger pulses.
//
// Every scheduler is a long-running loop bound to one EdgeSource and/or one
// PulseSink. Loops only return when their context is cancelled or a source
// fails; teardown is the caller's decision.
package clock

import (
	"context"
	"time"
)

// EdgeSource is a digital input reporting discrete edges.
type EdgeSource interface {
	// Wait suspends until the next edge and returns its timestamp.
	Wait(ctx context.Context) (time.Time, error)
}

// PulseSink is a digital output able to emit a timed high pulse.
type PulseSink interface {
	// EmitPulse raises the output, holds it for d and lowers it again.
	// It returns once both transitions happened.
	EmitPulse(ctx context.Context, d time.Duration) error
}

// EdgeLatch hands edges over from a driver callback (interrupt path) to the
// single task waiting on them. Trigger never blocks.
type EdgeLatch struct {
	edges chan time.Time
}

// NewEdgeLatch creates an empty latch.
func NewEdgeLatch() *EdgeLatch {
	return &EdgeLatch{edges: make(chan time.Time, 1)}
}

// Trigger records an edge. If an edge is already pending it is replaced.
func (l *EdgeLatch) Trigger(t time.Time) {
	for {
		select {
		case l.edges <- t:
			return
		default:
		}
		select {
		case <-l.edges:
		default:
		}
	}
}

// Wait discards any edge latched before the call and suspends until the
// next one, like a hardware wait-for-edge.
func (l *EdgeLatch) Wait(ctx context.Context) (time.Time, error) {
	select {
	case <-l.edges:
	default:
	}
	select {
	case <-ctx.Done():
		return time.Time{}, ctx.Err()
	case t := <-l.edges:
		return t, nil
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Hold drives a level output through one pulse: set(true), wait d, set(false).
// The output is lowered even when ctx is cancelled midway.
func Hold(ctx context.Context, d time.Duration, set func(high bool) error) error {
	if err := set(true); err != nil {
		return err
	}
	waitErr := sleep(ctx, d)
	if err := set(false); err != nil {
		return err
	}
	return waitErr
}
