package fhx

import (
	"context"

	"go-garden/debug"
)

// DefaultQueueSize is the number of outstanding commands before senders block.
const DefaultQueueSize = 5

// Driver talks to the physical expander. Only the Arbiter calls it.
type Driver interface {
	SetPolarity(bank Bank, mask uint8)
	SetCV(ctx context.Context, bank Bank, ch Channel, value uint16) error
	SetGate(ctx context.Context, bank Bank, ch Channel, on bool) error
}

// Queue is the bounded FIFO between producers and the Arbiter.
// Any number of goroutines may Send; one Arbiter receives.
type Queue struct {
	ch chan Command
}

// NewQueue creates a queue holding up to size commands.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan Command, size)}
}

// Send enqueues cmd, suspending while the queue is full. Commands are never
// dropped; Send only fails when ctx is done first.
func (q *Queue) Send(ctx context.Context, cmd Command) error {
	select {
	case q.ch <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of commands waiting.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return cap(q.ch) }

// Arbiter is the single owner of a Driver.
type Arbiter struct {
	queue  *Queue
	driver Driver
}

// NewArbiter binds driver to queue.
func NewArbiter(queue *Queue, driver Driver) *Arbiter {
	return &Arbiter{queue: queue, driver: driver}
}

// Queue returns the queue feeding this arbiter.
func (a *Arbiter) Queue() *Queue { return a.queue }

// Run applies commands in the order they were enqueued until ctx is done.
// Driver errors are logged and the command is dropped; nothing is retried.
func (a *Arbiter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-a.queue.ch:
			if err := a.apply(ctx, cmd); err != nil {
				debug.Log("fhx", "%s: %v", cmd, err)
			}
		}
	}
}

func (a *Arbiter) apply(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case SetPolarity:
		a.driver.SetPolarity(cmd.Bank, cmd.Mask)
		return nil
	case SetCV:
		return a.driver.SetCV(ctx, cmd.Bank, cmd.Channel, cmd.Value)
	case SetGate:
		return a.driver.SetGate(ctx, cmd.Bank, cmd.Channel, cmd.On)
	default:
		debug.Log("fhx", "ignoring %s", cmd)
		return nil
	}
}
