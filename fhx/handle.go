package fhx

import (
	"context"
	"time"

	"go-garden/clock"
)

// CV is a producer-side handle for one CV output.
type CV struct {
	queue   *Queue
	bank    Bank
	channel Channel
}

// NewCV creates a handle for the CV output at (bank, ch).
func NewCV(q *Queue, bank Bank, ch Channel) (*CV, error) {
	if err := validate(bank, ch); err != nil {
		return nil, err
	}
	return &CV{queue: q, bank: bank, channel: ch}, nil
}

// Address returns the handle's bank and channel.
func (c *CV) Address() (Bank, Channel) { return c.bank, c.channel }

// SetValue enqueues a new raw DAC value.
func (c *CV) SetValue(ctx context.Context, value uint16) error {
	return c.queue.Send(ctx, CVCommand(c.bank, c.channel, value))
}

// SetPolarity enqueues a polarity mask for the whole bank of this output.
func (c *CV) SetPolarity(ctx context.Context, mask uint8) error {
	return c.queue.Send(ctx, PolarityCommand(c.bank, mask))
}

// Gate is a producer-side handle for one gate output.
type Gate struct {
	queue   *Queue
	bank    Bank
	channel Channel
}

// NewGate creates a handle for the gate output at (bank, ch).
func NewGate(q *Queue, bank Bank, ch Channel) (*Gate, error) {
	if err := validate(bank, ch); err != nil {
		return nil, err
	}
	return &Gate{queue: q, bank: bank, channel: ch}, nil
}

// Address returns the handle's bank and channel.
func (g *Gate) Address() (Bank, Channel) { return g.bank, g.channel }

// SetHigh enqueues a gate-on command.
func (g *Gate) SetHigh(ctx context.Context) error {
	return g.queue.Send(ctx, GateCommand(g.bank, g.channel, true))
}

// SetLow enqueues a gate-off command.
func (g *Gate) SetLow(ctx context.Context) error {
	return g.queue.Send(ctx, GateCommand(g.bank, g.channel, false))
}

// gateOffGrace bounds how long a cancelled pulse tries to queue its gate-off.
const gateOffGrace = 50 * time.Millisecond

// EmitPulse implements clock.PulseSink, so schedulers can drive expander gates.
// The gate-off is still queued if ctx ends during the pulse.
func (g *Gate) EmitPulse(ctx context.Context, d time.Duration) error {
	return clock.Hold(ctx, d, func(high bool) error {
		if high {
			return g.SetHigh(ctx)
		}
		offCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), gateOffGrace)
		defer cancel()
		return g.SetLow(offCtx)
	})
}
