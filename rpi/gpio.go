// Package rpi binds the clock and param interfaces to Raspberry Pi GPIO.
//
// Pins are BCM numbers. Open must be called before any pin is used and
// Close once the last one is released.
package rpi

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/warthog618/gpio"

	"go-garden/clock"
	"go-garden/debug"
)

// Open maps the GPIO registers.
func Open() error {
	if err := gpio.Open(); err != nil {
		return fmt.Errorf("open gpio: %w", err)
	}
	debug.Log("gpio", "opened")
	return nil
}

// Close unmaps the GPIO registers.
func Close() error {
	debug.Log("gpio", "closed")
	return gpio.Close()
}

// ParseEdge converts "rising", "falling" or "both".
func ParseEdge(s string) (gpio.Edge, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rising", "":
		return gpio.EdgeRising, nil
	case "falling":
		return gpio.EdgeFalling, nil
	case "both":
		return gpio.EdgeBoth, nil
	}
	return gpio.EdgeNone, fmt.Errorf("rpi: unknown edge %q", s)
}

// Watchable is the part of *gpio.Pin an EdgeIn needs.
type Watchable interface {
	Input()
	PullUp()
	PullNone()
	Watch(edge gpio.Edge, handler func(*gpio.Pin)) error
	Unwatch()
}

// EdgeIn is a clock.EdgeSource on a GPIO input.
type EdgeIn struct {
	pin   Watchable
	latch *clock.EdgeLatch
}

// NewEdgeIn configures pin as an input and watches it for edge.
func NewEdgeIn(pin Watchable, edge gpio.Edge, pullUp bool) (*EdgeIn, error) {
	pin.Input()
	if pullUp {
		pin.PullUp()
	} else {
		pin.PullNone()
	}
	in := &EdgeIn{pin: pin, latch: clock.NewEdgeLatch()}
	if err := pin.Watch(edge, in.handle); err != nil {
		return nil, fmt.Errorf("watch pin: %w", err)
	}
	return in, nil
}

// OpenEdgeIn watches BCM pin n.
func OpenEdgeIn(n int, edge gpio.Edge, pullUp bool) (*EdgeIn, error) {
	in, err := NewEdgeIn(gpio.NewPin(n), edge, pullUp)
	if err != nil {
		return nil, fmt.Errorf("gpio %d: %w", n, err)
	}
	return in, nil
}

func (in *EdgeIn) handle(*gpio.Pin) {
	in.latch.Trigger(time.Now())
}

// Wait implements clock.EdgeSource.
func (in *EdgeIn) Wait(ctx context.Context) (time.Time, error) {
	return in.latch.Wait(ctx)
}

// Close stops watching the pin.
func (in *EdgeIn) Close() {
	in.pin.Unwatch()
}

// Line is the part of *gpio.Pin used to drive and sample levels.
type Line interface {
	Input()
	Output()
	High()
	Low()
	Write(level gpio.Level)
	Read() gpio.Level
}

// PulseOut is a clock.PulseSink on a GPIO output.
type PulseOut struct {
	mu   sync.Mutex
	line Line
}

// NewPulseOut drives line low and switches it to output.
func NewPulseOut(line Line) *PulseOut {
	line.Low()
	line.Output()
	return &PulseOut{line: line}
}

// OpenPulseOut drives BCM pin n.
func OpenPulseOut(n int) *PulseOut {
	return NewPulseOut(gpio.NewPin(n))
}

// EmitPulse implements clock.PulseSink.
func (p *PulseOut) EmitPulse(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return clock.Hold(ctx, d, func(high bool) error {
		p.line.Write(gpio.Level(high))
		return nil
	})
}

// Close lowers the output and releases the pin.
func (p *PulseOut) Close() {
	p.mu.Lock()
	p.line.Low()
	p.line.Input()
	p.mu.Unlock()
}
