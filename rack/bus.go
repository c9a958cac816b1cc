package rack

import (
	"context"
	"time"

	"go-garden/clock"
)

// bus connects the pulses of one patch to the edge inputs of others.
type bus struct {
	name      string
	listeners []*clock.EdgeLatch
}

func (b *bus) subscribe() clock.EdgeSource {
	l := clock.NewEdgeLatch()
	b.listeners = append(b.listeners, l)
	return l
}

// EmitPulse implements clock.PulseSink. The rising edge is delivered to every
// subscriber at once.
func (b *bus) EmitPulse(ctx context.Context, d time.Duration) error {
	return clock.Hold(ctx, d, func(high bool) error {
		if high {
			now := time.Now()
			for _, l := range b.listeners {
				l.Trigger(now)
			}
		}
		return nil
	})
}
