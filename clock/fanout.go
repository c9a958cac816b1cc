package clock

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Fanout emits every pulse on all of its sinks at once and returns when the
// slowest one is done.
type Fanout []PulseSink

// EmitPulse implements PulseSink.
func (f Fanout) EmitPulse(ctx context.Context, d time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sink := range f {
		g.Go(func() error {
			return sink.EmitPulse(ctx, d)
		})
	}
	return g.Wait()
}
