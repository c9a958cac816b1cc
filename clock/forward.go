package clock

import (
	"context"
	"time"

	"go-garden/debug"
)

// Forward re-emits every edge of in as a pulse of duration d on out.
//
// Only one pulse is in flight: an edge arriving while the previous pulse is
// still being emitted is not observed. Run several Forward loops to fan out.
func Forward(ctx context.Context, in EdgeSource, out PulseSink, d time.Duration) error {
	for {
		at, err := in.Wait(ctx)
		if err != nil {
			return err
		}
		debug.LogEvery(100, "forward", "edge at %s", at.Format("15:04:05.000"))
		if err := out.EmitPulse(ctx, d); err != nil {
			return err
		}
	}
}
