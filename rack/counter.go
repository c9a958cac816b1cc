package rack

import (
	"context"
	"time"

	"go-garden/clock"
	"go-garden/noise"
)

type countingSink struct {
	clock.PulseSink
	t *task
}

func (c countingSink) EmitPulse(ctx context.Context, d time.Duration) error {
	c.t.hit()
	return c.PulseSink.EmitPulse(ctx, d)
}

type countingCV struct {
	noise.CVSetter
	t *task
}

func (c countingCV) SetValue(ctx context.Context, value uint16) error {
	c.t.hit()
	return c.CVSetter.SetValue(ctx, value)
}
