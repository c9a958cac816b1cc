package clock

import (
	"context"
	"time"

	"go-garden/debug"
	"go-garden/param"
)

// DefaultClockPulse is the high time of every free-running clock tick.
const DefaultClockPulse = 5 * time.Millisecond

// ratePoll is how often a waiting clock re-reads its rate: between ticks of a
// slow clock, and while the rate is invalid.
const ratePoll = 10 * time.Millisecond

// tickState is the arm state of a free-running clock: Unarmed, or ArmedAt(bpm).
type tickState struct {
	armed bool
	bpm   float64
}

// arm moves the state for a freshly read rate. It reports whether the tick
// must be re-armed from now; an unchanged rate keeps the running schedule.
func (s *tickState) arm(bpm float64) bool {
	if s.armed && s.bpm == bpm {
		return false
	}
	s.armed = true
	s.bpm = bpm
	return true
}

// FreeRun emits a pulse of width on out at the rate read from rate.
//
// The rate is read before every tick. A changed value restarts the tick
// period from now; an equal value leaves the phase untouched so ADC noise
// within one code does not re-quantize the clock. Invalid rates are ignored
// and the previous schedule, if any, keeps running.
//
// Clocks slower than ratePoll also read the rate while waiting. A rate whose
// period would end before the pending tick re-arms at once; slower rates wait
// for the tick, so a pending tick is never postponed.
func FreeRun(ctx context.Context, out PulseSink, rate param.FloatParameter, width time.Duration) error {
	var (
		state  tickState
		ticker *time.Ticker
		due    time.Time
	)
	poll := time.NewTicker(ratePoll)
	defer poll.Stop()
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	rearm := func(bpm float64) {
		period := Period(bpm)
		debug.Log("clock", "armed at %.3f bpm (period %s)", bpm, period)
		if ticker == nil {
			ticker = time.NewTicker(period)
		} else {
			ticker.Reset(period)
		}
		due = time.Now().Add(period)
	}

	for {
		bpm := rate.Read()
		if ValidRate(bpm) {
			if state.arm(bpm) {
				rearm(bpm)
			}
		} else {
			debug.LogEvery(100, "clock", "ignoring invalid rate %v bpm", bpm)
		}

		if ticker == nil {
			if err := sleep(ctx, ratePoll); err != nil {
				return err
			}
			continue
		}

		var polling <-chan time.Time
		if Period(state.bpm) > ratePoll {
			polling = poll.C
		}
	wait:
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				break wait
			case <-polling:
				next := rate.Read()
				if ValidRate(next) && next != state.bpm && Period(next) < time.Until(due) {
					state.arm(next)
					rearm(next)
					if Period(next) <= ratePoll {
						polling = nil
					}
				}
			}
		}
		due = due.Add(Period(state.bpm))
		if err := out.EmitPulse(ctx, width); err != nil {
			return err
		}
	}
}
