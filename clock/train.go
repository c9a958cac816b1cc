package clock

import (
	"context"
	"math"
	"time"

	"go-garden/debug"
	"go-garden/param"
)

// MaxTrainPulse caps the high time of a single pulse in a train.
const MaxTrainPulse = 10 * time.Millisecond

// Period returns the beat period for bpm with microsecond resolution.
// bpm must be positive.
func Period(bpm float64) time.Duration {
	us := int64(60_000_000 / bpm)
	return time.Duration(us) * time.Microsecond
}

// ValidRate reports whether bpm yields a usable period: positive, finite and
// at least one microsecond long.
func ValidRate(bpm float64) bool {
	if !(bpm > 0) || math.IsInf(bpm, 1) {
		return false
	}
	us := 60_000_000 / bpm
	return us >= 1 && us < math.MaxInt64/1000
}

// TrainTiming splits one beat at bpm into the high and low part of a train
// pulse. ok is false when bpm is not a ValidRate.
func TrainTiming(bpm float64) (width, rest time.Duration, ok bool) {
	if !ValidRate(bpm) {
		return 0, 0, false
	}
	period := Period(bpm)
	width = min(MaxTrainPulse, period/2)
	return width, period - width, true
}

// Train emits a burst of count pulses at rate bpm for every edge of in.
//
// Both parameters are read once per edge, so turning a knob mid-train only
// affects the next one. A count of zero or less emits nothing. Trains with a
// non-positive rate are skipped.
func Train(ctx context.Context, in EdgeSource, out PulseSink, count param.IntParameter, rate param.FloatParameter) error {
	for {
		if _, err := in.Wait(ctx); err != nil {
			return err
		}

		n := count.Read()
		bpm := rate.Read()
		width, rest, ok := TrainTiming(bpm)
		if !ok {
			debug.Log("train", "skipping train: invalid rate %v bpm", bpm)
			continue
		}
		debug.LogEvery(50, "train", "count=%d bpm=%.2f width=%s rest=%s", n, bpm, width, rest)

		for i := 0; i < n; i++ {
			if err := out.EmitPulse(ctx, width); err != nil {
				return err
			}
			if err := sleep(ctx, rest); err != nil {
				return err
			}
		}
	}
}
