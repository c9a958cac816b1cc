package clock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-garden/clock"
	"go-garden/clock/clocktest"
)

// shortly is how late a pulse may start after its triggering edge.
const shortly = 3 * time.Millisecond

// runFor runs loop until the deadline and returns its error.
func runFor(t *testing.T, d time.Duration, loop func(ctx context.Context) error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	err := loop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEdgeQueueReplaysInOrder(t *testing.T) {
	now := time.Now()
	q := clocktest.NewEdgeQueue(
		now.Add(30*time.Millisecond),
		now.Add(10*time.Millisecond),
		now.Add(20*time.Millisecond),
	)
	ctx := context.Background()

	for _, ms := range []int{10, 20, 30} {
		at, err := q.Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Duration(ms)*time.Millisecond), at)
	}
	assert.Equal(t, 0, q.Len())
}

func TestEdgeQueueDropsPastEdges(t *testing.T) {
	now := time.Now()
	q := clocktest.NewEdgeQueue(
		now.Add(10*time.Millisecond),
		now.Add(20*time.Millisecond),
		now.Add(30*time.Millisecond),
	)
	ctx := context.Background()

	at, err := q.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, now.Add(10*time.Millisecond), at)

	time.Sleep(15 * time.Millisecond)
	at, err = q.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*time.Millisecond), at)
	assert.Equal(t, 0, q.Len())
}

func TestForward(t *testing.T) {
	now := time.Now()
	in := clocktest.NewEdgeQueue(now.Add(10*time.Millisecond), now.Add(20*time.Millisecond))
	out := &clocktest.Recorder{}

	runFor(t, 50*time.Millisecond, func(ctx context.Context) error {
		return clock.Forward(ctx, in, out, 5*time.Millisecond)
	})

	pulses := out.Pulses()
	require.Len(t, pulses, 2)
	assert.NoError(t, pulses[0].ShortlyAfter(now.Add(10*time.Millisecond), shortly))
	assert.Equal(t, 5*time.Millisecond, pulses[0].Duration)
	assert.NoError(t, pulses[1].ShortlyAfter(now.Add(20*time.Millisecond), shortly))
	assert.Equal(t, 5*time.Millisecond, pulses[1].Duration)
}

func TestForwardDropsEdgeDuringPulse(t *testing.T) {
	now := time.Now()
	in := clocktest.NewEdgeQueue(
		now.Add(10*time.Millisecond),
		now.Add(20*time.Millisecond),
		now.Add(30*time.Millisecond),
	)
	out := &clocktest.Recorder{}

	runFor(t, 50*time.Millisecond, func(ctx context.Context) error {
		return clock.Forward(ctx, in, out, 15*time.Millisecond)
	})

	pulses := out.Pulses()
	require.Len(t, pulses, 2)
	assert.NoError(t, pulses[0].ShortlyAfter(now.Add(10*time.Millisecond), shortly))
	assert.Equal(t, 15*time.Millisecond, pulses[0].Duration)
	assert.NoError(t, pulses[1].ShortlyAfter(now.Add(30*time.Millisecond), shortly))
	assert.Equal(t, 15*time.Millisecond, pulses[1].Duration)
}

func TestTrainTiming(t *testing.T) {
	// 600 bpm is 10 Hz: the pulse hits the 10 ms cap.
	width, rest, ok := clock.TrainTiming(600)
	require.True(t, ok)
	assert.Equal(t, 100*time.Millisecond, clock.Period(600))
	assert.Equal(t, 10*time.Millisecond, width)
	assert.Equal(t, 90*time.Millisecond, rest)

	// Fast trains split the period in half.
	width, rest, ok = clock.TrainTiming(6000)
	require.True(t, ok)
	assert.Equal(t, 5*time.Millisecond, width)
	assert.Equal(t, 5*time.Millisecond, rest)

	for _, bpm := range []float64{0, -120, 1e12} {
		_, _, ok := clock.TrainTiming(bpm)
		assert.False(t, ok, "bpm %v", bpm)
	}
}

// readCounter is an IntParameter counting its reads.
type readCounter struct {
	mu    sync.Mutex
	value int
	reads int
}

func (r *readCounter) Read() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	return r.value
}

func (r *readCounter) Reads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

func TestTrainZeroCountEmitsNothing(t *testing.T) {
	now := time.Now()
	in := clocktest.NewEdgeQueue(now.Add(5*time.Millisecond), now.Add(15*time.Millisecond))
	out := &clocktest.Recorder{}
	count := &readCounter{value: 0}

	runFor(t, 30*time.Millisecond, func(ctx context.Context) error {
		return clock.Train(ctx, in, out, count, clockRate(6000))
	})

	assert.Equal(t, 0, out.Len())
	assert.Equal(t, 2, count.Reads(), "returned to waiting right after each edge")
}

func TestTrainEmitsCountPulses(t *testing.T) {
	now := time.Now()
	in := clocktest.NewEdgeQueue(now.Add(5 * time.Millisecond))
	out := &clocktest.Recorder{}
	count := &readCounter{value: 3}

	runFor(t, 60*time.Millisecond, func(ctx context.Context) error {
		return clock.Train(ctx, in, out, count, clockRate(6000))
	})

	pulses := out.Pulses()
	require.Len(t, pulses, 3)
	assert.NoError(t, pulses[0].ShortlyAfter(now.Add(5*time.Millisecond), shortly))
	for i, p := range pulses {
		assert.Equal(t, 5*time.Millisecond, p.Duration)
		if i > 0 {
			assert.InDelta(t, float64(10*time.Millisecond), float64(p.Start.Sub(pulses[i-1].Start)), float64(shortly))
		}
	}
	assert.Equal(t, 1, count.Reads(), "count is sampled once per train")
}

func TestTrainSkipsInvalidRate(t *testing.T) {
	now := time.Now()
	in := clocktest.NewEdgeQueue(now.Add(5 * time.Millisecond))
	out := &clocktest.Recorder{}

	runFor(t, 20*time.Millisecond, func(ctx context.Context) error {
		return clock.Train(ctx, in, out, &readCounter{value: 4}, clockRate(0))
	})
	assert.Equal(t, 0, out.Len())
}

// clockRate is a constant rate parameter.
type clockRate float64

func (r clockRate) Read() float64 { return float64(r) }

// rateSequence returns the given rates in order, then repeats the last one.
type rateSequence struct {
	mu    sync.Mutex
	rates []float64
}

func (s *rateSequence) Read() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rates[0]
	if len(s.rates) > 1 {
		s.rates = s.rates[1:]
	}
	return r
}

func TestFreeRunKeepsPhaseOnUnchangedRate(t *testing.T) {
	out := &clocktest.Recorder{}
	start := time.Now()

	runFor(t, 55*time.Millisecond, func(ctx context.Context) error {
		return clock.FreeRun(ctx, out, clockRate(6000), clock.DefaultClockPulse)
	})

	pulses := out.Pulses()
	require.GreaterOrEqual(t, len(pulses), 4)
	require.LessOrEqual(t, len(pulses), 5)
	assert.NoError(t, pulses[0].ShortlyAfter(start.Add(10*time.Millisecond), shortly))
	for i, p := range pulses {
		assert.Equal(t, clock.DefaultClockPulse, p.Duration)
		if i > 0 {
			// 10 ms apart, not 15: the tick is not re-armed after each pulse.
			assert.InDelta(t, float64(10*time.Millisecond), float64(p.Start.Sub(pulses[i-1].Start)), float64(shortly))
		}
	}
}

func TestFreeRunRearmsFromNowOnRateChange(t *testing.T) {
	out := &clocktest.Recorder{}
	rate := &rateSequence{rates: []float64{6000, 3000}}

	runFor(t, 50*time.Millisecond, func(ctx context.Context) error {
		return clock.FreeRun(ctx, out, rate, clock.DefaultClockPulse)
	})

	pulses := out.Pulses()
	require.GreaterOrEqual(t, len(pulses), 2)
	// First tick after 10 ms, 5 ms pulse, then re-armed with 20 ms from there.
	gap := pulses[1].Start.Sub(pulses[0].Start)
	assert.InDelta(t, float64(25*time.Millisecond), float64(gap), float64(shortly))
}

func TestFreeRunPicksUpFasterRateBetweenTicks(t *testing.T) {
	out := &clocktest.Recorder{}
	// 1 bpm would wait a minute for its first tick.
	rate := &rateSequence{rates: []float64{1, 6000}}
	start := time.Now()

	runFor(t, 60*time.Millisecond, func(ctx context.Context) error {
		return clock.FreeRun(ctx, out, rate, clock.DefaultClockPulse)
	})

	pulses := out.Pulses()
	require.GreaterOrEqual(t, len(pulses), 2)
	// re-armed at the first poll (~10 ms), ticking 10 ms later
	first := pulses[0].Start.Sub(start)
	assert.GreaterOrEqual(t, first, 15*time.Millisecond)
	assert.LessOrEqual(t, first, 30*time.Millisecond)
}

func TestFreeRunSlowerRateKeepsPendingTick(t *testing.T) {
	out := &clocktest.Recorder{}
	rate := &rateSequence{rates: []float64{3000, 1}}
	start := time.Now()

	runFor(t, 60*time.Millisecond, func(ctx context.Context) error {
		return clock.FreeRun(ctx, out, rate, clock.DefaultClockPulse)
	})

	// the 20 ms tick still fires, then the clock re-arms at 1 bpm
	pulses := out.Pulses()
	require.Len(t, pulses, 1)
	assert.NoError(t, pulses[0].ShortlyAfter(start.Add(20*time.Millisecond), shortly))
}

func TestFreeRunWaitsForValidRate(t *testing.T) {
	out := &clocktest.Recorder{}
	runFor(t, 30*time.Millisecond, func(ctx context.Context) error {
		return clock.FreeRun(ctx, out, clockRate(-1), clock.DefaultClockPulse)
	})
	assert.Equal(t, 0, out.Len())
}

func TestFanoutEmitsOnAllSinks(t *testing.T) {
	a, b := &clocktest.Recorder{}, &clocktest.Recorder{}
	start := time.Now()
	err := clock.Fanout{a, b}.EmitPulse(context.Background(), 5*time.Millisecond)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
	require.Equal(t, 1, a.Len())
	require.Equal(t, 1, b.Len())
	assert.Equal(t, 5*time.Millisecond, b.Pulses()[0].Duration)
}

func TestEdgeLatchDiscardsStaleEdges(t *testing.T) {
	l := clock.NewEdgeLatch()
	stale := time.Now()
	l.Trigger(stale)
	l.Trigger(stale.Add(time.Millisecond)) // never blocks

	fresh := stale.Add(time.Second)
	go func() {
		time.Sleep(5 * time.Millisecond)
		l.Trigger(fresh)
	}()

	at, err := l.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fresh, at)
}

func TestEdgeLatchCancel(t *testing.T) {
	l := clock.NewEdgeLatch()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHoldLowersOnCancel(t *testing.T) {
	var levels []bool
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := clock.Hold(ctx, time.Second, func(high bool) error {
		levels = append(levels, high)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []bool{true, false}, levels)

	boom := errors.New("pin busy")
	err = clock.Hold(context.Background(), time.Millisecond, func(bool) error { return boom })
	assert.ErrorIs(t, err, boom)
}
