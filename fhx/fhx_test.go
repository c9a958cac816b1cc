package fhx_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"go-garden/debug"
	"go-garden/fhx"
)

type ArbiterSuite struct {
	suite.Suite
	queue   *fhx.Queue
	monitor *fhx.Monitor
	cancel  context.CancelFunc
	done    chan error
}

func (s *ArbiterSuite) SetupTest() {
	s.queue = fhx.NewQueue(fhx.DefaultQueueSize)
	s.monitor = fhx.NewMonitor(true)
	s.start(s.monitor)
}

func (s *ArbiterSuite) start(d fhx.Driver) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan error, 1)
	arb := fhx.NewArbiter(s.queue, d)
	go func() { s.done <- arb.Run(ctx) }()
}

func (s *ArbiterSuite) TearDownTest() {
	s.cancel()
	s.ErrorIs(<-s.done, context.Canceled)
}

func (s *ArbiterSuite) waitApplied(n uint64) {
	s.Eventually(func() bool { return s.monitor.Applied() >= n }, time.Second, time.Millisecond)
}

func (s *ArbiterSuite) TestHandlesEnqueueCommands() {
	require := require.New(s.T())
	ctx := context.Background()

	cv, err := fhx.NewCV(s.queue, 1, 7)
	require.NoError(err)
	gate, err := fhx.NewGate(s.queue, 0, 7)
	require.NoError(err)

	require.NoError(cv.SetPolarity(ctx, fhx.Bipolar))
	require.NoError(cv.SetValue(ctx, 40000))
	require.NoError(gate.SetHigh(ctx))
	require.NoError(gate.SetLow(ctx))
	s.waitApplied(4)

	require.Equal([]fhx.Command{
		fhx.PolarityCommand(1, fhx.Bipolar),
		fhx.CVCommand(1, 7, 40000),
		fhx.GateCommand(0, 7, true),
		fhx.GateCommand(0, 7, false),
	}, s.monitor.Log())

	bank := s.monitor.Bank(1)
	require.Equal(uint16(40000), bank.CV[7])
	require.Equal(fhx.Bipolar, bank.Polarity)
	require.False(s.monitor.Bank(0).Gate[7])
}

func (s *ArbiterSuite) TestGateEmitPulse() {
	gate, err := fhx.NewGate(s.queue, 2, 3)
	s.Require().NoError(err)

	start := time.Now()
	s.Require().NoError(gate.EmitPulse(context.Background(), 5*time.Millisecond))
	s.GreaterOrEqual(time.Since(start), 5*time.Millisecond)
	s.waitApplied(2)
	s.Equal([]fhx.Command{
		fhx.GateCommand(2, 3, true),
		fhx.GateCommand(2, 3, false),
	}, s.monitor.Log())
}

func (s *ArbiterSuite) TestPerSenderOrderIsPreserved() {
	const senders, perSender = 8, 50
	var wg sync.WaitGroup
	for id := 0; id < senders; id++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cv, err := fhx.NewCV(s.queue, fhx.Bank(id), 0)
			if err != nil {
				return
			}
			for seq := 0; seq < perSender; seq++ {
				cv.SetValue(context.Background(), uint16(seq))
			}
		}()
	}
	wg.Wait()
	s.waitApplied(senders * perSender)

	next := make(map[fhx.Bank]uint16)
	for _, cmd := range s.monitor.Log() {
		s.Equal(next[cmd.Bank], cmd.Value, "bank %d out of order", cmd.Bank)
		next[cmd.Bank] = cmd.Value + 1
	}
	s.Len(next, senders)
}

func TestArbiterSuite(t *testing.T) {
	suite.Run(t, new(ArbiterSuite))
}

func TestQueueBackpressure(t *testing.T) {
	q := fhx.NewQueue(0)
	require.Equal(t, fhx.DefaultQueueSize, q.Cap())

	for i := 0; i < q.Cap(); i++ {
		require.NoError(t, q.Send(context.Background(), fhx.CVCommand(0, 0, uint16(i))))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := q.Send(ctx, fhx.CVCommand(0, 0, 99))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, q.Cap(), q.Len(), "full queue never drops")

	// A blocked sender resumes as soon as the arbiter frees a slot.
	monitor := fhx.NewMonitor(true)
	sent := make(chan error, 1)
	go func() { sent <- q.Send(context.Background(), fhx.CVCommand(0, 0, 5)) }()

	select {
	case <-sent:
		t.Fatal("send returned while queue was full")
	case <-time.After(10 * time.Millisecond):
	}

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go fhx.NewArbiter(q, monitor).Run(runCtx)

	require.NoError(t, <-sent)
	require.Eventually(t, func() bool { return monitor.Applied() == 6 }, time.Second, time.Millisecond)
	for i, cmd := range monitor.Log() {
		require.Equal(t, uint16(i), cmd.Value)
	}
}

// exclusiveDriver fails the test if two commands are ever applied at once.
type exclusiveDriver struct {
	inFlight  atomic.Int32
	overlaps  atomic.Int32
	applied   atomic.Int32
	failEvery int32
}

func (d *exclusiveDriver) enter() func() {
	if d.inFlight.Add(1) > 1 {
		d.overlaps.Add(1)
	}
	time.Sleep(50 * time.Microsecond)
	return func() { d.inFlight.Add(-1) }
}

func (d *exclusiveDriver) SetPolarity(fhx.Bank, uint8) {
	defer d.enter()()
	d.applied.Add(1)
}

func (d *exclusiveDriver) SetCV(context.Context, fhx.Bank, fhx.Channel, uint16) error {
	defer d.enter()()
	n := d.applied.Add(1)
	if d.failEvery > 0 && n%d.failEvery == 0 {
		return errors.New("spi timeout")
	}
	return nil
}

func (d *exclusiveDriver) SetGate(context.Context, fhx.Bank, fhx.Channel, bool) error {
	defer d.enter()()
	d.applied.Add(1)
	return nil
}

func TestArbiterIsTheOnlyWriter(t *testing.T) {
	q := fhx.NewQueue(fhx.DefaultQueueSize)
	drv := &exclusiveDriver{failEvery: 7}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fhx.NewArbiter(q, drv).Run(ctx)

	var wg sync.WaitGroup
	for id := 0; id < 4; id++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cv, _ := fhx.NewCV(q, fhx.Bank(id), 1)
			gate, _ := fhx.NewGate(q, fhx.Bank(id), 1)
			for i := 0; i < 25; i++ {
				cv.SetValue(ctx, uint16(i))
				gate.SetHigh(ctx)
				cv.SetPolarity(ctx, fhx.Unipolar)
			}
		}()
	}
	wg.Wait()

	// driver errors do not stop the loop
	require.Eventually(t, func() bool { return drv.applied.Load() == 300 }, 2*time.Second, time.Millisecond)
	require.Zero(t, drv.overlaps.Load())
}

func TestHandleAddressValidation(t *testing.T) {
	q := fhx.NewQueue(1)
	_, err := fhx.NewCV(q, fhx.NumBanks, 0)
	require.Error(t, err)
	_, err = fhx.NewGate(q, 0, fhx.NumChannels)
	require.Error(t, err)

	cv, err := fhx.NewCV(q, 3, 4)
	require.NoError(t, err)
	b, ch := cv.Address()
	require.Equal(t, fhx.Bank(3), b)
	require.Equal(t, fhx.Channel(4), ch)
}

func TestTeeAppliesToEveryDriver(t *testing.T) {
	a, b := fhx.NewMonitor(true), fhx.NewMonitor(false)
	tee := fhx.Tee{a, b}
	ctx := context.Background()

	tee.SetPolarity(0, fhx.Bipolar)
	require.NoError(t, tee.SetCV(ctx, 0, 1, 123))
	require.NoError(t, tee.SetGate(ctx, 0, 2, true))
	require.Error(t, tee.SetCV(ctx, fhx.NumBanks, 0, 1))

	require.Len(t, a.Log(), 3)
	require.Empty(t, b.Log())
	require.Equal(t, uint64(3), b.Applied())
	require.Equal(t, uint16(123), b.Bank(0).CV[1])
	require.True(t, b.Bank(0).Gate[2])
}

func TestMonitorLogsOutOfRangePolarity(t *testing.T) {
	var buf bytes.Buffer
	debug.EnableWriter(&buf)
	defer debug.Disable()

	m := fhx.NewMonitor(true)
	m.SetPolarity(fhx.NumBanks, 0x0F)

	require.Zero(t, m.Applied())
	require.Empty(t, m.Log())
	require.Contains(t, buf.String(), "monitor: polarity bank=8 mask=0x0f: fhx: address out of range")
}

func TestCommandString(t *testing.T) {
	require.Equal(t, "cv bank=1 ch=2 value=300", fhx.CVCommand(1, 2, 300).String())
	require.Equal(t, "gate bank=0 ch=7 on=true", fhx.GateCommand(0, 7, true).String())
	require.Equal(t, "polarity bank=1 mask=0xff", fhx.PolarityCommand(1, 0xFF).String())
}
