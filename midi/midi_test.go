package midi

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-garden/fhx"
)

var timingClock = gomidi.Message{statusTimingClock}

// waitEdge starts waiting on c, then runs feed once the waiter is parked.
func waitEdge(t *testing.T, c *ClockIn, feed func()) (time.Time, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	type result struct {
		at  time.Time
		err error
	}
	res := make(chan result, 1)
	go func() {
		at, err := c.Wait(ctx)
		res <- result{at, err}
	}()
	time.Sleep(5 * time.Millisecond)
	feed()
	r := <-res
	return r.at, r.err
}

func TestNoteClockInFiresOnMatchingNoteOn(t *testing.T) {
	c := NewNoteClockIn(2, 36)
	at := time.Now()

	got, err := waitEdge(t, c, func() {
		c.HandleMIDI(gomidi.NoteOn(2, 37, 100), at.Add(-time.Second)) // wrong note
		c.HandleMIDI(gomidi.NoteOn(3, 36, 100), at.Add(-time.Second)) // wrong channel
		c.HandleMIDI(gomidi.NoteOn(2, 36, 0), at.Add(-time.Second))   // note-off in disguise
		c.HandleMIDI(gomidi.NoteOn(2, 36, 90), at)
	})
	require.NoError(t, err)
	assert.Equal(t, at, got)
}

func TestNoteClockInIgnoresOthers(t *testing.T) {
	c := NewNoteClockIn(0, AnyNote)
	_, err := waitEdge(t, c, func() {
		c.HandleMIDI(gomidi.NoteOff(0, 60), time.Now())
		c.HandleMIDI(gomidi.ControlChange(0, 1, 64), time.Now())
		c.HandleMIDI(timingClock, time.Now())
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTimingClockInDivides(t *testing.T) {
	c := NewTimingClockIn(4)
	base := time.Now()

	// The first clock after start is a downbeat.
	got, err := waitEdge(t, c, func() {
		c.HandleMIDI(gomidi.Message{statusStart}, base)
		c.HandleMIDI(timingClock, base)
	})
	require.NoError(t, err)
	assert.Equal(t, base, got)

	got, err = waitEdge(t, c, func() {
		for i := 1; i <= 4; i++ {
			c.HandleMIDI(timingClock, base.Add(time.Duration(i)*time.Millisecond))
		}
	})
	require.NoError(t, err)
	assert.Equal(t, base.Add(4*time.Millisecond), got)
}

func TestTimingClockInDefaultsToQuarterNotes(t *testing.T) {
	assert.Equal(t, PPQ, NewTimingClockIn(0).Divide)
}

func TestCCScalesToSixteenBits(t *testing.T) {
	c := NewCC(1, 74, 0)
	assert.Equal(t, uint16(0), c.Sample())

	c.HandleMIDI(gomidi.ControlChange(1, 74, 127), time.Now())
	assert.Equal(t, uint16(65535), c.Sample())

	c.HandleMIDI(gomidi.ControlChange(1, 74, 64), time.Now())
	assert.Equal(t, uint16(33025), c.Sample())

	c.HandleMIDI(gomidi.ControlChange(1, 75, 0), time.Now())
	c.HandleMIDI(gomidi.ControlChange(2, 74, 0), time.Now())
	assert.Equal(t, uint16(33025), c.Sample(), "other controllers are ignored")
}

func TestListenerDispatchesToAllHandlers(t *testing.T) {
	l := NewListener(nil)
	a, b := NewCC(0, 1, 0), NewCC(0, 2, 0)
	l.Add(a)
	l.Add(b)

	l.Dispatch(gomidi.ControlChange(0, 1, 127), time.Now())
	l.Dispatch(gomidi.ControlChange(0, 2, 127), time.Now())
	assert.Equal(t, uint16(65535), a.Sample())
	assert.Equal(t, uint16(65535), b.Sample())
}

// fakeIn is an input port that hands its listen config and callback to the
// test instead of a driver.
type fakeIn struct {
	open    bool
	conf    drivers.ListenConfig
	onMsg   func([]byte, int32)
	stopped bool
}

func (f *fakeIn) Open() error             { f.open = true; return nil }
func (f *fakeIn) Close() error            { f.open = false; return nil }
func (f *fakeIn) IsOpen() bool            { return f.open }
func (f *fakeIn) Number() int             { return 0 }
func (f *fakeIn) String() string          { return "fake in" }
func (f *fakeIn) Underlying() interface{} { return nil }

func (f *fakeIn) Listen(onMsg func([]byte, int32), conf drivers.ListenConfig) (func(), error) {
	f.onMsg, f.conf = onMsg, conf
	return func() { f.stopped = true }, nil
}

func TestListenerReceivesTimingClock(t *testing.T) {
	port := &fakeIn{}
	l := NewListener(port)
	c := NewTimingClockIn(2)
	l.Add(c)
	require.NoError(t, l.Start())

	assert.True(t, port.open)
	assert.True(t, port.conf.TimeCode, "drivers filter timing clock unless asked")
	require.NotNil(t, port.conf.OnErr)

	_, err := waitEdge(t, c, func() {
		port.onMsg([]byte{statusTimingClock}, 0)
	})
	require.NoError(t, err)

	l.Close()
	assert.True(t, port.stopped)
}

type capture struct {
	msgs []gomidi.Message
	err  error
}

func (c *capture) send(msg gomidi.Message) error {
	c.msgs = append(c.msgs, msg)
	return c.err
}

func TestDriverRendersCommands(t *testing.T) {
	out := &capture{}
	d, err := NewDriver(out.send, 16, 36)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, d.SetCV(ctx, 1, 2, 0xFFFF))
	require.NoError(t, d.SetCV(ctx, 0, 0, 0x8000))
	require.NoError(t, d.SetGate(ctx, 3, 7, true))
	require.NoError(t, d.SetGate(ctx, 3, 7, false))

	require.Equal(t, []gomidi.Message{
		gomidi.ControlChange(1, 18, 127),
		gomidi.ControlChange(1, 50, 127),
		gomidi.ControlChange(0, 16, 64),
		gomidi.ControlChange(0, 48, 0),
		gomidi.NoteOn(3, 43, 127),
		gomidi.NoteOff(3, 43),
	}, out.msgs)

	d.SetPolarity(1, fhx.Bipolar)
	assert.Equal(t, fhx.Bipolar, d.Polarity(1))
	assert.Equal(t, uint8(0), d.Polarity(0))

	assert.Error(t, d.SetCV(ctx, fhx.NumBanks, 0, 1))
	assert.Error(t, d.SetGate(ctx, 0, fhx.NumChannels, true))
}

func TestDriverReportsSendErrors(t *testing.T) {
	boom := errors.New("port closed")
	d, err := NewDriver((&capture{err: boom}).send, 0, 60)
	require.NoError(t, err)
	assert.ErrorIs(t, d.SetGate(context.Background(), 0, 0, true), boom)
}

func TestNewDriverValidatesLayout(t *testing.T) {
	_, err := NewDriver(nil, 25, 60)
	assert.Error(t, err)
	_, err = NewDriver(nil, 0, 121)
	assert.Error(t, err)
}

func TestWatcherReportsChanges(t *testing.T) {
	w := NewWatcher("launch", "beatstep")
	listing := []string{"Launchpad X LPX MIDI", "IAC Bus 1"}
	w.list = func() ([]string, error) { return listing, nil }

	w.poll()
	ev := <-w.events
	assert.Equal(t, PortEvent{Type: PortConnected, Name: "Launchpad X LPX MIDI"}, ev)

	listing = []string{"Arturia BeatStep"}
	w.poll()
	var got []PortEvent
	got = append(got, <-w.events, <-w.events)
	sort.Slice(got, func(i, j int) bool { return got[i].Type < got[j].Type })
	assert.Equal(t, []PortEvent{
		{Type: PortConnected, Name: "Arturia BeatStep"},
		{Type: PortDisconnected, Name: "Launchpad X LPX MIDI"},
	}, got)
	assert.Equal(t, []string{"Arturia BeatStep"}, w.Present())

	w.list = func() ([]string, error) { return nil, ErrPortScanTimeout }
	w.poll()
	assert.Equal(t, []string{"Arturia BeatStep"}, w.Present(), "failed scans change nothing")
}
