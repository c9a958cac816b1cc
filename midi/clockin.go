package midi

import (
	"context"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-garden/clock"
)

// Realtime status bytes.
const (
	statusTimingClock byte = 0xF8
	statusStart       byte = 0xFA
)

// PPQ is the number of MIDI timing clocks per quarter note.
const PPQ = 24

// AnyNote makes a ClockIn react to every note number.
const AnyNote = -1

// ClockIn is a clock.EdgeSource fed by a MIDI input. It produces an edge
// either for note-on messages or for every Divide timing clocks.
type ClockIn struct {
	Channel uint8 // note-on channel, 0-15
	Note    int   // note number or AnyNote
	Divide  int   // >0: count timing clocks instead of notes

	latch *clock.EdgeLatch

	mu    sync.Mutex
	ticks int
}

// NewNoteClockIn creates an edge source from note-ons on channel.
func NewNoteClockIn(channel uint8, note int) *ClockIn {
	return &ClockIn{Channel: channel, Note: note, latch: clock.NewEdgeLatch()}
}

// NewTimingClockIn creates an edge source firing every divide timing clocks
// (PPQ for quarter notes). A start message realigns the count.
func NewTimingClockIn(divide int) *ClockIn {
	if divide <= 0 {
		divide = PPQ
	}
	return &ClockIn{Divide: divide, latch: clock.NewEdgeLatch()}
}

// HandleMIDI implements Handler.
func (c *ClockIn) HandleMIDI(msg gomidi.Message, at time.Time) {
	if c.Divide > 0 {
		if len(msg) != 1 {
			return
		}
		switch msg[0] {
		case statusStart:
			c.mu.Lock()
			c.ticks = 0
			c.mu.Unlock()
		case statusTimingClock:
			c.mu.Lock()
			fire := c.ticks%c.Divide == 0
			c.ticks++
			c.mu.Unlock()
			if fire {
				c.latch.Trigger(at)
			}
		}
		return
	}

	var ch, key, vel uint8
	if msg.GetNoteOn(&ch, &key, &vel) && vel > 0 && ch == c.Channel {
		if c.Note == AnyNote || int(key) == c.Note {
			c.latch.Trigger(at)
		}
	}
}

// Wait implements clock.EdgeSource.
func (c *ClockIn) Wait(ctx context.Context) (time.Time, error) {
	return c.latch.Wait(ctx)
}
