package midi

import (
	"sync/atomic"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// CC is a param.Sampler tracking one control change. The 7-bit value is
// scaled to the full 16-bit sample range.
type CC struct {
	Channel    uint8
	Controller uint8

	raw atomic.Uint32
}

// NewCC creates a sampler for controller on channel, starting at initial
// (a 7-bit value).
func NewCC(channel, controller, initial uint8) *CC {
	c := &CC{Channel: channel, Controller: controller}
	c.raw.Store(uint32(scale7(initial)))
	return c
}

func scale7(v uint8) uint16 {
	if v > 127 {
		v = 127
	}
	return uint16(uint32(v) * 65535 / 127)
}

// HandleMIDI implements Handler.
func (c *CC) HandleMIDI(msg gomidi.Message, _ time.Time) {
	var ch, cc, val uint8
	if msg.GetControlChange(&ch, &cc, &val) && ch == c.Channel && cc == c.Controller {
		c.raw.Store(uint32(scale7(val)))
	}
}

// Sample implements param.Sampler.
func (c *CC) Sample() uint16 {
	return uint16(c.raw.Load())
}
