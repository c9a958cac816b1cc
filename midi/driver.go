package midi

import (
	"context"
	"fmt"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-garden/debug"
	"go-garden/fhx"
)

// lsbOffset is the distance between a 14-bit controller's MSB and LSB.
const lsbOffset = 32

// Driver renders expander commands as MIDI: bank b uses MIDI channel b,
// CV channel c becomes the 14-bit controller BaseCC+c and gate channel c the
// note BaseNote+c.
type Driver struct {
	send     func(gomidi.Message) error
	baseCC   uint8
	baseNote uint8

	mu       sync.Mutex
	polarity [fhx.NumBanks]uint8
}

// NewDriver creates a driver writing through send.
func NewDriver(send func(gomidi.Message) error, baseCC, baseNote uint8) (*Driver, error) {
	if int(baseCC)+fhx.NumChannels > lsbOffset {
		return nil, fmt.Errorf("midi: base controller %d leaves no room for 14-bit pairs", baseCC)
	}
	if int(baseNote)+fhx.NumChannels > 128 {
		return nil, fmt.Errorf("midi: base note %d out of range", baseNote)
	}
	return &Driver{send: send, baseCC: baseCC, baseNote: baseNote}, nil
}

// OpenDriver opens out and creates a driver on it.
func OpenDriver(out drivers.Out, baseCC, baseNote uint8) (*Driver, error) {
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", out, err)
	}
	return NewDriver(send, baseCC, baseNote)
}

// SetPolarity implements fhx.Driver. MIDI has no notion of polarity; the
// mask is kept so receivers can be configured to match.
func (d *Driver) SetPolarity(bank fhx.Bank, mask uint8) {
	if bank >= fhx.NumBanks {
		return
	}
	d.mu.Lock()
	d.polarity[bank] = mask
	d.mu.Unlock()
	debug.Log("midi", "bank %d polarity %#04x", bank, mask)
}

// Polarity returns the last mask set for bank.
func (d *Driver) Polarity(bank fhx.Bank) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if bank >= fhx.NumBanks {
		return 0
	}
	return d.polarity[bank]
}

// SetCV implements fhx.Driver.
func (d *Driver) SetCV(_ context.Context, bank fhx.Bank, ch fhx.Channel, value uint16) error {
	if bank >= fhx.NumBanks || ch >= fhx.NumChannels {
		return fmt.Errorf("midi: cv %d/%d out of range", bank, ch)
	}
	v14 := value >> 2
	cc := d.baseCC + uint8(ch)
	if err := d.send(gomidi.ControlChange(uint8(bank), cc, uint8(v14>>7))); err != nil {
		return err
	}
	return d.send(gomidi.ControlChange(uint8(bank), cc+lsbOffset, uint8(v14&0x7F)))
}

// SetGate implements fhx.Driver.
func (d *Driver) SetGate(_ context.Context, bank fhx.Bank, ch fhx.Channel, on bool) error {
	if bank >= fhx.NumBanks || ch >= fhx.NumChannels {
		return fmt.Errorf("midi: gate %d/%d out of range", bank, ch)
	}
	note := d.baseNote + uint8(ch)
	if on {
		return d.send(gomidi.NoteOn(uint8(bank), note, 127))
	}
	return d.send(gomidi.NoteOff(uint8(bank), note))
}
