package rpi

import (
	"sync"
	"time"

	"github.com/warthog618/gpio"
)

// ADC reads one channel of an ADC0832 wired to four GPIO lines. It is a
// param.Sampler; the 8-bit conversion is stretched to 16 bits.
//
// di and do may be the same line when the data pins are tied.
type ADC struct {
	mu      sync.Mutex
	channel int
	tclk    time.Duration // half a clock cycle
	tset    time.Duration // mux settling after ODD/SIGN

	clk, csz, di, do Line
}

// DefaultClockHalfPeriod keeps the ADC clock near 250kHz.
const DefaultClockHalfPeriod = 2 * time.Microsecond

// NewADC parks the converter deselected.
func NewADC(clk, csz, di, do Line, channel int, tclk time.Duration) *ADC {
	a := &ADC{channel: channel, tclk: tclk, tset: tclk, clk: clk, csz: csz, di: di, do: do}
	clk.Low()
	clk.Output()
	csz.High()
	csz.Output()
	return a
}

// OpenADC wires an ADC0832 to BCM pins.
func OpenADC(clk, csz, di, do, channel int) *ADC {
	return NewADC(gpio.NewPin(clk), gpio.NewPin(csz), gpio.NewPin(di), gpio.NewPin(do), channel, DefaultClockHalfPeriod)
}

// Sample implements param.Sampler.
func (a *ADC) Sample() uint16 {
	v := a.Convert()
	return uint16(v)<<8 | uint16(v)
}

// Convert runs one conversion and returns the raw 8-bit result.
func (a *ADC) Convert() uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.csz.High()
	a.clk.Low()
	a.di.High()
	a.di.Output()
	time.Sleep(a.tclk)
	a.csz.Low()

	a.clockOut(gpio.High) // start
	a.clockOut(gpio.High) // single-ended
	a.clockOut(gpio.Level(a.channel != 0))
	a.di.Input()
	time.Sleep(a.tset)
	a.clk.High()

	var v uint8
	for range 8 {
		v <<= 1
		if a.clockIn() {
			v |= 1
		}
	}
	a.csz.High()
	return v
}

// clockIn expects clk high and leaves it high.
func (a *ADC) clockIn() gpio.Level {
	time.Sleep(a.tclk)
	a.clk.Low()
	time.Sleep(a.tclk)
	b := a.do.Read()
	a.clk.High()
	return b
}

// clockOut expects clk low and leaves it low.
func (a *ADC) clockOut(l gpio.Level) {
	a.di.Write(l)
	time.Sleep(a.tclk)
	a.clk.High()
	time.Sleep(a.tclk)
	a.clk.Low()
}

// Close releases the lines.
func (a *ADC) Close() {
	a.mu.Lock()
	a.clk.Input()
	a.csz.Input()
	a.di.Input()
	a.mu.Unlock()
}
