package noise

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"go-garden/clock"
	"go-garden/debug"
)

// Reader streams a Generator as mono little-endian float32 frames in
// [-1, 1), the format audio backends such as oto consume.
type Reader struct {
	gen Generator
}

// NewReader wraps gen.
func NewReader(gen Generator) *Reader {
	return &Reader{gen: gen}
}

// Read implements io.Reader. Only whole frames are written.
func (r *Reader) Read(p []byte) (int, error) {
	n := len(p) / 4 * 4
	for i := 0; i < n; i += 4 {
		v := (float32(r.gen.Sample()) - 32768) / 32768
		binary.LittleEndian.PutUint32(p[i:], math.Float32bits(v))
	}
	return n, nil
}

// Dump writes n samples from gen to w, one decimal value per line.
func Dump(w io.Writer, gen Generator, n int) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 8)
	for i := 0; i < n; i++ {
		buf = strconv.AppendUint(buf[:0], uint64(gen.Sample()), 10)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// CVSetter accepts a new CV value.
type CVSetter interface {
	SetValue(ctx context.Context, value uint16) error
}

// DefaultGatePulse is the gate width Drive emits after each new sample.
const DefaultGatePulse = 2 * time.Millisecond

// Drive writes one sample from gen to cv every 1/rate seconds and then pulses
// gate, so downstream modules can sample-and-hold on the new value. gate may
// be nil.
func Drive(ctx context.Context, gen Generator, rate uint64, cv CVSetter, gate clock.PulseSink, gateWidth time.Duration) error {
	period := time.Duration(0)
	if rate > 0 && rate <= uint64(time.Second) {
		period = time.Second / time.Duration(rate)
	}
	if period <= 0 {
		return fmt.Errorf("%w: %d Hz", ErrSampleRate, rate)
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		value := gen.Sample()
		debug.LogEvery(64, "noise", "value=%d", value)
		if err := cv.SetValue(ctx, value); err != nil {
			return err
		}
		if gate != nil {
			if err := gate.EmitPulse(ctx, gateWidth); err != nil {
				return err
			}
		}
	}
}
