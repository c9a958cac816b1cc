// Package noise generates quantized noise samples for CV and audio outputs.
package noise

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// ErrSampleRate is returned when a red noise generator is built with a zero rate.
var ErrSampleRate = errors.New("noise: sample rate must be positive")

// Generator produces one unsigned 16-bit sample per call.
type Generator interface {
	Sample() uint16
}

// White draws uniformly distributed samples.
type White struct {
	rng *rand.Rand
}

// NewWhite creates a white noise generator seeded from seed.
func NewWhite(seed uint64) *White {
	return NewWhiteFrom(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewWhiteFrom creates a white noise generator drawing from src.
func NewWhiteFrom(src rand.Source) *White {
	return &White{rng: rand.New(src)}
}

// Sample implements Generator.
func (w *White) Sample() uint16 {
	return uint16(w.rng.Uint64() >> 16)
}

// Red integrates white noise into a 1/f² spectrum. A leak of 1/rate per
// sample keeps the accumulator from drifting and tanh soft-clips the output.
//
// The sample rate sets both the integration gain and the leak; build a new
// generator to change it.
type Red struct {
	white *White
	acc   float64
	gain  float64
	leak  float64
	rate  uint64
}

// NewRed creates a red noise generator running at rate samples per second.
func NewRed(white *White, rate uint64) (*Red, error) {
	if rate == 0 {
		return nil, ErrSampleRate
	}
	return &Red{
		white: white,
		gain:  1 / math.Sqrt(float64(rate)),
		leak:  1 - 1/float64(rate),
		rate:  rate,
	}, nil
}

// SampleRate returns the rate the generator was built for.
func (r *Red) SampleRate() uint64 { return r.rate }

// Sample implements Generator.
func (r *Red) Sample() uint16 {
	w := (float64(r.white.Sample()) - 32768) / 32768

	r.acc += w * r.gain
	r.acc *= r.leak

	out := math.Tanh(r.acc)*32767 + 32768
	return uint16(max(0, min(out, 65535)))
}

// Kind names a noise color.
type Kind string

const (
	KindWhite Kind = "white"
	KindRed   Kind = "red"
)

// New builds a generator of the given kind.
func New(kind Kind, seed, rate uint64) (Generator, error) {
	white := NewWhite(seed)
	switch kind {
	case KindWhite, "":
		return white, nil
	case KindRed:
		return NewRed(white, rate)
	default:
		return nil, fmt.Errorf("unknown noise type %q", kind)
	}
}
