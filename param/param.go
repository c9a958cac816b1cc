// Package param turns raw analog samples into calibrated parameters.
//
// A parameter has no state of its own: every Read takes exactly one sample
// from its Sampler and maps it again. Callers needing hysteresis add it.
package param

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrRange is returned when a parameter is built with min > max.
	ErrRange = errors.New("param: min must not be greater than max")
	// ErrLogDomain is returned when logarithmic scaling is requested with min <= 0.
	ErrLogDomain = errors.New("param: min must be greater than 0 for logarithmic scaling")
)

// fullScale is the width of the raw sample domain.
const fullScale = 65536

// Sampler acquires one raw sample in [0, 65535] per call.
type Sampler interface {
	Sample() uint16
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func() uint16

// Sample implements Sampler.
func (f SamplerFunc) Sample() uint16 { return f() }

// IntParameter is an integer value produced on demand.
type IntParameter interface {
	Read() int
}

// FloatParameter is a floating point value produced on demand.
type FloatParameter interface {
	Read() float64
}

// ConstInt is an IntParameter that never changes.
type ConstInt int

// Read implements IntParameter.
func (c ConstInt) Read() int { return int(c) }

// ConstFloat is a FloatParameter that never changes.
type ConstFloat float64

// Read implements FloatParameter.
func (c ConstFloat) Read() float64 { return float64(c) }

type options struct {
	log         bool
	uncorrected bool
}

// Option configures an Int or Float parameter.
type Option func(*options)

// LogScale maps Float parameters on a base-10 logarithmic curve.
// It has no effect on Int parameters.
func LogScale() Option {
	return func(o *options) { o.log = true }
}

// Uncorrected disables the pot correction. Use it for samplers that already
// deliver the full [0, 65535] range in the natural direction.
func Uncorrected() Option {
	return func(o *options) { o.uncorrected = true }
}

// Int maps samples linearly onto [Min, Max].
type Int struct {
	src         Sampler
	min, max    int64
	uncorrected bool
}

// NewInt creates an integer parameter reading from src.
func NewInt(src Sampler, min, max int, opts ...Option) (*Int, error) {
	if min > max {
		return nil, fmt.Errorf("%w (min=%d max=%d)", ErrRange, min, max)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Int{src: src, min: int64(min), max: int64(max), uncorrected: o.uncorrected}, nil
}

// MustInt is like NewInt but panics on invalid ranges.
func MustInt(src Sampler, min, max int, opts ...Option) *Int {
	p, err := NewInt(src, min, max, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Read implements IntParameter.
//
//	0                  2^16
//	├───┬───┬───┬───┬───┤
//	│ L │ … │ … │ … │ H │
//	├───┴───┴───┴───┴───┤
//	0                 H-L+1
func (p *Int) Read() int {
	value := int64(p.src.Sample())
	if !p.uncorrected {
		value = correctInt(value)
	}
	return int(MapInt(value, p.min, p.max))
}

// correctInt undoes the inverted half-range of the patch.Init pots.
// Samples above mid-scale come out negative and are not clamped.
func correctInt(raw int64) int64 {
	return (32768 - raw) << 1
}

// MapInt maps a corrected sample onto [min, max] with truncating division.
func MapInt(corrected, min, max int64) int64 {
	return min + (max-min+1)*corrected/fullScale
}

// Float maps samples onto [Min, Max], optionally on a log curve.
type Float struct {
	src         Sampler
	min, max    float64 // log10 of the bounds when log is set
	log         bool
	uncorrected bool
}

// NewFloat creates a float parameter reading from src.
func NewFloat(src Sampler, min, max float64, opts ...Option) (*Float, error) {
	if min > max {
		return nil, fmt.Errorf("%w (min=%g max=%g)", ErrRange, min, max)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.log {
		if min <= 0 {
			return nil, fmt.Errorf("%w (min=%g)", ErrLogDomain, min)
		}
		min = math.Log10(min)
		max = math.Log10(max)
	}
	return &Float{src: src, min: min, max: max, log: o.log, uncorrected: o.uncorrected}, nil
}

// MustFloat is like NewFloat but panics on invalid ranges.
func MustFloat(src Sampler, min, max float64, opts ...Option) *Float {
	p, err := NewFloat(src, min, max, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Read implements FloatParameter.
func (p *Float) Read() float64 {
	value := float64(p.src.Sample())
	if !p.uncorrected {
		value = correctFloat(value)
	}
	return p.Map(value)
}

// Map applies the linear (or log-space) mapping to a corrected sample.
// Values outside [0, 65536] are clamped to the rails first.
func (p *Float) Map(corrected float64) float64 {
	corrected = max(0, min(corrected, fullScale))
	res := p.min + (p.max-p.min)*corrected/fullScale
	if p.log {
		res = math.Pow(10, res)
	}
	return res
}

func correctFloat(raw float64) float64 {
	return (32768.0 - raw) * 2.0
}
