package rack

import (
	"context"
	"fmt"
	"math"
	"time"

	"go-garden/clock"
	"go-garden/config"
	"go-garden/fhx"
	"go-garden/midi"
	"go-garden/noise"
	"go-garden/param"
	"go-garden/rpi"
)

// DefaultPulse is the forward pulse width when a patch sets none.
const DefaultPulse = 10 * time.Millisecond

func (r *Rack) build(p *config.Patch, t *task) (func(ctx context.Context) error, error) {
	switch p.Kind {
	case config.PatchForward:
		in, out, err := r.wire(p, t)
		if err != nil {
			return nil, err
		}
		width := p.Pulse(DefaultPulse)
		return func(ctx context.Context) error {
			return clock.Forward(ctx, in, out, width)
		}, nil

	case config.PatchTrain:
		in, out, err := r.wire(p, t)
		if err != nil {
			return nil, err
		}
		count, err := r.intParam(p.Count)
		if err != nil {
			return nil, fmt.Errorf("count: %w", err)
		}
		rate, err := r.floatParam(p.Rate)
		if err != nil {
			return nil, fmt.Errorf("rate: %w", err)
		}
		return func(ctx context.Context) error {
			return clock.Train(ctx, in, out, count, rate)
		}, nil

	case config.PatchClock:
		out, err := r.sinks(p.Outputs, t)
		if err != nil {
			return nil, err
		}
		rate, err := r.floatParam(p.Rate)
		if err != nil {
			return nil, fmt.Errorf("rate: %w", err)
		}
		width := p.Pulse(clock.DefaultClockPulse)
		return func(ctx context.Context) error {
			return clock.FreeRun(ctx, out, rate, width)
		}, nil

	case config.PatchNoise:
		return r.buildNoise(p.Noise, t)
	}
	return nil, fmt.Errorf("unknown kind %q", p.Kind)
}

func (r *Rack) wire(p *config.Patch, t *task) (clock.EdgeSource, clock.PulseSink, error) {
	in, err := r.source(p.Input)
	if err != nil {
		return nil, nil, err
	}
	out, err := r.sinks(p.Outputs, t)
	if err != nil {
		return nil, nil, err
	}
	return in, out, nil
}

func (r *Rack) source(in *config.InputConfig) (clock.EdgeSource, error) {
	switch in.Type {
	case config.InputGPIO:
		edge, err := rpi.ParseEdge(in.Edge)
		if err != nil {
			return nil, err
		}
		src, err := rpi.OpenEdgeIn(in.Pin, edge, in.PullUp)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, src.Close)
		return src, nil
	case config.InputNote:
		note := midi.AnyNote
		if in.Note != nil {
			note = *in.Note
		}
		src := midi.NewNoteClockIn(in.Channel, note)
		r.listener.Add(src)
		return src, nil
	case config.InputClock:
		src := midi.NewTimingClockIn(in.Divide)
		r.listener.Add(src)
		return src, nil
	case config.InputBus:
		b := r.buses[in.Bus]
		if b == nil {
			return nil, fmt.Errorf("bus %q has no enabled writer", in.Bus)
		}
		return b.subscribe(), nil
	}
	return nil, fmt.Errorf("unknown input %q", in.Type)
}

func (r *Rack) sinks(outs []config.OutputConfig, t *task) (clock.PulseSink, error) {
	var fan clock.Fanout
	for _, o := range outs {
		switch o.Type {
		case config.OutputGPIO:
			out := rpi.OpenPulseOut(o.Pin)
			r.closers = append(r.closers, out.Close)
			fan = append(fan, out)
		case config.OutputGate:
			g, err := fhx.NewGate(r.queue, fhx.Bank(o.Bank), fhx.Channel(o.Channel))
			if err != nil {
				return nil, err
			}
			fan = append(fan, g)
		case config.OutputBus:
			fan = append(fan, r.buses[o.Bus])
		default:
			return nil, fmt.Errorf("unknown output %q", o.Type)
		}
	}
	if len(fan) == 1 {
		return countingSink{fan[0], t}, nil
	}
	return countingSink{fan, t}, nil
}

// sampler returns the physical source behind pc and the options its range
// needs.
func (r *Rack) sampler(pc *config.ParamConfig) (param.Sampler, []param.Option) {
	var opts []param.Option
	if pc.Log {
		opts = append(opts, param.LogScale())
	}
	if pc.CC != nil {
		cc := midi.NewCC(pc.CC.Channel, pc.CC.Controller, pc.CC.Initial)
		r.listener.Add(cc)
		// MIDI controllers already run low to high.
		return cc, append(opts, param.Uncorrected())
	}
	adc, closeADC := r.openADC(pc.ADC)
	r.closers = append(r.closers, closeADC)
	// The ADC0832 spans its full range with the knob, low to high.
	return adc, append(opts, param.Uncorrected())
}

func openADC(c *config.ADCConfig) (param.Sampler, func()) {
	adc := rpi.OpenADC(c.Clk, c.CS, c.DI, c.DO, c.Channel)
	return adc, adc.Close
}

func (r *Rack) intParam(pc *config.ParamConfig) (param.IntParameter, error) {
	if pc.Value != nil {
		return param.ConstInt(int(math.Round(*pc.Value))), nil
	}
	src, opts := r.sampler(pc)
	return param.NewInt(src, int(math.Round(pc.Min)), int(math.Round(pc.Max)), opts...)
}

func (r *Rack) floatParam(pc *config.ParamConfig) (param.FloatParameter, error) {
	if pc.Value != nil {
		return param.ConstFloat(*pc.Value), nil
	}
	src, opts := r.sampler(pc)
	return param.NewFloat(src, pc.Min, pc.Max, opts...)
}

func (r *Rack) buildNoise(n *config.NoiseConfig, t *task) (func(ctx context.Context) error, error) {
	seed := n.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	gen, err := noise.New(noise.Kind(n.Color), seed, n.SampleRate)
	if err != nil {
		return nil, err
	}
	cv, err := fhx.NewCV(r.queue, fhx.Bank(n.CV.Bank), fhx.Channel(n.CV.Channel))
	if err != nil {
		return nil, err
	}
	if n.Bipolar {
		r.polarity[n.CV.Bank] |= 1 << n.CV.Channel
	}

	var gate clock.PulseSink
	if n.Gate != nil {
		g, err := fhx.NewGate(r.queue, fhx.Bank(n.Gate.Bank), fhx.Channel(n.Gate.Channel))
		if err != nil {
			return nil, err
		}
		gate = g
	}
	width := noise.DefaultGatePulse
	if n.GateMs > 0 {
		width = time.Duration(n.GateMs * float64(time.Millisecond))
	}
	rate := n.SampleRate
	setter := countingCV{cv, t}
	return func(ctx context.Context) error {
		return noise.Drive(ctx, gen, rate, setter, gate, width)
	}, nil
}
