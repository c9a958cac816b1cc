package config

import (
	"errors"
	"fmt"
)

const (
	numBanks    = 8
	numChannels = 8
)

// Validate reports every problem in the config at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Expander.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("expander: negative queue size %d", c.Expander.QueueSize))
	}
	if len(c.Expander.Polarity) > numBanks {
		errs = append(errs, fmt.Errorf("expander: %d polarity masks for %d banks", len(c.Expander.Polarity), numBanks))
	}
	for b, mask := range c.Expander.Polarity {
		if mask < 0 || mask > 0xFF {
			errs = append(errs, fmt.Errorf("expander: bank %d polarity %#x is not a channel mask", b, mask))
		}
	}

	names := make(map[string]bool)
	buses := make(map[string]bool)
	for _, p := range c.Patches {
		for _, o := range p.Outputs {
			if o.Type == OutputBus {
				buses[o.Bus] = true
			}
		}
	}
	for i := range c.Patches {
		p := &c.Patches[i]
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("patch %d: missing name", i))
		} else if names[p.Name] {
			errs = append(errs, fmt.Errorf("patch %q: duplicate name", p.Name))
		}
		names[p.Name] = true

		if err := p.validate(buses); err != nil {
			errs = append(errs, fmt.Errorf("patch %q: %w", p.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (p *Patch) validate(buses map[string]bool) error {
	var errs []error
	needInput := p.Kind == PatchForward || p.Kind == PatchTrain
	switch p.Kind {
	case PatchForward, PatchTrain, PatchClock:
		if len(p.Outputs) == 0 {
			errs = append(errs, errors.New("no outputs"))
		}
	case PatchNoise:
		if p.Noise == nil {
			errs = append(errs, errors.New("noise settings missing"))
		} else {
			errs = append(errs, p.Noise.validate())
		}
	default:
		return fmt.Errorf("unknown kind %q", p.Kind)
	}

	if needInput {
		if p.Input == nil {
			errs = append(errs, errors.New("input missing"))
		} else {
			errs = append(errs, p.Input.validate(buses))
		}
	}
	for _, o := range p.Outputs {
		errs = append(errs, o.validate())
	}
	if p.PulseMs < 0 {
		errs = append(errs, fmt.Errorf("negative pulse width %v", p.PulseMs))
	}

	if p.Kind == PatchTrain {
		errs = append(errs, p.Count.validate("count"), p.Rate.validate("rate"))
	}
	if p.Kind == PatchClock {
		errs = append(errs, p.Rate.validate("rate"))
	}
	return errors.Join(errs...)
}

func (in *InputConfig) validate(buses map[string]bool) error {
	switch in.Type {
	case InputGPIO:
		if in.Pin < 0 {
			return fmt.Errorf("input: bad pin %d", in.Pin)
		}
	case InputNote:
		if in.Channel > 15 {
			return fmt.Errorf("input: bad channel %d", in.Channel)
		}
		if in.Note != nil && (*in.Note < 0 || *in.Note > 127) {
			return fmt.Errorf("input: bad note %d", *in.Note)
		}
	case InputClock:
		if in.Divide < 0 {
			return fmt.Errorf("input: bad divide %d", in.Divide)
		}
	case InputBus:
		if !buses[in.Bus] {
			return fmt.Errorf("input: no patch writes bus %q", in.Bus)
		}
	default:
		return fmt.Errorf("input: unknown type %q", in.Type)
	}
	return nil
}

func (o OutputConfig) validate() error {
	switch o.Type {
	case OutputGPIO:
		if o.Pin < 0 {
			return fmt.Errorf("output: bad pin %d", o.Pin)
		}
	case OutputGate:
		return AddrConfig{Bank: o.Bank, Channel: o.Channel}.validate()
	case OutputBus:
		if o.Bus == "" {
			return errors.New("output: bus name missing")
		}
	default:
		return fmt.Errorf("output: unknown type %q", o.Type)
	}
	return nil
}

func (a AddrConfig) validate() error {
	if a.Bank >= numBanks || a.Channel >= numChannels {
		return fmt.Errorf("address %d/%d out of range", a.Bank, a.Channel)
	}
	return nil
}

func (n *NoiseConfig) validate() error {
	var errs []error
	if n.Color != "white" && n.Color != "red" {
		errs = append(errs, fmt.Errorf("noise: unknown color %q", n.Color))
	}
	if n.SampleRate == 0 {
		errs = append(errs, errors.New("noise: sample rate must be positive"))
	}
	errs = append(errs, n.CV.validate())
	if n.Gate != nil {
		errs = append(errs, n.Gate.validate())
	}
	return errors.Join(errs...)
}

func (pc *ParamConfig) validate(name string) error {
	if pc == nil {
		return fmt.Errorf("%s: missing", name)
	}
	sources := 0
	for _, set := range []bool{pc.Value != nil, pc.CC != nil, pc.ADC != nil} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return fmt.Errorf("%s: need exactly one of value, cc, adc", name)
	}
	if pc.Value != nil {
		return nil
	}
	if pc.Min > pc.Max {
		return fmt.Errorf("%s: min %v above max %v", name, pc.Min, pc.Max)
	}
	if pc.Log && pc.Min <= 0 {
		return fmt.Errorf("%s: log scale needs a positive min", name)
	}
	if pc.CC != nil && (pc.CC.Channel > 15 || pc.CC.Controller > 127 || pc.CC.Initial > 127) {
		return fmt.Errorf("%s: bad cc %d/%d", name, pc.CC.Channel, pc.CC.Controller)
	}
	return nil
}
