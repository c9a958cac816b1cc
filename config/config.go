package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// PatchKind identifies what a patch runs
type PatchKind string

const (
	PatchForward PatchKind = "forward" // edge in -> pulse out
	PatchTrain   PatchKind = "train"   // edge in -> burst of pulses
	PatchClock   PatchKind = "clock"   // free-running pulses
	PatchNoise   PatchKind = "noise"   // noise samples to a CV output
)

// InputType identifies an edge source
type InputType string

const (
	InputGPIO  InputType = "gpio"  // watched GPIO pin
	InputNote  InputType = "note"  // MIDI note-on
	InputClock InputType = "clock" // MIDI timing clock, divided
	InputBus   InputType = "bus"   // another patch's bus output
)

// OutputType identifies a pulse sink
type OutputType string

const (
	OutputGPIO OutputType = "gpio" // GPIO output pin
	OutputGate OutputType = "gate" // expander gate channel
	OutputBus  OutputType = "bus"  // internal edge bus
)

// InputConfig describes where a patch takes its edges from
type InputConfig struct {
	Type    InputType `json:"type"`
	Pin     int       `json:"pin,omitempty"`
	Edge    string    `json:"edge,omitempty"` // rising, falling, both
	PullUp  bool      `json:"pullUp,omitempty"`
	Channel uint8     `json:"channel,omitempty"`
	Note    *int      `json:"note,omitempty"` // nil: any note
	Divide  int       `json:"divide,omitempty"`
	Bus     string    `json:"bus,omitempty"`
}

// OutputConfig describes where a patch sends its pulses
type OutputConfig struct {
	Type    OutputType `json:"type"`
	Pin     int        `json:"pin,omitempty"`
	Bank    uint8      `json:"bank,omitempty"`
	Channel uint8      `json:"channel,omitempty"`
	Bus     string     `json:"bus,omitempty"`
}

// CCConfig binds a parameter to a MIDI control change
type CCConfig struct {
	Channel    uint8 `json:"channel"`
	Controller uint8 `json:"controller"`
	Initial    uint8 `json:"initial,omitempty"`
}

// ADCConfig binds a parameter to an ADC0832 on GPIO pins
type ADCConfig struct {
	Clk     int `json:"clk"`
	CS      int `json:"cs"`
	DI      int `json:"di"`
	DO      int `json:"do"`
	Channel int `json:"channel,omitempty"`
}

// ParamConfig is either a constant or a sampled source mapped onto [Min, Max]
type ParamConfig struct {
	Value *float64   `json:"value,omitempty"`
	CC    *CCConfig  `json:"cc,omitempty"`
	ADC   *ADCConfig `json:"adc,omitempty"`
	Min   float64    `json:"min,omitempty"`
	Max   float64    `json:"max,omitempty"`
	Log   bool       `json:"log,omitempty"`
}

// Const returns a constant parameter config
func Const(v float64) *ParamConfig {
	return &ParamConfig{Value: &v}
}

// AddrConfig addresses one expander channel
type AddrConfig struct {
	Bank    uint8 `json:"bank"`
	Channel uint8 `json:"channel"`
}

// NoiseConfig drives a CV channel with noise
type NoiseConfig struct {
	Color      string      `json:"color"` // white, red
	SampleRate uint64      `json:"sampleRate"`
	Seed       uint64      `json:"seed,omitempty"`
	CV         AddrConfig  `json:"cv"`
	Gate       *AddrConfig `json:"gate,omitempty"`
	GateMs     float64     `json:"gateMs,omitempty"`
	Bipolar    bool        `json:"bipolar,omitempty"`
}

// Patch is one running task
type Patch struct {
	Name    string         `json:"name"`
	Kind    PatchKind      `json:"kind"`
	Input   *InputConfig   `json:"input,omitempty"`
	Outputs []OutputConfig `json:"outputs,omitempty"`
	PulseMs float64        `json:"pulseMs,omitempty"`
	Count   *ParamConfig   `json:"count,omitempty"` // train
	Rate    *ParamConfig   `json:"rate,omitempty"`  // train, clock (bpm)
	Noise   *NoiseConfig   `json:"noise,omitempty"`
	Disable bool           `json:"disable,omitempty"`
}

// Pulse returns the configured pulse width, or def when unset
func (p *Patch) Pulse(def time.Duration) time.Duration {
	if p.PulseMs <= 0 {
		return def
	}
	return time.Duration(p.PulseMs * float64(time.Millisecond))
}

// MIDIConfig names the MIDI ports (substring match, case-insensitive)
type MIDIConfig struct {
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
}

// ExpanderConfig configures the CV/gate expander and its MIDI rendering
type ExpanderConfig struct {
	QueueSize int   `json:"queueSize,omitempty"`
	BaseCC    uint8 `json:"baseCC,omitempty"`
	BaseNote  uint8 `json:"baseNote,omitempty"`
	Polarity  []int `json:"polarity,omitempty"` // mask per bank, bit set = bipolar
}

// UIConfig stores UI preferences
type UIConfig struct {
	Palette string `json:"palette,omitempty"` // GPL file, built-in when empty
}

// Config is the main configuration structure
type Config struct {
	MIDI     MIDIConfig     `json:"midi,omitempty"`
	Expander ExpanderConfig `json:"expander,omitempty"`
	Patches  []Patch        `json:"patches,omitempty"`
	UI       UIConfig       `json:"ui,omitempty"`
}

// DefaultConfig returns a config that runs without any hardware: a clock
// feeding a ratchet and a red noise source, all on expander bank 0.
func DefaultConfig() *Config {
	return &Config{
		Expander: ExpanderConfig{
			BaseCC:   0,
			BaseNote: 36,
		},
		Patches: []Patch{
			{
				Name: "clock",
				Kind: PatchClock,
				Rate: Const(120),
				Outputs: []OutputConfig{
					{Type: OutputGate, Bank: 0, Channel: 0},
					{Type: OutputBus, Bus: "beat"},
				},
			},
			{
				Name:  "ratchet",
				Kind:  PatchTrain,
				Input: &InputConfig{Type: InputBus, Bus: "beat"},
				Count: Const(3),
				Rate:  Const(720),
				Outputs: []OutputConfig{
					{Type: OutputGate, Bank: 0, Channel: 1},
				},
			},
			{
				Name: "red",
				Kind: PatchNoise,
				Noise: &NoiseConfig{
					Color:      "red",
					SampleRate: 50,
					CV:         AddrConfig{Bank: 0, Channel: 2},
					Gate:       &AddrConfig{Bank: 0, Channel: 2},
				},
			},
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-garden"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	cfg, err := LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// LoadFile reads and validates the config at path
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating its directory
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// FindPatch finds a patch by name
func (c *Config) FindPatch(name string) *Patch {
	for i := range c.Patches {
		if c.Patches[i].Name == name {
			return &c.Patches[i]
		}
	}
	return nil
}

// UsesGPIO reports whether any enabled patch touches GPIO pins
func (c *Config) UsesGPIO() bool {
	for _, p := range c.Patches {
		if p.Disable {
			continue
		}
		if p.Input != nil && p.Input.Type == InputGPIO {
			return true
		}
		for _, o := range p.Outputs {
			if o.Type == OutputGPIO {
				return true
			}
		}
		for _, pc := range []*ParamConfig{p.Count, p.Rate} {
			if pc != nil && pc.ADC != nil {
				return true
			}
		}
	}
	return false
}

// UsesMIDIInput reports whether any enabled patch listens to MIDI
func (c *Config) UsesMIDIInput() bool {
	for _, p := range c.Patches {
		if p.Disable {
			continue
		}
		if p.Input != nil && (p.Input.Type == InputNote || p.Input.Type == InputClock) {
			return true
		}
		for _, pc := range []*ParamConfig{p.Count, p.Rate} {
			if pc != nil && pc.CC != nil {
				return true
			}
		}
	}
	return false
}
