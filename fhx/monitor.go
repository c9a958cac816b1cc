package fhx

import (
	"context"
	"errors"
	"sync"

	"go-garden/debug"
)

// Snapshot is the last state written to one bank.
type Snapshot struct {
	Polarity uint8
	CV       [NumChannels]uint16
	Gate     [NumChannels]bool
	Touched  bool
}

// Monitor is a Driver that only remembers what was written, for display
// and tests. It never blocks.
type Monitor struct {
	mu      sync.RWMutex
	banks   [NumBanks]Snapshot
	applied uint64
	log     []Command
	keepLog bool
	updates chan struct{}
}

// NewMonitor creates a monitor. With keepLog set every applied command is
// also appended to Log, in application order.
func NewMonitor(keepLog bool) *Monitor {
	return &Monitor{keepLog: keepLog, updates: make(chan struct{}, 1)}
}

// Updates signals after every change. Signals coalesce.
func (m *Monitor) Updates() <-chan struct{} { return m.updates }

func (m *Monitor) notify() {
	select {
	case m.updates <- struct{}{}:
	default:
	}
}

func (m *Monitor) record(cmd Command, apply func(s *Snapshot)) error {
	if cmd.Bank >= NumBanks || (cmd.Kind != SetPolarity && cmd.Channel >= NumChannels) {
		return errors.New("fhx: address out of range")
	}
	m.mu.Lock()
	s := &m.banks[cmd.Bank]
	apply(s)
	s.Touched = true
	m.applied++
	if m.keepLog {
		m.log = append(m.log, cmd)
	}
	m.mu.Unlock()
	m.notify()
	return nil
}

// SetPolarity implements Driver.
func (m *Monitor) SetPolarity(bank Bank, mask uint8) {
	cmd := PolarityCommand(bank, mask)
	if err := m.record(cmd, func(s *Snapshot) { s.Polarity = mask }); err != nil {
		debug.Log("fhx", "monitor: %s: %v", cmd, err)
	}
}

// SetCV implements Driver.
func (m *Monitor) SetCV(_ context.Context, bank Bank, ch Channel, value uint16) error {
	return m.record(CVCommand(bank, ch, value), func(s *Snapshot) { s.CV[ch] = value })
}

// SetGate implements Driver.
func (m *Monitor) SetGate(_ context.Context, bank Bank, ch Channel, on bool) error {
	return m.record(GateCommand(bank, ch, on), func(s *Snapshot) { s.Gate[ch] = on })
}

// Bank returns a copy of one bank's state.
func (m *Monitor) Bank(b Bank) Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b >= NumBanks {
		return Snapshot{}
	}
	return m.banks[b]
}

// Applied returns the number of commands applied so far.
func (m *Monitor) Applied() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.applied
}

// Log returns a copy of the applied commands (empty unless keepLog).
func (m *Monitor) Log() []Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Command(nil), m.log...)
}

// Tee applies every command to all drivers in order. The first error wins
// but every driver still sees the command.
type Tee []Driver

// SetPolarity implements Driver.
func (t Tee) SetPolarity(bank Bank, mask uint8) {
	for _, d := range t {
		d.SetPolarity(bank, mask)
	}
}

// SetCV implements Driver.
func (t Tee) SetCV(ctx context.Context, bank Bank, ch Channel, value uint16) error {
	var first error
	for _, d := range t {
		if err := d.SetCV(ctx, bank, ch, value); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// SetGate implements Driver.
func (t Tee) SetGate(ctx context.Context, bank Bank, ch Channel, on bool) error {
	var first error
	for _, d := range t {
		if err := d.SetGate(ctx, bank, ch, on); err != nil && first == nil {
			first = err
		}
	}
	return first
}
