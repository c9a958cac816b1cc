// Package fhx serializes writes to the shared CV/gate expander.
//
// One Arbiter owns the Driver. Everything else holds a CV or Gate handle:
// an address plus the sending end of the bounded command Queue.
package fhx

import (
	"fmt"
)

// NumBanks and NumChannels bound the expander address space.
const (
	NumBanks    = 8
	NumChannels = 8
)

// Bank is the address of one expander board.
type Bank uint8

// Channel is one output line on a bank.
type Channel uint8

// Polarity masks, one bit per channel of a CV bank.
const (
	Unipolar uint8 = 0x00
	Bipolar  uint8 = 0xFF
)

// Kind tags a Command.
type Kind uint8

const (
	SetPolarity Kind = iota
	SetCV
	SetGate
)

func (k Kind) String() string {
	switch k {
	case SetPolarity:
		return "polarity"
	case SetCV:
		return "cv"
	case SetGate:
		return "gate"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Command is one write request for the expander.
type Command struct {
	Kind    Kind
	Bank    Bank
	Channel Channel // unused for SetPolarity
	Value   uint16  // SetCV
	Mask    uint8   // SetPolarity
	On      bool    // SetGate
}

// PolarityCommand builds a SetPolarity command.
func PolarityCommand(bank Bank, mask uint8) Command {
	return Command{Kind: SetPolarity, Bank: bank, Mask: mask}
}

// CVCommand builds a SetCV command.
func CVCommand(bank Bank, ch Channel, value uint16) Command {
	return Command{Kind: SetCV, Bank: bank, Channel: ch, Value: value}
}

// GateCommand builds a SetGate command.
func GateCommand(bank Bank, ch Channel, on bool) Command {
	return Command{Kind: SetGate, Bank: bank, Channel: ch, On: on}
}

func (c Command) String() string {
	switch c.Kind {
	case SetPolarity:
		return fmt.Sprintf("polarity bank=%d mask=%#04x", c.Bank, c.Mask)
	case SetCV:
		return fmt.Sprintf("cv bank=%d ch=%d value=%d", c.Bank, c.Channel, c.Value)
	case SetGate:
		return fmt.Sprintf("gate bank=%d ch=%d on=%t", c.Bank, c.Channel, c.On)
	default:
		return c.Kind.String()
	}
}

// validate checks an address against the expander layout.
func validate(bank Bank, ch Channel) error {
	if bank >= NumBanks {
		return fmt.Errorf("fhx: bank %d out of range", bank)
	}
	if ch >= NumChannels {
		return fmt.Errorf("fhx: channel %d out of range", ch)
	}
	return nil
}
