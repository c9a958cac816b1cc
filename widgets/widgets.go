// Package widgets renders expander state as terminal text.
package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-garden/fhx"
	"go-garden/theme"
)

// BarWidth is the number of cells of a CV bar.
const BarWidth = 16

// RenderLamp renders one gate lamp.
func RenderLamp(th *theme.Theme, on bool) string {
	if on {
		return lipgloss.NewStyle().Foreground(th.Active()).Render(string(th.Symbols.GateOn))
	}
	return lipgloss.NewStyle().Foreground(th.Muted()).Render(string(th.Symbols.GateOff))
}

// Fill returns how many of width cells a 16-bit value fills.
func Fill(v uint16, width int) int {
	return (int(v)*width + 32767) / 65535
}

// RenderBar renders a CV value as a horizontal bar.
func RenderBar(th *theme.Theme, v uint16, width int) string {
	n := Fill(v, width)
	full := lipgloss.NewStyle().Foreground(th.Level(v)).Render(strings.Repeat(string(th.Symbols.BarFull), n))
	empty := lipgloss.NewStyle().Foreground(th.Muted()).Render(strings.Repeat(string(th.Symbols.BarEmpty), width-n))
	return full + empty
}

// RenderBank renders one expander bank, one line per channel:
//
//	2 ±████████░░░░░░░░ 32768 ●
func RenderBank(th *theme.Theme, bank fhx.Bank, s fhx.Snapshot) string {
	title := lipgloss.NewStyle().Foreground(th.Accent()).Render(fmt.Sprintf("bank %d", bank))
	if !s.Touched {
		return title + lipgloss.NewStyle().Foreground(th.Muted()).Render("  (idle)")
	}
	lines := []string{title}
	for ch := range fhx.NumChannels {
		pol := " "
		if s.Polarity&(1<<ch) != 0 {
			pol = string(th.Symbols.Bipolar)
		}
		lines = append(lines, fmt.Sprintf("  %d %s%s %5d %s",
			ch, pol, RenderBar(th, s.CV[ch], BarWidth), s.CV[ch], RenderLamp(th, s.Gate[ch])))
	}
	return strings.Join(lines, "\n")
}

// RenderKeyHelp formats key bindings on one line
func RenderKeyHelp(keys []KeyBinding) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.Key + ":" + k.Desc
	}
	return strings.Join(parts, "  ")
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
