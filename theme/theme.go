package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	GateOn   rune // ● gate high
	GateOff  rune // · gate low
	BarFull  rune // █ CV bar fill
	BarEmpty rune // ░ CV bar track
	Bipolar  rune // ± channel is bipolar
	Running  rune // ▶ task running
	Stopped  rune // ■ task stopped
	Failed   rune // ✗ task failed
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = Default()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			GateOn:   '●',
			GateOff:  '·',
			BarFull:  '█',
			BarEmpty: '░',
			Bipolar:  '±',
			Running:  '▶',
			Stopped:  '■',
			Failed:   '✗',
		},
	}
}

// Load builds a theme from a GPL file, or the built-in palette when path is
// empty.
func Load(path string) (*Theme, error) {
	if path == "" {
		return New(nil), nil
	}
	p, err := LoadGPL(path)
	if err != nil {
		return nil, err
	}
	return New(p), nil
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleMuted   = 0.25
	RoleFG      = 0.45
	RoleAccent  = 0.6
	RoleActive  = 0.75
	RoleWarning = 0.875
	RoleError   = 1.0
)

func (t *Theme) BG() lipgloss.Color      { return t.Color(RoleBG) }
func (t *Theme) FG() lipgloss.Color      { return t.Color(RoleFG) }
func (t *Theme) Accent() lipgloss.Color  { return t.Color(RoleAccent) }
func (t *Theme) Muted() lipgloss.Color   { return t.Color(RoleMuted) }
func (t *Theme) Active() lipgloss.Color  { return t.Color(RoleActive) }
func (t *Theme) Warning() lipgloss.Color { return t.Color(RoleWarning) }
func (t *Theme) Error() lipgloss.Color   { return t.Color(RoleError) }

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(norm))
}

// Level colors a 16-bit CV value along the muted to active range.
func (t *Theme) Level(v uint16) lipgloss.Color {
	return t.Color(RoleMuted + (RoleActive-RoleMuted)*float64(v)/65535)
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
