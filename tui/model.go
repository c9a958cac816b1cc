package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-garden/fhx"
	"go-garden/midi"
	"go-garden/rack"
	"go-garden/theme"
	"go-garden/widgets"
)

// allBanks shows every bank that has been written to.
const allBanks = -1

var keys = []widgets.KeyBinding{
	{Key: "1-8", Desc: "bank"},
	{Key: "a", Desc: "all banks"},
	{Key: "q", Desc: "quit"},
}

type Model struct {
	Rack    *rack.Rack
	Watcher *midi.Watcher // may be nil
	Theme   *theme.Theme
	Stop    func() // called once on quit

	focus    int
	ports    []string
	lastPort string
	quitting bool
}

// UpdateMsg reports a task state change or emitted pulse.
type UpdateMsg struct{}

// MonitorMsg reports a change of expander state.
type MonitorMsg struct{}

type PortEventMsg midi.PortEvent

func NewModel(r *rack.Rack, w *midi.Watcher, th *theme.Theme, stop func()) Model {
	return Model{Rack: r, Watcher: w, Theme: th, Stop: stop, focus: allBanks}
}

func ListenForUpdates(r *rack.Rack) tea.Cmd {
	return func() tea.Msg {
		<-r.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForMonitor(m *fhx.Monitor) tea.Cmd {
	return func() tea.Msg {
		<-m.Updates()
		// the expander changes at audio-ish rates, repaint at most ~30 fps
		time.Sleep(33 * time.Millisecond)
		return MonitorMsg{}
	}
}

func ListenForPorts(w *midi.Watcher) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-w.Events()
		if !ok {
			return nil
		}
		return PortEventMsg(ev)
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{ListenForUpdates(m.Rack), ListenForMonitor(m.Rack.Monitor())}
	if m.Watcher != nil {
		cmds = append(cmds, ListenForPorts(m.Watcher))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.Stop != nil {
				m.Stop()
			}
			return m, tea.Quit
		case "a":
			m.focus = allBanks
		case "1", "2", "3", "4", "5", "6", "7", "8":
			m.focus = int(msg.String()[0] - '1')
		}

	case UpdateMsg:
		return m, ListenForUpdates(m.Rack)

	case MonitorMsg:
		return m, ListenForMonitor(m.Rack.Monitor())

	case PortEventMsg:
		ev := midi.PortEvent(msg)
		verb := "connected"
		if ev.Type == midi.PortDisconnected {
			verb = "disconnected"
		}
		m.lastPort = ev.Name + " " + verb
		m.ports = m.Watcher.Present()
		return m, ListenForPorts(m.Watcher)
	}

	return m, nil
}

func (m Model) renderTasks() string {
	th := m.Theme
	var lines []string
	for _, s := range m.Rack.Tasks() {
		sym, color := th.Symbols.Stopped, th.Muted()
		switch s.State {
		case rack.TaskRunning:
			sym, color = th.Symbols.Running, th.Active()
		case rack.TaskFailed:
			sym, color = th.Symbols.Failed, th.Error()
		}
		line := fmt.Sprintf("%c %-12s %-8s %-8s %8d", sym, s.Name, s.Kind, s.State, s.Events)
		if s.Err != nil {
			line += "  " + s.Err.Error()
		}
		lines = append(lines, lipgloss.NewStyle().Foreground(color).Render(line))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderBanks() string {
	mon := m.Rack.Monitor()
	if m.focus != allBanks {
		b := fhx.Bank(m.focus)
		return widgets.RenderBank(m.Theme, b, mon.Bank(b))
	}
	var views []string
	for b := range fhx.Bank(fhx.NumBanks) {
		s := mon.Bank(b)
		if s.Touched {
			views = append(views, widgets.RenderBank(m.Theme, b, s))
		}
	}
	if len(views) == 0 {
		return lipgloss.NewStyle().Foreground(m.Theme.Muted()).Render("no expander writes yet")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, spaced(views)...)
}

func spaced(views []string) []string {
	out := make([]string, 0, 2*len(views))
	for i, v := range views {
		if i > 0 {
			out = append(out, "   ")
		}
		out = append(out, v)
	}
	return out
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())

	q := m.Rack.Queue()
	status := fmt.Sprintf("go-garden  queue %d/%d  applied %d", q.Len(), q.Cap(), m.Rack.Monitor().Applied())
	if m.Watcher != nil {
		if len(m.ports) == 0 {
			status += "  midi: -"
		} else {
			status += "  midi: " + strings.Join(m.ports, ", ")
		}
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(headerStyle.Render(status))
	out.WriteString("\n\n")
	out.WriteString(m.renderTasks())
	out.WriteString("\n\n")
	out.WriteString(m.renderBanks())
	out.WriteString("\n\n")
	if m.lastPort != "" {
		out.WriteString(dimStyle.Render(m.lastPort))
		out.WriteString("\n")
	}
	out.WriteString(dimStyle.Render(widgets.RenderKeyHelp(keys)))
	return out.String()
}
