package midi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// ErrPortScanTimeout is returned when the MIDI backend does not answer.
var ErrPortScanTimeout = errors.New("midi: port scan timed out")

// scanTimeout guards against backends that hang while enumerating ports.
const scanTimeout = 3 * time.Second

// Ports is one enumeration of the available MIDI ports.
type Ports struct {
	In  []drivers.In
	Out []drivers.Out
}

// Scan lists MIDI ports, giving up after a timeout (CoreMIDI can hang).
func Scan() (Ports, error) {
	ch := make(chan Ports, 1)
	go func() {
		ch <- Ports{In: gomidi.GetInPorts(), Out: gomidi.GetOutPorts()}
	}()

	select {
	case p := <-ch:
		return p, nil
	case <-time.After(scanTimeout):
		return Ports{}, ErrPortScanTimeout
	}
}

// matches reports whether a port name contains want, ignoring case.
func matches(portName, want string) bool {
	return strings.Contains(strings.ToLower(portName), strings.ToLower(want))
}

// FindIn returns the first input port whose name contains name.
func (p Ports) FindIn(name string) (drivers.In, error) {
	for _, in := range p.In {
		if matches(in.String(), name) {
			return in, nil
		}
	}
	return nil, fmt.Errorf("midi: no input port matching %q", name)
}

// FindOut returns the first output port whose name contains name.
func (p Ports) FindOut(name string) (drivers.Out, error) {
	for _, out := range p.Out {
		if matches(out.String(), name) {
			return out, nil
		}
	}
	return nil, fmt.Errorf("midi: no output port matching %q", name)
}

// Names returns the input and output port names.
func (p Ports) Names() (ins, outs []string) {
	for _, in := range p.In {
		ins = append(ins, in.String())
	}
	for _, out := range p.Out {
		outs = append(outs, out.String())
	}
	return ins, outs
}

// PortEvent is emitted when a watched port appears or disappears.
type PortEvent struct {
	Type PortEventType
	Name string
}

type PortEventType int

const (
	PortConnected PortEventType = iota
	PortDisconnected
)

// Watcher polls the port list and reports ports matching any of its names
// coming and going.
type Watcher struct {
	names    []string
	present  map[string]bool
	mu       sync.RWMutex
	events   chan PortEvent
	pollRate time.Duration
	list     func() ([]string, error)
}

// NewWatcher watches input ports matching names.
func NewWatcher(names ...string) *Watcher {
	return &Watcher{
		names:    names,
		present:  make(map[string]bool),
		events:   make(chan PortEvent, 16),
		pollRate: time.Second,
		list:     inputNames,
	}
}

// Events returns a channel of connect/disconnect events.
func (w *Watcher) Events() <-chan PortEvent {
	return w.events
}

// Present returns the names of the watched ports currently connected.
func (w *Watcher) Present() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var names []string
	for n := range w.present {
		names = append(names, n)
	}
	return names
}

// Run starts the polling loop (blocking - run in goroutine)
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollRate)
	defer ticker.Stop()
	defer close(w.events)

	w.poll()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.poll()
		}
	}
}

func inputNames() ([]string, error) {
	ports, err := Scan()
	if err != nil {
		return nil, err
	}
	ins, _ := ports.Names()
	return ins, nil
}

func (w *Watcher) poll() {
	ins, err := w.list()
	if err != nil {
		// backend is hung - skip this scan
		return
	}

	seen := make(map[string]bool)
	for _, name := range ins {
		for _, want := range w.names {
			if matches(name, want) {
				seen[name] = true
			}
		}
	}

	w.mu.Lock()
	var evs []PortEvent
	for name := range seen {
		if !w.present[name] {
			evs = append(evs, PortEvent{Type: PortConnected, Name: name})
		}
	}
	for name := range w.present {
		if !seen[name] {
			evs = append(evs, PortEvent{Type: PortDisconnected, Name: name})
		}
	}
	w.present = seen
	w.mu.Unlock()

	for _, ev := range evs {
		select {
		case w.events <- ev:
		default:
		}
	}
}
