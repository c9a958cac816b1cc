// Package rack wires a config into running patches: it owns the expander
// arbiter, builds every patch's sources, sinks and parameters, and supervises
// the resulting tasks.
package rack

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"go-garden/config"
	"go-garden/debug"
	"go-garden/fhx"
	"go-garden/midi"
	"go-garden/param"
)

// ErrNoMIDIInput is returned when patches listen to MIDI but no input was given.
var ErrNoMIDIInput = errors.New("rack: patches need a MIDI input")

// ErrNoGPIO is returned when patches use pins but GPIO was not enabled.
var ErrNoGPIO = errors.New("rack: patches need GPIO")

// Option configures a Rack.
type Option func(*Rack)

// WithDriver sends expander commands to d in addition to the monitor.
func WithDriver(d fhx.Driver) Option {
	return func(r *Rack) { r.drivers = append(r.drivers, d) }
}

// WithMIDIInput registers MIDI sources on l. The caller starts and closes it.
func WithMIDIInput(l *midi.Listener) Option {
	return func(r *Rack) { r.listener = l }
}

// WithGPIO allows patches to open GPIO pins. rpi.Open must have succeeded.
func WithGPIO() Option {
	return func(r *Rack) { r.gpio = true }
}

// WithCommandLog keeps every applied expander command in the monitor.
func WithCommandLog() Option {
	return func(r *Rack) { r.keepLog = true }
}

type task struct {
	name string
	kind config.PatchKind
	run  func(ctx context.Context) error

	rack   *Rack
	status TaskStatus // guarded by rack.mu
}

func (t *task) hit() {
	t.rack.mu.Lock()
	t.status.Events++
	t.status.Last = time.Now()
	t.rack.mu.Unlock()
	t.rack.notify()
}

// Rack runs the patches of one config.
type Rack struct {
	cfg      *config.Config
	drivers  []fhx.Driver
	listener *midi.Listener
	gpio     bool
	keepLog  bool

	monitor  *fhx.Monitor
	arbiter  *fhx.Arbiter
	queue    *fhx.Queue
	polarity [fhx.NumBanks]uint8
	buses    map[string]*bus
	tasks    []*task
	closers  []func()
	openADC  func(*config.ADCConfig) (param.Sampler, func())

	mu sync.RWMutex

	// UpdateChan is signalled when a task changes state or emits.
	UpdateChan chan struct{}
}

// New builds a rack for cfg. Nothing runs until Run.
func New(cfg *config.Config, opts ...Option) (*Rack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Rack{
		cfg:        cfg,
		buses:      make(map[string]*bus),
		openADC:    openADC,
		UpdateChan: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	if cfg.UsesMIDIInput() && r.listener == nil {
		return nil, ErrNoMIDIInput
	}
	if cfg.UsesGPIO() && !r.gpio {
		return nil, ErrNoGPIO
	}

	r.monitor = fhx.NewMonitor(r.keepLog)
	var driver fhx.Driver = r.monitor
	if len(r.drivers) > 0 {
		driver = append(fhx.Tee{r.monitor}, r.drivers...)
	}
	r.queue = fhx.NewQueue(cfg.Expander.QueueSize)
	r.arbiter = fhx.NewArbiter(r.queue, driver)

	for b, mask := range cfg.Expander.Polarity {
		r.polarity[b] = uint8(mask)
	}

	// Bus outputs first so inputs can subscribe regardless of patch order.
	for _, p := range cfg.Patches {
		if p.Disable {
			continue
		}
		for _, o := range p.Outputs {
			if o.Type == config.OutputBus && r.buses[o.Bus] == nil {
				r.buses[o.Bus] = &bus{name: o.Bus}
			}
		}
	}

	for i := range cfg.Patches {
		p := &cfg.Patches[i]
		t := &task{name: p.Name, kind: p.Kind, rack: r}
		t.status = TaskStatus{Name: p.Name, Kind: p.Kind, State: TaskIdle}
		if p.Disable {
			t.status.State = TaskStopped
			r.tasks = append(r.tasks, t)
			continue
		}
		run, err := r.build(p, t)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("patch %q: %w", p.Name, err)
		}
		t.run = run
		r.tasks = append(r.tasks, t)
	}
	return r, nil
}

// Monitor returns the driver that mirrors the expander state.
func (r *Rack) Monitor() *fhx.Monitor { return r.monitor }

// Queue returns the expander command queue.
func (r *Rack) Queue() *fhx.Queue { return r.queue }

// Polarity returns the polarity mask sent to bank at startup.
func (r *Rack) Polarity(bank fhx.Bank) uint8 {
	if bank >= fhx.NumBanks {
		return 0
	}
	return r.polarity[bank]
}

// Tasks returns a snapshot of every task in config order.
func (r *Rack) Tasks() []TaskStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TaskStatus, len(r.tasks))
	for i, t := range r.tasks {
		out[i] = t.status
	}
	return out
}

func (r *Rack) setState(t *task, s TaskState, err error) {
	r.mu.Lock()
	t.status.State = s
	t.status.Err = err
	r.mu.Unlock()
	r.notify()
}

func (r *Rack) notify() {
	select {
	case r.UpdateChan <- struct{}{}:
	default:
	}
}

// Run starts the arbiter, sends the configured polarities and runs every
// task until ctx is cancelled. A failing task is marked failed and the others
// keep running.
func (r *Rack) Run(parent context.Context) error {
	g, ctx := errgroup.WithContext(parent)
	g.Go(func() error {
		return r.arbiter.Run(ctx)
	})

	for b, mask := range r.polarity {
		if mask == 0 && b >= len(r.cfg.Expander.Polarity) {
			continue
		}
		if err := r.queue.Send(ctx, fhx.PolarityCommand(fhx.Bank(b), mask)); err != nil {
			return wait(parent, g)
		}
	}

	for _, t := range r.tasks {
		if t.run == nil {
			continue
		}
		g.Go(func() error {
			r.setState(t, TaskRunning, nil)
			debug.Log("rack", "%s (%s) started", t.name, t.kind)
			err := t.run(ctx)
			if err == nil || ctx.Err() != nil {
				r.setState(t, TaskStopped, nil)
				return nil
			}
			debug.Log("rack", "%s failed: %v", t.name, err)
			r.setState(t, TaskFailed, err)
			return nil
		})
	}
	return wait(parent, g)
}

func wait(parent context.Context, g *errgroup.Group) error {
	err := g.Wait()
	if parent.Err() != nil {
		return nil
	}
	return err
}

// Close releases pins opened by the rack.
func (r *Rack) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}
