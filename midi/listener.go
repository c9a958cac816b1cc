package midi

import (
	"fmt"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"go-garden/debug"
)

// Handler receives every message of an input port. It runs on the driver
// callback and must not block.
type Handler interface {
	HandleMIDI(msg gomidi.Message, at time.Time)
}

// Listener fans the messages of one input port out to its handlers.
type Listener struct {
	port     drivers.In
	mu       sync.RWMutex
	handlers []Handler
	stop     func()
}

// NewListener creates a listener for port. Call Start to open it.
func NewListener(port drivers.In) *Listener {
	return &Listener{port: port}
}

// Add registers h. Handlers may be added while listening.
func (l *Listener) Add(h Handler) {
	l.mu.Lock()
	l.handlers = append(l.handlers, h)
	l.mu.Unlock()
}

// Dispatch hands msg to every handler.
func (l *Listener) Dispatch(msg gomidi.Message, at time.Time) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, h := range l.handlers {
		h.HandleMIDI(msg, at)
	}
}

// listenOptions lets timing clock through: drivers drop the realtime
// messages otherwise.
func listenOptions() []gomidi.Option {
	return []gomidi.Option{
		gomidi.UseTimeCode(),
		gomidi.HandleError(func(err error) {
			debug.Log("midi", "listen: %v", err)
		}),
	}
}

// Start opens the port and begins dispatching.
func (l *Listener) Start() error {
	stop, err := gomidi.ListenTo(l.port, func(msg gomidi.Message, timestampms int32) {
		l.Dispatch(msg, time.Now())
	}, listenOptions()...)
	if err != nil {
		return fmt.Errorf("open input %s: %w", l.port, err)
	}
	l.stop = stop
	debug.Log("midi", "listening on %s", l.port)
	return nil
}

// Close stops listening.
func (l *Listener) Close() {
	if l.stop != nil {
		l.stop()
		l.stop = nil
	}
}
