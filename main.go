package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-garden/config"
	"go-garden/debug"
	"go-garden/midi"
	"go-garden/rack"
	"go-garden/rpi"
	"go-garden/theme"
	"go-garden/tui"
)

func main() {
	var (
		configPath  = flag.String("config", "", "config file (default ~/.config/go-garden/config.json)")
		headless    = flag.Bool("headless", false, "run without the terminal monitor")
		debugLog    = flag.Bool("debug", false, "debug log to ~/.config/go-garden/debug.log (stderr when headless)")
		palette     = flag.String("palette", "", "GIMP palette for the monitor (overrides config)")
		writeConfig = flag.Bool("write-config", false, "write the default config and exit")
	)
	flag.Parse()

	if err := run(*configPath, *headless, *debugLog, *palette, *writeConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, headless, debugLog bool, palette string, writeConfig bool) error {
	switch {
	case debugLog && headless:
		debug.EnableWriter(os.Stderr)
		defer debug.Disable()
	case debugLog:
		if err := debug.Enable(debug.DefaultPath()); err != nil {
			return err
		}
		defer debug.Disable()
	}

	if writeConfig {
		cfg := config.DefaultConfig()
		if configPath != "" {
			return cfg.SaveFile(configPath)
		}
		return cfg.Save()
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if palette == "" {
		palette = cfg.UI.Palette
	}
	th, err := theme.Load(palette)
	if err != nil {
		return err
	}

	var opts []rack.Option
	if cfg.UsesGPIO() {
		if err := rpi.Open(); err != nil {
			return err
		}
		defer rpi.Close()
		opts = append(opts, rack.WithGPIO())
	}

	listener, midiOpts, err := openMIDI(cfg)
	if err != nil {
		return err
	}
	defer gomidi.CloseDriver()
	opts = append(opts, midiOpts...)

	r, err := rack.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer r.Close()

	if listener != nil {
		if err := listener.Start(); err != nil {
			return err
		}
		defer listener.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if headless {
		fmt.Printf("go-garden: %d patches running, ctrl+c to stop\n", len(cfg.Patches))
		return r.Run(ctx)
	}

	rackErr := make(chan error, 1)
	go func() { rackErr <- r.Run(ctx) }()

	var watcher *midi.Watcher
	if names := portNames(cfg); len(names) > 0 {
		watcher = midi.NewWatcher(names...)
		go watcher.Run(ctx)
	}

	m := tui.NewModel(r, watcher, th, cancel)
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		cancel()
		<-rackErr
		return err
	}
	cancel()
	return <-rackErr
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func portNames(cfg *config.Config) []string {
	var names []string
	for _, n := range []string{cfg.MIDI.Input, cfg.MIDI.Output} {
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}

// openMIDI opens the configured ports. The listener is nil when no patch
// reads MIDI; handlers are registered by the rack before it is started.
func openMIDI(cfg *config.Config) (*midi.Listener, []rack.Option, error) {
	needIn := cfg.UsesMIDIInput()
	if !needIn && cfg.MIDI.Output == "" {
		return nil, nil, nil
	}

	ports, err := midi.Scan()
	if err != nil {
		return nil, nil, err
	}

	var (
		listener *midi.Listener
		opts     []rack.Option
	)
	if needIn {
		in, err := ports.FindIn(cfg.MIDI.Input)
		if err != nil {
			return nil, nil, err
		}
		listener = midi.NewListener(in)
		opts = append(opts, rack.WithMIDIInput(listener))
	}
	if cfg.MIDI.Output != "" {
		out, err := ports.FindOut(cfg.MIDI.Output)
		if err != nil {
			return nil, nil, err
		}
		drv, err := midi.OpenDriver(out, cfg.Expander.BaseCC, cfg.Expander.BaseNote)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, rack.WithDriver(drv))
	}
	return listener, opts, nil
}
