package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-garden/fhx"
	"go-garden/midi"
	"go-garden/param"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	defer gomidi.CloseDriver()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "list":
		err = listPorts()
	case "edges":
		err = watchEdges(ctx, args)
	case "cc":
		err = watchCC(ctx, args)
	case "ramp":
		err = rampExpander(ctx, args)
	case "poll":
		err = pollPorts(ctx, args)
	default:
		usage()
	}
	if err != nil && ctx.Err() == nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                      - List all MIDI ports")
	fmt.Println("  edges <in> [divide]       - Print note-on edges, or every <divide> clocks")
	fmt.Println("  cc <in> <channel> <cc>    - Print a controller as a 20-2000 log parameter")
	fmt.Println("  ramp <out> [bank]         - Sweep CV and gates of one expander bank")
	fmt.Println("  poll <name>...            - Report ports matching names coming and going")
}

func listPorts() error {
	fmt.Println("(waiting up to 3 seconds...)")
	ports, err := midi.Scan()
	if err != nil {
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return err
	}
	ins, outs := ports.Names()
	fmt.Println("=== MIDI Input Ports ===")
	for i, n := range ins {
		fmt.Printf("  %d: %s\n", i, n)
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, n := range outs {
		fmt.Printf("  %d: %s\n", i, n)
	}
	return nil
}

func listen(name string, handlers ...midi.Handler) (*midi.Listener, error) {
	ports, err := midi.Scan()
	if err != nil {
		return nil, err
	}
	in, err := ports.FindIn(name)
	if err != nil {
		return nil, err
	}
	l := midi.NewListener(in)
	for _, h := range handlers {
		l.Add(h)
	}
	if err := l.Start(); err != nil {
		return nil, err
	}
	fmt.Printf("Listening on %s. Ctrl+C to exit.\n", in)
	return l, nil
}

func watchEdges(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("edges: input name required")
	}
	src := midi.NewNoteClockIn(0, midi.AnyNote)
	if len(args) > 1 {
		divide, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("edges: bad divide %q", args[1])
		}
		src = midi.NewTimingClockIn(divide)
	}
	l, err := listen(args[0], src)
	if err != nil {
		return err
	}
	defer l.Close()

	var last time.Time
	for {
		at, err := src.Wait(ctx)
		if err != nil {
			return err
		}
		if last.IsZero() {
			fmt.Printf("[%s] edge\n", at.Format("15:04:05.000"))
		} else {
			gap := at.Sub(last)
			fmt.Printf("[%s] edge  +%-10s %6.1f bpm\n", at.Format("15:04:05.000"), gap.Round(time.Millisecond), 60/gap.Seconds())
		}
		last = at
	}
}

func watchCC(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("cc: input, channel and controller required")
	}
	ch, err1 := strconv.ParseUint(args[1], 10, 4)
	num, err2 := strconv.ParseUint(args[2], 10, 7)
	if err1 != nil || err2 != nil {
		return fmt.Errorf("cc: bad channel or controller")
	}
	cc := midi.NewCC(uint8(ch), uint8(num), 0)
	p := param.MustFloat(cc, 20, 2000, param.LogScale(), param.Uncorrected())

	l, err := listen(args[0], cc)
	if err != nil {
		return err
	}
	defer l.Close()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	last := -1.0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if v := p.Read(); v != last {
			fmt.Printf("raw=%5d  value=%8.2f\n", cc.Sample(), v)
			last = v
		}
	}
}

func rampExpander(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("ramp: output name required")
	}
	bank := fhx.Bank(0)
	if len(args) > 1 {
		b, err := strconv.ParseUint(args[1], 10, 3)
		if err != nil {
			return fmt.Errorf("ramp: bad bank %q", args[1])
		}
		bank = fhx.Bank(b)
	}

	ports, err := midi.Scan()
	if err != nil {
		return err
	}
	out, err := ports.FindOut(args[0])
	if err != nil {
		return err
	}
	drv, err := midi.OpenDriver(out, 0, 36)
	if err != nil {
		return err
	}

	q := fhx.NewQueue(fhx.DefaultQueueSize)
	go fhx.NewArbiter(q, drv).Run(ctx)

	var cvs [fhx.NumChannels]*fhx.CV
	var gates [fhx.NumChannels]*fhx.Gate
	for ch := range fhx.Channel(fhx.NumChannels) {
		cvs[ch], _ = fhx.NewCV(q, bank, ch)
		gates[ch], _ = fhx.NewGate(q, bank, ch)
	}
	fmt.Printf("Sweeping bank %d on %s. Ctrl+C to exit.\n", bank, out)

	for step := 0; ; step++ {
		for ch := range cvs {
			v := uint16((step*1024 + ch*8192) & 0xFFFF)
			if err := cvs[ch].SetValue(ctx, v); err != nil {
				return err
			}
		}
		if err := gates[step%fhx.NumChannels].EmitPulse(ctx, 20*time.Millisecond); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(30 * time.Millisecond):
		}
	}
}

func pollPorts(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("poll: at least one name required")
	}
	fmt.Println("Polling for port changes. Ctrl+C to exit.")
	w := midi.NewWatcher(names...)
	go w.Run(ctx)
	for ev := range w.Events() {
		verb := "connected"
		if ev.Type == midi.PortDisconnected {
			verb = "disconnected"
		}
		fmt.Printf("[%s] %s %s\n", time.Now().Format("15:04:05"), ev.Name, verb)
	}
	return ctx.Err()
}
