// noisedump writes noise samples for offline inspection or plays them on the
// default sound card.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ebitengine/oto/v3"

	"go-garden/noise"
)

func main() {
	var (
		output     = flag.String("output", "-", "file to write, - for stdout")
		sampleRate = flag.Uint64("sample-rate", 44100, "sample rate in Hz (red noise filter and playback)")
		count      = flag.Int("n", 44100, "number of samples to dump")
		kind       = flag.String("type", "red", "noise type: white or red")
		seed       = flag.Uint64("seed", 0, "generator seed, 0 for time based")
		play       = flag.Duration("play", 0, "play through the sound card for this long instead of dumping")
	)
	flag.Parse()

	s := *seed
	if s == 0 {
		s = uint64(time.Now().UnixNano())
	}
	gen, err := noise.New(noise.Kind(*kind), s, *sampleRate)
	if err != nil {
		fatal(err)
	}

	if *play > 0 {
		if err := playFor(gen, int(*sampleRate), *play); err != nil {
			fatal(err)
		}
		return
	}

	var w io.Writer = os.Stdout
	if *output != "-" {
		f, err := os.Create(*output)
		if err != nil {
			fatal(err)
		}
		defer f.Close()
		w = f
	}
	if err := noise.Dump(w, gen, *count); err != nil {
		fatal(err)
	}
}

func playFor(gen noise.Generator, sampleRate int, d time.Duration) error {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	<-ready

	player := ctx.NewPlayer(noise.NewReader(gen))
	defer player.Close()
	player.Play()
	time.Sleep(d)
	return nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "noisedump: %v\n", err)
	os.Exit(1)
}
