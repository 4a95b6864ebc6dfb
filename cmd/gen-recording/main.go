// Command gen-recording generates sample recording files for testing
// replay without running a live session.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/banshee-data/motion.trace/internal/export"
	"github.com/banshee-data/motion.trace/internal/imu"
	sig "github.com/banshee-data/motion.trace/internal/signal"
)

func main() {
	output := flag.String("o", "sample.json", "output path")
	mode := flag.String("mode", "demo", "signal mode: demo or random")
	seed := flag.Int64("seed", 1, "random mode seed")
	samples := flag.Int("n", 500, "number of samples")
	dt := flag.Float64("dt", 0.02, "sample spacing in seconds")
	flag.Parse()

	var gen sig.Generator
	var err error
	switch sig.Mode(*mode) {
	case sig.ModeDemo:
		gen, err = sig.NewDemoGenerator(sig.DefaultDemoConfig())
	case sig.ModeRandom:
		gen, err = sig.NewRandomGenerator(sig.DefaultRandomConfig(*seed))
	default:
		log.Fatalf("unsupported mode %q", *mode)
	}
	if err != nil {
		log.Fatalf("failed to build generator: %v", err)
	}

	out := make([]imu.SensorSample, 0, *samples)
	for i := 0; i < *samples; i++ {
		s, err := gen.NextSample(*dt, 1.0)
		if err != nil {
			log.Fatalf("sample %d: %v", i, err)
		}
		out = append(out, s)
		if (i+1)%100 == 0 {
			log.Printf("%d/%d samples", i+1, *samples)
		}
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("failed to create %s: %v", *output, err)
	}
	defer f.Close()

	rec := export.Recording{
		Mode:      *mode,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Samples:   out,
	}
	if err := export.WriteRecording(f, rec); err != nil {
		log.Fatalf("failed to write recording: %v", err)
	}
	log.Printf("✓ Created: %s (%d samples)", *output, len(out))
}
