package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/formsense/repkit/internal/simulate"
	"github.com/formsense/repkit/pkg/logger"
)

// Default configuration constants.
const (
	defaultFPS       = 30
	defaultReps      = 5
	defaultRepPeriod = 3 * time.Second
)

func main() {
	var (
		fps       = flag.Int("fps", defaultFPS, "Frames per second of the synthetic stream")
		reps      = flag.Int("reps", defaultReps, "Number of repetitions to generate")
		period    = flag.Duration("period", defaultRepPeriod, "Duration of one repetition")
		jitter    = flag.Float64("jitter", 0, "Positional jitter amplitude added to each joint")
		occlusion = flag.Int("occlusion", 0, "Drop the wrist joint from every nth frame (0 disables)")
		output    = flag.String("output", "", "Write the frame set as JSON Lines to this path")
		verify    = flag.Bool("verify", false, "Run the set through the pipeline and check the rep count")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &simulate.RunConfig{
		FPS:             *fps,
		Reps:            *reps,
		RepPeriod:       *period,
		Jitter:          *jitter,
		OcclusionEveryN: *occlusion,
		OutputFile:      *output,
		Verify:          *verify,
	}

	if err := simulate.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("simulate failed: " + err.Error() + "\n")
		return
	}
}
