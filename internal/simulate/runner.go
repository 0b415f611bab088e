package simulate

import (
	"context"
	"fmt"
	"os"
	"time"

	session "github.com/formsense/repkit/internal/app"
	"github.com/formsense/repkit/internal/domain/model"
	"github.com/formsense/repkit/pkg/logger"
)

// File permission constants.
const outputFilePermission = 0o600

// RunConfig shapes one generate-and-verify run.
type RunConfig struct {
	FPS             int
	Reps            int
	RepPeriod       time.Duration
	Jitter          float64
	OcclusionEveryN int
	OutputFile      string
	Verify          bool
}

// Run generates a synthetic pose-frame set, optionally writes it out as
// JSON Lines, and optionally verifies that the pipeline segments it into the
// expected number of repetitions.
func Run(ctx context.Context, cfg *RunConfig) error {
	log := logger.Get().Named("simulate")

	log.Info(ctx, "generating synthetic set",
		logger.Int("fps", cfg.FPS),
		logger.Int("reps", cfg.Reps),
		logger.Duration("rep_period", cfg.RepPeriod),
		logger.Float64("jitter", cfg.Jitter),
		logger.Int("occlusion_every_n", cfg.OcclusionEveryN),
	)

	gen := NewGenerator(
		WithFPS(cfg.FPS),
		WithReps(cfg.Reps),
		WithRepPeriod(cfg.RepPeriod),
		WithJitter(cfg.Jitter),
		WithOcclusion(cfg.OcclusionEveryN),
	)
	frames := gen.Frames(time.Now())

	if cfg.OutputFile != "" {
		if err := saveFrames(cfg.OutputFile, frames); err != nil {
			return fmt.Errorf("frame output failed: %w", err)
		}
		log.Info(ctx, "frames written",
			logger.String("path", cfg.OutputFile),
			logger.Int("frames", len(frames)),
		)
	}

	if cfg.Verify {
		if err := verifySet(ctx, frames, cfg.Reps); err != nil {
			return err
		}
		log.Info(ctx, "verification passed", logger.Int("reps", cfg.Reps))
	}
	return nil
}

// saveFrames writes the frame set to a JSON Lines file.
func saveFrames(path string, frames []model.PoseFrame) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, outputFilePermission)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return WriteFrames(f, frames)
}

// verifySet runs the frame set through a full session and checks that the
// segmentation produced exactly the expected number of completed reps.
func verifySet(ctx context.Context, frames []model.PoseFrame, wantReps int) error {
	exCfg, err := PullUp()
	if err != nil {
		return fmt.Errorf("exercise setup failed: %w", err)
	}

	sess := session.New(exCfg)
	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("session start failed: %w", err)
	}

	completed := 0
	rejected := 0
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for e := range sess.Events() {
			switch e.Kind {
			case model.EventRepComplete:
				completed++
			case model.EventRepRejected:
				rejected++
			}
		}
	}()

	for _, frame := range frames {
		if err := sess.ProcessFrame(ctx, frame); err != nil {
			return fmt.Errorf("frame processing failed: %w", err)
		}
	}
	if err := sess.Close(ctx); err != nil {
		return fmt.Errorf("session close failed: %w", err)
	}
	<-drained

	if completed != wantReps {
		return fmt.Errorf("%w: expected %d completed reps, got %d (%d rejected)",
			ErrVerification, wantReps, completed, rejected)
	}
	return nil
}
