package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	session "github.com/formsense/repkit/internal/app"
	"github.com/formsense/repkit/internal/config"
	"github.com/formsense/repkit/internal/domain/exercise"
	"github.com/formsense/repkit/internal/domain/model"
	"github.com/formsense/repkit/internal/simulate"
	"github.com/formsense/repkit/pkg/logger"
	"github.com/formsense/repkit/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Resolve the exercise definition: a YAML file if configured, the
	// built-in pull-up otherwise.
	exCfg, err := loadExercise(cfg)
	if err != nil {
		log.Error(ctx, "failed to load exercise", logger.Error(err))
		return
	}

	// Expose Prometheus metrics.
	srv := startMetricsServer(ctx, cfg.MetricsAddr)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "metrics server shutdown failed", logger.Error(err))
		}
	}()

	sess := session.New(exCfg,
		session.WithLogger(log),
		session.WithQueueCapacity(cfg.QueueSize),
		session.WithEventBuffer(cfg.EventBuffer),
	)
	if err := sess.Start(ctx); err != nil {
		log.Error(ctx, "failed to start session", logger.Error(err))
		return
	}

	// Consume lifecycle events until the session drains.
	eventsDone := make(chan struct{})
	go func() {
		defer close(eventsDone)
		consumeEvents(ctx, sess)
	}()

	// Feed the synthetic pose stream at its native frame rate.
	if err := runStream(ctx, cfg, sess); err != nil {
		log.Error(ctx, "frame stream failed", logger.Error(err))
	}

	if err := sess.Close(ctx); err != nil {
		log.Error(ctx, "session close failed", logger.Error(err))
	}
	<-eventsDone

	reportStats(ctx, sess)
}

// loadExercise picks the exercise configuration for this run.
func loadExercise(cfg *config.Config) (*exercise.Config, error) {
	if cfg.ExercisePath != "" {
		return exercise.Load(cfg.ExercisePath, simulate.PullUpRegistry())
	}
	return simulate.PullUp()
}

// startMetricsServer serves the custom Prometheus registry.
func startMetricsServer(ctx context.Context, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		logger.Get().Info(ctx, "starting metrics server", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("metrics server failed: " + err.Error() + "\n")
		}
	}()

	return srv
}

// runStream pushes a pose-frame stream through the session, pacing delivery
// at the configured frame rate. Frames come from a JSON Lines recording if
// one is configured, the synthetic generator otherwise.
func runStream(ctx context.Context, cfg *config.Config, sess *session.Session) error {
	frames, err := loadFrames(cfg)
	if err != nil {
		return err
	}

	interval := time.Second / time.Duration(cfg.SimFPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for _, frame := range frames {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := sess.ProcessFrame(ctx, frame); err != nil {
			return err
		}
	}
	return nil
}

// loadFrames resolves the pose-frame stream for this run.
func loadFrames(cfg *config.Config) ([]model.PoseFrame, error) {
	if cfg.FramesPath != "" {
		f, err := os.Open(cfg.FramesPath)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		return simulate.ReadFrames(f)
	}

	gen := simulate.NewGenerator(
		simulate.WithFPS(cfg.SimFPS),
		simulate.WithReps(cfg.SimReps),
		simulate.WithRepPeriod(cfg.SimRepPeriod()),
	)
	return gen.Frames(time.Now()), nil
}

// consumeEvents logs lifecycle events until the session's channel closes.
func consumeEvents(ctx context.Context, sess *session.Session) {
	log := logger.Get().Named("events")
	for e := range sess.Events() {
		switch e.Kind {
		case model.EventRepStart:
			log.Info(ctx, "rep started", logger.Int("rep_index", e.RepIndex))
		case model.EventRepComplete:
			log.Info(ctx, "rep completed",
				logger.Int("rep_index", e.RepIndex),
				logger.Float64("score", e.Score.Score),
				logger.Float64("rom", e.Score.ROM),
				logger.Int("faults", len(e.Score.Faults)),
				logger.Duration("duration", e.Summary.Duration),
			)
		case model.EventRepRejected:
			log.Warn(ctx, "rep rejected",
				logger.Int("rep_index", e.RepIndex),
				logger.Any("reasons", e.Reasons),
			)
		case model.EventCue:
			log.Info(ctx, "cue",
				logger.String("cue_id", e.CueID),
				logger.String("severity", string(e.Severity)),
				logger.String("text", e.Text),
			)
		}
	}
}

// reportStats logs a summary over the session's completed reps.
func reportStats(ctx context.Context, sess *session.Session) {
	log := logger.Get()

	stats, err := sess.Stats(ctx)
	if err != nil {
		log.Warn(ctx, "no session stats", logger.Error(err))
		return
	}

	log.Info(ctx, "session summary",
		logger.String("session_id", sess.ID()),
		logger.Int("reps", stats.Reps),
		logger.Float64("mean_score", stats.MeanScore),
		logger.Float64("score_stddev", stats.ScoreStdDev),
		logger.Duration("mean_duration", stats.MeanDuration),
		logger.Int("total_faults", stats.TotalFaults),
		logger.Int("best_rep", stats.BestRepIndex),
		logger.Int("worst_rep", stats.WorstRepIndex),
	)
}
