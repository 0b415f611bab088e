// Package session wires the per-exercise-instance pipeline together: pose
// conditioning, metric extraction, rep segmentation, scoring, event delivery,
// and rep history. One Session tracks one person doing one exercise.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/formsense/repkit/internal/adapters/history"
	"github.com/formsense/repkit/internal/adapters/sink"
	"github.com/formsense/repkit/internal/domain/exercise"
	"github.com/formsense/repkit/internal/domain/kinematics"
	"github.com/formsense/repkit/internal/domain/model"
	"github.com/formsense/repkit/internal/domain/pose"
	"github.com/formsense/repkit/internal/domain/scoring"
	"github.com/formsense/repkit/internal/domain/segment"
	"github.com/formsense/repkit/pkg/logger"
	"github.com/formsense/repkit/pkg/metrics"
)

// Default session configuration constants.
const (
	defaultQueueCapacity = 1024
	defaultEventBuffer   = 256
	closeDrainTimeout    = 5 * time.Second
)

// activeSessions counts open sessions across the process.
var activeSessions atomic.Int64 //nolint:gochecknoglobals // backs the active_sessions gauge

// Option applies a configuration option to the Session.
type Option func(*Session)

// WithLogger sets a custom logger for the session.
func WithLogger(log logger.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithQueueCapacity sets the event sink queue capacity.
func WithQueueCapacity(capacity int) Option {
	return func(s *Session) {
		if capacity > 0 {
			s.queueCapacity = capacity
		}
	}
}

// WithEventBuffer sets the buffer size of the Events channel.
func WithEventBuffer(size int) Option {
	return func(s *Session) {
		if size > 0 {
			s.eventBuffer = size
		}
	}
}

// WithHistory sets a custom rep history store.
func WithHistory(store history.Store) Option {
	return func(s *Session) {
		if store != nil {
			s.history = store
		}
	}
}

// Session runs the frame pipeline for one exercise instance. ProcessFrame
// must be called from a single goroutine; events fan out asynchronously.
type Session struct {
	mu  sync.Mutex
	id  string
	cfg *exercise.Config

	conditioner *pose.Conditioner
	extractor   *kinematics.Extractor
	machine     *segment.Machine
	queue       *sink.MemoryQueue
	dispatcher  *sink.Dispatcher
	history     history.Store

	queueCapacity int
	eventBuffer   int
	events        chan model.Event

	started bool
	closed  bool
	log     logger.Logger
}

// New constructs a Session for a validated exercise configuration.
func New(cfg *exercise.Config, opts ...Option) *Session {
	s := &Session{
		id:            uuid.New().String(),
		cfg:           cfg,
		queueCapacity: defaultQueueCapacity,
		eventBuffer:   defaultEventBuffer,
		log:           logger.Get().Named("session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Start builds the pipeline components and begins event delivery.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	if s.closed {
		return ErrClosed
	}

	cond := s.cfg.Conditioning
	s.conditioner = pose.New(
		pose.WithMaxDelta(cond.MaxDelta),
		pose.WithSmoothing(cond.Alpha),
		pose.WithOcclusionHold(cond.LowConfidence, cond.HoldFrames, cond.Decay),
	)
	s.extractor = kinematics.NewExtractor(s.cfg.Metrics)
	s.machine = segment.NewMachine(s.cfg, scoring.NewEngine(s.cfg))

	if s.history == nil {
		s.history = history.NewTreapStore()
	}

	s.queue = sink.NewMemoryQueue(
		sink.WithCapacity(s.queueCapacity),
		sink.WithBufferSize(s.queueCapacity),
	)
	s.events = make(chan model.Event, s.eventBuffer)

	s.dispatcher = sink.NewDispatcher(s.queue)
	s.dispatcher.Subscribe(s.recordHistory)
	s.dispatcher.Subscribe(s.forwardEvent)
	go func() {
		s.dispatcher.Run(ctx)
		close(s.events)
	}()

	s.started = true
	metrics.UpdateActiveSessions(int(activeSessions.Add(1)))
	s.log.Info(ctx, "session started",
		logger.String("session_id", s.id),
		logger.String("exercise", s.cfg.ID),
	)
	return nil
}

// ProcessFrame pushes one pose frame through the pipeline. Lifecycle events
// surface on the Events channel, not in the return value.
func (s *Session) ProcessFrame(ctx context.Context, frame model.PoseFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	if s.closed {
		return ErrClosed
	}

	metrics.RecordFrameProcessed()

	joints := s.conditioner.Condition(frame)
	metricFrame := s.extractor.Extract(frame.TS, frame.Dim, joints)
	for _, event := range s.machine.Step(metricFrame) {
		if !s.queue.Enqueue(ctx, event) {
			s.log.Warn(ctx, "event dropped",
				logger.String("session_id", s.id),
				logger.String("kind", string(event.Kind)),
				logger.Int("rep_index", event.RepIndex),
			)
		}
	}
	return nil
}

// Events returns the channel lifecycle events are delivered on. The channel
// closes after Close once every pending event has been delivered.
func (s *Session) Events() <-chan model.Event {
	return s.events
}

// Phase returns the segmentation machine's current phase.
func (s *Session) Phase() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine == nil {
		return ""
	}
	return s.machine.Phase()
}

// RepCount returns the number of reps started so far.
func (s *Session) RepCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine == nil {
		return 0
	}
	return s.machine.RepIndex()
}

// History returns the session's rep history store.
func (s *Session) History() history.Store {
	return s.history
}

// Stats returns aggregate statistics over the completed reps.
func (s *Session) Stats(ctx context.Context) (history.SessionStats, error) {
	return s.history.Stats(ctx)
}

// Close stops the session and drains pending events. The Events channel is
// closed once delivery finishes.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// Closing the queue lets the dispatcher drain what is already buffered.
	_ = s.queue.Close()

	select {
	case <-s.dispatcher.Done():
	case <-time.After(closeDrainTimeout):
		_ = s.dispatcher.Shutdown(ctx)
	case <-ctx.Done():
		_ = s.dispatcher.Shutdown(context.Background())
	}

	metrics.UpdateActiveSessions(int(activeSessions.Add(-1)))
	s.log.Info(ctx, "session closed", logger.String("session_id", s.id))
	return nil
}

// recordHistory persists completed reps into the history store.
func (s *Session) recordHistory(ctx context.Context, e model.Event) {
	if e.Kind != model.EventRepComplete || e.Summary == nil || e.Score == nil {
		return
	}
	err := s.history.Record(ctx, history.Entry{
		RepIndex: e.RepIndex,
		Score:    e.Score.Score,
		Duration: e.Summary.Duration,
		StartTS:  e.Summary.StartTS,
		Faults:   len(e.Score.Faults),
	})
	if err != nil {
		s.log.Error(ctx, "failed to record rep",
			logger.String("session_id", s.id),
			logger.Int("rep_index", e.RepIndex),
			logger.Error(err),
		)
	}
}

// forwardEvent surfaces events on the public channel without blocking the
// dispatcher.
func (s *Session) forwardEvent(ctx context.Context, e model.Event) {
	select {
	case s.events <- e:
	default:
		s.log.Warn(ctx, "events channel full, dropping",
			logger.String("session_id", s.id),
			logger.String("kind", string(e.Kind)),
		)
	}
}
