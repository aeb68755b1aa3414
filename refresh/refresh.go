// Package refresh repaints the board on a fixed interval. A failed cycle is
// logged and retried after a short backoff; only cancellation stops the loop.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/timschmolka/busboard/layout"
	"github.com/timschmolka/busboard/panel"
	"github.com/timschmolka/busboard/prediction"
	"github.com/timschmolka/busboard/snapshot"
)

const (
	DefaultInterval = 60 * time.Second
	DefaultBackoff  = 5 * time.Second
)

var ErrSinkFailure = errors.New("sink failure")

type State int

const (
	Idle State = iota
	Rendering
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Rendering:
		return "rendering"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Loader interface {
	Load() (*snapshot.Snapshot, error)
}

type Renderer interface {
	Render(preds []prediction.Prediction, generatedAt time.Time) *layout.Canvas
}

type Config struct {
	Loader   Loader
	Renderer Renderer
	Sink     panel.Sink

	// Interval separates successful cycles, Backoff follows a failed one.
	// Zero values select DefaultInterval and DefaultBackoff.
	Interval time.Duration
	Backoff  time.Duration

	// After schedules the next cycle; time.After when nil.
	After func(time.Duration) <-chan time.Time

	Logger        *slog.Logger
	OnStateChange func(State)
}

type Loop struct {
	cfg     Config
	state   State
	stopped bool
}

func New(cfg Config) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.After == nil {
		cfg.After = time.After
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{cfg: cfg, state: Idle}
}

func (l *Loop) State() State {
	return l.state
}

func (l *Loop) setState(s State) {
	if l.state == s {
		return
	}
	l.state = s
	if l.cfg.OnStateChange != nil {
		l.cfg.OnStateChange(s)
	}
}

// Run paints immediately and then on every tick until ctx is cancelled.
// Cancellation is only observed between cycles. Run tears down the sink
// before returning.
func (l *Loop) Run(ctx context.Context) error {
	var delay time.Duration
	for {
		l.setState(Idle)
		if ctx.Err() != nil {
			return l.Stop()
		}
		select {
		case <-ctx.Done():
			return l.Stop()
		case <-l.cfg.After(delay):
		}

		if err := l.RunOnce(); err != nil {
			delay = l.cfg.Backoff
		} else {
			delay = l.cfg.Interval
		}
	}
}

// RunOnce performs a single load, render and paint. Failures are logged and
// returned.
func (l *Loop) RunOnce() error {
	l.setState(Rendering)
	defer l.setState(Idle)

	logger := l.cfg.Logger.With("cycle", uuid.NewString())
	start := time.Now()

	err := l.cycle(logger)
	if err != nil {
		logger.Error("refresh failed", "kind", Kind(err), "err", err, "retry_in", l.cfg.Backoff)
		return err
	}
	logger.Info("refresh complete", "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func (l *Loop) cycle(logger *slog.Logger) error {
	snap, err := l.cfg.Loader.Load()
	if err != nil {
		return err
	}
	for _, notice := range snap.Notices {
		logger.Info("upstream notice", "msg", notice)
	}

	preds, err := prediction.Normalize(snap)
	if err != nil {
		return err
	}

	canvas := l.cfg.Renderer.Render(preds, snap.GeneratedAt)
	logger.Debug("rendered", "predictions", len(preds), "rows", len(canvas.Rows), "generated_at", snap.GeneratedAt)

	return l.paint(canvas)
}

// paint always releases the panel with Sleep once Init has succeeded.
func (l *Loop) paint(canvas *layout.Canvas) (err error) {
	sink := l.cfg.Sink
	if err := sink.Init(); err != nil {
		return sinkError("init", err)
	}
	defer func() {
		if sleepErr := sink.Sleep(); sleepErr != nil && err == nil {
			err = sinkError("sleep", sleepErr)
		}
	}()

	if err := sink.Clear(panel.FillWhite); err != nil {
		return sinkError("clear", err)
	}
	if err := sink.Display(canvas.Image); err != nil {
		return sinkError("display", err)
	}
	return nil
}

// Stop moves the loop to Stopped and closes the sink. Only the first call
// closes it.
func (l *Loop) Stop() error {
	l.setState(Stopped)
	if l.stopped {
		return nil
	}
	l.stopped = true

	if err := l.cfg.Sink.Close(); err != nil {
		l.cfg.Logger.Error("sink teardown failed", "err", err)
		return sinkError("close", err)
	}
	l.cfg.Logger.Info("sink closed")
	return nil
}

func sinkError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSinkFailure, op, err)
}

// Kind names the failure class of a cycle error for logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, snapshot.ErrMissingSnapshot):
		return "MissingSnapshot"
	case errors.Is(err, snapshot.ErrMalformedSnapshot):
		return "MalformedSnapshot"
	case errors.Is(err, prediction.ErrMissingField):
		return "MissingField"
	case errors.Is(err, prediction.ErrInvalidField):
		return "InvalidField"
	case errors.Is(err, ErrSinkFailure):
		return "SinkFailure"
	default:
		return "Unknown"
	}
}
