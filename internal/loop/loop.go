// Package loop drives a match at a fixed cadence: it feeds the inbox through
// the dispatcher, steps the simulation and hands snapshots to observers.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/landerlink/lander/internal/dispatcher"
	"github.com/landerlink/lander/internal/match"
	"github.com/landerlink/lander/internal/queue"
	"github.com/landerlink/lander/pkg/protocol"
)

// InstrumentationName is the meter scope of the loop instruments.
const InstrumentationName = "github.com/landerlink/lander/internal/loop"

// ObserverBuffer is how many snapshots may wait for a slow observer before
// newer ones are skipped.
const ObserverBuffer = 2

// Config sets the loop cadence.
type Config struct {
	TickInterval time.Duration
	// ObserveEvery hands a snapshot to the observers every n loop ticks.
	ObserveEvery uint64
}

// Dependencies holds everything the runner drives.
type Dependencies struct {
	Match      *match.Match
	Inbox      *queue.Queue[protocol.Message]
	Dispatcher *dispatcher.Dispatcher
	Logger     *slog.Logger
	// Meter defaults to the global meter provider.
	Meter metric.Meter
}

type request struct {
	fn   func(*match.Match) error
	done chan error
}

// ObserverFunc receives published snapshots on its own goroutine.
type ObserverFunc func(*match.Snapshot) error

// Runner is the only goroutine that mutates the match.
type Runner struct {
	cfg       Config
	deps      Dependencies
	times     *Times
	observers []string
	ticks     uint64
	requests  chan request

	tickDuration metric.Float64Histogram
	dropped      metric.Int64Counter
}

var messageKinds = []protocol.Kind{
	protocol.KindHostConfirm,
	protocol.KindPlayerJoin,
	protocol.KindWorldSnapshot,
	protocol.KindCommandBatch,
	protocol.KindGameControl,
}

// New creates a runner and registers the message handlers on the dispatcher.
func New(cfg Config, deps Dependencies) (*Runner, error) {
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("tick interval must be positive, got %s", cfg.TickInterval)
	}
	if cfg.ObserveEvery == 0 {
		cfg.ObserveEvery = 1
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Meter == nil {
		deps.Meter = otel.Meter(InstrumentationName)
	}

	r := &Runner{cfg: cfg, deps: deps, times: NewTimes(), requests: make(chan request)}
	if err := r.instrument(); err != nil {
		return nil, err
	}

	for _, kind := range messageKinds {
		deps.Dispatcher.Register(string(kind), r.handleMessage, dispatcher.Logged())
	}
	return r, nil
}

func (r *Runner) instrument() error {
	m := r.deps.Meter

	var err error
	r.tickDuration, err = m.Float64Histogram(
		"loop.tick.duration",
		metric.WithDescription("Time spent draining the inbox and stepping the match"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("creating tick histogram: %w", err)
	}

	r.dropped, err = m.Int64Counter(
		"loop.messages.dropped",
		metric.WithDescription("Messages rejected by the match"),
	)
	if err != nil {
		return fmt.Errorf("creating dropped counter: %w", err)
	}

	pending, err := m.Int64ObservableGauge(
		"loop.commands.pending",
		metric.WithDescription("Commands waiting in the scheduler backlog"),
	)
	if err != nil {
		return fmt.Errorf("creating backlog gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		if s := r.deps.Match.Snapshot(); s != nil {
			o.ObserveInt64(pending, int64(s.Pending))
		}
		return nil
	}, pending)
	if err != nil {
		return fmt.Errorf("registering backlog callback: %w", err)
	}
	return nil
}

// AddObserver registers fn under name. Observers must be added before Run.
func (r *Runner) AddObserver(name string, fn ObserverFunc) {
	kind := "observe:" + name
	r.deps.Dispatcher.Register(kind, func(e dispatcher.Event) (any, error) {
		start := time.Now()
		err := fn(e.Payload.(*match.Snapshot))
		r.times.AddObserve(time.Since(start))
		return nil, err
	}, dispatcher.Buffered(ObserverBuffer), dispatcher.Logged())
	r.observers = append(r.observers, kind)
}

// Times returns the rolling timing window.
func (r *Runner) Times() *Times {
	return r.times
}

// Run ticks until ctx is cancelled. A tick in progress always completes; a
// slow tick delays the next one instead of queueing more.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	r.deps.Logger.Info("loop started", "interval", r.cfg.TickInterval, "observeEvery", r.cfg.ObserveEvery)
	for {
		select {
		case <-ctx.Done():
			r.deps.Logger.Info("loop stopped", "ticks", r.ticks)
			return nil
		case <-ticker.C:
			r.Tick(ctx)
		case req := <-r.requests:
			req.done <- req.fn(r.deps.Match)
		}
	}
}

// Exec runs fn on the loop goroutine between two ticks and returns its
// error. Other goroutines use it to change the match, e.g. to start it. It
// blocks until Run picks the request up or ctx is done.
func (r *Runner) Exec(ctx context.Context, fn func(*match.Match) error) error {
	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case r.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tick runs one loop iteration: every queued message is dispatched, the
// match steps once and, on the observer cadence, the snapshot is handed to
// the observers.
func (r *Runner) Tick(ctx context.Context) *match.Snapshot {
	start := time.Now()

	for _, msg := range r.deps.Inbox.Drain() {
		r.dispatch(msg)
	}
	snap := r.deps.Match.Step()

	elapsed := time.Since(start)
	r.times.AddTick(elapsed)
	r.tickDuration.Record(ctx, float64(elapsed)/float64(time.Millisecond),
		metric.WithAttributes(attribute.String("phase", snap.Phase.String())))

	if r.ticks%r.cfg.ObserveEvery == 0 {
		r.observe(snap)
	}
	r.ticks++
	return snap
}

func (r *Runner) dispatch(msg protocol.Message) {
	_, err := r.deps.Dispatcher.Dispatch(dispatcher.Event{
		Kind:    string(msg.Kind),
		Tick:    r.deps.Match.Snapshot().Tick,
		Payload: msg,
	})
	if err != nil {
		r.deps.Logger.Error("dispatching message failed", "message", msg.String(), "error", err)
	}
}

// handleMessage applies msg to the match. Rejected messages are logged and
// counted here so the dispatcher only reports real failures.
func (r *Runner) handleMessage(e dispatcher.Event) (any, error) {
	msg, ok := e.Payload.(protocol.Message)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T for %s", e.Payload, e.Kind)
	}
	err := r.deps.Match.Handle(msg)
	if errors.Is(err, match.ErrDropped) {
		r.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", e.Kind)))
		r.deps.Logger.Warn("message dropped", "message", msg.String(), "phase", r.deps.Match.Phase(), "reason", err)
		return nil, nil
	}
	return nil, err
}

func (r *Runner) observe(snap *match.Snapshot) {
	for _, kind := range r.observers {
		_, err := r.deps.Dispatcher.Dispatch(dispatcher.Event{Kind: kind, Tick: snap.Tick, Payload: snap})
		if errors.Is(err, dispatcher.ErrQueueFull) {
			r.deps.Logger.Debug("observer behind, snapshot skipped", "observer", kind, "tick", snap.Tick)
		} else if err != nil {
			r.deps.Logger.Error("dispatching snapshot failed", "observer", kind, "error", err)
		}
	}
}
