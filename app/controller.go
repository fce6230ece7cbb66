package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"earshot/log"
	"earshot/pipeline"
)

var ErrBusy = errors.New("a run is already in progress")

type Runner interface {
	Run(ctx context.Context, rec pipeline.Recording, progress pipeline.Progress) (*pipeline.Result, error)
	RunFile(ctx context.Context, path string, progress pipeline.Progress) (*pipeline.Result, error)
}

type EventKind int

const (
	EventStage EventKind = iota
	EventDone
	EventFailed
)

// Event is posted by the worker goroutine and applied on the UI goroutine.
type Event struct {
	RunID  string
	Kind   EventKind
	Stage  pipeline.Stage
	Result *pipeline.Result
	Err    error
}

// Controller runs at most one pipeline at a time in the background and
// folds its progress into State.
type Controller struct {
	runner Runner
	events chan Event
	newID  func() string

	mu    sync.Mutex
	state State
	busy  bool
	subs  []func(State)
}

func NewController(runner Runner) *Controller {
	return &Controller{
		runner: runner,
		events: make(chan Event, 16),
		newID:  func() string { return uuid.New().String() },
	}
}

// Events is drained by the UI goroutine, which passes each event to Apply.
func (c *Controller) Events() <-chan Event { return c.events }

// Subscribe registers fn to be called with the new State after every
// change. fn runs on whichever goroutine called Start or Apply.
func (c *Controller) Subscribe(fn func(State)) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start records and processes rec in the background.
func (c *Controller) Start(rec pipeline.Recording) (string, error) {
	return c.start(ModeRecord, rec.Path, PhaseRecording, func(ctx context.Context, progress pipeline.Progress) (*pipeline.Result, error) {
		return c.runner.Run(ctx, rec, progress)
	})
}

// StartFile filters and transcribes an existing recording in the background.
func (c *Controller) StartFile(path string) (string, error) {
	return c.start(ModeUpload, path, PhaseFiltering, func(ctx context.Context, progress pipeline.Progress) (*pipeline.Result, error) {
		return c.runner.RunFile(ctx, path, progress)
	})
}

type runFunc func(ctx context.Context, progress pipeline.Progress) (*pipeline.Result, error)

func (c *Controller) start(mode Mode, path string, first Phase, run runFunc) (string, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return "", ErrBusy
	}
	c.busy = true
	id := c.newID()
	c.state = State{
		Phase:   first,
		RunID:   id,
		Mode:    mode,
		Path:    path,
		Started: time.Now(),
	}
	st, subs := c.state, c.subs
	c.mu.Unlock()

	notify(subs, st)
	go c.work(id, mode, path, run)
	return id, nil
}

func (c *Controller) work(id string, mode Mode, path string, run runFunc) {
	start := time.Now()
	log.RunStart(id, string(mode), path)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("internal error: %v", r)
			log.RunFailed(id, err, time.Since(start))
			c.events <- Event{RunID: id, Kind: EventFailed, Err: err}
		}
	}()

	res, err := run(context.Background(), func(s pipeline.Stage) {
		log.RunStage(id, string(s))
		c.events <- Event{RunID: id, Kind: EventStage, Stage: s}
	})
	if err != nil {
		log.RunFailed(id, err, time.Since(start))
		c.events <- Event{RunID: id, Kind: EventFailed, Err: err}
		return
	}
	log.RunEnd(id, res.Outcome.Kind.String(), time.Since(start))
	c.events <- Event{RunID: id, Kind: EventDone, Result: res}
}

// Apply folds ev into the state and notifies subscribers. Events from runs
// other than the current one are ignored.
func (c *Controller) Apply(ev Event) State {
	c.mu.Lock()
	if ev.RunID != c.state.RunID || !c.busy {
		st := c.state
		c.mu.Unlock()
		return st
	}

	switch ev.Kind {
	case EventStage:
		c.state.Phase = phaseFor(ev.Stage)
	case EventDone:
		c.busy = false
		c.state.Phase = PhaseDone
		c.state.Outcome = ev.Result.Outcome
		c.state.ProcessedPath = ev.Result.ProcessedPath
		c.state.Filtered = ev.Result.Filtered
		c.state.Elapsed = time.Since(c.state.Started)
	case EventFailed:
		c.busy = false
		c.state.Phase = PhaseFailed
		c.state.Err = ev.Err
		c.state.Elapsed = time.Since(c.state.Started)
	}
	st, subs := c.state, c.subs
	c.mu.Unlock()

	notify(subs, st)
	return st
}

// Wait applies events until the current run finishes. It is meant for
// callers without their own event loop, such as tests and the CLI.
func (c *Controller) Wait() State {
	for {
		c.mu.Lock()
		busy := c.busy
		st := c.state
		c.mu.Unlock()
		if !busy {
			return st
		}
		c.Apply(<-c.events)
	}
}

func notify(subs []func(State), st State) {
	for _, fn := range subs {
		fn(st)
	}
}
