// Package poll drives the status polling of a running task.
package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agenciai/agx/internal/log"
	"github.com/agenciai/agx/internal/model"
	"github.com/agenciai/agx/internal/stage"
)

// DefaultInterval is the default time between two status fetches.
const DefaultInterval = time.Second

var (
	// ErrStopped is returned by Run when the controller is stopped.
	ErrStopped = errors.New("poll stopped")
	// ErrSuperseded is returned by Run when the session started tracking another task.
	ErrSuperseded = errors.New("task superseded")
)

// State is the lifecycle state of a controller.
type State int

const (
	StateNotStarted State = iota
	StatePolling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StatePolling:
		return "Polling"
	case StateStopped:
		return "Stopped"
	}
	return "Unknown"
}

// StatusFetcher knows how to get the status of a task.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, id model.TaskID) (*model.RawStatus, error)
}

// Tracker is the state the polls are applied to. Changes are keyed by task and
// must fail with model.ErrStaleTask when the task is no longer the tracked one.
type Tracker interface {
	TaskID() model.TaskID
	Stage() model.Stage
	ApplyUpdate(id model.TaskID, st model.Stage, entry *model.LogEntry) (model.Stage, error)
	Complete(id model.TaskID, report model.Report, rows []model.ResultRow) error
	Fail(id model.TaskID, reason string) error
}

// Resolver resolves the stage of a raw status.
type Resolver interface {
	Resolve(prev model.Stage, raw model.RawStatus) (model.Stage, *model.LogEntry)
}

// Event is the change applied by a single poll.
type Event struct {
	TaskID model.TaskID
	State  model.TaskState
	Stage  model.Stage
	// Entries are the log entries added by the poll, oldest first.
	Entries []model.LogEntry
	// Progress is the raw progress of the poll, if any.
	Progress *model.Progress
	Terminal bool
}

// Outcome is the terminal result of a task.
type Outcome struct {
	State         model.TaskState
	Report        *model.Report
	Rows          []model.ResultRow
	FailureReason string
}

// ControllerConfig is the configuration of the controller.
type ControllerConfig struct {
	Client   StatusFetcher
	Session  Tracker
	Resolver Resolver
	// Interval is the time between two fetches.
	Interval time.Duration
	// Events is optional, when set every applied poll is sent to it.
	Events chan<- Event
	// Now returns the time used on the log entries.
	Now    func() time.Time
	Logger log.Logger
}

func (c *ControllerConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("client is required")
	}
	if c.Session == nil {
		return fmt.Errorf("session is required")
	}
	if c.Resolver == nil {
		c.Resolver = stage.Default
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval can't be negative")
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "poll.Controller"})

	return nil
}

// Controller polls a single task until it reaches a terminal state. A
// controller is single use, it goes NotStarted -> Polling -> Stopped.
type Controller struct {
	client   StatusFetcher
	session  Tracker
	resolver Resolver
	interval time.Duration
	events   chan<- Event
	now      func() time.Time
	logger   log.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// NewController returns a new controller.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Controller{
		client:   cfg.Client,
		session:  cfg.Session,
		resolver: cfg.Resolver,
		interval: cfg.Interval,
		events:   cfg.Events,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}, nil
}

// State returns the controller lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run polls the task every interval until it finishes and returns its outcome.
// The first fetch happens after one interval.
//
// Fetches never overlap: ticks elapsed while a fetch is in flight are dropped.
// Transport errors are logged and polling continues. Run also returns when the
// context is cancelled, when Stop is called (ErrStopped) or when the session
// starts tracking another task (ErrSuperseded).
func (c *Controller) Run(ctx context.Context, id model.TaskID) (*Outcome, error) {
	if id == "" {
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	c.mu.Lock()
	if c.state != StateNotStarted {
		st := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("controller is %s, it can only run once: %w", st, model.ErrNotValid)
	}
	ctx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	c.state = StatePolling
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	defer func() {
		cancel(nil)
		c.mu.Lock()
		c.state = StateStopped
		c.mu.Unlock()
		close(done)
	}()

	logger := c.logger.WithValues(log.Kv{"task-id": id})
	logger.Debugf("Polling every %s", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	seen := pollState{stage: c.session.Stage()}
	for {
		select {
		case <-ctx.Done():
			logger.Debugf("Polling stopped: %s", context.Cause(ctx))
			return nil, context.Cause(ctx)
		case <-ticker.C:
		}

		out, err := c.poll(ctx, logger, id, &seen)
		if err != nil {
			return nil, err
		}
		if out != nil {
			logger.Infof("Task finished with %s", out.State)
			return out, nil
		}
	}
}

// Stop stops a running controller and waits until the loop exits, no fetch is
// issued after it returns. It's idempotent and a controller stopped before
// running can't be run.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == StateNotStarted {
		c.state = StateStopped
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel(ErrStopped)
	<-done
}

// poll runs a single fetch and applies it. It returns the outcome once the task is terminal.
func (c *Controller) poll(ctx context.Context, logger log.Logger, id model.TaskID, seen *pollState) (*Outcome, error) {
	raw, err := c.client.FetchStatus(ctx, id)
	if ctx.Err() != nil {
		// Stopped while the fetch was in flight, the result is dropped.
		return nil, nil
	}
	if err != nil {
		logger.Warningf("Could not fetch task status: %s", err)
		return nil, nil
	}

	if sid := c.session.TaskID(); sid != id {
		return nil, superseded(sid)
	}

	switch raw.State {
	case model.TaskStateSuccess:
		return c.complete(ctx, logger, id, raw, seen)
	case model.TaskStateFailure:
		return c.fail(ctx, logger, id, raw.Error, seen)
	}

	next, detail := c.resolver.Resolve(seen.stage, *raw)

	var entries []model.LogEntry
	if raw.Progress != nil {
		now := c.now()
		if step := raw.Progress.Step; step != "" && seen.newStep(step) {
			entries = append(entries, model.LogEntry{Time: now, Source: model.LogSourceOrchestrator, Message: step})
		}
		if detail != nil && seen.newDetail(raw.Progress.Detail) {
			detail.Time = now
			entries = append(entries, *detail)
		}
	}

	if len(entries) == 0 {
		if err := c.apply(id, next, nil, seen); err != nil {
			return nil, err
		}
	}
	for i := range entries {
		if err := c.apply(id, next, &entries[i], seen); err != nil {
			return nil, err
		}
	}

	c.emit(ctx, Event{
		TaskID:   id,
		State:    raw.State,
		Stage:    seen.stage,
		Entries:  entries,
		Progress: raw.Progress,
	})

	return nil, nil
}

func (c *Controller) apply(id model.TaskID, st model.Stage, entry *model.LogEntry, seen *pollState) error {
	applied, err := c.session.ApplyUpdate(id, st, entry)
	if err != nil {
		if errors.Is(err, model.ErrStaleTask) {
			return superseded(c.session.TaskID())
		}
		return fmt.Errorf("could not apply update: %w", err)
	}
	seen.stage = applied
	return nil
}

func (c *Controller) complete(ctx context.Context, logger log.Logger, id model.TaskID, raw *model.RawStatus, seen *pollState) (*Outcome, error) {
	if raw.Result == nil {
		return c.fail(ctx, logger, id, "missing result payload", seen)
	}

	report := model.NewReport(*raw.Result)
	if err := c.session.Complete(id, report, raw.Result.Rows); err != nil {
		if errors.Is(err, model.ErrStaleTask) {
			return nil, superseded(c.session.TaskID())
		}
		logger.Errorf("Could not complete task: %s", err)
	}
	seen.stage = model.StageDone

	c.emit(ctx, Event{
		TaskID:   id,
		State:    model.TaskStateSuccess,
		Stage:    model.StageDone,
		Entries:  []model.LogEntry{{Time: c.now(), Source: model.LogSourceOrchestrator, Message: model.MsgTaskFinished}},
		Terminal: true,
	})

	return &Outcome{
		State:  model.TaskStateSuccess,
		Report: &report,
		Rows:   raw.Result.Rows,
	}, nil
}

func (c *Controller) fail(ctx context.Context, logger log.Logger, id model.TaskID, reason string, seen *pollState) (*Outcome, error) {
	if reason == "" {
		reason = "unknown error"
	}
	if err := c.session.Fail(id, reason); err != nil {
		if errors.Is(err, model.ErrStaleTask) {
			return nil, superseded(c.session.TaskID())
		}
		logger.Errorf("Could not fail task: %s", err)
	}

	c.emit(ctx, Event{
		TaskID:   id,
		State:    model.TaskStateFailure,
		Stage:    seen.stage,
		Entries:  []model.LogEntry{{Time: c.now(), Source: model.LogSourceOrchestrator, Message: model.TaskFailedMessage(reason)}},
		Terminal: true,
	})

	return &Outcome{
		State:         model.TaskStateFailure,
		FailureReason: reason,
	}, nil
}

func superseded(current model.TaskID) error {
	return fmt.Errorf("session is tracking task %q: %w", current, ErrSuperseded)
}

func (c *Controller) emit(ctx context.Context, ev Event) {
	if c.events == nil {
		return
	}

	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}

// pollState is what a controller remembers between polls of its task: the
// stage the task reached and the last reported progress, the remote service
// keeps reporting the same progress until it changes.
type pollState struct {
	stage  model.Stage
	step   string
	detail *model.RecordDetail
}

func (p *pollState) newStep(step string) bool {
	if step == p.step {
		return false
	}
	p.step = step
	return true
}

func (p *pollState) newDetail(d *model.RecordDetail) bool {
	if d == nil {
		return false
	}
	if p.detail != nil && *p.detail == *d {
		return false
	}
	dd := *d
	p.detail = &dd
	return true
}
