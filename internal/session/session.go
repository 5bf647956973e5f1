// Package session holds the state of the task being monitored.
//
// Session is the single owned aggregate of the dashboard: it's only mutated
// through its named transitions (StartTask, ApplyUpdate, Complete, Fail), which
// makes them the one enforcement point of the stage monotonicity and the
// completion idempotency. The transitions after StartTask name the task they
// belong to, a change of a replaced task is rejected under the same lock that
// guards the state.
package session

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/agenciai/agx/internal/log"
	"github.com/agenciai/agx/internal/model"
)

// DefaultLogCapacity is the default number of log entries kept per task.
const DefaultLogCapacity = 500

// TaskScoped is a component whose state belongs to a single task and must be
// reset when a new task starts (e.g. the chat session).
type TaskScoped interface {
	Reset(id model.TaskID)
}

// Config is the configuration of the session.
type Config struct {
	// LogCapacity is the max number of log entries kept, older are dropped.
	LogCapacity int
	// TaskScoped are the components reset on every new task.
	TaskScoped []TaskScoped
	// Now returns the time used to stamp log entries.
	Now    func() time.Time
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.LogCapacity == 0 {
		c.LogCapacity = DefaultLogCapacity
	}
	if c.LogCapacity < 0 {
		return fmt.Errorf("log capacity can't be negative")
	}

	if c.Now == nil {
		c.Now = time.Now
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "session.Session"})

	return nil
}

// Snapshot is a point in time copy of the session state.
type Snapshot struct {
	TaskID        model.TaskID
	Stage         model.Stage
	Failed        bool
	FailureReason string
	// Log is ordered newest first.
	Log    []model.LogEntry
	Report *model.Report
	Rows   []model.ResultRow
}

// Terminal returns true when the task finished, successfully or not.
func (s Snapshot) Terminal() bool {
	return s.Failed || s.Stage == model.StageDone
}

// Session is the state of the monitored task. It's safe for concurrent use.
type Session struct {
	taskID        model.TaskID
	stage         model.Stage
	completed     bool
	failed        bool
	failureReason string
	report        *model.Report
	rows          []model.ResultRow
	log           *logRing

	scoped []TaskScoped
	now    func() time.Time
	logger log.Logger
	mu     sync.RWMutex
}

// New returns a new idle session.
func New(cfg Config) (*Session, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Session{
		log:    newLogRing(cfg.LogCapacity),
		scoped: cfg.TaskScoped,
		now:    cfg.Now,
		logger: cfg.Logger,
	}, nil
}

// StartTask replaces the current task with a new one. All the state of the
// previous task is dropped, including the task scoped components, and the new
// task starts validating.
func (s *Session) StartTask(id model.TaskID) error {
	if id == "" {
		return fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	for _, ts := range s.scoped {
		ts.Reset(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.taskID = id
	s.stage = model.StageIdle
	s.completed = false
	s.failed = false
	s.failureReason = ""
	s.report = nil
	s.rows = nil
	s.log.reset()

	s.stage = model.StageValidating
	s.appendLog(model.LogEntry{Source: model.LogSourceSystem, Message: model.MsgTaskReceived})

	s.logger.Debugf("Task %s started", id)
	return nil
}

// ApplyUpdate applies a resolved poll update of a task and returns the
// resulting stage. The stage never goes backwards and Done is only reached
// through Complete. Updates of an already finished task are ignored, updates of
// a task that is not the tracked one fail with ErrStaleTask.
func (s *Session) ApplyUpdate(id model.TaskID, stage model.Stage, entry *model.LogEntry) (model.Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkTask(id); err != nil {
		return s.stage, err
	}
	if s.terminal() {
		return s.stage, nil
	}

	if stage >= model.StageDone {
		stage = model.StageDirectory
	}
	if stage > s.stage {
		s.logger.Debugf("Task %s stage %s -> %s", s.taskID, s.stage, stage)
		s.stage = stage
	}

	if entry != nil {
		s.appendLog(*entry)
	}

	return s.stage, nil
}

// Complete finishes the task successfully freezing its report and rows.
// Completing again with the same payload is a no-op, with a different one
// it's an error and nothing changes.
func (s *Session) Complete(id model.TaskID, report model.Report, rows []model.ResultRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkTask(id); err != nil {
		return err
	}

	report = cloneReport(report)
	rows = cloneRows(rows)
	switch {
	case s.failed:
		return fmt.Errorf("task %s already failed: %w", s.taskID, model.ErrNotValid)
	case s.completed:
		if reflect.DeepEqual(*s.report, report) && reflect.DeepEqual(s.rows, rows) {
			return nil
		}
		return fmt.Errorf("task %s already completed with a different result: %w", s.taskID, model.ErrNotValid)
	}

	s.completed = true
	s.stage = model.StageDone
	s.report = &report
	s.rows = rows
	s.appendLog(model.LogEntry{Source: model.LogSourceOrchestrator, Message: model.MsgTaskFinished})

	s.logger.Infof("Task %s completed: %d processed", s.taskID, report.TotalProcessed)
	return nil
}

// Fail finishes the task with a pipeline failure. Failing again is a no-op.
func (s *Session) Fail(id model.TaskID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkTask(id); err != nil {
		return err
	}

	switch {
	case s.completed:
		return fmt.Errorf("task %s already completed: %w", s.taskID, model.ErrNotValid)
	case s.failed:
		return nil
	}

	if reason == "" {
		reason = "unknown error"
	}
	s.failed = true
	s.failureReason = reason
	s.appendLog(model.LogEntry{Source: model.LogSourceOrchestrator, Message: model.TaskFailedMessage(reason)})

	s.logger.Warningf("Task %s failed: %s", s.taskID, reason)
	return nil
}

// TaskID returns the current task, empty if there is none.
func (s *Session) TaskID() model.TaskID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.taskID
}

// Stage returns the current stage.
func (s *Session) Stage() model.Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stage
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		TaskID:        s.taskID,
		Stage:         s.stage,
		Failed:        s.failed,
		FailureReason: s.failureReason,
		Log:           s.log.newestFirst(),
		Rows:          cloneRows(s.rows),
	}
	if s.report != nil {
		r := cloneReport(*s.report)
		snap.Report = &r
	}

	return snap
}

func (s *Session) terminal() bool { return s.completed || s.failed }

// checkTask must be called with the lock held.
func (s *Session) checkTask(id model.TaskID) error {
	switch {
	case s.taskID == "":
		return fmt.Errorf("no task is being tracked: %w", model.ErrNotValid)
	case id != s.taskID:
		return fmt.Errorf("task %s is not the tracked task %s: %w", id, s.taskID, model.ErrStaleTask)
	}
	return nil
}

func (s *Session) appendLog(e model.LogEntry) {
	if e.Time.IsZero() {
		e.Time = s.now()
	}
	s.log.add(e)
}

func cloneReport(r model.Report) model.Report {
	if r.ActionItems == nil {
		return r
	}

	items := make([]model.ActionItem, len(r.ActionItems))
	for i, it := range r.ActionItems {
		it.Issues = slices.Clone(it.Issues)
		items[i] = it
	}
	r.ActionItems = items
	return r
}

func cloneRows(rows []model.ResultRow) []model.ResultRow {
	if rows == nil {
		return nil
	}

	out := make([]model.ResultRow, len(rows))
	for i, r := range rows {
		r.Record = maps.Clone(r.Record)
		r.Enrichment = maps.Clone(r.Enrichment)
		r.Issues = slices.Clone(r.Issues)
		if r.WebsiteCheck != nil {
			wc := *r.WebsiteCheck
			r.WebsiteCheck = &wc
		}
		out[i] = r
	}
	return out
}
