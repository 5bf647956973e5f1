package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agenciai/agx/internal/log"
	"github.com/agenciai/agx/internal/model"
	"github.com/agenciai/agx/internal/poll"
	"github.com/agenciai/agx/internal/session"
	"github.com/agenciai/agx/internal/storage"
	"github.com/agenciai/agx/internal/taskclient"
)

// ServiceConfig is the configuration for the monitor service.
type ServiceConfig struct {
	Client  taskclient.Client
	Session *session.Session
	// Resolver is optional, the default stage resolver is used when missing.
	Resolver poll.Resolver
	// Interval is the poll interval.
	Interval time.Duration
	// History is optional, when set the tracked tasks are recorded on it.
	History storage.TaskRepository
	Now     func() time.Time
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("client is required")
	}
	if c.Session == nil {
		return fmt.Errorf("session is required")
	}
	if c.Interval == 0 {
		c.Interval = poll.DefaultInterval
	}
	if c.Now == nil {
		c.Now = time.Now
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Monitor"})

	return nil
}

// Service submits tasks and watches them until they finish.
type Service struct {
	client   taskclient.Client
	session  *session.Session
	resolver poll.Resolver
	interval time.Duration
	history  storage.TaskRepository
	now      func() time.Time
	logger   log.Logger
}

// NewService creates a new monitor service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		client:   cfg.Client,
		session:  cfg.Session,
		resolver: cfg.Resolver,
		interval: cfg.Interval,
		history:  cfg.History,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}, nil
}

// Request represents the monitor request parameters.
type Request struct {
	// Upload is the file to submit. When missing TaskID is watched instead.
	Upload *taskclient.Upload
	// TaskID is an already submitted task to watch.
	TaskID model.TaskID
	// Events is optional, it receives every applied poll.
	Events chan<- poll.Event
	// OnStart is optional, it's called once the task is tracked by the session.
	OnStart func(id model.TaskID)
}

func (r Request) validate() error {
	if r.Upload == nil && r.TaskID == "" {
		return fmt.Errorf("upload or task id is required")
	}
	if r.Upload != nil && r.TaskID != "" {
		return fmt.Errorf("upload and task id are mutually exclusive")
	}
	return nil
}

// Response is the result of a monitored task.
type Response struct {
	TaskID  model.TaskID
	Outcome *poll.Outcome
}

// Run submits the upload (if any), starts tracking the task and polls it
// until it finishes. A failed pipeline returns the response together with an
// error wrapping model.ErrPipelineFailure.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w: %w", model.ErrNotValid, err)
	}

	id := req.TaskID
	fileName := ""
	if req.Upload != nil {
		fileName = req.Upload.Name
		s.logger.Debugf("Submitting %s", req.Upload.Name)
		tid, err := s.client.Submit(ctx, *req.Upload)
		if err != nil {
			return nil, fmt.Errorf("could not submit %s: %w", req.Upload.Name, err)
		}
		id = tid
	}

	if err := s.session.StartTask(id); err != nil {
		return nil, fmt.Errorf("could not start task: %w", err)
	}
	rec := s.recordStart(ctx, id, fileName)
	if req.OnStart != nil {
		req.OnStart(id)
	}

	ctrl, err := poll.NewController(poll.ControllerConfig{
		Client:   s.client,
		Session:  s.session,
		Resolver: s.resolver,
		Interval: s.interval,
		Events:   req.Events,
		Logger:   s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create poll controller: %w", err)
	}

	out, err := ctrl.Run(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("could not watch task %s: %w", id, err)
	}
	s.recordFinish(ctx, rec, out)

	resp := &Response{TaskID: id, Outcome: out}
	if out.State == model.TaskStateFailure {
		return resp, fmt.Errorf("task %s: %s: %w", id, out.FailureReason, model.ErrPipelineFailure)
	}

	return resp, nil
}

// recordStart records the task on the history, an already recorded task is
// returned as is. History failures never stop the monitoring.
func (s *Service) recordStart(ctx context.Context, id model.TaskID, fileName string) *model.TaskRecord {
	if s.history == nil {
		return nil
	}

	if fileName == "" {
		rec, err := s.history.GetTask(ctx, id)
		if err == nil {
			return rec
		}
		if !errors.Is(err, model.ErrNotFound) {
			s.logger.Warningf("Could not get task %s from history: %s", id, err)
			return nil
		}
	}

	rec := model.TaskRecord{
		ID:          id,
		FileName:    fileName,
		State:       model.TaskStatePending,
		Stage:       model.StageIdle,
		SubmittedAt: s.now().UTC(),
	}
	if err := s.history.CreateTask(ctx, rec); err != nil {
		s.logger.Warningf("Could not record task %s: %s", id, err)
		return nil
	}

	return &rec
}

func (s *Service) recordFinish(ctx context.Context, rec *model.TaskRecord, out *poll.Outcome) {
	if rec == nil {
		return
	}

	now := s.now().UTC()
	rec.State = out.State
	rec.Stage = s.session.Stage()
	rec.FinishedAt = &now
	rec.FailureReason = out.FailureReason
	rec.Report = out.Report

	if err := s.history.UpdateTask(ctx, *rec); err != nil {
		s.logger.Warningf("Could not record task %s result: %s", rec.ID, err)
	}
}
