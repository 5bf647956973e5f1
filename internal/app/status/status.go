package status

import (
	"context"
	"fmt"

	"github.com/agenciai/agx/internal/log"
	"github.com/agenciai/agx/internal/model"
	"github.com/agenciai/agx/internal/poll"
	"github.com/agenciai/agx/internal/stage"
	"github.com/agenciai/agx/internal/taskclient"
)

// ServiceConfig is the configuration for the status service.
type ServiceConfig struct {
	Client   taskclient.Client
	Resolver poll.Resolver
	Logger   log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("client is required")
	}

	if c.Resolver == nil {
		c.Resolver = stage.Default
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service retrieves the current status of a task.
type Service struct {
	client   taskclient.Client
	resolver poll.Resolver
	logger   log.Logger
}

// NewService creates a new status service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		client:   cfg.Client,
		resolver: cfg.Resolver,
		logger:   cfg.Logger,
	}, nil
}

// Request represents the status request parameters.
type Request struct {
	TaskID model.TaskID
}

// Response is the status of a task.
type Response struct {
	Status *model.RawStatus
	// Stage is the stage resolved from the status alone.
	Stage model.Stage
	// Report is only set when the task finished successfully.
	Report *model.Report
}

// Run fetches the task status once and resolves its stage.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if req.TaskID == "" {
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}
	s.logger.Debugf("getting status for task: %s", req.TaskID)

	raw, err := s.client.FetchStatus(ctx, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("could not get task status: %w", err)
	}

	st, _ := s.resolver.Resolve(model.StageIdle, *raw)
	resp := &Response{Status: raw, Stage: st}
	if raw.State == model.TaskStateSuccess && raw.Result != nil {
		r := model.NewReport(*raw.Result)
		resp.Report = &r
	}

	return resp, nil
}
