// Package fake has a task client that runs the pipeline in-process with the
// simulator, no remote service is needed.
package fake

import (
	"context"
	"fmt"
	"io"

	"github.com/agenciai/agx/internal/log"
	"github.com/agenciai/agx/internal/model"
	"github.com/agenciai/agx/internal/simulator"
	"github.com/agenciai/agx/internal/taskclient"
)

// ClientConfig is the configuration for the fake client.
type ClientConfig struct {
	// Simulator is optional, a new one is created when missing.
	Simulator *simulator.Simulator
	Logger    log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "taskclient.Fake"})

	if c.Simulator == nil {
		s, err := simulator.New(simulator.Config{Logger: c.Logger})
		if err != nil {
			return fmt.Errorf("could not create simulator: %w", err)
		}
		c.Simulator = s
	}

	return nil
}

// Client is a fake implementation of the taskclient.Client interface.
type Client struct {
	sim    *simulator.Simulator
	logger log.Logger
}

var _ taskclient.Client = &Client{}

// NewClient creates a new fake client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		sim:    cfg.Simulator,
		logger: cfg.Logger,
	}, nil
}

// Submit creates a simulated task for the upload.
func (c *Client) Submit(ctx context.Context, u taskclient.Upload) (model.TaskID, error) {
	if u.Content == nil {
		return "", fmt.Errorf("%w: file content is required", model.ErrUpload)
	}

	data, err := io.ReadAll(u.Content)
	if err != nil {
		return "", fmt.Errorf("%w: could not read %s: %w", model.ErrUpload, u.Name, err)
	}

	id, _, err := c.sim.Submit(u.Name, data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrUpload, err)
	}

	return id, nil
}

// FetchStatus advances the simulated task one step.
func (c *Client) FetchStatus(ctx context.Context, id model.TaskID) (*model.RawStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrTransport, err)
	}

	st, err := c.sim.Advance(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrTransport, err)
	}

	return st, nil
}

// SendChat answers with the simulator assistant.
func (c *Client) SendChat(ctx context.Context, id model.TaskID, text string) (string, error) {
	resp, err := c.sim.Answer(id, text)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrChat, err)
	}

	return resp, nil
}

// DownloadURL returns an in-memory location, fake tasks have no downloadable artifact.
func (c *Client) DownloadURL(id model.TaskID) string {
	return "memory://download/" + string(id)
}
