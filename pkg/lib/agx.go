package lib

import (
	"context"
	"fmt"
	"time"

	"github.com/agenciai/agx/internal/chat"
	"github.com/agenciai/agx/internal/conventions"
	"github.com/agenciai/agx/internal/log"
	"github.com/agenciai/agx/internal/session"
	"github.com/agenciai/agx/internal/storage"
	"github.com/agenciai/agx/internal/storage/memory"
	"github.com/agenciai/agx/internal/storage/sqlite"
	"github.com/agenciai/agx/internal/taskclient"
	"github.com/agenciai/agx/internal/taskclient/fake"
	"github.com/agenciai/agx/internal/taskclient/rest"
)

// Config configures the SDK client.
//
// All fields are optional. An empty Config{} talks to the pipeline API on
// its default URL and records the task history on ~/.agx/agx.db.
type Config struct {
	// APIURL is the base URL of the pipeline API.
	// Default: http://localhost:8005.
	APIURL string

	// RequestTimeout is applied to every API request.
	// Default: 30s.
	RequestTimeout time.Duration

	// PollInterval is the time between two task status fetches.
	// Default: 1s.
	PollInterval time.Duration

	// LogCapacity is the max number of activity log entries kept per task.
	// Default: 500.
	LogCapacity int

	// DBPath is the SQLite task history database path.
	// Default: ~/.agx/agx.db. Ignored with [ClientFake], its history is kept in memory.
	DBPath string

	// Client selects the pipeline client.
	// Default: [ClientHTTP]. Set it to [ClientFake] for tests without a running API.
	Client ClientType

	// UserAgent is sent on every API request.
	// Default: agx-sdk.
	UserAgent string

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Client == "" {
		c.Client = ClientHTTP
	}
	if c.Client != ClientHTTP && c.Client != ClientFake {
		return fmt.Errorf("unsupported client type %q", c.Client)
	}

	if c.Client == ClientHTTP && c.DBPath == "" {
		dataDir := conventions.DataDir()
		if dataDir == "" {
			return fmt.Errorf("could not get user home dir")
		}
		c.DBPath = conventions.DBPath(dataDir)
	}

	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval can't be negative")
	}

	if c.UserAgent == "" {
		c.UserAgent = "agx-sdk"
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point to run and follow provider validation
// tasks programmatically.
//
// A Client tracks a single task at a time, like the dashboard does: starting
// a run while another one is being watched supersedes the previous one. The
// chat is always about the tracked task.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	client   taskclient.Client
	history  storage.TaskRepository
	session  *session.Session
	chat     *chat.Session
	interval time.Duration
	logger   log.Logger
	closeFn  func() error
}

// New creates a new SDK client.
//
// The caller must call [Client.Close] when done to release the history
// database. Typically used with defer:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, mapError(fmt.Errorf("invalid config: %w: %w", ErrNotValid, err))
	}

	c := &Client{
		interval: cfg.PollInterval,
		logger:   cfg.Logger,
	}

	switch cfg.Client {
	case ClientFake:
		client, err := fake.NewClient(fake.ClientConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create fake client: %w", err)
		}
		repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create history: %w", err)
		}
		c.client = client
		c.history = repo

	default:
		client, err := rest.NewClient(rest.ClientConfig{
			BaseURL:        cfg.APIURL,
			RequestTimeout: cfg.RequestTimeout,
			UserAgent:      cfg.UserAgent,
			Logger:         cfg.Logger,
		})
		if err != nil {
			return nil, mapError(fmt.Errorf("could not create client: %w: %w", ErrNotValid, err))
		}
		repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
			DBPath: cfg.DBPath,
			Logger: cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create history: %w", err)
		}
		c.client = client
		c.history = repo
		c.closeFn = repo.Close
	}

	chatSession, err := chat.NewSession(chat.SessionConfig{Client: c.client, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create chat session: %w", err)
	}
	sess, err := session.New(session.Config{
		LogCapacity: cfg.LogCapacity,
		TaskScoped:  []session.TaskScoped{chatSession},
		Logger:      cfg.Logger,
	})
	if err != nil {
		return nil, mapError(fmt.Errorf("could not create session: %w: %w", ErrNotValid, err))
	}
	c.chat = chatSession
	c.session = sess

	return c, nil
}

// Close releases resources held by the client, including the history database.
// After Close returns, the client must not be used.
func (c *Client) Close() error {
	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}
