package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/agenciai/agx/internal/config"
	"github.com/agenciai/agx/internal/conventions"
	"github.com/agenciai/agx/internal/log"
	"github.com/agenciai/agx/internal/model"
	"github.com/agenciai/agx/internal/printer"
	"github.com/agenciai/agx/internal/storage"
	"github.com/agenciai/agx/internal/storage/memory"
	"github.com/agenciai/agx/internal/storage/sqlite"
	"github.com/agenciai/agx/internal/taskclient"
	"github.com/agenciai/agx/internal/taskclient/fake"
	"github.com/agenciai/agx/internal/taskclient/rest"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"

	// ClientTypeHTTP talks to the remote pipeline API.
	ClientTypeHTTP = "http"
	// ClientTypeFake runs the pipeline in memory.
	ClientTypeFake = "fake"

	formatTable = "table"
	formatJSON  = "json"
)

// Version is the version sent on the requests, set by main.
var Version = "dev"

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug        bool
	NoLog        bool
	NoColor      bool
	LoggerType   string
	APIURL       string
	ConfigPath   string
	ConfigSet    bool
	ClientType   string
	PollInterval time.Duration
	DBPath       string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)
	app.Flag("api-url", "Base URL of the pipeline API.").StringVar(&c.APIURL)
	app.Flag("config", "Path to the YAML config file.").Default(config.DefaultPath()).IsSetByUser(&c.ConfigSet).StringVar(&c.ConfigPath)
	app.Flag("client", "Pipeline client (http talks to the API, fake runs it in memory).").Default(ClientTypeHTTP).EnumVar(&c.ClientType, ClientTypeHTTP, ClientTypeFake)
	app.Flag("poll-interval", "Time between two task status fetches.").DurationVar(&c.PollInterval)

	app.Flag("db-path", "Path to the SQLite task history database.").Default(conventions.DBPath(conventions.DataDir())).StringVar(&c.DBPath)

	return c
}

// Config returns the resolved configuration, the config file is only required
// when set explicitly.
func (r *RootCommand) Config(ctx context.Context) (config.Config, error) {
	repo := config.NewFileYAMLRepository(os.DirFS(filepath.Dir(r.ConfigPath)))
	cfg, err := repo.GetConfig(ctx, filepath.Base(r.ConfigPath), r.ConfigSet)
	if err != nil {
		return config.Config{}, fmt.Errorf("could not load config %s: %w", r.ConfigPath, err)
	}

	return cfg.Merge(config.Overrides{
		APIURL:       r.APIURL,
		PollInterval: r.PollInterval,
	}), nil
}

// newClient returns the pipeline client selected by the flags.
func (r *RootCommand) newClient(cfg config.Config) (taskclient.Client, error) {
	switch r.ClientType {
	case ClientTypeFake:
		return fake.NewClient(fake.ClientConfig{Logger: r.Logger})
	default:
		return rest.NewClient(rest.ClientConfig{
			BaseURL:        cfg.APIURL,
			RequestTimeout: cfg.RequestTimeout,
			UserAgent:      "agx/" + Version,
			Logger:         r.Logger,
		})
	}
}

// newHistory returns the task history repository. Fake tasks only live in
// memory so they get a memory history.
func (r *RootCommand) newHistory(ctx context.Context) (storage.TaskRepository, func(), error) {
	if r.ClientType == ClientTypeFake {
		repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: r.Logger})
		return repo, func() {}, err
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: r.DBPath,
		Logger: r.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create history repository: %w", err)
	}

	return repo, func() { _ = repo.Close() }, nil
}

// lastTaskID is the task id alias of the most recently submitted task.
const lastTaskID = "last"

// resolveTaskID resolves the last task alias using the history.
func (r *RootCommand) resolveTaskID(ctx context.Context, id string) (model.TaskID, error) {
	if id != lastTaskID {
		return model.TaskID(id), nil
	}

	repo, closeRepo, err := r.newHistory(ctx)
	if err != nil {
		return "", err
	}
	defer closeRepo()

	tasks, err := repo.ListTasks(ctx, 1)
	if err != nil {
		return "", fmt.Errorf("could not list tasks: %w", err)
	}
	if len(tasks) == 0 {
		return "", fmt.Errorf("there is no task on the history: %w", model.ErrNotFound)
	}

	return tasks[0].ID, nil
}

func newPrinter(format string, w io.Writer) printer.Printer {
	if format == formatJSON {
		return printer.NewJSONPrinter(w)
	}
	return printer.NewTablePrinter(w)
}
