package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alecthomas/kingpin/v2"

	"github.com/agenciai/agx/internal/app/monitor"
	"github.com/agenciai/agx/internal/chat"
	"github.com/agenciai/agx/internal/model"
	"github.com/agenciai/agx/internal/poll"
	"github.com/agenciai/agx/internal/printer"
	"github.com/agenciai/agx/internal/session"
	"github.com/agenciai/agx/internal/taskclient"
)

// RunCommand uploads a file and watches the pipeline until it finishes.
type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	file   string
	chat   bool
	format string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Upload a providers file (CSV, PDF or image) and watch the validation pipeline.")
	c.Cmd.Arg("file", "File to upload.").Required().StringVar(&c.file)
	c.Cmd.Flag("chat", "Chat about the results once the pipeline finishes.").BoolVar(&c.chat)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	f, err := os.Open(c.file)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", c.file, err)
	}
	defer f.Close()

	return watchTask(ctx, c.rootCmd, watchOptions{
		upload: &taskclient.Upload{Name: filepath.Base(c.file), Content: f},
		chat:   c.chat,
		format: c.format,
	})
}

// WatchCommand watches an already submitted task until it finishes.
type WatchCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID string
	chat   bool
	format string
}

// NewWatchCommand returns the watch command.
func NewWatchCommand(rootCmd *RootCommand, app *kingpin.Application) *WatchCommand {
	c := &WatchCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("watch", "Watch a submitted task until it finishes.")
	c.Cmd.Arg("task-id", "Task ID, \"last\" for the most recently submitted task.").Required().StringVar(&c.taskID)
	c.Cmd.Flag("chat", "Chat about the results once the pipeline finishes.").BoolVar(&c.chat)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c WatchCommand) Name() string { return c.Cmd.FullCommand() }

func (c WatchCommand) Run(ctx context.Context) error {
	id, err := c.rootCmd.resolveTaskID(ctx, c.taskID)
	if err != nil {
		return err
	}

	return watchTask(ctx, c.rootCmd, watchOptions{
		taskID: id,
		chat:   c.chat,
		format: c.format,
	})
}

type watchOptions struct {
	upload *taskclient.Upload
	taskID model.TaskID
	chat   bool
	format string
}

func watchTask(ctx context.Context, rootCmd *RootCommand, opts watchOptions) error {
	logger := rootCmd.Logger

	cfg, err := rootCmd.Config(ctx)
	if err != nil {
		return err
	}

	client, err := rootCmd.newClient(cfg)
	if err != nil {
		return fmt.Errorf("could not create client: %w", err)
	}

	chatSession, err := chat.NewSession(chat.SessionConfig{Client: client, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create chat session: %w", err)
	}

	sess, err := session.New(session.Config{
		LogCapacity: cfg.LogCapacity,
		TaskScoped:  []session.TaskScoped{chatSession},
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create session: %w", err)
	}

	history, closeHistory, err := rootCmd.newHistory(ctx)
	if err != nil {
		return err
	}
	defer closeHistory()

	svc, err := monitor.NewService(monitor.ServiceConfig{
		Client:   client,
		Session:  sess,
		Interval: cfg.PollInterval,
		History:  history,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	p := newPrinter(opts.format, rootCmd.Stdout)

	// Print the activity while polling.
	events := make(chan poll.Event)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			if err := p.PrintLog(ev.Entries); err != nil {
				logger.Warningf("Could not print activity: %s", err)
			}
		}
	}()

	resp, err := svc.Run(ctx, monitor.Request{
		Upload: opts.upload,
		TaskID: opts.taskID,
		Events: events,
		OnStart: func(id model.TaskID) {
			// The received entry is logged by the session before any poll.
			snap := sess.Snapshot()
			if err := p.PrintLog(snap.Log); err != nil {
				logger.Warningf("Could not print activity: %s", err)
			}
		},
	})
	close(events)
	wg.Wait()

	if errors.Is(err, model.ErrPipelineFailure) {
		return fmt.Errorf("pipeline failed: %s: %w", resp.Outcome.FailureReason, model.ErrPipelineFailure)
	}
	if err != nil {
		return err
	}

	if err := p.PrintReport(resp.TaskID, *resp.Outcome.Report, resp.Outcome.Rows); err != nil {
		return fmt.Errorf("could not print report: %w", err)
	}

	if !opts.chat {
		return nil
	}

	return chatLoop(ctx, rootCmd, chatSession, resp.TaskID, p)
}

// chatLoop reads questions from the standard input, one per line, until EOF
// or an "exit" line.
func chatLoop(ctx context.Context, rootCmd *RootCommand, cs *chat.Session, id model.TaskID, p printer.Printer) error {
	if err := p.PrintChat([]model.ChatMessage{{Role: model.ChatRoleAssistant, Text: chat.Greeting}}); err != nil {
		return err
	}

	scanner := bufio.NewScanner(rootCmd.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			return nil
		}

		reply, err := cs.Send(ctx, id, text)
		if err != nil {
			return fmt.Errorf("could not send message: %w", err)
		}
		if err := p.PrintChat([]model.ChatMessage{*reply}); err != nil {
			return err
		}
	}

	return scanner.Err()
}
