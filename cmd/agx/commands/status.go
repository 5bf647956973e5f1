package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/agenciai/agx/internal/app/status"
	"github.com/agenciai/agx/internal/printer"
)

type StatusCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID string
	format string
}

// NewStatusCommand returns the status command.
func NewStatusCommand(rootCmd *RootCommand, app *kingpin.Application) *StatusCommand {
	c := &StatusCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("status", "Get the current status of a task.")
	c.Cmd.Arg("task-id", "Task ID, \"last\" for the most recently submitted task.").Required().StringVar(&c.taskID)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c StatusCommand) Name() string { return c.Cmd.FullCommand() }

func (c StatusCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cfg, err := c.rootCmd.Config(ctx)
	if err != nil {
		return err
	}

	client, err := c.rootCmd.newClient(cfg)
	if err != nil {
		return fmt.Errorf("could not create client: %w", err)
	}

	svc, err := status.NewService(status.ServiceConfig{
		Client: client,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	id, err := c.rootCmd.resolveTaskID(ctx, c.taskID)
	if err != nil {
		return err
	}

	resp, err := svc.Run(ctx, status.Request{TaskID: id})
	if err != nil {
		return fmt.Errorf("could not get task status: %w", err)
	}

	st := printer.Status{
		TaskID: resp.Status.TaskID,
		State:  resp.Status.State,
		Stage:  resp.Stage,
		Error:  resp.Status.Error,
	}
	if pr := resp.Status.Progress; pr != nil {
		st.Step = pr.Step
		st.Detail = pr.Detail
	}

	p := newPrinter(c.format, c.rootCmd.Stdout)
	if err := p.PrintStatus(st); err != nil {
		return fmt.Errorf("could not print status: %w", err)
	}

	if resp.Report != nil {
		if err := p.PrintReport(resp.Status.TaskID, *resp.Report, resp.Status.Result.Rows); err != nil {
			return fmt.Errorf("could not print report: %w", err)
		}
	}

	return nil
}
