package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

// HistoryCommand lists the submitted tasks.
type HistoryCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	limit  int
	format string
}

// NewHistoryCommand returns the history command.
func NewHistoryCommand(rootCmd *RootCommand, app *kingpin.Application) *HistoryCommand {
	c := &HistoryCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("history", "List the submitted tasks, newest first.")
	c.Cmd.Flag("limit", "Max number of tasks listed (0 lists all).").Default("20").IntVar(&c.limit)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c HistoryCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryCommand) Run(ctx context.Context) error {
	repo, closeRepo, err := c.rootCmd.newHistory(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	tasks, err := repo.ListTasks(ctx, c.limit)
	if err != nil {
		return fmt.Errorf("could not list tasks: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintHistory(tasks); err != nil {
		return fmt.Errorf("could not print history: %w", err)
	}

	return nil
}
