package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/agenciai/agx/internal/chat"
	"github.com/agenciai/agx/internal/model"
)

// ChatCommand asks questions about the results of a finished task.
type ChatCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID  string
	message []string
	format  string
}

// NewChatCommand returns the chat command.
func NewChatCommand(rootCmd *RootCommand, app *kingpin.Application) *ChatCommand {
	c := &ChatCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("chat", "Chat about the results of a task. Without message the questions are read from stdin.")
	c.Cmd.Arg("task-id", "Task ID, \"last\" for the most recently submitted task.").Required().StringVar(&c.taskID)
	c.Cmd.Arg("message", "Question to ask.").StringsVar(&c.message)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c ChatCommand) Name() string { return c.Cmd.FullCommand() }

func (c ChatCommand) Run(ctx context.Context) error {
	cfg, err := c.rootCmd.Config(ctx)
	if err != nil {
		return err
	}

	client, err := c.rootCmd.newClient(cfg)
	if err != nil {
		return fmt.Errorf("could not create client: %w", err)
	}

	cs, err := chat.NewSession(chat.SessionConfig{Client: client, Logger: c.rootCmd.Logger})
	if err != nil {
		return fmt.Errorf("could not create chat session: %w", err)
	}
	id, err := c.rootCmd.resolveTaskID(ctx, c.taskID)
	if err != nil {
		return err
	}
	cs.Reset(id)

	p := newPrinter(c.format, c.rootCmd.Stdout)

	if len(c.message) == 0 {
		return chatLoop(ctx, c.rootCmd, cs, id, p)
	}

	reply, err := cs.Send(ctx, id, strings.Join(c.message, " "))
	if err != nil {
		return fmt.Errorf("could not send message: %w", err)
	}

	return p.PrintChat([]model.ChatMessage{*reply})
}
