package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/agenciai/agx/internal/app/download"
	"github.com/agenciai/agx/internal/conventions"
	"github.com/agenciai/agx/internal/printer"
)

// DownloadCommand downloads the results CSV of a finished task.
type DownloadCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID  string
	output  string
	save    bool
	urlOnly bool
}

// NewDownloadCommand returns the download command.
func NewDownloadCommand(rootCmd *RootCommand, app *kingpin.Application) *DownloadCommand {
	c := &DownloadCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("download", "Download the results CSV of a finished task.")
	c.Cmd.Arg("task-id", "Task ID, \"last\" for the most recently submitted task.").Required().StringVar(&c.taskID)
	c.Cmd.Flag("output", "Destination file, stdout when missing.").Short('o').StringVar(&c.output)
	c.Cmd.Flag("save", "Save the file on the agx downloads directory.").BoolVar(&c.save)
	c.Cmd.Flag("url-only", "Only print the download URL.").BoolVar(&c.urlOnly)

	return c
}

func (c DownloadCommand) Name() string { return c.Cmd.FullCommand() }

func (c DownloadCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cfg, err := c.rootCmd.Config(ctx)
	if err != nil {
		return err
	}

	client, err := c.rootCmd.newClient(cfg)
	if err != nil {
		return fmt.Errorf("could not create client: %w", err)
	}

	id, err := c.rootCmd.resolveTaskID(ctx, c.taskID)
	if err != nil {
		return err
	}
	if c.urlOnly {
		return printer.NewTablePrinter(c.rootCmd.Stdout).PrintMessage(client.DownloadURL(id))
	}

	svc, err := download.NewService(download.ServiceConfig{
		Client:    client,
		UserAgent: "agx/" + Version,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	if c.save && c.output == "" {
		dataDir := conventions.DataDir()
		if dataDir == "" {
			return fmt.Errorf("could not get user home dir")
		}
		c.output = conventions.DownloadPath(dataDir, string(id))
		if err := os.MkdirAll(filepath.Dir(c.output), 0o755); err != nil {
			return fmt.Errorf("could not create downloads directory: %w", err)
		}
	}

	var dst io.Writer = c.rootCmd.Stdout
	var progress io.Writer
	if c.output != "" {
		f, err := os.Create(c.output)
		if err != nil {
			return fmt.Errorf("could not create %s: %w", c.output, err)
		}
		defer f.Close()
		dst = f
		progress = c.rootCmd.Stderr
	}

	resp, err := svc.Run(ctx, download.Request{
		TaskID:   id,
		Dst:      dst,
		Progress: progress,
	})
	if err != nil {
		return fmt.Errorf("could not download task results: %w", err)
	}

	if c.output != "" {
		return printer.NewTablePrinter(c.rootCmd.Stdout).PrintMessage(
			fmt.Sprintf("Saved %s to %s", printer.FormatBytes(resp.Bytes), c.output))
	}

	return nil
}
