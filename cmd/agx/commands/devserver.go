package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gin-gonic/gin"

	"github.com/agenciai/agx/internal/devserver"
)

// DevServerCommand serves the pipeline API backed by the in-memory simulator.
type DevServerCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	listen string
}

// NewDevServerCommand returns the dev-server command.
func NewDevServerCommand(rootCmd *RootCommand, app *kingpin.Application) *DevServerCommand {
	c := &DevServerCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("dev-server", "Serve a simulated pipeline API for local development.")
	c.Cmd.Flag("listen", "Listen address.").Default(":8005").StringVar(&c.listen)

	return c
}

func (c DevServerCommand) Name() string { return c.Cmd.FullCommand() }

func (c DevServerCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	if !c.rootCmd.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	handler, err := devserver.NewServer(devserver.ServerConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create server: %w", err)
	}

	srv := &http.Server{
		Addr:              c.listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", c.listen)
		errC <- srv.ListenAndServe()
	}()

	select {
	case err := <-errC:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Infof("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not shut down server: %w", err)
	}

	return nil
}
