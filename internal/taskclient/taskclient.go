// Package taskclient has the clients of the remote pipeline service.
package taskclient

import (
	"context"
	"io"

	"github.com/agenciai/agx/internal/model"
)

// Upload is a data file submitted to the pipeline.
type Upload struct {
	// Name is the file name, the remote service uses its extension to pick the ingestion.
	Name    string
	Content io.Reader
}

// Client is the remote pipeline service.
//
//go:generate mockery --case underscore --output taskclientmock --outpkg taskclientmock --name Client
type Client interface {
	// Submit uploads a data file and returns the task processing it.
	Submit(ctx context.Context, u Upload) (model.TaskID, error)
	// FetchStatus returns the current status of a task.
	FetchStatus(ctx context.Context, id model.TaskID) (*model.RawStatus, error)
	// SendChat asks a question about the task results and returns the answer.
	SendChat(ctx context.Context, id model.TaskID, text string) (string, error)
	// DownloadURL returns the location of the task results artifact.
	DownloadURL(id model.TaskID) string
}
