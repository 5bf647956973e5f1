package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrNotValid is returned when a resource or an operation is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrStaleTask is returned when a change targets a task that is no longer the tracked one.
	ErrStaleTask = errors.New("stale task")

	// ErrUpload is returned when the remote service rejects or can't receive a submission.
	ErrUpload = errors.New("upload failed")
	// ErrTransport is returned when a task status fetch fails at the transport level.
	ErrTransport = errors.New("transport failure")
	// ErrChat is returned when a chat message could not be answered.
	ErrChat = errors.New("chat failed")
	// ErrPipelineFailure is returned when the remote pipeline reports a terminal failure.
	ErrPipelineFailure = errors.New("pipeline failure")
)
