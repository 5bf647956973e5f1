package model

import "strings"

// TaskID is the opaque identity the remote service returns on submission.
// An empty TaskID means there is no task.
type TaskID string

// TaskState is the coarse status tag reported by the remote service.
type TaskState string

const (
	TaskStatePending  TaskState = "PENDING"
	TaskStateStarted  TaskState = "STARTED"
	TaskStateRunning  TaskState = "RUNNING"
	TaskStateProgress TaskState = "PROGRESS"
	TaskStateSuccess  TaskState = "SUCCESS"
	TaskStateFailure  TaskState = "FAILURE"
)

// ParseTaskState normalizes a raw status tag. Unknown tags are returned upper-cased as-is.
func ParseTaskState(s string) TaskState {
	return TaskState(strings.ToUpper(strings.TrimSpace(s)))
}

// IsTerminal returns true for the states after which polling must stop.
func (s TaskState) IsTerminal() bool {
	return s == TaskStateSuccess || s == TaskStateFailure
}

// IsRunning returns true for the states that mean the pipeline is making progress.
// STARTED is the spelling Celery uses on the first state update.
func (s TaskState) IsRunning() bool {
	switch s {
	case TaskStateStarted, TaskStateRunning, TaskStateProgress:
		return true
	}
	return false
}

// RecordDetail is the per-record progress information reported while validating.
type RecordDetail struct {
	// Identifier is a human readable identifier of the record (e.g. the provider name).
	Identifier string
	// Current is the 1-based index of the record being processed, 0 if unknown.
	Current int
	// Total is the number of records of the task, 0 if unknown.
	Total int
}

// Progress is the free-form progress descriptor reported while the task runs.
type Progress struct {
	// Step is the free text step label (e.g. "Validating Provider").
	Step   string
	Detail *RecordDetail
}

// RawStatus is a single task status as reported by the remote service.
type RawStatus struct {
	TaskID   TaskID
	State    TaskState
	Progress *Progress
	// Result is only set on SUCCESS.
	Result *Result
	// Error is the failure reason, only set on FAILURE.
	Error string
}
