package model

import (
	"fmt"
	"time"
)

// TaskRecord is the history entry of a submitted task.
type TaskRecord struct {
	ID TaskID
	// FileName is the submitted file, empty for tasks watched by id.
	FileName    string
	State       TaskState
	Stage       Stage
	SubmittedAt time.Time
	FinishedAt  *time.Time
	// FailureReason is only set on failed tasks.
	FailureReason string
	// Report is only set on successful tasks. Action items are not kept.
	Report *Report
}

// Validate validates the record.
func (r TaskRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if r.SubmittedAt.IsZero() {
		return fmt.Errorf("submitted at is required")
	}
	if !r.Stage.Valid() {
		return fmt.Errorf("stage %d is not valid", r.Stage)
	}
	if r.FinishedAt != nil && !r.State.IsTerminal() {
		return fmt.Errorf("only finished tasks can have a finish time")
	}
	return nil
}
