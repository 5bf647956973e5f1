package printer

import "github.com/agenciai/agx/internal/model"

// Status is the point in time status of a task.
type Status struct {
	TaskID model.TaskID
	State  model.TaskState
	Stage  model.Stage
	// Step is the last step reported by the pipeline, if any.
	Step   string
	Detail *model.RecordDetail
	// Error is only set on failed tasks.
	Error string
}

// Printer knows how to print task information in different formats.
type Printer interface {
	PrintStatus(st Status) error
	PrintLog(entries []model.LogEntry) error
	PrintReport(id model.TaskID, report model.Report, rows []model.ResultRow) error
	PrintChat(msgs []model.ChatMessage) error
	PrintHistory(tasks []model.TaskRecord) error
	PrintMessage(msg string) error
}
