package model

import "time"

// Log entry sources.
const (
	LogSourceSystem          = "System"
	LogSourceOrchestrator    = "Orchestrator"
	LogSourceValidationAgent = "Validation Agent"
)

// LogEntry is a single line of the pipeline activity log.
type LogEntry struct {
	Time    time.Time
	Source  string
	Message string
}

// Task lifecycle log messages.
const (
	MsgTaskReceived = "Upload successful. Orchestrator received task."
	MsgTaskFinished = "Pipeline finished successfully."
)

// TaskFailedMessage returns the log message of a failed task.
func TaskFailedMessage(reason string) string {
	return "Pipeline failed: " + reason
}
