package lib

import (
	"errors"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/agenciai/agx/internal/model"
	"github.com/agenciai/agx/internal/poll"
)

// ClientType identifies the pipeline client implementation.
type ClientType string

const (
	// ClientHTTP talks to the pipeline REST API.
	ClientHTTP ClientType = "http"

	// ClientFake runs a simulated pipeline in memory (no API needed).
	// Use this for unit testing without infrastructure dependencies.
	ClientFake ClientType = "fake"
)

// TaskState is the status tag reported by the pipeline for a task.
type TaskState string

const (
	TaskStatePending  TaskState = "PENDING"
	TaskStateStarted  TaskState = "STARTED"
	TaskStateRunning  TaskState = "RUNNING"
	TaskStateProgress TaskState = "PROGRESS"
	TaskStateSuccess  TaskState = "SUCCESS"
	TaskStateFailure  TaskState = "FAILURE"
)

// Stage is the coarse pipeline phase of a task.
//
// Stages are ordered and never go backwards for the same task:
//
//	Idle -> Validating -> Enriching -> QualityCheck -> Directory -> Done
type Stage string

const (
	StageIdle         Stage = "Idle"
	StageValidating   Stage = "Validating"
	StageEnriching    Stage = "Enriching"
	StageQualityCheck Stage = "QualityCheck"
	StageDirectory    Stage = "Directory"
	StageDone         Stage = "Done"
)

// ValidationStatus is the verdict of a single provider record.
type ValidationStatus string

const (
	ValidationStatusValid   ValidationStatus = "Valid"
	ValidationStatusFlagged ValidationStatus = "Flagged"
)

// RunOpts configures [Client.Run].
//
// Exactly one of Content or TaskID must be set.
type RunOpts struct {
	// FileName is the name of the uploaded file, its extension selects the
	// ingestion (csv, pdf, png, jpg, jpeg).
	FileName string
	// Content is the file to upload.
	Content io.Reader
	// TaskID is an already submitted task to watch instead of uploading.
	TaskID string
	// OnEvent is optional, it's called for every applied status poll.
	// It must not block.
	OnEvent func(Event)
}

// LogEntry is a line of the task activity log.
type LogEntry struct {
	Time    time.Time
	Source  string
	Message string
}

// Event is the change applied by a single status poll.
type Event struct {
	TaskID string
	State  TaskState
	Stage  Stage
	// Entries are the log entries added by the poll, oldest first.
	Entries []LogEntry
	// Terminal is true on the last event of the task.
	Terminal bool
}

// ActionItem is a provider that needs human attention.
type ActionItem struct {
	Provider string
	Issues   []string
	Priority string
}

// Report is the summary of a finished task.
type Report struct {
	TotalProcessed int
	ValidCount     int
	FlaggedCount   int
	// AccuracyRate is the rate reported by the pipeline, in [0, 1].
	AccuracyRate float64
	GeneratedAt  string
	ActionItems  []ActionItem
}

// ResultRow is a single validated provider record.
type ResultRow struct {
	// Record is the provider record as it was ingested.
	Record          map[string]any
	Status          ValidationStatus
	ConfidenceScore float64
	Issues          []string
	// Enrichment is nil when the record was not enriched.
	Enrichment map[string]any
	// WebsiteValid is nil when the record has no website.
	WebsiteValid *bool
}

// TaskResult is the outcome of a watched task.
type TaskResult struct {
	TaskID string
	State  TaskState
	Stage  Stage
	// Report is only set on successful tasks.
	Report *Report
	Rows   []ResultRow
	// FailureReason is only set on failed tasks.
	FailureReason string
	// Log is the task activity log, newest first.
	Log []LogEntry
}

// TaskStatus is a point in time status of a task.
type TaskStatus struct {
	TaskID string
	State  TaskState
	// Stage is resolved from this status alone.
	Stage Stage
	// Step is the free text step the pipeline is working on, if any.
	Step string
	// Error is only set on failed tasks.
	Error string
	// Report is only set on successful tasks.
	Report *Report
}

// TaskRecord is a task of the history.
type TaskRecord struct {
	TaskID string
	// FileName is empty for tasks watched by id.
	FileName    string
	State       TaskState
	Stage       Stage
	SubmittedAt time.Time
	// FinishedAt is nil while the task was not seen finishing.
	FinishedAt    *time.Time
	FailureReason string
	// Report has no action items, only the summary is kept.
	Report *Report
}

// Sentinel errors for use with errors.Is.
var (
	// ErrNotFound is returned when a task does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotValid is returned when the input or the operation is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrAlreadyExists is returned when a task is already on the history.
	ErrAlreadyExists = errors.New("already exists")
	// ErrPipelineFailure is returned when the pipeline reports a failed task.
	ErrPipelineFailure = errors.New("pipeline failure")
	// ErrUnavailable is returned when the pipeline API can't be reached or rejects a request.
	ErrUnavailable = errors.New("unavailable")
	// ErrSuperseded is returned by [Client.Run] when another run started tracking a task.
	ErrSuperseded = errors.New("task superseded")
)

func fromInternalStage(s model.Stage) Stage {
	return Stage(s.String())
}

func fromInternalLog(entries []model.LogEntry) []LogEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]LogEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, LogEntry{Time: e.Time, Source: e.Source, Message: e.Message})
	}
	return out
}

func fromInternalEvent(ev poll.Event) Event {
	return Event{
		TaskID:   string(ev.TaskID),
		State:    TaskState(ev.State),
		Stage:    fromInternalStage(ev.Stage),
		Entries:  fromInternalLog(ev.Entries),
		Terminal: ev.Terminal,
	}
}

func fromInternalReport(r *model.Report) *Report {
	if r == nil {
		return nil
	}

	items := make([]ActionItem, 0, len(r.ActionItems))
	for _, a := range r.ActionItems {
		items = append(items, ActionItem{Provider: a.Provider, Issues: slices.Clone(a.Issues), Priority: a.Priority})
	}

	return &Report{
		TotalProcessed: r.TotalProcessed,
		ValidCount:     r.ValidCount,
		FlaggedCount:   r.FlaggedCount,
		AccuracyRate:   r.AccuracyRate,
		GeneratedAt:    r.GeneratedAt,
		ActionItems:    items,
	}
}

func fromInternalRows(rows []model.ResultRow) []ResultRow {
	out := make([]ResultRow, 0, len(rows))
	for _, r := range rows {
		row := ResultRow{
			Record:          maps.Clone(r.Record),
			Status:          ValidationStatus(r.Status),
			ConfidenceScore: r.ConfidenceScore,
			Issues:          slices.Clone(r.Issues),
			Enrichment:      maps.Clone(r.Enrichment),
		}
		if r.WebsiteCheck != nil {
			v := r.WebsiteCheck.Valid
			row.WebsiteValid = &v
		}
		out = append(out, row)
	}
	return out
}

func fromInternalRecord(r model.TaskRecord) TaskRecord {
	return TaskRecord{
		TaskID:        string(r.ID),
		FileName:      r.FileName,
		State:         TaskState(r.State),
		Stage:         fromInternalStage(r.Stage),
		SubmittedAt:   r.SubmittedAt,
		FinishedAt:    r.FinishedAt,
		FailureReason: r.FailureReason,
		Report:        fromInternalReport(r.Report),
	}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case isInternalError(err, model.ErrNotFound):
		return joinErrors(err, ErrNotFound)
	case isInternalError(err, model.ErrAlreadyExists):
		return joinErrors(err, ErrAlreadyExists)
	case isInternalError(err, model.ErrNotValid):
		return joinErrors(err, ErrNotValid)
	case isInternalError(err, model.ErrPipelineFailure):
		return joinErrors(err, ErrPipelineFailure)
	case isInternalError(err, poll.ErrSuperseded):
		return joinErrors(err, ErrSuperseded)
	case isInternalError(err, model.ErrUpload),
		isInternalError(err, model.ErrTransport),
		isInternalError(err, model.ErrChat):
		return joinErrors(err, ErrUnavailable)
	default:
		return err
	}
}

// isInternalError uses errors.Is so multi-wrapped (%w: %w) errors are also matched.
func isInternalError(err, target error) bool {
	return errors.Is(err, target)
}

func joinErrors(original, sentinel error) error {
	return &mappedError{original: original, sentinel: sentinel}
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }
