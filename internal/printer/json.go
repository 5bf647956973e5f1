package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/agenciai/agx/internal/model"
)

// JSONPrinter prints task information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

type detailOutput struct {
	Identifier string `json:"identifier,omitempty"`
	Current    int    `json:"current,omitempty"`
	Total      int    `json:"total,omitempty"`
}

type statusOutput struct {
	TaskID string        `json:"task_id"`
	State  string        `json:"state"`
	Stage  string        `json:"stage"`
	Agent  string        `json:"agent,omitempty"`
	Step   string        `json:"step,omitempty"`
	Detail *detailOutput `json:"detail,omitempty"`
	Error  string        `json:"error,omitempty"`
}

type logEntryOutput struct {
	Time    time.Time `json:"time"`
	Source  string    `json:"source"`
	Message string    `json:"message"`
}

type rowOutput struct {
	Record          map[string]any `json:"record"`
	Status          string         `json:"validation_status"`
	ConfidenceScore float64        `json:"confidence_score"`
	Issues          []string       `json:"issues"`
	Enrichment      map[string]any `json:"enriched,omitempty"`
	WebsiteValid    *bool          `json:"website_valid,omitempty"`
}

type actionItemOutput struct {
	Provider string   `json:"provider"`
	Issues   []string `json:"issues"`
	Priority string   `json:"priority"`
}

type reportOutput struct {
	TaskID         string             `json:"task_id"`
	TotalProcessed int                `json:"total_processed"`
	ValidCount     int                `json:"valid_providers"`
	FlaggedCount   int                `json:"flagged_providers"`
	AccuracyRate   float64            `json:"accuracy_rate"`
	GeneratedAt    string             `json:"generated_at,omitempty"`
	ActionItems    []actionItemOutput `json:"action_items"`
	Rows           []rowOutput        `json:"data"`
}

type chatMessageOutput struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type historyItem struct {
	TaskID        string     `json:"task_id"`
	FileName      string     `json:"file_name,omitempty"`
	State         string     `json:"state"`
	Stage         string     `json:"stage"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	FailureReason string     `json:"failure_reason,omitempty"`
	ValidCount    *int       `json:"valid_providers,omitempty"`
	FlaggedCount  *int       `json:"flagged_providers,omitempty"`
	AccuracyRate  *float64   `json:"accuracy_rate,omitempty"`
}

type messageOutput struct {
	Message string `json:"message"`
}

// PrintStatus prints the task status in JSON format.
func (j *JSONPrinter) PrintStatus(st Status) error {
	output := statusOutput{
		TaskID: string(st.TaskID),
		State:  string(st.State),
		Stage:  st.Stage.String(),
		Agent:  st.Stage.Agent(),
		Step:   st.Step,
		Error:  st.Error,
	}
	if st.Detail != nil {
		output.Detail = &detailOutput{
			Identifier: st.Detail.Identifier,
			Current:    st.Detail.Current,
			Total:      st.Detail.Total,
		}
	}

	return j.encode(output)
}

// PrintLog prints log entries as JSON lines, so they can be streamed.
func (j *JSONPrinter) PrintLog(entries []model.LogEntry) error {
	enc := json.NewEncoder(j.writer)
	for _, e := range entries {
		err := enc.Encode(logEntryOutput{Time: e.Time.UTC(), Source: e.Source, Message: e.Message})
		if err != nil {
			return err
		}
	}
	return nil
}

// PrintReport prints the report and the validated records in JSON format.
func (j *JSONPrinter) PrintReport(id model.TaskID, report model.Report, rows []model.ResultRow) error {
	output := reportOutput{
		TaskID:         string(id),
		TotalProcessed: report.TotalProcessed,
		ValidCount:     report.ValidCount,
		FlaggedCount:   report.FlaggedCount,
		AccuracyRate:   report.AccuracyRate,
		GeneratedAt:    report.GeneratedAt,
		ActionItems:    make([]actionItemOutput, 0, len(report.ActionItems)),
		Rows:           make([]rowOutput, 0, len(rows)),
	}

	for _, a := range report.ActionItems {
		output.ActionItems = append(output.ActionItems, actionItemOutput{Provider: a.Provider, Issues: a.Issues, Priority: a.Priority})
	}

	for _, r := range rows {
		ro := rowOutput{
			Record:          r.Record,
			Status:          string(r.Status),
			ConfidenceScore: r.ConfidenceScore,
			Issues:          r.Issues,
			Enrichment:      r.Enrichment,
		}
		if r.WebsiteCheck != nil {
			valid := r.WebsiteCheck.Valid
			ro.WebsiteValid = &valid
		}
		output.Rows = append(output.Rows, ro)
	}

	return j.encode(output)
}

// PrintChat prints the chat conversation in JSON format.
func (j *JSONPrinter) PrintChat(msgs []model.ChatMessage) error {
	output := make([]chatMessageOutput, 0, len(msgs))
	for _, m := range msgs {
		output = append(output, chatMessageOutput{Role: string(m.Role), Text: m.Text})
	}
	return j.encode(output)
}

// PrintHistory prints the task history in JSON format.
func (j *JSONPrinter) PrintHistory(tasks []model.TaskRecord) error {
	items := make([]historyItem, 0, len(tasks))
	for _, t := range tasks {
		item := historyItem{
			TaskID:        string(t.ID),
			FileName:      t.FileName,
			State:         string(t.State),
			Stage:         t.Stage.String(),
			SubmittedAt:   t.SubmittedAt.UTC(),
			FailureReason: t.FailureReason,
		}
		if t.FinishedAt != nil {
			f := t.FinishedAt.UTC()
			item.FinishedAt = &f
		}
		if r := t.Report; r != nil {
			valid, flagged, accuracy := r.ValidCount, r.FlaggedCount, r.AccuracyRate
			item.ValidCount = &valid
			item.FlaggedCount = &flagged
			item.AccuracyRate = &accuracy
		}
		items = append(items, item)
	}

	return j.encode(items)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
