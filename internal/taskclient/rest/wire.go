package rest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agenciai/agx/internal/model"
)

type uploadResponse struct {
	Message string `json:"message"`
	FileID  string `json:"file_id"`
	TaskID  string `json:"task_id"`
	Type    string `json:"type"`
}

type statusResponse struct {
	TaskID string          `json:"task_id"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
}

type chatRequest struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Detail any    `json:"detail"`
	Error  string `json:"error"`
}

func (e errorResponse) message() string {
	if e.Error != "" {
		return e.Error
	}
	switch d := e.Detail.(type) {
	case string:
		return d
	case nil:
		return ""
	default:
		b, _ := json.Marshal(d)
		return string(b)
	}
}

// progressJSON is the progress meta reported while the task runs.
type progressJSON struct {
	Step     string       `json:"step"`
	Current  int          `json:"current"`
	Total    int          `json:"total"`
	Provider string       `json:"provider"`
	Details  *detailsJSON `json:"details"`
}

type detailsJSON struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	NPI       string `json:"npi"`
}

func decodeProgress(data json.RawMessage) (*model.Progress, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var p progressJSON
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}

	progress := &model.Progress{Step: strings.TrimSpace(p.Step)}
	if id := p.identifier(); id != "" || p.Current > 0 {
		progress.Detail = &model.RecordDetail{
			Identifier: id,
			Current:    p.Current,
			Total:      p.Total,
		}
	}

	return progress, nil
}

// identifier returns the most human readable identifier of the record being processed.
func (p progressJSON) identifier() string {
	if id := cleanName(p.Provider); id != "" {
		return id
	}
	if p.Details == nil {
		return ""
	}
	if id := cleanName(p.Details.FirstName + " " + p.Details.LastName); id != "" {
		return id
	}
	return strings.TrimSpace(p.Details.NPI)
}

// cleanName drops the missing parts the upstream renders for empty names.
func cleanName(s string) string {
	var parts []string
	for _, f := range strings.Fields(s) {
		switch strings.ToLower(f) {
		case "none", "nan", "null", "undefined":
			continue
		}
		parts = append(parts, f)
	}
	return strings.Join(parts, " ")
}

// failureReason extracts a readable reason from a failed task result. The
// upstream can send a plain string or an exception object.
func failureReason(data json.RawMessage) string {
	if len(data) == 0 || string(data) == "null" {
		return ""
	}

	var s string
	if json.Unmarshal(data, &s) == nil {
		return s
	}

	var obj map[string]any
	if json.Unmarshal(data, &obj) == nil {
		for _, k := range []string{"exc_message", "error", "message", "detail"} {
			switch v := obj[k].(type) {
			case string:
				if v != "" {
					return v
				}
			case []any:
				if len(v) > 0 {
					return fmt.Sprint(v...)
				}
			}
		}
		if t, ok := obj["exc_type"].(string); ok && t != "" {
			return t
		}
	}

	return strings.TrimSpace(string(data))
}

type resultJSON struct {
	Processed int        `json:"processed"`
	Data      []rowJSON  `json:"data"`
	Report    reportJSON `json:"report"`
}

type rowJSON struct {
	Record            map[string]any `json:"record"`
	ValidationStatus  string         `json:"validation_status"`
	ConfidenceScore   float64        `json:"confidence_score"`
	Issues            []string       `json:"issues"`
	Enriched          map[string]any `json:"enriched"`
	WebsiteValidation map[string]any `json:"website_validation"`
}

type reportJSON struct {
	Timestamp        string           `json:"timestamp"`
	TotalProcessed   int              `json:"total_processed"`
	ValidProviders   int              `json:"valid_providers"`
	FlaggedProviders int              `json:"flagged_providers"`
	AccuracyRate     float64          `json:"accuracy_rate"`
	ActionItems      []actionItemJSON `json:"action_items"`
}

type actionItemJSON struct {
	Provider string   `json:"provider"`
	Issues   []string `json:"issues"`
	Priority string   `json:"priority"`
}

func (r resultJSON) toModel() *model.Result {
	rows := make([]model.ResultRow, 0, len(r.Data))
	for _, d := range r.Data {
		rows = append(rows, d.toModel())
	}

	items := make([]model.ActionItem, 0, len(r.Report.ActionItems))
	for _, a := range r.Report.ActionItems {
		items = append(items, model.ActionItem{
			Provider: a.Provider,
			Issues:   a.Issues,
			Priority: a.Priority,
		})
	}

	return &model.Result{
		Processed: r.Processed,
		Rows:      rows,
		Report: model.ServerReport{
			GeneratedAt:      r.Report.Timestamp,
			TotalProcessed:   r.Report.TotalProcessed,
			ValidProviders:   r.Report.ValidProviders,
			FlaggedProviders: r.Report.FlaggedProviders,
			AccuracyRate:     r.Report.AccuracyRate,
			ActionItems:      items,
		},
	}
}

func (r rowJSON) toModel() model.ResultRow {
	row := model.ResultRow{
		Record:          r.Record,
		Status:          model.ParseValidationStatus(r.ValidationStatus),
		ConfidenceScore: min(max(r.ConfidenceScore, 0), 1),
		Issues:          r.Issues,
	}
	if len(r.Enriched) > 0 {
		row.Enrichment = r.Enriched
	}
	if v, ok := r.WebsiteValidation["valid"].(bool); ok {
		row.WebsiteCheck = &model.WebsiteCheck{Valid: v}
	}

	return row
}
