package devserver

import (
	"github.com/agenciai/agx/internal/model"
)

// Upstream wording of a flagged record.
const needsReview = "Needs Review"

type chatRequest struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

type statusResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Result any    `json:"result"`
}

type progressMeta struct {
	Step     string `json:"step"`
	Current  int    `json:"current,omitempty"`
	Total    int    `json:"total,omitempty"`
	Provider string `json:"provider,omitempty"`
}

type failureMeta struct {
	ExcType    string   `json:"exc_type"`
	ExcMessage []string `json:"exc_message"`
}

type resultPayload struct {
	Processed int          `json:"processed"`
	Data      []rowPayload `json:"data"`
	Report    reportJSON   `json:"report"`
}

type rowPayload struct {
	Record            map[string]any  `json:"record"`
	ValidationStatus  string          `json:"validation_status"`
	ConfidenceScore   float64         `json:"confidence_score"`
	Issues            []string        `json:"issues"`
	APIData           map[string]any  `json:"api_data"`
	WebsiteValidation map[string]bool `json:"website_validation,omitempty"`
	Enriched          map[string]any  `json:"enriched"`
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

// newStatusResponse renders a status the way the pipeline result backend does.
func newStatusResponse(id model.TaskID, st model.RawStatus) statusResponse {
	resp := statusResponse{TaskID: string(id), Status: string(st.State)}

	switch {
	case st.State == model.TaskStateSuccess && st.Result != nil:
		resp.Result = newResultPayload(*st.Result)
	case st.State == model.TaskStateFailure:
		resp.Result = failureMeta{ExcType: "Exception", ExcMessage: []string{st.Error}}
	case st.Progress != nil:
		meta := progressMeta{Step: st.Progress.Step}
		if d := st.Progress.Detail; d != nil {
			meta.Current = d.Current
			meta.Total = d.Total
			meta.Provider = d.Identifier
		}
		resp.Result = meta
	}

	return resp
}

func newResultPayload(r model.Result) resultPayload {
	p := resultPayload{
		Processed: r.Processed,
		Data:      make([]rowPayload, 0, len(r.Rows)),
		Report: reportJSON{
			Timestamp:        r.Report.GeneratedAt,
			TotalProcessed:   r.Report.TotalProcessed,
			ValidProviders:   r.Report.ValidProviders,
			FlaggedProviders: r.Report.FlaggedProviders,
			AccuracyRate:     r.Report.AccuracyRate,
			ActionItems:      make([]actionItemJSON, 0, len(r.Report.ActionItems)),
		},
	}

	for _, row := range r.Rows {
		status := string(row.Status)
		if row.Status == model.ValidationStatusFlagged {
			status = needsReview
		}

		rp := rowPayload{
			Record:           row.Record,
			ValidationStatus: status,
			ConfidenceScore:  row.ConfidenceScore,
			Issues:           row.Issues,
			APIData:          map[string]any{"valid": row.Enrichment != nil},
			Enriched:         row.Enrichment,
		}
		if row.WebsiteCheck != nil {
			rp.WebsiteValidation = map[string]bool{"valid": row.WebsiteCheck.Valid}
		}
		p.Data = append(p.Data, rp)
	}

	for _, a := range r.Report.ActionItems {
		p.Report.ActionItems = append(p.Report.ActionItems, actionItemJSON{Provider: a.Provider, Issues: a.Issues, Priority: a.Priority})
	}

	return p
}
