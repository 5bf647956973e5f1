package simulator

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/agenciai/agx/internal/model"
)

// Answer answers a question about a task using its report.
func (s *Simulator) Answer(id model.TaskID, question string) (string, error) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}
	st := t.current()
	input := t.input
	s.mu.Unlock()

	switch st.State {
	case model.TaskStateFailure:
		return fmt.Sprintf("The pipeline failed (%s), there are no results to talk about.", st.Error), nil
	case model.TaskStateSuccess:
	default:
		return "The pipeline is still running, ask me again when it finishes.", nil
	}

	r := st.Result
	q := strings.ToLower(question)
	switch {
	case r.Processed == 0 && input == InputTypePDF:
		return "No provider records could be extracted from the scanned file.", nil

	case strings.Contains(q, "flag"), strings.Contains(q, "review"), strings.Contains(q, "issue"):
		if r.Report.FlaggedProviders == 0 {
			return "No providers were flagged, all of them passed validation.", nil
		}
		var names []string
		for _, a := range r.Report.ActionItems {
			names = append(names, a.Provider)
		}
		msg := fmt.Sprintf("%d of %d providers were flagged for review.", r.Report.FlaggedProviders, r.Processed)
		if len(names) > 0 {
			msg += " Needing action: " + strings.Join(names, ", ") + "."
		}
		return msg, nil

	case strings.Contains(q, "accura"):
		return fmt.Sprintf("The accuracy rate of this run is %.0f%%.", r.Report.AccuracyRate*100), nil

	case strings.Contains(q, "action"), strings.Contains(q, "priorit"):
		if len(r.Report.ActionItems) == 0 {
			return "There are no action items.", nil
		}
		var items []string
		for _, a := range r.Report.ActionItems {
			items = append(items, fmt.Sprintf("%s (%s): %s", a.Provider, a.Priority, strings.Join(a.Issues, "; ")))
		}
		return "Action items: " + strings.Join(items, " | "), nil

	case strings.Contains(q, "valid"):
		return fmt.Sprintf("%d of %d providers are valid.", r.Report.ValidProviders, r.Processed), nil
	}

	return fmt.Sprintf("I processed %d providers: %d valid and %d flagged, with an accuracy rate of %.0f%%.",
		r.Processed, r.Report.ValidProviders, r.Report.FlaggedProviders, r.Report.AccuracyRate*100), nil
}

var csvHeader = []string{"npi", "first_name", "last_name", "website", "validation_status", "confidence_score", "issues"}

// WriteCSV writes the result rows as the downloadable CSV artifact.
func WriteCSV(w io.Writer, rows []model.ResultRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("could not write csv header: %w", err)
	}

	for _, row := range rows {
		rec := []string{
			recordField(row.Record, "npi"),
			recordField(row.Record, "first_name"),
			recordField(row.Record, "last_name"),
			recordField(row.Record, "website"),
			string(row.Status),
			strconv.FormatFloat(row.ConfidenceScore, 'f', 2, 64),
			strings.Join(row.Issues, "; "),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("could not write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func recordField(r map[string]any, k string) string {
	v, ok := r[k]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
