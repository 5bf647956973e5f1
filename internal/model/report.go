package model

// ValidationStatus is the validation verdict of a single record.
type ValidationStatus string

const (
	ValidationStatusValid   ValidationStatus = "Valid"
	ValidationStatusFlagged ValidationStatus = "Flagged"
)

// ParseValidationStatus maps the upstream verdict to a validation status.
// Anything that is not "Valid" (e.g. "Needs Review") is flagged.
func ParseValidationStatus(s string) ValidationStatus {
	if s == string(ValidationStatusValid) {
		return ValidationStatusValid
	}
	return ValidationStatusFlagged
}

// WebsiteCheck is the result of checking the website of a record.
type WebsiteCheck struct {
	Valid bool
}

// ResultRow is a single validated record.
type ResultRow struct {
	// Record is the source record as it was ingested (npi, first_name...).
	Record          map[string]any
	Status          ValidationStatus
	ConfidenceScore float64
	Issues          []string
	// Enrichment is optional, nil when the record was not enriched.
	Enrichment map[string]any
	// WebsiteCheck is optional, nil when the record has no website.
	WebsiteCheck *WebsiteCheck
}

// ActionItem is a record that needs human attention.
type ActionItem struct {
	Provider string
	Issues   []string
	Priority string
}

// ServerReport is the report as computed by the remote directory agent.
type ServerReport struct {
	GeneratedAt      string
	TotalProcessed   int
	ValidProviders   int
	FlaggedProviders int
	AccuracyRate     float64
	ActionItems      []ActionItem
}

// Result is the final payload of a successful task.
type Result struct {
	Processed int
	Rows      []ResultRow
	Report    ServerReport
}

// Report is the summary shown once a task finishes.
type Report struct {
	TotalProcessed int
	ValidCount     int
	FlaggedCount   int
	// AccuracyRate is the rate supplied by the remote service in [0, 1], it's
	// never recomputed from the counts.
	AccuracyRate float64
	GeneratedAt  string
	ActionItems  []ActionItem
}

// NewReport derives the report from a final result. Counts come from the rows,
// the accuracy rate and the action items are trusted from the server report.
func NewReport(r Result) Report {
	valid := 0
	for _, row := range r.Rows {
		if row.Status == ValidationStatusValid {
			valid++
		}
	}

	return Report{
		TotalProcessed: r.Processed,
		ValidCount:     valid,
		FlaggedCount:   len(r.Rows) - valid,
		AccuracyRate:   r.Report.AccuracyRate,
		GeneratedAt:    r.Report.GeneratedAt,
		ActionItems:    r.Report.ActionItems,
	}
}
