package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/agenciai/agx/internal/model"
)

// TablePrinter prints task information in a human friendly format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintStatus prints the task status.
func (t *TablePrinter) PrintStatus(st Status) error {
	fmt.Fprintf(t.writer, "Task:       %s\n", st.TaskID)
	fmt.Fprintf(t.writer, "State:      %s\n", st.State)
	fmt.Fprintf(t.writer, "Stage:      %s\n", st.Stage)

	if agent := st.Stage.Agent(); agent != "" {
		fmt.Fprintf(t.writer, "Agent:      %s\n", agent)
	}

	if st.Step != "" {
		fmt.Fprintf(t.writer, "Step:       %s\n", st.Step)
	}

	if st.Detail != nil {
		fmt.Fprintf(t.writer, "Record:     %s\n", detailText(*st.Detail))
	}

	if st.Error != "" {
		fmt.Fprintf(t.writer, "Error:      %s\n", st.Error)
	}

	return nil
}

// PrintLog prints log entries, one per line.
func (t *TablePrinter) PrintLog(entries []model.LogEntry) error {
	for _, e := range entries {
		fmt.Fprintf(t.writer, "%s [%s] %s\n", e.Time.Format(time.TimeOnly), e.Source, e.Message)
	}
	return nil
}

// PrintReport prints the summary followed by the validated records.
func (t *TablePrinter) PrintReport(id model.TaskID, report model.Report, rows []model.ResultRow) error {
	fmt.Fprintf(t.writer, "Task:       %s\n", id)
	fmt.Fprintf(t.writer, "Processed:  %d\n", report.TotalProcessed)
	fmt.Fprintf(t.writer, "Valid:      %d\n", report.ValidCount)
	fmt.Fprintf(t.writer, "Flagged:    %d\n", report.FlaggedCount)
	fmt.Fprintf(t.writer, "Accuracy:   %s\n", FormatPercent(report.AccuracyRate))

	if ts, err := time.Parse(time.RFC3339, report.GeneratedAt); err == nil {
		fmt.Fprintf(t.writer, "Generated:  %s (%s)\n", FormatTimestamp(ts), TimeAgo(ts))
	}

	if len(rows) > 0 {
		fmt.Fprintln(t.writer)
		tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PROVIDER\tNPI\tSTATUS\tCONFIDENCE\tISSUES")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\n",
				providerName(r.Record),
				recordValue(r.Record, "npi"),
				r.Status,
				r.ConfidenceScore,
				strings.Join(r.Issues, "; "),
			)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(report.ActionItems) > 0 {
		fmt.Fprintln(t.writer)
		tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ACTION ITEM\tPRIORITY\tISSUES")
		for _, a := range report.ActionItems {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Provider, a.Priority, strings.Join(a.Issues, "; "))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	return nil
}

// PrintChat prints the chat conversation.
func (t *TablePrinter) PrintChat(msgs []model.ChatMessage) error {
	for _, m := range msgs {
		who := "you"
		if m.Role == model.ChatRoleAssistant {
			who = "agent"
		}
		fmt.Fprintf(t.writer, "%-6s %s\n", who+">", m.Text)
	}
	return nil
}

// PrintHistory prints the task history in a table format.
func (t *TablePrinter) PrintHistory(tasks []model.TaskRecord) error {
	if len(tasks) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "TASK\tFILE\tSTATE\tSTAGE\tVALID\tFLAGGED\tACCURACY\tSUBMITTED")
	for _, task := range tasks {
		valid, flagged, accuracy := "-", "-", "-"
		if r := task.Report; r != nil {
			valid = fmt.Sprint(r.ValidCount)
			flagged = fmt.Sprint(r.FlaggedCount)
			accuracy = FormatPercent(r.AccuracyRate)
		}
		file := task.FileName
		if file == "" {
			file = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			task.ID,
			file,
			task.State,
			task.Stage,
			valid,
			flagged,
			accuracy,
			TimeAgo(task.SubmittedAt),
		)
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func detailText(d model.RecordDetail) string {
	switch {
	case d.Total > 0 && d.Identifier != "":
		return fmt.Sprintf("%s (%d/%d)", d.Identifier, d.Current, d.Total)
	case d.Total > 0:
		return fmt.Sprintf("%d/%d", d.Current, d.Total)
	}
	return d.Identifier
}

func providerName(r map[string]any) string {
	if name := recordValue(r, "provider_name"); name != "" {
		return name
	}
	return strings.TrimSpace(recordValue(r, "first_name") + " " + recordValue(r, "last_name"))
}

func recordValue(r map[string]any, k string) string {
	v, ok := r[k]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
