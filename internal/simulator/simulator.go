// Package simulator is an in-memory simulation of the remote validation
// pipeline. Every status read advances a task one step through the same step
// labels the real pipeline reports, so a full run can be watched offline.
package simulator

import (
	"crypto/rand"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/agenciai/agx/internal/log"
	"github.com/agenciai/agx/internal/model"
)

// Step labels reported by the pipeline.
const (
	StepInitializing = "Initializing Agents"
	StepOCR          = "OCR Processing (Scanning PDF)..."
	StepExtracting   = "Extracting Data from OCR Text..."
	StepMapping      = "Mapping CSV Columns..."
	StepValidating   = "Validating Provider"
	StepEnriching    = "Enriching Provider Data..."
	StepQA           = "QA Scoring..."
	StepDirectory    = "Generating Directory Report..."
)

// AccuracyRate is the accuracy the directory agent reports.
const AccuracyRate = 0.95

// InputType is the kind of file submitted.
type InputType string

const (
	InputTypeCSV InputType = "csv"
	InputTypePDF InputType = "pdf"
)

// InputTypeFromName returns the input type of a file from its extension.
func InputTypeFromName(name string) (InputType, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch ext {
	case "csv":
		return InputTypeCSV, nil
	case "pdf", "png", "jpg", "jpeg":
		return InputTypePDF, nil
	}
	return "", fmt.Errorf("unsupported file type %q: %w", ext, model.ErrNotValid)
}

// Config is the configuration of the simulator.
type Config struct {
	// Now returns the time used on the reports.
	Now func() time.Time
	// NewID returns a new task id.
	NewID  func() string
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewID == nil {
		c.NewID = func() string {
			return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
		}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "simulator.Simulator"})

	return nil
}

type task struct {
	id    model.TaskID
	input InputType
	steps []model.RawStatus
	// pos is the index of the last reported step, -1 while pending.
	pos int
}

func (t *task) current() model.RawStatus {
	if t.pos < 0 {
		return model.RawStatus{TaskID: t.id, State: model.TaskStatePending}
	}
	return t.steps[t.pos]
}

func (t *task) finished() bool {
	return t.pos == len(t.steps)-1
}

// Simulator simulates the remote pipeline. It's safe for concurrent use.
type Simulator struct {
	tasks  map[model.TaskID]*task
	now    func() time.Time
	newID  func() string
	logger log.Logger
	mu     sync.Mutex
}

// New returns a new simulator without tasks.
func New(cfg Config) (*Simulator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Simulator{
		tasks:  map[model.TaskID]*task{},
		now:    cfg.Now,
		newID:  cfg.NewID,
		logger: cfg.Logger,
	}, nil
}

// Submit creates a task for the file. Unsupported or unreadable files are
// rejected with model.ErrNotValid.
func (s *Simulator) Submit(name string, content []byte) (model.TaskID, InputType, error) {
	input, err := InputTypeFromName(name)
	if err != nil {
		return "", "", err
	}

	steps := []model.RawStatus{running(model.TaskStateStarted, StepInitializing, nil)}
	var records []record
	switch input {
	case InputTypeCSV:
		header, rows, err := parseCSV(content)
		if err != nil {
			return "", "", fmt.Errorf("%s: %w: %w", name, model.ErrNotValid, err)
		}
		steps = append(steps, running(model.TaskStateProgress, StepMapping, nil))

		cm := mapColumns(header)
		if !cm.mapped() {
			steps = append(steps, model.RawStatus{State: model.TaskStateFailure, Error: "could not map CSV columns"})
			break
		}
		records = toRecords(cm, rows)

	case InputTypePDF:
		// Scanned files have no extractable text in the simulation.
		steps = append(steps,
			running(model.TaskStateProgress, StepOCR, nil),
			running(model.TaskStateProgress, StepExtracting, nil),
		)
	}

	if last := steps[len(steps)-1]; last.State != model.TaskStateFailure {
		steps = append(steps, s.pipelineSteps(records)...)
	}

	id := model.TaskID(s.newID())
	for i := range steps {
		steps[i].TaskID = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id] = &task{id: id, input: input, steps: steps, pos: -1}

	s.logger.Infof("Task %s created for %s (%s, %d records)", id, name, input, len(records))
	return id, input, nil
}

func (s *Simulator) pipelineSteps(records []record) []model.RawStatus {
	var steps []model.RawStatus
	rows := make([]model.ResultRow, 0, len(records))
	for i, r := range records {
		id := r.name()
		if id == "" {
			id = r.NPI
		}
		steps = append(steps, running(model.TaskStateProgress, StepValidating, &model.RecordDetail{
			Identifier: id,
			Current:    i + 1,
			Total:      len(records),
		}))
		rows = append(rows, evaluate(r))
	}

	steps = append(steps,
		running(model.TaskStateProgress, StepEnriching, nil),
		running(model.TaskStateProgress, StepQA, nil),
		running(model.TaskStateProgress, StepDirectory, nil),
		model.RawStatus{
			State: model.TaskStateSuccess,
			Result: &model.Result{
				Processed: len(records),
				Rows:      rows,
				Report:    s.directoryReport(records, rows),
			},
		},
	)

	return steps
}

func (s *Simulator) directoryReport(records []record, rows []model.ResultRow) model.ServerReport {
	report := model.ServerReport{
		GeneratedAt:    s.now().UTC().Format(time.RFC3339),
		TotalProcessed: len(rows),
		AccuracyRate:   AccuracyRate,
		ActionItems:    []model.ActionItem{},
	}

	for i, row := range rows {
		if row.Status == model.ValidationStatusValid {
			report.ValidProviders++
		} else {
			report.FlaggedProviders++
		}

		if row.ConfidenceScore < 0.8 {
			report.ActionItems = append(report.ActionItems, model.ActionItem{
				Provider: records[i].name(),
				Issues:   row.Issues,
				Priority: priority(row.ConfidenceScore),
			})
		}
	}

	return report
}

// Advance moves the task one step forward and returns its new status. Once
// finished the terminal status is returned forever.
func (s *Simulator) Advance(id model.TaskID) (*model.RawStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	if !t.finished() {
		t.pos++
		if t.finished() {
			s.logger.Infof("Task %s finished with %s", id, t.current().State)
		}
	}

	st := t.current()
	return &st, nil
}

// Result returns the result of a successfully finished task.
func (s *Simulator) Result(id model.TaskID) (*model.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	st := t.current()
	if st.State != model.TaskStateSuccess || st.Result == nil {
		return nil, fmt.Errorf("task %s has no result yet: %w", id, model.ErrNotValid)
	}

	return st.Result, nil
}

func running(state model.TaskState, step string, detail *model.RecordDetail) model.RawStatus {
	return model.RawStatus{
		State:    state,
		Progress: &model.Progress{Step: step, Detail: detail},
	}
}
