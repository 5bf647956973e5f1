// Package stage maps raw task statuses to pipeline stages.
//
// The remote step labels are free text, so the mapping is a declarative ordered
// table of keyword rules instead of scattered conditionals.
package stage

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/agenciai/agx/internal/model"
)

// Rule maps a step label keyword to a stage. The keyword matches any word of
// the label that starts with it, case-insensitive.
type Rule struct {
	Keyword string
	Stage   model.Stage
}

// DefaultRules is the rule table for the step labels the pipeline reports.
// Later stages go first so a label naming two phases resolves to the most
// advanced one.
var DefaultRules = []Rule{
	{Keyword: "directory", Stage: model.StageDirectory},
	{Keyword: "report", Stage: model.StageDirectory},
	{Keyword: "publish", Stage: model.StageDirectory},
	{Keyword: "quality", Stage: model.StageQualityCheck},
	{Keyword: "qa", Stage: model.StageQualityCheck},
	{Keyword: "scor", Stage: model.StageQualityCheck},
	{Keyword: "enrich", Stage: model.StageEnriching},
	{Keyword: "validat", Stage: model.StageValidating},
	{Keyword: "verif", Stage: model.StageValidating},
	{Keyword: "map", Stage: model.StageValidating},
	{Keyword: "ocr", Stage: model.StageValidating},
	{Keyword: "extract", Stage: model.StageValidating},
	{Keyword: "pars", Stage: model.StageValidating},
	{Keyword: "initializ", Stage: model.StageValidating},
	{Keyword: "ingest", Stage: model.StageValidating},
}

// Resolver resolves the next stage of a task from its previous stage and a raw status.
// It's pure and safe for concurrent use.
type Resolver struct {
	rules []Rule
}

// NewResolver returns a resolver for the rule table. Nil rules use DefaultRules.
func NewResolver(rules []Rule) (*Resolver, error) {
	if rules == nil {
		rules = DefaultRules
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("at least one rule is required: %w", model.ErrNotValid)
	}

	rr := make([]Rule, 0, len(rules))
	for i, r := range rules {
		kw := strings.ToLower(strings.TrimSpace(r.Keyword))
		if kw == "" {
			return nil, fmt.Errorf("rule %d: keyword is required: %w", i, model.ErrNotValid)
		}
		if r.Stage < model.StageValidating || r.Stage > model.StageDirectory {
			return nil, fmt.Errorf("rule %d: stage %s can't be reached from a step label: %w", i, r.Stage, model.ErrNotValid)
		}
		rr = append(rr, Rule{Keyword: kw, Stage: r.Stage})
	}

	return &Resolver{rules: rr}, nil
}

// Default is the resolver using DefaultRules.
var Default = func() *Resolver {
	r, err := NewResolver(DefaultRules)
	if err != nil {
		panic(err)
	}
	return r
}()

// Resolve returns the next stage and, when the status carries new information,
// the log entry to append. The returned stage is never lower than prev.
//
// Terminal failures don't move the stage, failure is a distinct terminal state
// tracked by the session.
func (r *Resolver) Resolve(prev model.Stage, raw model.RawStatus) (model.Stage, *model.LogEntry) {
	switch {
	case raw.State == model.TaskStateSuccess:
		return model.StageDone, nil
	case raw.State == model.TaskStateFailure:
		return prev, nil
	case !raw.State.IsRunning():
		// Pending or unknown, nothing observed yet.
		return prev, nil
	}

	next := model.MaxStage(prev, model.StageValidating)
	if raw.Progress == nil {
		return next, nil
	}

	if st, ok := r.Match(raw.Progress.Step); ok {
		next = model.MaxStage(next, st)
	}

	return next, detailEntry(raw.Progress.Detail)
}

// Match returns the stage of the first rule matching the step label.
func (r *Resolver) Match(step string) (model.Stage, bool) {
	words := strings.FieldsFunc(strings.ToLower(step), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})
	if len(words) == 0 {
		return model.StageIdle, false
	}

	for _, rule := range r.rules {
		for _, w := range words {
			if strings.HasPrefix(w, rule.Keyword) {
				return rule.Stage, true
			}
		}
	}

	return model.StageIdle, false
}

func detailEntry(d *model.RecordDetail) *model.LogEntry {
	if d == nil {
		return nil
	}

	id := d.Identifier
	if strings.TrimSpace(id) == "" {
		id = "record"
	}

	return &model.LogEntry{
		Source:  model.LogSourceValidationAgent,
		Message: fmt.Sprintf("Processing %s...", id),
	}
}
