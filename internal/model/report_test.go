package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agenciai/agx/internal/model"
)

func TestNewReport(t *testing.T) {
	rows := func(valid, flagged int) []model.ResultRow {
		var rr []model.ResultRow
		for i := 0; i < valid; i++ {
			rr = append(rr, model.ResultRow{Status: model.ValidationStatusValid, ConfidenceScore: 1})
		}
		for i := 0; i < flagged; i++ {
			rr = append(rr, model.ResultRow{Status: model.ValidationStatusFlagged, ConfidenceScore: 0.4})
		}
		return rr
	}

	tests := map[string]struct {
		result    model.Result
		expReport model.Report
	}{
		"Valid count should come from the rows.": {
			result: model.Result{
				Processed: 100,
				Rows:      rows(98, 2),
				Report:    model.ServerReport{TotalProcessed: 100, ValidProviders: 98, FlaggedProviders: 2, AccuracyRate: 0.95},
			},
			expReport: model.Report{TotalProcessed: 100, ValidCount: 98, FlaggedCount: 2, AccuracyRate: 0.95},
		},
		"Accuracy rate should be trusted from the server even if the counts disagree.": {
			result: model.Result{
				Processed: 4,
				Rows:      rows(1, 3),
				Report:    model.ServerReport{AccuracyRate: 0.9},
			},
			expReport: model.Report{TotalProcessed: 4, ValidCount: 1, FlaggedCount: 3, AccuracyRate: 0.9},
		},
		"Server action items and timestamp should be kept.": {
			result: model.Result{
				Processed: 1,
				Rows:      rows(0, 1),
				Report: model.ServerReport{
					GeneratedAt: "2026-10-18T10:00:00",
					ActionItems: []model.ActionItem{{Provider: "John Doe", Issues: []string{"Invalid NPI or API Error"}, Priority: "High"}},
				},
			},
			expReport: model.Report{
				TotalProcessed: 1,
				FlaggedCount:   1,
				GeneratedAt:    "2026-10-18T10:00:00",
				ActionItems:    []model.ActionItem{{Provider: "John Doe", Issues: []string{"Invalid NPI or API Error"}, Priority: "High"}},
			},
		},
		"Empty result should return an empty report.": {
			result:    model.Result{},
			expReport: model.Report{},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expReport, model.NewReport(test.result))
		})
	}
}

func TestParseValidationStatus(t *testing.T) {
	tests := map[string]struct {
		status string
		exp    model.ValidationStatus
	}{
		"Valid should be valid.":         {status: "Valid", exp: model.ValidationStatusValid},
		"Needs Review should be flagged.": {status: "Needs Review", exp: model.ValidationStatusFlagged},
		"Flagged should be flagged.":      {status: "Flagged", exp: model.ValidationStatusFlagged},
		"Empty should be flagged.":        {status: "", exp: model.ValidationStatusFlagged},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, model.ParseValidationStatus(test.status))
		})
	}
}
