package simulator

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/agenciai/agx/internal/model"
)

// MaxRecords is the max number of records of a CSV that are processed.
const MaxRecords = 50

type record struct {
	NPI       string
	FirstName string
	LastName  string
	Website   string
}

func (r record) name() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

func (r record) toMap() map[string]any {
	m := map[string]any{
		"npi":        r.NPI,
		"first_name": r.FirstName,
		"last_name":  r.LastName,
	}
	if r.Website != "" {
		m["website"] = r.Website
	}
	return m
}

// columnMap has the index of every known field in the CSV header, -1 when missing.
type columnMap struct {
	npi, firstName, lastName, fullName, website int
}

func (c columnMap) mapped() bool {
	return c.npi >= 0 || c.firstName >= 0 || c.lastName >= 0 || c.fullName >= 0
}

func mapColumns(header []string) columnMap {
	cm := columnMap{npi: -1, firstName: -1, lastName: -1, fullName: -1, website: -1}
	set := func(dst *int, i int) {
		if *dst < 0 {
			*dst = i
		}
	}

	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(h, "npi"), strings.Contains(h, "registration"), strings.Contains(h, "reg_no"):
			set(&cm.npi, i)
		case strings.Contains(h, "first"):
			set(&cm.firstName, i)
		case strings.Contains(h, "last"), strings.Contains(h, "surname"):
			set(&cm.lastName, i)
		case strings.Contains(h, "website"), h == "url", strings.HasSuffix(h, "_url"):
			set(&cm.website, i)
		case strings.Contains(h, "full_name"), strings.Contains(h, "provider_name"), h == "name":
			set(&cm.fullName, i)
		}
	}

	return cm
}

// parseCSV checks the CSV is readable and returns its header and rows.
func parseCSV(content []byte) ([]string, [][]string, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("csv is empty")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("could not read csv header: %w", err)
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("could not read csv: %w", err)
		}
		rows = append(rows, row)
	}

	return header, rows, nil
}

func toRecords(cm columnMap, rows [][]string) []record {
	get := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []record
	for _, row := range rows {
		if len(records) == MaxRecords {
			break
		}

		r := record{
			NPI:       strings.TrimSuffix(get(row, cm.npi), ".0"),
			FirstName: get(row, cm.firstName),
			LastName:  get(row, cm.lastName),
			Website:   get(row, cm.website),
		}
		if r.FirstName == "" && r.LastName == "" {
			parts := strings.Fields(strings.ReplaceAll(get(row, cm.fullName), "Dr.", ""))
			if len(parts) > 0 {
				r.FirstName = parts[0]
				r.LastName = strings.Join(parts[1:], " ")
			}
		}
		records = append(records, r)
	}

	return records
}

// validNPI checks the NPI check digit (Luhn over the 80840 prefixed number).
func validNPI(npi string) bool {
	if len(npi) != 10 {
		return false
	}
	for _, c := range npi {
		if c < '0' || c > '9' {
			return false
		}
	}

	digits := "80840" + npi
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}

	return sum%10 == 0
}

func reachableWebsite(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// evaluate runs the validation, enrichment and QA agents over a record.
func evaluate(r record) model.ResultRow {
	row := model.ResultRow{Record: r.toMap()}

	if !validNPI(r.NPI) {
		row.Issues = []string{"Invalid NPI or API Error"}
	} else {
		score := 1.0
		if r.FirstName == "" {
			score -= 0.3
		}
		if r.LastName == "" {
			score -= 0.3
		}
		if score < 1 {
			row.Issues = append(row.Issues, "Name mismatch with Registry")
		}
		row.Enrichment = map[string]any{
			"registry_match": score == 1,
			"taxonomy":       "Unknown",
		}
		row.ConfidenceScore = score
	}

	if r.Website != "" {
		ok := reachableWebsite(r.Website)
		row.WebsiteCheck = &model.WebsiteCheck{Valid: ok}
		if !ok {
			row.ConfidenceScore -= 0.1
			row.Issues = append(row.Issues, "Website unreachable: "+r.Website)
		}
	}

	row.ConfidenceScore = min(max(row.ConfidenceScore, 0), 1)
	row.ConfidenceScore = float64(int(row.ConfidenceScore*100+0.5)) / 100
	if row.ConfidenceScore > 0.8 {
		row.Status = model.ValidationStatusValid
	} else {
		row.Status = model.ValidationStatusFlagged
	}
	if row.Issues == nil {
		row.Issues = []string{}
	}

	return row
}

func priority(score float64) string {
	if score < 0.5 {
		return "High"
	}
	return "Medium"
}
