// Package report builds tabular result sets and hands them to a renderer.
// The renderer's output format is outside the core contract; CSV is the
// in-tree implementation and a PDF renderer would satisfy the same interface.
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"gorm.io/gorm"
)

// ErrUnknownColumn is returned when a requested column is not part of the
// report's column set.
var ErrUnknownColumn = errors.New("unknown report column")

// ResultSet is the tabular shape handed to renderers
type ResultSet struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Renderer writes a result set in some output format
type Renderer interface {
	ContentType() string
	Render(w io.Writer, rs *ResultSet) error
}

// CSVRenderer renders result sets as RFC 4180 CSV
type CSVRenderer struct{}

func (CSVRenderer) ContentType() string { return "text/csv" }

func (CSVRenderer) Render(w io.Writer, rs *ResultSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rs.Columns); err != nil {
		return err
	}
	for _, row := range rs.Rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// runResultColumns maps report column names to their row builders
var runResultColumns = []string{"Run", "TestCase", "Status", "Comments"}

type runResultRow struct {
	RunName   string
	CaseTitle string
	Status    string
	Comments  string
}

// BuildRunResults assembles the run-outcome report for one project. columns
// may narrow the default column set; an unknown column name is an error.
func BuildRunResults(db *gorm.DB, tenantID string, projectID uint, columns []string) (*ResultSet, error) {
	if len(columns) == 0 {
		columns = runResultColumns
	}
	known := map[string]bool{}
	for _, c := range runResultColumns {
		known[c] = true
	}
	for _, c := range columns {
		if !known[c] {
			return nil, fmt.Errorf("%w %q", ErrUnknownColumn, c)
		}
	}

	var rows []runResultRow
	err := db.Table("test_run_results").
		Select("test_runs.name AS run_name, test_cases.title AS case_title, test_run_results.status AS status, test_run_results.comments AS comments").
		Joins("JOIN test_runs ON test_runs.id = test_run_results.test_run_id").
		Joins("JOIN test_cases ON test_cases.id = test_run_results.test_case_id").
		Where("test_run_results.tenant_id = ? AND test_run_results.is_deleted = ?", tenantID, false).
		Where("test_runs.project_id = ? AND test_runs.is_deleted = ?", projectID, false).
		Order("test_runs.id, test_cases.id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	rs := &ResultSet{Columns: columns}
	for _, r := range rows {
		out := make([]string, 0, len(columns))
		for _, c := range columns {
			switch c {
			case "Run":
				out = append(out, r.RunName)
			case "TestCase":
				out = append(out, r.CaseTitle)
			case "Status":
				out = append(out, r.Status)
			case "Comments":
				out = append(out, r.Comments)
			}
		}
		rs.Rows = append(rs.Rows, out)
	}
	return rs, nil
}

// ParseColumns splits a comma-separated column list, dropping empty tokens
func ParseColumns(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, tok := range strings.Split(raw, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
