package model

// ResultStatus is the outcome recorded for a test case within a run
type ResultStatus string

const (
	ResultPassed  ResultStatus = "Passed"
	ResultFailed  ResultStatus = "Failed"
	ResultBlocked ResultStatus = "Blocked"
	ResultSkipped ResultStatus = "Skipped"
	ResultNotRun  ResultStatus = "NotRun"
)

// TestRun is scoped to a project and optionally assigned to a tester
type TestRun struct {
	Base
	TenantID         string `json:"tenant_id" gorm:"index;not null;type:varchar(64)"`
	ProjectID        uint   `json:"project_id" gorm:"index;not null"`
	Name             string `json:"name" gorm:"type:varchar(100);index;not null"`
	Description      string `json:"description" gorm:"type:text"`
	AssignedTesterID *uint  `json:"assigned_tester_id,omitempty" gorm:"index"`

	Results []TestRunResult `json:"results,omitempty" gorm:"foreignKey:TestRunID"`
}

func (r *TestRun) AuditEntityType() string { return "TestRun" }

func (r *TestRun) AuditDetails() map[string]string {
	return map[string]string{
		"Name":        r.Name,
		"Description": r.Description,
	}
}

// TestRunResult links one test case to one run. A case has at most one live
// result per run; the pair is checked at creation.
type TestRunResult struct {
	Base
	TenantID   string       `json:"tenant_id" gorm:"index;not null;type:varchar(64)"`
	TestRunID  uint         `json:"test_run_id" gorm:"index;not null"`
	TestCaseID uint         `json:"test_case_id" gorm:"index;not null"`
	Status     ResultStatus `json:"status" gorm:"type:varchar(10);not null"`
	Comments   string       `json:"comments" gorm:"type:text"`

	Defects []Defect `json:"defects,omitempty" gorm:"foreignKey:TestRunResultID"`
}

func (r *TestRunResult) AuditEntityType() string { return "TestRunResult" }

func (r *TestRunResult) AuditDetails() map[string]string {
	return map[string]string{
		"Status":   string(r.Status),
		"Comments": r.Comments,
	}
}
