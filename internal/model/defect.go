package model

// DefectStatus tracks a defect through its lifecycle
type DefectStatus string

const (
	DefectOpen       DefectStatus = "Open"
	DefectInProgress DefectStatus = "InProgress"
	DefectResolved   DefectStatus = "Resolved"
	DefectClosed     DefectStatus = "Closed"
)

// Defect is optionally linked to a test run result or a test case; neither
// link is required.
type Defect struct {
	Base
	TenantID        string       `json:"tenant_id" gorm:"index;not null;type:varchar(64)"`
	TestRunResultID *uint        `json:"test_run_result_id,omitempty" gorm:"index"`
	TestCaseID      *uint        `json:"test_case_id,omitempty" gorm:"index"`
	Title           string       `json:"title" gorm:"type:varchar(256);index;not null"`
	Description     string       `json:"description" gorm:"type:text"`
	Severity        Priority     `json:"severity" gorm:"type:varchar(10);default:'Medium'"`
	Status          DefectStatus `json:"status" gorm:"type:varchar(15);index;default:'Open'"`
	AssigneeID      *uint        `json:"assignee_id,omitempty" gorm:"index"`
}

func (d *Defect) AuditEntityType() string { return "Defect" }

func (d *Defect) AuditDetails() map[string]string {
	return map[string]string{
		"Title":    d.Title,
		"Severity": string(d.Severity),
		"Status":   string(d.Status),
	}
}

// DefectHistory records each status transition of a defect. Written in the
// same transaction as the triggering update.
type DefectHistory struct {
	Base
	TenantID  string       `json:"tenant_id" gorm:"index;not null;type:varchar(64)"`
	DefectID  uint         `json:"defect_id" gorm:"index;not null"`
	OldStatus DefectStatus `json:"old_status" gorm:"type:varchar(15)"`
	NewStatus DefectStatus `json:"new_status" gorm:"type:varchar(15)"`
	ChangedBy uint         `json:"changed_by"`
}
