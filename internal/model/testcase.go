package model

// Priority of a test case or severity bucket of a defect
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// TestCase belongs to exactly one test suite and optionally a test folder
type TestCase struct {
	Base
	TenantID     string     `json:"tenant_id" gorm:"index;not null;type:varchar(64)"`
	TestSuiteID  uint       `json:"test_suite_id" gorm:"index;not null"`
	TestFolderID *uint      `json:"test_folder_id,omitempty" gorm:"index"`
	Title        string     `json:"title" gorm:"type:varchar(256);index;not null"`
	Description  string     `json:"description" gorm:"type:text"`
	Priority     Priority   `json:"priority" gorm:"type:varchar(10);index;default:'Medium'"`
	Status       string     `json:"status" gorm:"type:varchar(30)"`
	Tags         StringList `json:"tags" gorm:"type:text"`
}

func (t *TestCase) AuditEntityType() string { return "TestCase" }

func (t *TestCase) AuditDetails() map[string]string {
	return map[string]string{
		"Title":    t.Title,
		"Priority": string(t.Priority),
		"Status":   t.Status,
	}
}
