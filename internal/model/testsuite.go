package model

// TestSuite is a self-referencing tree node scoped to a project; it owns
// test cases.
type TestSuite struct {
	Base
	TenantID      string `json:"tenant_id" gorm:"index;not null;type:varchar(64)"`
	ProjectID     uint   `json:"project_id" gorm:"index;not null"`
	ParentSuiteID *uint  `json:"parent_suite_id,omitempty" gorm:"index"`
	Name          string `json:"name" gorm:"type:varchar(100);index;not null"`
	Description   string `json:"description" gorm:"type:text"`
}

func (s *TestSuite) AuditEntityType() string { return "TestSuite" }

func (s *TestSuite) AuditDetails() map[string]string {
	return map[string]string{
		"Name":        s.Name,
		"Description": s.Description,
	}
}

// TestFolder is an optional flat grouping for test cases within a project
type TestFolder struct {
	Base
	TenantID  string `json:"tenant_id" gorm:"index;not null;type:varchar(64)"`
	ProjectID uint   `json:"project_id" gorm:"index;not null"`
	Name      string `json:"name" gorm:"type:varchar(100);index;not null"`
}
