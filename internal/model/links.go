package model

// RequirementTestCase links a requirement to a test case that verifies it
type RequirementTestCase struct {
	Base
	TenantID      string `json:"tenant_id" gorm:"index;not null;type:varchar(64)"`
	RequirementID uint   `json:"requirement_id" gorm:"index;not null"`
	TestCaseID    uint   `json:"test_case_id" gorm:"index;not null"`
}

// RequirementTestSuite links a requirement to a test suite that covers it
type RequirementTestSuite struct {
	Base
	TenantID      string `json:"tenant_id" gorm:"index;not null;type:varchar(64)"`
	RequirementID uint   `json:"requirement_id" gorm:"index;not null"`
	TestSuiteID   uint   `json:"test_suite_id" gorm:"index;not null"`
}
