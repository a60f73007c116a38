package model

// Project is the root aggregate within a tenant; it owns requirements,
// test suites and test runs.
type Project struct {
	Base
	TenantID    string `json:"tenant_id" gorm:"index;not null;type:varchar(64)"`
	Name        string `json:"name" gorm:"type:varchar(100);index;not null"`
	Description string `json:"description" gorm:"type:text"`
}

func (p *Project) AuditEntityType() string { return "Project" }

func (p *Project) AuditDetails() map[string]string {
	return map[string]string{
		"Name":        p.Name,
		"Description": p.Description,
	}
}
