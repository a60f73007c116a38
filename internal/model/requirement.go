package model

// Requirement is a self-referencing tree node scoped to a project. The
// read-time forest is rebuilt from the ParentRequirementID pointers.
type Requirement struct {
	Base
	TenantID             string `json:"tenant_id" gorm:"index;not null;type:varchar(64)"`
	ProjectID            uint   `json:"project_id" gorm:"index;not null"`
	ParentRequirementID  *uint  `json:"parent_requirement_id,omitempty" gorm:"index"`
	Title                string `json:"title" gorm:"type:varchar(256);index;not null"`
	Description          string `json:"description" gorm:"type:text"`
}

func (r *Requirement) AuditEntityType() string { return "Requirement" }

func (r *Requirement) AuditDetails() map[string]string {
	return map[string]string{
		"Title":       r.Title,
		"Description": r.Description,
	}
}
