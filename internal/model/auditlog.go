package model

import "time"

// AuditLog is an immutable record appended when an auditable entity is
// created. It is never soft-deleted or updated.
type AuditLog struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Action     string    `json:"action" gorm:"type:varchar(100);index;not null"`
	EntityType string    `json:"entity_type" gorm:"type:varchar(50);index;not null"`
	EntityID   uint      `json:"entity_id" gorm:"index"`
	UserID     uint      `json:"user_id" gorm:"index"`
	TenantID   string    `json:"tenant_id" gorm:"index;type:varchar(64)"`
	Details    string    `json:"details" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
}

// AllModels lists every persisted entity for migration at startup
func AllModels() []interface{} {
	return []interface{}{
		&Tenant{},
		&User{},
		&Role{},
		&Permission{},
		&RolePermission{},
		&Project{},
		&Requirement{},
		&TestSuite{},
		&TestFolder{},
		&TestCase{},
		&TestRun{},
		&TestRunResult{},
		&Defect{},
		&DefectHistory{},
		&RequirementTestCase{},
		&RequirementTestSuite{},
		&AuditLog{},
	}
}
