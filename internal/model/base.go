package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Base is the shared shape of every tenant-owned row. Soft deletion is the
// only deletion mechanism: rows are flagged, never physically removed.
type Base struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
	CreatedBy  *uint      `json:"created_by,omitempty" gorm:"index"`
	ModifiedBy *uint      `json:"modified_by,omitempty"`
	IsDeleted  bool       `json:"-" gorm:"index;default:false"`
}

// GetID returns the row identity
func (b *Base) GetID() uint { return b.ID }

// Touch stamps the modification metadata before an update is persisted
func (b *Base) Touch(actorID *uint) {
	now := time.Now()
	b.ModifiedAt = &now
	b.ModifiedBy = actorID
}

// Auditable is implemented by entity kinds whose creation is recorded in the
// audit trail. Details become the JSON payload of the audit row.
type Auditable interface {
	AuditEntityType() string
	AuditDetails() map[string]string
}

// StringList stores a string slice as a JSON text column
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
}
