package model

import "time"

// Tenant is the isolation boundary of the system. Its id is an opaque string
// minted at registration and carried verbatim in the "TenantId" JWT claim;
// every tenant-owned row filters by it.
type Tenant struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Name        string     `json:"name" gorm:"type:varchar(100);not null"`
	Description string     `json:"description" gorm:"type:text"`
	Active      bool       `json:"active" gorm:"default:true"`
	AddressLine string     `json:"address_line,omitempty" gorm:"type:varchar(255)"`
	City        string     `json:"city,omitempty" gorm:"type:varchar(100)"`
	Country     string     `json:"country,omitempty" gorm:"type:varchar(100)"`
	PostalCode  string     `json:"postal_code,omitempty" gorm:"type:varchar(20)"`
	CreatedAt   time.Time  `json:"created_at"`
	ModifiedAt  *time.Time `json:"modified_at,omitempty"`
	IsDeleted   bool       `json:"-" gorm:"index;default:false"`
}
