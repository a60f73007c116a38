package model

// User belongs to exactly one tenant. Email is globally unique across tenants,
// not merely tenant-unique.
type User struct {
	Base
	TenantID          string `json:"tenant_id" gorm:"index;not null;type:varchar(64)"`
	Email             string `json:"email" gorm:"type:varchar(100);uniqueIndex;not null"`
	PasswordHash      string `json:"-" gorm:"type:varchar(255)"`
	FirstName         string `json:"first_name" gorm:"type:varchar(100)"`
	LastName          string `json:"last_name" gorm:"type:varchar(100)"`
	Active            bool   `json:"active" gorm:"default:true"`
	EmailConfirmed    bool   `json:"email_confirmed" gorm:"default:false"`
	ConfirmationToken string `json:"-" gorm:"type:varchar(64);index"`
}
