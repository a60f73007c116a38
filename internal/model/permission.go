package model

// Permission is a named capability assignable to roles. Names are globally
// unique among live rows, not tenant-scoped.
type Permission struct {
	Base
	Name        string `json:"name" gorm:"type:varchar(100);index;not null"`
	Description string `json:"description" gorm:"type:text"`
}

// RolePermission links a role to a permission. Like every associative row it
// carries lifecycle fields and is soft-deleted on unlink.
type RolePermission struct {
	Base
	RoleID       uint `json:"role_id" gorm:"index;not null"`
	PermissionID uint `json:"permission_id" gorm:"index;not null"`
}
