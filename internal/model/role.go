package model

// RoleType enumerates the roles the authorization layer understands.
type RoleType string

const (
	RoleAdmin      RoleType = "Admin"
	RoleTester     RoleType = "Tester"
	RoleSuperAdmin RoleType = "SuperAdmin"
)

// KnownRoleTypes is the full set the policy gate may reference. Validated at
// startup against the route policy table.
var KnownRoleTypes = map[RoleType]bool{
	RoleAdmin:      true,
	RoleTester:     true,
	RoleSuperAdmin: true,
}

// AssignableRoleTypes are the roles an admin may grant through the API.
// SuperAdmin is representable but never minted by normal flows.
var AssignableRoleTypes = map[RoleType]bool{
	RoleAdmin:  true,
	RoleTester: true,
}

// Role grants a user a RoleType within a tenant. A user holds at most one
// live role per tenant, enforced at assignment time.
type Role struct {
	Base
	TenantID string   `json:"tenant_id" gorm:"index;not null;type:varchar(64)"`
	UserID   uint     `json:"user_id" gorm:"index;not null"`
	RoleType RoleType `json:"role_type" gorm:"type:varchar(20);not null"`
}
