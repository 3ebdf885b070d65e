package model

import "time"

// Role is the marketplace profile type of a user.
type Role string

const (
	RoleFarmer           Role = "farmer"
	RoleInputSupplier    Role = "input_supplier"
	RoleAggregator       Role = "aggregator"
	RoleManufacturer     Role = "manufacturer"
	RoleExtensionOfficer Role = "extension_officer"
	RoleBuyer            Role = "buyer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleInputSupplier, RoleAggregator, RoleManufacturer, RoleExtensionOfficer, RoleBuyer:
		return true
	}
	return false
}

// CanSell reports whether users with role r may publish listings.
func (r Role) CanSell() bool {
	return r.Valid() && r != RoleBuyer && r != RoleExtensionOfficer
}

// CanValidate reports whether users with role r may decide order validations.
func (r Role) CanValidate() bool {
	return r == RoleExtensionOfficer
}

// User represents a registered marketplace member.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Name         string
	Role         Role
	Location     string
	Phone        string
	Verified     bool
	CreatedAt    time.Time
}
