package domain

import "time"

// Role is the role held by a profile
type Role string

const (
	RoleTenant     Role = "tenant"
	RoleOrganizer  Role = "organizer"
	RoleStaff      Role = "staff"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// IsValid returns true for a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleTenant, RoleOrganizer, RoleStaff, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Profile is an authenticated identity
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Caller is the authenticated actor of a service operation
type Caller struct {
	ProfileID string
	Email     string
	Role      Role
}

// IsAdmin is true for admin and superadmin
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin || c.Role == RoleSuperAdmin
}

// IsBackOffice is true for staff and admins
func (c Caller) IsBackOffice() bool {
	return c.IsAdmin() || c.Role == RoleStaff
}
