package models

import "fmt"

// Role is the staff role reported by the auth provider.
type Role string

const (
	RoleSuperadmin         Role = "SUPERADMIN"
	RoleManager            Role = "MANAGER"
	RoleArborist           Role = "ARBORIST"
	RoleBotanist           Role = "BOTANIST"
	RoleLandscapeArchitect Role = "LANDSCAPE_ARCHITECT"
	RoleParkRanger         Role = "PARK_RANGER"
	RoleVendorManager      Role = "VENDOR_MANAGER"
)

// Known reports whether r is a recognised staff role.
func (r Role) Known() bool {
	switch r {
	case RoleSuperadmin, RoleManager, RoleArborist, RoleBotanist,
		RoleLandscapeArchitect, RoleParkRanger, RoleVendorManager:
		return true
	default:
		return false
	}
}

// Privileged roles see and manage the whole board.
func (r Role) Privileged() bool {
	return r == RoleSuperadmin || r == RoleManager
}

// Field roles pick up and work on tasks.
func (r Role) Field() bool {
	return r == RoleArborist || r == RoleBotanist
}

// ParseRole converts a raw role into a Role.
func ParseRole(raw string) (Role, error) {
	r := Role(raw)
	if !r.Known() {
		return "", fmt.Errorf("unknown staff role %q", raw)
	}
	return r, nil
}

// Staff identifies the person acting on or viewing a board.
type Staff struct {
	ID     string `json:"id"`
	Role   Role   `json:"role"`
	ParkID int64  `json:"park_id,omitempty"`
}
