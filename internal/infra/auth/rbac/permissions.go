package rbac

import "stationportal/internal/domain"

// Permission names carried on a Principal.
const (
	PermRead      = "read"
	PermWrite     = "write"
	PermEdit      = "edit"
	PermDelete    = "delete"
	PermAdmin     = "admin"
	PermFlightLog = "flight-log"
)

// PermissionsFor maps a role to its permission set and edit flag. It is
// pure and total: unknown roles get the most restrictive set.
func PermissionsFor(role domain.Role) ([]string, bool) {
	switch role {
	case domain.RoleAdmin, domain.RoleSitesAdmin:
		return []string{PermRead, PermWrite, PermEdit, PermDelete, PermAdmin}, true
	case domain.RoleStationAdmin:
		return []string{PermRead, PermWrite, PermEdit, PermDelete}, true
	case domain.RoleUAVPilot:
		return []string{PermRead, PermFlightLog}, false
	default:
		return []string{PermRead}, false
	}
}

// Enrich derives Permissions and EditPrivileges from the principal's role.
// Derived fields are never set independently of Role.
func Enrich(p *domain.Principal) {
	if p == nil {
		return
	}
	p.Permissions, p.EditPrivileges = PermissionsFor(p.Role)
}
