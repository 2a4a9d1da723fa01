package domain

import "time"

// Role names as stored on user records. Anything outside this set is
// treated as the most restrictive role by the permission mapper.
type Role string

const (
	RoleAdmin           Role = "admin"
	RoleSitesAdmin      Role = "sites-admin"
	RoleStationAdmin    Role = "station-admin"
	RoleStation         Role = "station"
	RoleStationInternal Role = "station-internal"
	RoleReadonly        Role = "readonly"
	RoleUAVPilot        Role = "uav-pilot"
)

// ClaimSet is the verified content of one identity assertion. It lives for
// the duration of a single request and is never persisted.
type ClaimSet struct {
	Email         string
	Subject       string
	IdentityNonce string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// Principal is the request-scoped representation of an authenticated actor.
// Permissions and EditPrivileges are derived from Role at construction and
// never mutated independently.
type Principal struct {
	UserID         *int64
	Username       string
	Email          string
	Role           Role
	StationID      *int64
	StationAcronym string
	// AuthorizedStations is populated only for uav-pilot principals; empty
	// means the pilot reaches no station.
	AuthorizedStations []string
	Permissions        []string
	EditPrivileges     bool
}

// IsGlobal reports whether the principal's role bypasses tenant binding.
func (p *Principal) IsGlobal() bool {
	if p == nil {
		return false
	}
	return p.Role == RoleAdmin || p.Role == RoleSitesAdmin
}

// HasPermission reports membership in the derived permission set.
func (p *Principal) HasPermission(perm string) bool {
	if p == nil {
		return false
	}
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}
