package rbac

import (
	"errors"
	"strings"

	"stationportal/internal/domain"
)

// AuthzError carries an internal denial code. The HTTP layer never exposes
// it to clients: every denial renders the same generic response.
type AuthzError struct {
	Code string
	Err  error
}

func (e *AuthzError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code
}

func (e *AuthzError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func IsAuthzError(err error) (*AuthzError, bool) {
	var authz *AuthzError
	if errors.As(err, &authz) {
		return authz, true
	}
	return nil, false
}

// Authorizer implements the portal access decision. It holds no state; the
// decision is a pure function of principal and portal.
type Authorizer struct{}

func NewAuthorizer() *Authorizer {
	return &Authorizer{}
}

// CanAccess is the single authorization gate. First matching rule applies:
//
//	public portal          -> allow, principal or not
//	no principal           -> deny
//	admin portal           -> allow iff global role
//	station portal         -> allow for global roles; pilots by authorized
//	                          station list; station-bound roles by acronym;
//	                          everything else denies
func (a *Authorizer) CanAccess(principal *domain.Principal, portal domain.Portal) bool {
	if portal.Type == domain.PortalPublic {
		return true
	}
	if principal == nil {
		return false
	}
	switch portal.Type {
	case domain.PortalAdmin:
		return principal.IsGlobal()
	case domain.PortalStation:
		if principal.IsGlobal() {
			return true
		}
		if principal.Role == domain.RoleUAVPilot {
			return containsFold(principal.AuthorizedStations, portal.Station)
		}
		switch principal.Role {
		case domain.RoleStationAdmin, domain.RoleStation, domain.RoleStationInternal:
			return principal.StationAcronym != "" &&
				strings.EqualFold(principal.StationAcronym, portal.Station)
		}
		return false
	}
	return false
}

// Require wraps CanAccess with error mapping for the HTTP edge.
func (a *Authorizer) Require(principal *domain.Principal, portal domain.Portal) error {
	if a.CanAccess(principal, portal) {
		return nil
	}
	if principal == nil {
		return domain.ErrUnauthorized
	}
	if portal.Type == domain.PortalAdmin {
		return &AuthzError{Code: "MISSING_ROLE", Err: domain.ErrForbidden}
	}
	return &AuthzError{Code: "TENANT_MISMATCH", Err: domain.ErrForbidden}
}

func containsFold(values []string, want string) bool {
	if want == "" {
		return false
	}
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
