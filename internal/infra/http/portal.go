package http

import (
	"net"
	"strings"

	"stationportal/internal/domain"
)

// subdomainOf derives the portal subdomain from the request host. Hosts
// under the platform tunnel domain never infer a subdomain from the
// hostname itself: the tunnel assigns random names, so the tenant must be
// named explicitly through the override header. On regular domains the
// first label is the subdomain when the host carries more than two labels;
// a bare root domain has none.
func subdomainOf(host, override, tunnelDomain string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" {
		return ""
	}
	labels := strings.Split(host, ".")
	if isTunnelHost(labels, tunnelDomain) {
		return strings.ToLower(strings.TrimSpace(override))
	}
	if len(labels) > 2 {
		return labels[0]
	}
	return ""
}

func isTunnelHost(labels []string, tunnelDomain string) bool {
	tunnelDomain = strings.ToLower(strings.TrimSpace(tunnelDomain))
	if tunnelDomain == "" || len(labels) < 2 {
		return false
	}
	suffix := strings.Join(labels[len(labels)-2:], ".")
	return suffix == tunnelDomain
}

// portalTypeOf classifies a subdomain: none or www is the public portal,
// the literal admin label is the global-admin portal, anything else is a
// station code.
func portalTypeOf(subdomain string) domain.PortalType {
	switch subdomain {
	case "", "www":
		return domain.PortalPublic
	case "admin":
		return domain.PortalAdmin
	default:
		return domain.PortalStation
	}
}

// portalOf combines both steps into the Portal the access decision takes.
func portalOf(host, override, tunnelDomain string) domain.Portal {
	sub := subdomainOf(host, override, tunnelDomain)
	switch portalTypeOf(sub) {
	case domain.PortalAdmin:
		return domain.AdminPortal()
	case domain.PortalStation:
		return domain.StationPortal(sub)
	default:
		return domain.PublicPortal()
	}
}
