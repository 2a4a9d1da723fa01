package domain

// PortalType classifies the tenant-scoped entry point a request targets.
type PortalType string

const (
	PortalPublic  PortalType = "public"
	PortalAdmin   PortalType = "admin"
	PortalStation PortalType = "station"
)

// Portal is the entry point derived from the request's host. Station is the
// lower-cased station code and is set only when Type is PortalStation.
type Portal struct {
	Type    PortalType
	Station string
}

func PublicPortal() Portal { return Portal{Type: PortalPublic} }

func AdminPortal() Portal { return Portal{Type: PortalAdmin} }

func StationPortal(code string) Portal {
	return Portal{Type: PortalStation, Station: code}
}
