package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"stationportal/internal/domain"
	"stationportal/internal/infra/db"

	"github.com/gin-gonic/gin"
)

// StationStore is the read boundary this service needs from the station
// catalogue; the CRUD suite behind it lives elsewhere.
type StationStore interface {
	List(ctx context.Context) ([]db.Station, error)
	GetByAcronym(ctx context.Context, acronym string) (*db.Station, error)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type principalResponse struct {
	UserID             *int64   `json:"user_id,omitempty"`
	Username           string   `json:"username"`
	Email              string   `json:"email"`
	Role               string   `json:"role"`
	StationID          *int64   `json:"station_id,omitempty"`
	StationAcronym     string   `json:"station_acronym,omitempty"`
	AuthorizedStations []string `json:"authorized_stations,omitempty"`
	Permissions        []string `json:"permissions"`
	EditPrivileges     bool     `json:"edit_privileges"`
}

type stationResponse struct {
	ID      int64  `json:"id"`
	Acronym string `json:"acronym"`
	Name    string `json:"name"`
}

func (s *Server) handleMe(c *gin.Context) {
	principal, ok := getPrincipal(c)
	if !ok {
		writeErrorCode(c, http.StatusUnauthorized, "ACCESS_DENIED", "access denied")
		return
	}
	c.JSON(http.StatusOK, principalResponse{
		UserID:             principal.UserID,
		Username:           principal.Username,
		Email:              principal.Email,
		Role:               string(principal.Role),
		StationID:          principal.StationID,
		StationAcronym:     principal.StationAcronym,
		AuthorizedStations: principal.AuthorizedStations,
		Permissions:        principal.Permissions,
		EditPrivileges:     principal.EditPrivileges,
	})
}

// handleListStations returns the stations reachable from the caller's
// position: everything for global roles and anonymous public-portal
// visitors, the authorized subset for pilots, the bound station otherwise.
func (s *Server) handleListStations(c *gin.Context) {
	if s.stations == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "station store unavailable")
		return
	}
	stations, err := s.stations.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	principal, _ := getPrincipal(c)
	visible := make([]stationResponse, 0, len(stations))
	for _, station := range stations {
		if principal == nil || s.decider.CanAccess(principal, domain.StationPortal(strings.ToLower(station.Acronym))) {
			visible = append(visible, stationResponse{ID: station.ID, Acronym: station.Acronym, Name: station.Name})
		}
	}
	c.JSON(http.StatusOK, gin.H{"stations": visible})
}

func (s *Server) handleGetStation(c *gin.Context) {
	if s.stations == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "station store unavailable")
		return
	}
	acronym := strings.ToLower(strings.TrimSpace(c.Param("acronym")))
	principal, _ := getPrincipal(c)
	if !s.decider.CanAccess(principal, domain.StationPortal(acronym)) {
		writeAccessDenied(c, domain.ErrForbidden)
		return
	}
	station, err := s.stations.GetByAcronym(c.Request.Context(), acronym)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stationResponse{ID: station.ID, Acronym: station.Acronym, Name: station.Name})
}

func (s *Server) handleNoRoute(c *gin.Context) {
	writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "ACCESS_DENIED"
	case errors.Is(err, domain.ErrForbidden):
		status, code = http.StatusForbidden, "ACCESS_DENIED"
	case errors.Is(err, domain.ErrStoreUnavailable):
		status, code = http.StatusServiceUnavailable, "STORE_UNAVAILABLE"
	}
	message := "request failed"
	if code == "NOT_FOUND" {
		message = "not found"
	}
	writeErrorCode(c, status, code, message)
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
